package catalog

import (
	"errors"
	"strings"
	"testing"
)

func TestAvailableTopicsNonEmpty(t *testing.T) {
	for _, c := range Countries() {
		topics := AvailableTopics(c)
		if len(topics) == 0 {
			t.Errorf("country %s: no topics available", c)
		}
		for _, id := range topics {
			topic, ok := TopicByID(id)
			if !ok {
				t.Fatalf("country %s: unknown topic %s in available set", c, id)
			}
			if topic.RestrictedTo != "" && topic.RestrictedTo != AudienceOf(c) {
				t.Errorf("country %s: topic %s restricted to %s but offered", c, id, topic.RestrictedTo)
			}
		}
	}
}

func TestChristmasExcludedForLocalsAndMixed(t *testing.T) {
	for _, c := range []Country{CountryKSA, CountryKuwait, CountryOman, CountryQatar} {
		for _, id := range AvailableTopics(c) {
			if id == TopicChristmas {
				t.Errorf("country %s: christmas must not be offered", c)
			}
		}
	}
	found := false
	for _, id := range AvailableTopics(CountryUAE) {
		if id == TopicChristmas {
			found = true
		}
	}
	if !found {
		t.Error("uae: christmas should be offered to the expat bucket")
	}
}

func TestBuildPromptBlockOrder(t *testing.T) {
	for _, c := range Countries() {
		for _, id := range AvailableTopics(c) {
			prompt, err := BuildPrompt(c, id)
			if err != nil {
				t.Fatalf("BuildPrompt(%s, %s): %v", c, id, err)
			}
			topic, _ := TopicByID(id)
			info := countries[c]

			topicIdx := strings.Index(prompt, topic.Prompt)
			aestheticIdx := strings.Index(prompt, info.Aesthetic)
			safetyIdx := strings.Index(prompt, "GLOBAL GCC SAFETY PROTOCOL")
			if topicIdx < 0 || aestheticIdx < 0 || safetyIdx < 0 {
				t.Fatalf("BuildPrompt(%s, %s): missing block (topic=%d aesthetic=%d safety=%d)", c, id, topicIdx, aestheticIdx, safetyIdx)
			}
			if !(topicIdx < aestheticIdx && aestheticIdx < safetyIdx) {
				t.Errorf("BuildPrompt(%s, %s): blocks out of order (topic=%d aesthetic=%d safety=%d)", c, id, topicIdx, aestheticIdx, safetyIdx)
			}
		}
	}
}

func TestBuildPromptInvalidSelection(t *testing.T) {
	_, err := BuildPrompt(CountryKSA, TopicChristmas)
	if !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection, got %v", err)
	}
	_, err = BuildPrompt(Country("atlantis"), TopicFireworks)
	if !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("unknown country: expected ErrInvalidSelection, got %v", err)
	}
	_, err = BuildPrompt(CountryUAE, TopicID("nonexistent"))
	if !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("unknown topic: expected ErrInvalidSelection, got %v", err)
	}
}

func TestExtraVisuals(t *testing.T) {
	prompt, err := BuildPrompt(CountryOman, TopicDesert)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "khanjar") {
		t.Error("oman desert prompt should carry the khanjar hint")
	}

	prompt, err = BuildPrompt(CountryOman, TopicSkylines)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(prompt, "khanjar") {
		t.Error("oman non-desert prompt must not carry the khanjar hint")
	}

	prompt, err = BuildPrompt(CountryQatar, TopicAbstract)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "Maroon (Burgundy) and White.") {
		t.Error("qatar prompt should force the maroon palette")
	}
}

func TestTipNeverEmpty(t *testing.T) {
	for _, c := range Countries() {
		if Tip(c) == "" {
			t.Errorf("country %s: empty tip", c)
		}
	}
	if Tip(Country("unknown")) == "" {
		t.Error("unknown country must fall back to the generic tip")
	}
}
