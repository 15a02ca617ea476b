package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/annaleodit/Celebrate-the-world/internal/catalog"
	"github.com/annaleodit/Celebrate-the-world/internal/genimage"
)

type fakeGen struct {
	calls   int
	prompts []string
	// outcome per call; when exhausted the last entry repeats.
	results []error
	bytes   []byte
}

func (g *fakeGen) Generate(_ context.Context, prompt string) ([]byte, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	idx := g.calls - 1
	if idx >= len(g.results) {
		idx = len(g.results) - 1
	}
	if len(g.results) > 0 && g.results[idx] != nil {
		return nil, g.results[idx]
	}
	if g.bytes == nil {
		return []byte("base-image"), nil
	}
	return g.bytes, nil
}

type fakeComposer struct {
	calls    int
	captions []string
	fail     error
}

func (c *fakeComposer) Compose(base []byte, caption string) ([]byte, error) {
	c.calls++
	c.captions = append(c.captions, caption)
	if c.fail != nil {
		return nil, c.fail
	}
	return append([]byte("composed:"), base...), nil
}

type sentImage struct {
	chatID int64
	card   Card
}

type fakeDelivery struct {
	statuses []string
	edits    []string
	deleted  int
	images   []sentImage
}

func (d *fakeDelivery) SendStatus(_ context.Context, chatID int64, text string) (StatusHandle, error) {
	d.statuses = append(d.statuses, text)
	return len(d.statuses), nil
}

func (d *fakeDelivery) EditStatus(_ context.Context, _ StatusHandle, text string) error {
	d.edits = append(d.edits, text)
	return nil
}

func (d *fakeDelivery) DeleteStatus(_ context.Context, _ StatusHandle) error {
	d.deleted++
	return nil
}

func (d *fakeDelivery) SendImage(_ context.Context, chatID int64, card Card) error {
	d.images = append(d.images, sentImage{chatID: chatID, card: card})
	return nil
}

func newTestMachine(gen *fakeGen, comp *fakeComposer, del *fakeDelivery, opts ...Option) *Machine {
	opts = append([]Option{
		WithRetryPolicy(RetryPolicy{MaxRetries: 2, Delay: time.Millisecond}),
	}, opts...)
	return NewMachine(NewMemoryStore(), gen, comp, del, opts...)
}

const chat = int64(42)

func advanceToCaption(t *testing.T, m *Machine, country catalog.Country, topic catalog.TopicID) {
	t.Helper()
	ctx := context.Background()
	m.Begin(ctx, chat)
	if _, _, err := m.SelectCountry(ctx, chat, country); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SelectTopic(ctx, chat, topic); err != nil {
		t.Fatal(err)
	}
	if err := m.ConfirmTopic(ctx, chat); err != nil {
		t.Fatal(err)
	}
}

func TestHappyPathWithSkippedCaption(t *testing.T) {
	gen := &fakeGen{}
	comp := &fakeComposer{}
	del := &fakeDelivery{}
	m := newTestMachine(gen, comp, del)
	ctx := context.Background()

	advanceToCaption(t, m, catalog.CountryUAE, catalog.TopicFireworks)
	if err := m.SkipCaption(ctx, chat); err != nil {
		t.Fatal(err)
	}

	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
	if comp.calls != 1 || comp.captions[0] != DefaultCaption {
		t.Errorf("composer calls = %d captions = %v", comp.calls, comp.captions)
	}
	if len(del.images) != 1 {
		t.Fatalf("images delivered = %d, want 1", len(del.images))
	}
	img := del.images[0]
	if img.chatID != chat || img.card.Filename != "greeting_card_stories.jpg" || !img.card.OfferAnother {
		t.Errorf("unexpected card: %+v", img.card)
	}
	if del.deleted != 1 {
		t.Errorf("status deleted %d times, want 1", del.deleted)
	}
	if m.StateOf(chat) != StateDone {
		t.Errorf("state = %s, want done", m.StateOf(chat))
	}
}

func TestRetryBoundExactlyNPlusOne(t *testing.T) {
	timeout := &genimage.Failure{Kind: genimage.KindTimeout, Err: context.DeadlineExceeded}
	gen := &fakeGen{results: []error{timeout}}
	comp := &fakeComposer{}
	del := &fakeDelivery{}
	m := newTestMachine(gen, comp, del)
	ctx := context.Background()

	advanceToCaption(t, m, catalog.CountryKSA, catalog.TopicDesert)
	err := m.SkipCaption(ctx, chat)
	if err == nil {
		t.Fatal("expected terminal failure")
	}

	if gen.calls != 3 {
		t.Errorf("generator calls = %d, want 3 (N+1)", gen.calls)
	}
	if comp.calls != 0 {
		t.Errorf("composer must not run on generation failure, ran %d times", comp.calls)
	}
	// Two "retrying" edits plus the final failure edit.
	if len(del.edits) != 3 {
		t.Errorf("status edits = %d (%v), want 3", len(del.edits), del.edits)
	}
	if final := del.edits[len(del.edits)-1]; final != failureMessage(genimage.KindTimeout) {
		t.Errorf("final edit = %q, want the timeout failure message", final)
	}
	if m.StateOf(chat) != StateIdle {
		t.Errorf("state = %s, want idle after exhausted retries", m.StateOf(chat))
	}
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	empty := &genimage.Failure{Kind: genimage.KindEmptyResult, Err: errors.New("no parts")}
	gen := &fakeGen{results: []error{empty, nil}}
	comp := &fakeComposer{}
	del := &fakeDelivery{}
	m := newTestMachine(gen, comp, del)

	advanceToCaption(t, m, catalog.CountryQatar, catalog.TopicAbstract)
	if err := m.SkipCaption(context.Background(), chat); err != nil {
		t.Fatal(err)
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
	if len(del.edits) != 2 || del.edits[0] != MsgRetrying || del.edits[1] != MsgComposing {
		t.Errorf("edits = %v, want retrying then composing", del.edits)
	}
	if len(del.images) != 1 {
		t.Errorf("images = %d, want 1", len(del.images))
	}
}

func TestCaptionTooLongNoStateChange(t *testing.T) {
	gen := &fakeGen{}
	comp := &fakeComposer{}
	del := &fakeDelivery{}
	m := newTestMachine(gen, comp, del)
	ctx := context.Background()

	advanceToCaption(t, m, catalog.CountryUAE, catalog.TopicSkylines)

	long := strings.Repeat("x", CaptionLimit+1)
	if err := m.SubmitCaption(ctx, chat, long); !errors.Is(err, ErrCaptionTooLong) {
		t.Fatalf("err = %v, want ErrCaptionTooLong", err)
	}
	if m.StateOf(chat) != StateAwaitingCaption {
		t.Fatalf("state = %s, over-limit caption must not change state", m.StateOf(chat))
	}
	if gen.calls != 0 {
		t.Fatal("no generation may happen on rejected caption")
	}

	ok := strings.Repeat("y", 150)
	if err := m.SubmitCaption(ctx, chat, ok); err != nil {
		t.Fatal(err)
	}
	if comp.captions[0] != ok {
		t.Errorf("caption = %q, want the resubmitted text", comp.captions[0])
	}
}

func TestRandomTopicResolvedFromAvailable(t *testing.T) {
	gen := &fakeGen{}
	comp := &fakeComposer{}
	del := &fakeDelivery{}
	m := newTestMachine(gen, comp, del, WithRandFn(func(n int) int { return n - 1 }))
	ctx := context.Background()

	m.Begin(ctx, chat)
	if _, _, err := m.SelectCountry(ctx, chat, catalog.CountryOman); err != nil {
		t.Fatal(err)
	}
	resolved, err := m.SelectRandomTopic(ctx, chat)
	if err != nil {
		t.Fatal(err)
	}
	available := catalog.AvailableTopics(catalog.CountryOman)
	if resolved != available[len(available)-1] {
		t.Errorf("resolved = %s, want last of %v", resolved, available)
	}
	if m.StateOf(chat) != StateAwaitingCaption {
		t.Errorf("state = %s, want awaiting_caption", m.StateOf(chat))
	}

	if err := m.SkipCaption(ctx, chat); err != nil {
		t.Fatal(err)
	}
	topic, _ := catalog.TopicByID(resolved)
	if !strings.Contains(gen.prompts[0], topic.Prompt) {
		t.Error("prompt must be built from the resolved topic")
	}
}

func TestStaleTopicSelectionResetsToIdle(t *testing.T) {
	gen := &fakeGen{}
	comp := &fakeComposer{}
	del := &fakeDelivery{}
	m := newTestMachine(gen, comp, del)
	ctx := context.Background()

	// Topic button pressed while still choosing a country.
	m.Begin(ctx, chat)
	if _, err := m.SelectTopic(ctx, chat, catalog.TopicFireworks); !errors.Is(err, ErrStaleSelection) {
		t.Fatalf("err = %v, want ErrStaleSelection", err)
	}
	if m.StateOf(chat) != StateIdle {
		t.Errorf("state = %s, want idle", m.StateOf(chat))
	}
}

func TestCountryChangeClearsTopic(t *testing.T) {
	gen := &fakeGen{}
	comp := &fakeComposer{}
	del := &fakeDelivery{}
	m := newTestMachine(gen, comp, del)
	ctx := context.Background()

	m.Begin(ctx, chat)
	if _, _, err := m.SelectCountry(ctx, chat, catalog.CountryUAE); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SelectTopic(ctx, chat, catalog.TopicChristmas); err != nil {
		t.Fatal(err)
	}

	// Restart and pick a locals country; the old expat-only topic is gone.
	m.Begin(ctx, chat)
	if _, _, err := m.SelectCountry(ctx, chat, catalog.CountryKSA); err != nil {
		t.Fatal(err)
	}
	s, _ := m.store.Get(chat)
	if s.Topic != "" {
		t.Errorf("topic = %q, want cleared on country change", s.Topic)
	}
	if _, err := m.SelectTopic(ctx, chat, catalog.TopicChristmas); !errors.Is(err, ErrStaleSelection) {
		t.Errorf("christmas for ksa: err = %v, want ErrStaleSelection", err)
	}
}

func TestMakeAnotherKeepsCountry(t *testing.T) {
	gen := &fakeGen{}
	comp := &fakeComposer{}
	del := &fakeDelivery{}
	m := newTestMachine(gen, comp, del)
	ctx := context.Background()

	advanceToCaption(t, m, catalog.CountryBahrain, catalog.TopicFireworks)
	if err := m.SkipCaption(ctx, chat); err != nil {
		t.Fatal(err)
	}

	topics, _, err := m.MakeAnother(ctx, chat)
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) == 0 {
		t.Fatal("no topics offered after make-another")
	}
	s, _ := m.store.Get(chat)
	if s.Country != catalog.CountryBahrain {
		t.Errorf("country = %s, want retained bahrain", s.Country)
	}
	if s.State != StateChoosingTopic {
		t.Errorf("state = %s, want choosing_topic", s.State)
	}
}

func TestComposeFailureIsTerminal(t *testing.T) {
	gen := &fakeGen{}
	comp := &fakeComposer{fail: errors.New("bad canvas")}
	del := &fakeDelivery{}
	m := newTestMachine(gen, comp, del)
	ctx := context.Background()

	advanceToCaption(t, m, catalog.CountryKuwait, catalog.TopicClocks)
	if err := m.SkipCaption(ctx, chat); err == nil {
		t.Fatal("expected composition failure")
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, composition failures must not retry", gen.calls)
	}
	if len(del.images) != 0 {
		t.Error("no image may be delivered on composition failure")
	}
	if del.edits[len(del.edits)-1] != MsgComposeFailed {
		t.Errorf("final edit = %q, want compose failure text", del.edits[len(del.edits)-1])
	}
	if m.StateOf(chat) != StateIdle {
		t.Errorf("state = %s, want idle", m.StateOf(chat))
	}
}

func TestCancelClearsEverything(t *testing.T) {
	gen := &fakeGen{}
	comp := &fakeComposer{}
	del := &fakeDelivery{}
	m := newTestMachine(gen, comp, del)
	ctx := context.Background()

	advanceToCaption(t, m, catalog.CountryUAE, catalog.TopicTerrace)
	m.Cancel(ctx, chat)
	if m.StateOf(chat) != StateIdle {
		t.Errorf("state = %s, want idle after cancel", m.StateOf(chat))
	}
	if m.InProgress(chat) {
		t.Error("cancelled session must not capture text")
	}
}
