// Package catalog holds the static content powering the greeting-card flow:
// countries, topics, audience buckets, insider tips, and the prompt assembly
// used for image generation. Everything here is pure data and pure functions.
package catalog

import (
	"errors"
	"fmt"
)

// Country identifies a supported GCC country.
type Country string

const (
	CountryUAE     Country = "uae"
	CountryKSA     Country = "ksa"
	CountryQatar   Country = "qatar"
	CountryKuwait  Country = "kuwait"
	CountryBahrain Country = "bahrain"
	CountryOman    Country = "oman"
)

// Audience buckets drive topic filtering and holiday restrictions.
type Audience string

const (
	AudienceExpats Audience = "expats"
	AudienceLocals Audience = "locals"
	AudienceMixed  Audience = "mixed"
)

// TopicID identifies a card topic.
type TopicID string

const (
	TopicFireworks TopicID = "fireworks"
	TopicClocks    TopicID = "clocks"
	TopicSkylines  TopicID = "skylines"
	TopicAbstract  TopicID = "abstract"
	TopicDesert    TopicID = "desert"
	TopicLanterns  TopicID = "lanterns"
	TopicTerrace   TopicID = "terrace"
	TopicChristmas TopicID = "christmas"
)

// ErrInvalidSelection is returned when a topic is not available for a country.
var ErrInvalidSelection = errors.New("catalog: topic not available for country")

// Topic is an immutable catalog entry.
type Topic struct {
	ID     TopicID
	Button string
	Desc   string
	Prompt string
	// RestrictedTo limits the topic to countries whose audience bucket
	// matches; empty means available everywhere.
	RestrictedTo Audience
}

type countryInfo struct {
	Label     string
	Audience  Audience
	Aesthetic string
	// Extras are injected visual hints appended to the aesthetic block.
	Extras string
}

var countries = map[Country]countryInfo{
	CountryUAE: {
		Label:     "🇦🇪 UAE",
		Audience:  AudienceExpats,
		Aesthetic: "Aesthetic: 'Future Heritage.' Fusion of hyper-modern architecture and warm golden-hour lighting. Polished glass, steel, and gold textures. Vibe: Limitless ambition, cosmopolitan luxury.",
	},
	CountryKSA: {
		Label:     "🇸🇦 Saudi Arabia",
		Audience:  AudienceLocals,
		Aesthetic: "Aesthetic: Deep, rich, and regal. Blend of historic mud-brick architecture or desert landscapes with sleek modernity. Palette: Sand, Terracotta, Deep Gold, Midnight Blue. Vibe: Dignity, warmth, 'Kashta' hospitality.",
	},
	CountryQatar: {
		Label:     "🇶🇦 Qatar",
		Audience:  AudienceMixed,
		Aesthetic: "Aesthetic: Artistic and architectural refinement. Geometric patterns, calligraphy, clean lines. Palette: Dominant Maroon (Burgundy) and White. Vibe: National pride, sophistication.",
		Extras:    "Color palette MUST emphasize Maroon (Burgundy) and White.",
	},
	CountryKuwait: {
		Label:     "🇰🇼 Kuwait",
		Audience:  AudienceLocals,
		Aesthetic: "Aesthetic: Maritime and mercantile. Sea, water towers, 'Chalet' lifestyle. Strict Restrictions: Family-centric, private. Vibe: Old Money feel, peaceful.",
	},
	CountryBahrain: {
		Label:     "🇧🇭 Bahrain",
		Audience:  AudienceExpats,
		Aesthetic: "Aesthetic: Island city life. Iconic wind-turbine skyscrapers, pearl diving heritage. Vibe: Breezy, liberal, social. Visuals: Sea, pearls, sunset.",
		Extras:    "Include subtle visual hints of World Trade Center turbines or sea/pearls elements.",
	},
	CountryOman: {
		Label:     "🇴🇲 Oman",
		Audience:  AudienceLocals,
		Aesthetic: "Aesthetic: Dramatic nature and heritage. Rugged mountains, ancient forts, low-rise white architecture. Vibe: Humble, grounded, serene. Visuals: Frankincense smoke, mountains, starry nights.",
	},
}

// countryOrder fixes menu ordering; map iteration is not deterministic.
var countryOrder = []Country{
	CountryUAE, CountryKSA, CountryQatar, CountryKuwait, CountryBahrain, CountryOman,
}

var topics = map[TopicID]Topic{
	TopicFireworks: {
		ID:     TopicFireworks,
		Button: "🎆 Fireworks",
		Desc:   "Universal symbol of joy. Best for mixed groups/locals to say 'Bright successful year' without religious sensitivities.",
		Prompt: "Spectacular, colorful fireworks exploding in a dark night sky filled with stars and a full moon. The scene is festive and bright. The warm, vibrant light reflects on water/glass/sand. Cinematic lighting, high res celebration.",
	},
	TopicClocks: {
		ID:     TopicClocks,
		Button: "🕰 Clocks & Time",
		Desc:   "Abstract, premium. Symbolizes progress, Vision 2030, and new financial cycles. Best for Management/Investors.",
		Prompt: "A majestic, abstract representation of time transitioning into a new era. Colossal golden gears, flowing sand made of light and gold dust, or futuristic digital timeline. Luxurious, visionary style. Focus on progress.",
	},
	TopicSkylines: {
		ID:     TopicSkylines,
		Button: "🏙 Skylines & Towers",
		Desc:   "Respectful compliment to the country's ambition and development. Best for Business Partners & Locals.",
		Prompt: "Breathtaking panoramic view of a modern city skyline deep into the night. Dark sky, stars, full moon. Tall futuristic skyscrapers with warm illuminated windows. Warm directional light reflects off glass/water. Stylized regional architecture.",
	},
	TopicAbstract: {
		ID:     TopicAbstract,
		Button: "✨ Abstract Celebration",
		Desc:   "The 'Gold Standard' of corporate diplomacy. Safe, elegant, high style. Zero-risk option for VIPs.",
		Prompt: "Beautiful abstract background representing celebration. Flowing ribbons of gold and silver light, confetti, geometric 3D shapes. Clean, corporate, festive. No specific objects, expensive textures.",
	},
	TopicDesert: {
		ID:     TopicDesert,
		Button: "🌌 Desert Starlight (Kashta)",
		Desc:   "Authentic 'Winter Wonderland' for locals. Shows deep respect for traditions (camping/Kashta).",
		Prompt: "Luxurious traditional desert camp scene deep in the night. Dark sky, bright stars, full moon. Warm directional light from fire pits, brass lanterns, fairy lights reflects on sand dunes and tents. Peaceful, majestic.",
	},
	TopicLanterns: {
		ID:     TopicLanterns,
		Button: "🌟 Lanterns of Hope",
		Desc:   "Inspired by Parols. A 'warm hug' for Eastern expats. Universal symbol of joy and light.",
		Prompt: "Close-up focus on magnificent, glowing star-shaped lanterns (inspired by Filipino Parols). Intricate, translucent shells/brass. Dark night background with soft warm bokeh fairy lights. Emphasis on hope and warmth.",
	},
	TopicTerrace: {
		ID:     TopicTerrace,
		Button: "☕ Warm Winter Terrace",
		Desc:   "Captures the ideal Gulf winter lifestyle: outdoors and cozy. Best for Western Expats/Mixed.",
		Prompt: "Cozy inviting scene on an outdoor luxury terrace deep in the night. Dark starry sky, full moon. Palm trees wrapped in fairy lights. Warm directional light from candles reflects on tables. Lounge seating. Relaxed, sophisticated.",
	},
	TopicChristmas: {
		ID:           TopicChristmas,
		Button:       "🎄 Christmas Stories",
		Desc:         "Classic nostalgia. Use ONLY if you are 100% sure the recipient celebrates. Not for Locals.",
		Prompt:       "Cozy, stylized seasonal winter scene at night. Decorated pine tree or festive corner with wrapped gifts. Dark starry sky, full moon. Warm fairy lights and candlelight reflections. Magical, warm atmosphere.",
		RestrictedTo: AudienceExpats,
	},
}

var topicOrder = []TopicID{
	TopicFireworks, TopicClocks, TopicSkylines, TopicAbstract,
	TopicDesert, TopicLanterns, TopicTerrace, TopicChristmas,
}

// Countries returns all supported countries in menu order.
func Countries() []Country {
	out := make([]Country, len(countryOrder))
	copy(out, countryOrder)
	return out
}

// Valid reports whether c is a known country.
func (c Country) Valid() bool {
	_, ok := countries[c]
	return ok
}

// Label returns the display label for a country, or its raw code if unknown.
func Label(c Country) string {
	if info, ok := countries[c]; ok {
		return info.Label
	}
	return string(c)
}

// AudienceOf returns the audience bucket associated with a country.
// Unknown countries map to the mixed bucket, the most restrictive one.
func AudienceOf(c Country) Audience {
	if info, ok := countries[c]; ok {
		return info.Audience
	}
	return AudienceMixed
}

// TopicByID looks up a topic descriptor.
func TopicByID(id TopicID) (Topic, bool) {
	t, ok := topics[id]
	return t, ok
}

// AvailableTopics returns the topics offered for a country, in menu order.
// Topics restricted to a different audience bucket are excluded.
func AvailableTopics(c Country) []TopicID {
	audience := AudienceOf(c)
	out := make([]TopicID, 0, len(topicOrder))
	for _, id := range topicOrder {
		t := topics[id]
		if t.RestrictedTo != "" && t.RestrictedTo != audience {
			continue
		}
		out = append(out, id)
	}
	return out
}

// BuildPrompt assembles the generation prompt for a country/topic pair.
// Block order is fixed: topic subject, country aesthetic, safety rules.
// Returns ErrInvalidSelection when the topic is not offered for the country.
func BuildPrompt(c Country, id TopicID) (string, error) {
	info, ok := countries[c]
	if !ok {
		return "", fmt.Errorf("%w: unknown country %q", ErrInvalidSelection, c)
	}
	topic, ok := topics[id]
	if !ok {
		return "", fmt.Errorf("%w: unknown topic %q", ErrInvalidSelection, id)
	}
	available := false
	for _, avail := range AvailableTopics(c) {
		if avail == id {
			available = true
			break
		}
	}
	if !available {
		return "", fmt.Errorf("%w: %q for %q", ErrInvalidSelection, id, c)
	}

	aesthetic := info.Aesthetic
	if extras := extraVisuals(c, id); extras != "" {
		aesthetic += "\n" + extras
	}

	return fmt.Sprintf(
		"IMAGE SUBJECT DESCRIPTION:\n%s\n\n"+
			"CONTEXT: Generating a greeting card for %s.\n%s\n\n"+
			"%s\n%s\n\n"+
			"Style: Photorealistic, cinematic 8k, highly detailed, cultural respect.",
		topic.Prompt,
		info.Label, aesthetic,
		globalSafety, audienceRules[info.Audience],
	), nil
}

func extraVisuals(c Country, id TopicID) string {
	info := countries[c]
	if c == CountryOman && id != TopicDesert {
		// The khanjar/mountain hint only fits the desert scene.
		return ""
	}
	if c == CountryOman && id == TopicDesert {
		return "Include rugged mountains in the background, traditional khanjar aesthetic abstractly."
	}
	return info.Extras
}

const globalSafety = `GLOBAL GCC SAFETY PROTOCOL:
STRICTLY NO ALCOHOL: No wine glasses, champagne flutes, or cocktail shakers. Use abstract cups, tea cups, or geometric tumblers only.
NO FEMALE REPRESENTATION: Do not depict human female figures. Use abstract silhouettes, hands only, or focus on objects/scenery.
RELIGION: No religious symbols (crosses, angels, saints).
FOCUS: Primary focus is secular "New Year". If "Christmas" logic applies, use seasonal winter aesthetics only. NO traditional St. Nicholas.
NO TEXT: Do not generate any text, letters, or numbers on the image. Pure visual art only.`

var audienceRules = map[Audience]string{
	AudienceExpats: "Audience Vibe: Nostalgic, cozy. Holiday Logic: 'Christmas' themes PERMITTED (festive trees, lights). Apply Global safety protocol.",
	AudienceLocals: "Audience Vibe: Professional, respectful. Holiday Logic: STRICTLY NEW YEAR / SEASONAL ONLY. NO Christmas symbols (trees). Use confetti, golden lights, fireworks.",
	AudienceMixed:  "Audience Vibe: Professional, inclusive. Holiday Logic: STRICTLY NEW YEAR / SEASONAL ONLY. NO Christmas symbols.",
}
