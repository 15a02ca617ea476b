package flow

import (
	"github.com/annaleodit/Celebrate-the-world/internal/genimage"
)

// DefaultCaption is baked onto the card when the user skips the caption step.
const DefaultCaption = "Season's Greetings and best wishes for a prosperous and successful New Year."

// CaptionLimit bounds user-supplied captions, in runes.
const CaptionLimit = 200

// Status and error texts surfaced during generation.
const (
	MsgGenerating     = "🎨 Painting your card... This can take up to a minute."
	MsgRetrying       = "⏳ The studio is busy, trying again..."
	MsgComposing      = "🖌 Adding the finishing touches..."
	MsgStale          = "⚠️ That menu is out of date. Please start over with /start."
	MsgCaptionTooLong = "✍️ That caption is too long (max 200 characters). Please send a shorter one."
	MsgComposeFailed  = "😔 The card could not be assembled. Please start over with /start."
)

// failureMessage maps a terminal generation failure to the user-facing text.
// Pure; no state involved.
func failureMessage(kind genimage.Kind) string {
	switch kind {
	case genimage.KindTimeout:
		return "⌛ The artist took too long. Please try again a little later with /start."
	case genimage.KindEmptyResult:
		return "🖼 The studio returned an empty canvas. Please try again with /start."
	default:
		return "📡 The studio could not be reached. Please try again with /start."
	}
}
