package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/annaleodit/Celebrate-the-world/core/logger"
	coretelegram "github.com/annaleodit/Celebrate-the-world/core/telegram"
	"github.com/annaleodit/Celebrate-the-world/core/telegram/callbacks"
	"github.com/annaleodit/Celebrate-the-world/core/telegram/commands"
	tghelpers "github.com/annaleodit/Celebrate-the-world/core/telegram/helpers"
	"github.com/annaleodit/Celebrate-the-world/core/telegram/keyboard"
	"github.com/annaleodit/Celebrate-the-world/internal/catalog"
	"github.com/annaleodit/Celebrate-the-world/internal/flow"
)

// Callback uniques. Payloads carry the selected country/topic code.
const (
	cbCountry      = "country"
	cbTopic        = "topic"
	cbTopicRandom  = "topic_random"
	cbTopicConfirm = "topic_confirm"
	cbTopicBack    = "topic_back"
	cbCaptionSkip  = "caption_skip"
	cbMakeAnother  = "make_another"
)

const (
	msgWelcome = "🎉 *Welcome to Celebrate the World!*\nI craft culturally-aware AI greeting cards for the GCC region.\n\n🌍 Who is the card for? Pick the country:"
	msgTopics  = "🎨 Now pick a card style:"
	msgCaption = "✍️ Send me a short caption for the card (max 200 characters) — or skip to use the classic greeting."
	msgCancel  = "❌ Cancelled. Type /start whenever you want a new card."
	msgUnknown = "🤔 I didn't get that. Type /start to create a card."
)

func (a *App) registerCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Create a greeting card",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "Cancel the current card",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Show user count",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/broadcast", commands.Command{
		Handler:     a.handleBroadcast,
		Description: "Send a message to all users",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.SetTextFallback(func(c tele.Context) error {
		return tghelpers.SendText(c, msgUnknown)
	})
}

func (a *App) registerCallbacks(reg *coretelegram.Registry) {
	for key, h := range map[string]tele.HandlerFunc{
		cbCountry:      a.handleCountry,
		cbTopic:        a.handleTopic,
		cbTopicRandom:  a.handleTopicRandom,
		cbTopicConfirm: a.handleTopicConfirm,
		cbTopicBack:    a.handleTopicBack,
		cbCaptionSkip:  a.handleCaptionSkip,
		cbMakeAnother:  a.handleMakeAnother,
	} {
		if err := reg.RegisterCallback(key, h); err != nil {
			logger.TWire.Warn("callback registration failed",
				slog.String("event", "register.callback.fail"),
				slog.String("key", key),
				slog.String("err", err.Error()),
			)
		}
	}
}

func (a *App) handleStart(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "start")

	if a.users != nil {
		sender := c.Sender()
		name := strings.TrimSpace(sender.FirstName + " " + sender.LastName)
		if err := a.users.Record(ctx, sender.ID, name); err != nil {
			logger.Warn(ctx, "svc.users", "record.fail",
				slog.Int64("user_id", sender.ID),
				slog.String("err", err.Error()),
			)
		}
	}

	countriesList := a.machine.Begin(ctx, c.Chat().ID)
	return tghelpers.SendMD(c, msgWelcome, countryMenu(countriesList))
}

func (a *App) handleCancel(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "cancel")
	a.machine.Cancel(ctx, c.Chat().ID)
	return tghelpers.SendText(c, msgCancel)
}

func (a *App) handleStats(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "stats")
	if a.users == nil {
		return tghelpers.SendText(c, "Persistence is disabled.")
	}
	n, err := a.users.Count(ctx)
	if err != nil {
		return err
	}
	return tghelpers.SendMD(c, fmt.Sprintf("👥 *Users:* %d", n))
}

func (a *App) handleBroadcast(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "broadcast")
	if a.users == nil {
		return tghelpers.SendText(c, "Persistence is disabled.")
	}
	text := strings.TrimSpace(c.Message().Payload)
	if text == "" {
		return tghelpers.SendText(c, "Usage: /broadcast <message>")
	}

	ids, err := a.users.ListIDs(ctx)
	if err != nil {
		return err
	}

	bot, err := a.delivery.current()
	if err != nil {
		return err
	}

	sent, failed := 0, 0
	for _, id := range ids {
		if _, err := bot.Send(tele.ChatID(id), text); err != nil {
			failed++
			logger.Warn(ctx, "tg", "broadcast.send.fail",
				slog.Int64("user_id", id),
				slog.String("err", err.Error()),
			)
			continue
		}
		sent++
		// Stay well under the bot API's messages-per-second ceiling.
		time.Sleep(50 * time.Millisecond)
	}

	logger.Info(ctx, "tg", "broadcast.done",
		slog.Int("sent", sent),
		slog.Int("failed", failed),
	)
	return tghelpers.SendMD(c, fmt.Sprintf("📣 Broadcast done: %d sent, %d failed.", sent, failed))
}

func (a *App) handleCountry(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "country")
	country := catalog.Country(callbacks.CallbackPayload(c))

	topics, tip, err := a.machine.SelectCountry(ctx, c.Chat().ID, country)
	if err != nil {
		return a.surface(c, err)
	}
	text := fmt.Sprintf("%s it is!\n\n%s\n\n%s", catalog.Label(country), tip, msgTopics)
	return tghelpers.EditOrSendMD(c, text, topicMenu(topics))
}

func (a *App) handleTopic(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "topic")
	id := catalog.TopicID(callbacks.CallbackPayload(c))

	topic, err := a.machine.SelectTopic(ctx, c.Chat().ID, id)
	if err != nil {
		return a.surface(c, err)
	}
	text := fmt.Sprintf("*%s*\n\n_%s_\n\nGenerate this style?", topic.Button, topic.Desc)
	return tghelpers.EditOrSendMD(c, text, confirmMenu())
}

func (a *App) handleTopicRandom(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "topic_random")

	if _, err := a.machine.SelectRandomTopic(ctx, c.Chat().ID); err != nil {
		return a.surface(c, err)
	}
	// The resolved topic stays a surprise; the user only sees "random".
	text := "🎲 *Lucky Pick!* I'll choose a style for you.\n\n" + msgCaption
	return tghelpers.EditOrSendMD(c, text, captionMenu())
}

func (a *App) handleTopicConfirm(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "topic_confirm")

	if err := a.machine.ConfirmTopic(ctx, c.Chat().ID); err != nil {
		return a.surface(c, err)
	}
	return tghelpers.EditOrSendMD(c, msgCaption, captionMenu())
}

func (a *App) handleTopicBack(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "topic_back")

	topics, err := a.machine.BackToTopics(ctx, c.Chat().ID)
	if err != nil {
		return a.surface(c, err)
	}
	return tghelpers.EditOrSendMD(c, msgTopics, topicMenu(topics))
}

func (a *App) handleCaptionSkip(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "caption_skip")
	return a.surface(c, a.machine.SkipCaption(ctx, c.Chat().ID))
}

func (a *App) handleMakeAnother(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "make_another")

	topics, tip, err := a.machine.MakeAnother(ctx, c.Chat().ID)
	if err != nil {
		return a.surface(c, err)
	}
	return tghelpers.SendMD(c, tip+"\n\n"+msgTopics, topicMenu(topics))
}

// surface converts flow errors into user-visible replies. Terminal
// generation failures already produced a status edit inside the machine, so
// they are swallowed here after logging by the router.
func (a *App) surface(c tele.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, flow.ErrStaleSelection):
		return tghelpers.SendText(c, flow.MsgStale)
	case errors.Is(err, flow.ErrCaptionTooLong):
		return tghelpers.SendText(c, flow.MsgCaptionTooLong)
	default:
		return err
	}
}

// fsmAdapter routes free text into the caption step.
type fsmAdapter struct {
	app *App
}

func (f fsmAdapter) InProgress(chatID int64) bool {
	return f.app.machine.InProgress(chatID)
}

func (f fsmAdapter) ManagerHandler(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "caption_text")
	return f.app.surface(c, f.app.machine.SubmitCaption(ctx, c.Chat().ID, c.Text()))
}

func countryMenu(list []catalog.Country) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(list))
	for _, country := range list {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   catalog.Label(country),
			Unique: cbCountry,
			Data:   string(country),
		})
	}
	return keyboard.InlineButtonsNPerRow(buttons, 2)
}

func topicMenu(list []catalog.TopicID) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(list)+1)
	for _, id := range list {
		topic, ok := catalog.TopicByID(id)
		if !ok {
			continue
		}
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   topic.Button,
			Unique: cbTopic,
			Data:   string(id),
		})
	}
	markup := keyboard.InlineButtonsNPerRow(buttons, 2)
	lucky := keyboard.InlineButtonsRows([]keyboard.InlineBtn{{Text: "🎲 Lucky Pick", Unique: cbTopicRandom}})
	markup.InlineKeyboard = append(markup.InlineKeyboard, lucky.InlineKeyboard...)
	return markup
}

func confirmMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "✅ Generate", Unique: cbTopicConfirm},
			{Text: "↩️ Back", Unique: cbTopicBack},
		},
	)
}

func captionMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "⏭ Skip — use the classic greeting", Unique: cbCaptionSkip},
	})
}
