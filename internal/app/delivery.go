package app

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/annaleodit/Celebrate-the-world/core/telegram/keyboard"
	"github.com/annaleodit/Celebrate-the-world/internal/flow"
)

var errBotNotReady = errors.New("app: bot not started yet")

// botDelivery implements flow.Delivery over the Telebot API. The bot handle
// is installed at startup via SetBot.
type botDelivery struct {
	bot atomic.Pointer[tele.Bot]
}

func (d *botDelivery) SetBot(bot *tele.Bot) {
	d.bot.Store(bot)
}

func (d *botDelivery) current() (*tele.Bot, error) {
	bot := d.bot.Load()
	if bot == nil {
		return nil, errBotNotReady
	}
	return bot, nil
}

func (d *botDelivery) SendStatus(_ context.Context, chatID int64, text string) (flow.StatusHandle, error) {
	bot, err := d.current()
	if err != nil {
		return nil, err
	}
	msg, err := bot.Send(tele.ChatID(chatID), text)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *botDelivery) EditStatus(_ context.Context, h flow.StatusHandle, text string) error {
	bot, err := d.current()
	if err != nil {
		return err
	}
	msg, ok := h.(*tele.Message)
	if !ok || msg == nil {
		return errors.New("app: invalid status handle")
	}
	_, err = bot.Edit(msg, text)
	return err
}

func (d *botDelivery) DeleteStatus(_ context.Context, h flow.StatusHandle) error {
	bot, err := d.current()
	if err != nil {
		return err
	}
	msg, ok := h.(*tele.Message)
	if !ok || msg == nil {
		return errors.New("app: invalid status handle")
	}
	return bot.Delete(msg)
}

func (d *botDelivery) SendImage(_ context.Context, chatID int64, card flow.Card) error {
	bot, err := d.current()
	if err != nil {
		return err
	}

	// Telegram ignores filenames on photos; the name in card.Filename only
	// matters if delivery ever switches to document uploads.
	photo := &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(card.Bytes)),
		Caption: card.Caption,
	}

	if card.OfferAnother {
		markup := keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: "🎨 Make another", Unique: cbMakeAnother},
		})
		_, err = bot.Send(tele.ChatID(chatID), photo, markup)
		return err
	}
	_, err = bot.Send(tele.ChatID(chatID), photo)
	return err
}
