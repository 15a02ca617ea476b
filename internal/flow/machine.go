// Package flow implements the conversation state machine: country → topic →
// optional caption → bounded-retry generation → composed card delivery.
// It is transport-free; chat specifics live behind the Delivery interface.
package flow

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"log/slog"

	"github.com/annaleodit/Celebrate-the-world/core/logger"
	"github.com/annaleodit/Celebrate-the-world/internal/catalog"
	"github.com/annaleodit/Celebrate-the-world/internal/genimage"
)

var (
	// ErrStaleSelection marks a callback that no longer matches session
	// state; the session is reset before it is returned.
	ErrStaleSelection = errors.New("flow: stale selection")
	// ErrCaptionTooLong rejects an over-limit caption without a state change.
	ErrCaptionTooLong = errors.New("flow: caption too long")
)

// Generator produces the base image for a prompt. One call is one attempt.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Composer renders the final card from base image bytes and a caption.
type Composer interface {
	Compose(base []byte, caption string) ([]byte, error)
}

// StatusHandle is an opaque reference to an editable status message.
type StatusHandle any

// Card is the final deliverable.
type Card struct {
	Bytes        []byte
	Filename     string
	Caption      string
	OfferAnother bool
}

// Delivery sends status updates and the finished card back to the user.
type Delivery interface {
	SendStatus(ctx context.Context, chatID int64, text string) (StatusHandle, error)
	EditStatus(ctx context.Context, h StatusHandle, text string) error
	DeleteStatus(ctx context.Context, h StatusHandle) error
	SendImage(ctx context.Context, chatID int64, card Card) error
}

// RetryPolicy bounds the generation loop: MaxRetries+1 total attempts with a
// fixed cooperative delay between them.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// Machine drives sessions through the flow.
type Machine struct {
	store    Store
	gen      Generator
	composer Composer
	delivery Delivery
	retry    RetryPolicy
	randFn   func(n int) int
}

// Option tweaks Machine construction.
type Option func(*Machine)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(m *Machine) { m.retry = p }
}

// WithRandFn replaces the random-topic source, for tests.
func WithRandFn(fn func(n int) int) Option {
	return func(m *Machine) { m.randFn = fn }
}

// NewMachine wires the state machine with its collaborators.
func NewMachine(store Store, gen Generator, composer Composer, delivery Delivery, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		gen:      gen,
		composer: composer,
		delivery: delivery,
		retry:    RetryPolicy{MaxRetries: 2, Delay: 2 * time.Second},
		randFn:   rand.Intn,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) session(chatID int64) Session {
	s, ok := m.store.Get(chatID)
	if !ok {
		return Session{State: StateIdle}
	}
	return s
}

func (m *Machine) transition(ctx context.Context, chatID int64, s Session, to State) Session {
	logger.Debug(ctx, "flow", "state.enter",
		slog.Int64("chat_id", chatID),
		slog.String("from_state", string(s.State)),
		slog.String("to_state", string(to)),
	)
	s.State = to
	m.store.Put(chatID, s)
	return s
}

// InProgress reports whether free text should be routed into the flow.
func (m *Machine) InProgress(chatID int64) bool {
	return m.session(chatID).State == StateAwaitingCaption
}

// StateOf exposes the current state, mainly for handlers and tests.
func (m *Machine) StateOf(chatID int64) State {
	return m.session(chatID).State
}

// Begin starts (or restarts) the flow and returns the country menu.
func (m *Machine) Begin(ctx context.Context, chatID int64) []catalog.Country {
	m.transition(ctx, chatID, Session{State: StateIdle}, StateChoosingCountry)
	return catalog.Countries()
}

// Cancel clears the session entirely.
func (m *Machine) Cancel(ctx context.Context, chatID int64) {
	s := m.session(chatID)
	logger.Debug(ctx, "flow", "state.cancel",
		slog.Int64("chat_id", chatID),
		slog.String("from_state", string(s.State)),
	)
	m.store.Clear(chatID)
}

// SelectCountry records the country, clears any topic, and returns the topic
// menu plus the insider tip.
func (m *Machine) SelectCountry(ctx context.Context, chatID int64, c catalog.Country) ([]catalog.TopicID, string, error) {
	s := m.session(chatID)
	if s.State != StateChoosingCountry {
		return nil, "", m.reject(ctx, chatID, s, "select_country")
	}
	if !c.Valid() {
		return nil, "", m.reject(ctx, chatID, s, "select_country")
	}
	s.Country = c
	s.Topic = ""
	s.TopicIsRandom = false
	s.ResolvedTopic = ""
	m.transition(ctx, chatID, s, StateChoosingTopic)
	return catalog.AvailableTopics(c), catalog.Tip(c), nil
}

// SelectTopic validates the topic for the current country and moves to
// confirmation.
func (m *Machine) SelectTopic(ctx context.Context, chatID int64, id catalog.TopicID) (catalog.Topic, error) {
	s := m.session(chatID)
	if s.State != StateChoosingTopic || s.Country == "" {
		return catalog.Topic{}, m.reject(ctx, chatID, s, "select_topic")
	}
	if !topicAvailable(s.Country, id) {
		return catalog.Topic{}, m.reject(ctx, chatID, s, "select_topic")
	}
	topic, _ := catalog.TopicByID(id)
	s.Topic = id
	s.TopicIsRandom = false
	s.ResolvedTopic = ""
	m.transition(ctx, chatID, s, StateConfirmingTopic)
	return topic, nil
}

// SelectRandomTopic draws a uniformly random topic for the current country
// and skips straight to the caption step. The drawn value is kept separate
// from the displayed "random" selection.
func (m *Machine) SelectRandomTopic(ctx context.Context, chatID int64) (catalog.TopicID, error) {
	s := m.session(chatID)
	if s.State != StateChoosingTopic || s.Country == "" {
		return "", m.reject(ctx, chatID, s, "select_random")
	}
	available := catalog.AvailableTopics(s.Country)
	resolved := available[m.randFn(len(available))]
	s.Topic = ""
	s.TopicIsRandom = true
	s.ResolvedTopic = resolved
	m.transition(ctx, chatID, s, StateAwaitingCaption)
	logger.Info(ctx, "flow", "topic.random",
		slog.Int64("chat_id", chatID),
		slog.String("country", string(s.Country)),
		slog.String("topic", string(resolved)),
		slog.Bool("random", true),
	)
	return resolved, nil
}

// ConfirmTopic advances from confirmation to the caption step.
func (m *Machine) ConfirmTopic(ctx context.Context, chatID int64) error {
	s := m.session(chatID)
	if s.State != StateConfirmingTopic || s.Topic == "" {
		return m.reject(ctx, chatID, s, "confirm_topic")
	}
	m.transition(ctx, chatID, s, StateAwaitingCaption)
	return nil
}

// BackToTopics returns from confirmation to the topic menu, clearing the
// pending topic.
func (m *Machine) BackToTopics(ctx context.Context, chatID int64) ([]catalog.TopicID, error) {
	s := m.session(chatID)
	if s.State != StateConfirmingTopic || s.Country == "" {
		return nil, m.reject(ctx, chatID, s, "back_to_topics")
	}
	s.Topic = ""
	s.TopicIsRandom = false
	s.ResolvedTopic = ""
	m.transition(ctx, chatID, s, StateChoosingTopic)
	return catalog.AvailableTopics(s.Country), nil
}

// MakeAnother jumps from a finished card back to topic selection, keeping
// the country.
func (m *Machine) MakeAnother(ctx context.Context, chatID int64) ([]catalog.TopicID, string, error) {
	s := m.session(chatID)
	if s.State != StateDone || s.Country == "" {
		return nil, "", m.reject(ctx, chatID, s, "make_another")
	}
	s.Topic = ""
	s.TopicIsRandom = false
	s.ResolvedTopic = ""
	m.transition(ctx, chatID, s, StateChoosingTopic)
	return catalog.AvailableTopics(s.Country), catalog.Tip(s.Country), nil
}

// SubmitCaption accepts the user's caption and runs generation. Over-limit
// captions are rejected with no state change.
func (m *Machine) SubmitCaption(ctx context.Context, chatID int64, text string) error {
	s := m.session(chatID)
	if s.State != StateAwaitingCaption {
		return m.reject(ctx, chatID, s, "submit_caption")
	}
	if len([]rune(text)) > CaptionLimit {
		return ErrCaptionTooLong
	}
	return m.generate(ctx, chatID, s, text)
}

// SkipCaption runs generation with the default caption template.
func (m *Machine) SkipCaption(ctx context.Context, chatID int64) error {
	s := m.session(chatID)
	if s.State != StateAwaitingCaption {
		return m.reject(ctx, chatID, s, "skip_caption")
	}
	return m.generate(ctx, chatID, s, DefaultCaption)
}

// reject handles a stale or invalid action: log, reset to Idle, and return
// ErrStaleSelection for the handler to surface.
func (m *Machine) reject(ctx context.Context, chatID int64, s Session, action string) error {
	logger.Warn(ctx, "flow", "action.stale",
		slog.Int64("chat_id", chatID),
		slog.String("state", string(s.State)),
		slog.String("handler", action),
	)
	m.store.Clear(chatID)
	return ErrStaleSelection
}

func topicAvailable(c catalog.Country, id catalog.TopicID) bool {
	for _, avail := range catalog.AvailableTopics(c) {
		if avail == id {
			return true
		}
	}
	return false
}

// generate is the terminal orchestration: re-validate, build the prompt, run
// the bounded retry loop, compose, deliver.
func (m *Machine) generate(ctx context.Context, chatID int64, s Session, caption string) error {
	topic := s.effectiveTopic()
	prompt, err := catalog.BuildPrompt(s.Country, topic)
	if err != nil {
		logger.Warn(ctx, "flow", "generate.invalid",
			slog.Int64("chat_id", chatID),
			slog.String("country", string(s.Country)),
			slog.String("topic", string(topic)),
			slog.String("err", err.Error()),
		)
		m.store.Clear(chatID)
		if sendErr := m.sendText(ctx, chatID, MsgStale); sendErr != nil {
			return sendErr
		}
		return fmt.Errorf("flow: selection invalid: %w", err)
	}

	status, err := m.delivery.SendStatus(ctx, chatID, MsgGenerating)
	if err != nil {
		return fmt.Errorf("flow: send status: %w", err)
	}

	attempts := m.retry.MaxRetries + 1
	var (
		base    []byte
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		base, lastErr = m.gen.Generate(ctx, prompt)
		if lastErr == nil {
			logger.Info(ctx, "flow", "generate.attempt.ok",
				slog.Int64("chat_id", chatID),
				slog.Int("attempt", attempt),
				slog.Int("prompt_len", len(prompt)),
				slog.Duration("duration", logger.RoundMS(time.Since(start))),
			)
			break
		}

		kind := genimage.KindOf(lastErr)
		logger.Warn(ctx, "flow", "generate.attempt.fail",
			slog.Int64("chat_id", chatID),
			slog.Int("attempt", attempt),
			slog.Int("attempts", attempts),
			slog.String("error_kind", string(kind)),
			slog.String("err", lastErr.Error()),
		)
		if attempt == attempts {
			break
		}

		_ = m.delivery.EditStatus(ctx, status, MsgRetrying)
		timer := time.NewTimer(m.retry.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr != nil {
		kind := genimage.KindOf(lastErr)
		m.store.Clear(chatID)
		_ = m.delivery.EditStatus(ctx, status, failureMessage(kind))
		return fmt.Errorf("flow: generation exhausted: %w", lastErr)
	}

	_ = m.delivery.EditStatus(ctx, status, MsgComposing)

	composed, err := m.composer.Compose(base, caption)
	if err != nil {
		logger.Error(ctx, "flow", "compose.fail",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		m.store.Clear(chatID)
		_ = m.delivery.EditStatus(ctx, status, MsgComposeFailed)
		return fmt.Errorf("flow: compose: %w", err)
	}

	_ = m.delivery.DeleteStatus(ctx, status)

	card := Card{
		Bytes:        composed,
		Filename:     "greeting_card_stories.jpg",
		Caption:      fmt.Sprintf("Your %s card is ready! 🎉", catalog.Label(s.Country)),
		OfferAnother: true,
	}
	if err := m.delivery.SendImage(ctx, chatID, card); err != nil {
		m.store.Clear(chatID)
		return fmt.Errorf("flow: deliver image: %w", err)
	}

	logger.Info(ctx, "flow", "card.delivered",
		slog.Int64("chat_id", chatID),
		slog.String("country", string(s.Country)),
		slog.String("topic", string(topic)),
		slog.Bool("random", s.TopicIsRandom),
		slog.Int("caption_len", len(caption)),
		slog.Int("bytes", len(composed)),
		slog.Bool("delivered", true),
	)

	// Keep the country so "make another" can jump straight to topics.
	s.Topic = ""
	s.TopicIsRandom = false
	s.ResolvedTopic = ""
	m.transition(ctx, chatID, s, StateDone)
	return nil
}

// sendText pushes a plain status line when no editable handle exists yet.
func (m *Machine) sendText(ctx context.Context, chatID int64, text string) error {
	_, err := m.delivery.SendStatus(ctx, chatID, text)
	return err
}
