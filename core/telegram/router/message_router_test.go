package router

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

// stubContext implements just enough of tele.Context for the text route.
// Unimplemented methods panic via the embedded nil interface.
type stubContext struct {
	tele.Context
	chat   *tele.Chat
	sender *tele.User
	text   string
	store  map[string]any
}

func newStubContext(chatID, senderID int64, text string) *stubContext {
	return &stubContext{
		chat:   &tele.Chat{ID: chatID, Type: tele.ChatGroup},
		sender: &tele.User{ID: senderID},
		text:   text,
		store:  map[string]any{},
	}
}

func (c *stubContext) Chat() *tele.Chat    { return c.chat }
func (c *stubContext) Sender() *tele.User  { return c.sender }
func (c *stubContext) Text() string        { return c.text }
func (c *stubContext) Update() tele.Update { return tele.Update{} }
func (c *stubContext) Set(k string, v any) { c.store[k] = v }
func (c *stubContext) Get(k string) any    { return c.store[k] }

type recordingFSM struct {
	askedWith []int64
	active    bool
	handled   int
}

func (f *recordingFSM) InProgress(chatID int64) bool {
	f.askedWith = append(f.askedWith, chatID)
	return f.active
}

func (f *recordingFSM) ManagerHandler(tele.Context) error {
	f.handled++
	return nil
}

// Sessions are keyed by chat id, so the router must probe the flow manager
// with the chat id, not the sender id. The two differ in group chats.
func TestTextRoutesProbesFSMByChatID(t *testing.T) {
	fsm := &recordingFSM{active: true}
	routes := TextRoutes(fsm, nil, TextOptions{})
	if len(routes) != 1 {
		t.Fatalf("routes = %d, want 1", len(routes))
	}

	const (
		chatID   = int64(-100500)
		senderID = int64(42)
	)
	c := newStubContext(chatID, senderID, "my caption")
	if err := routes[0].Handler(c); err != nil {
		t.Fatal(err)
	}

	if len(fsm.askedWith) != 1 || fsm.askedWith[0] != chatID {
		t.Errorf("InProgress asked with %v, want [%d]", fsm.askedWith, chatID)
	}
	if fsm.handled != 1 {
		t.Errorf("manager handler ran %d times, want 1", fsm.handled)
	}
}

func TestTextRoutesIdleFSMFallsThrough(t *testing.T) {
	fsm := &recordingFSM{active: false}
	fallbackRan := 0
	routes := TextRoutes(fsm, nil, TextOptions{
		UnknownText: func(tele.Context) error {
			fallbackRan++
			return nil
		},
	})

	c := newStubContext(7, 7, "hello")
	if err := routes[0].Handler(c); err != nil {
		t.Fatal(err)
	}
	if fsm.handled != 0 {
		t.Errorf("manager handler ran %d times, want 0", fsm.handled)
	}
	if fallbackRan != 1 {
		t.Errorf("fallback ran %d times, want 1", fallbackRan)
	}
}
