package flow

import (
	"sync"

	"github.com/annaleodit/Celebrate-the-world/internal/catalog"
)

// State names a step of the conversation.
type State string

const (
	StateIdle            State = "idle"
	StateChoosingCountry State = "choosing_country"
	StateChoosingTopic   State = "choosing_topic"
	StateConfirmingTopic State = "confirming_topic"
	StateAwaitingCaption State = "awaiting_caption"
	StateDone            State = "done"
)

// Session carries one user's selections across the flow. The random pick is
// kept in two fields: Topic stays empty while ResolvedTopic holds the drawn
// value, so display logic and generation never read the same slot.
type Session struct {
	State         State
	Country       catalog.Country
	Topic         catalog.TopicID
	TopicIsRandom bool
	ResolvedTopic catalog.TopicID
}

// effectiveTopic is what generation actually uses.
func (s Session) effectiveTopic() catalog.TopicID {
	if s.TopicIsRandom {
		return s.ResolvedTopic
	}
	return s.Topic
}

// Store abstracts per-chat session persistence.
type Store interface {
	Get(chatID int64) (Session, bool)
	Put(chatID int64, s Session)
	Clear(chatID int64)
}

// MemoryStore keeps sessions in a mutex-guarded map. Sessions are small and
// disposable; no eviction is needed for the expected load.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

func (m *MemoryStore) Get(chatID int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[chatID]
	return s, ok
}

func (m *MemoryStore) Put(chatID int64, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[chatID] = s
}

func (m *MemoryStore) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}
