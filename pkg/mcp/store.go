package mcp

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/macropower/ruler/pkg/engine"
)

// DefaultSessionLimit is the number of sessions kept before the least
// recently used one is evicted.
const DefaultSessionLimit = 64

var ErrUnknownSession = errors.New("unknown session")

// SessionStore keeps selection sessions between tool calls.
type SessionStore struct {
	cache *lru.Cache[string, engine.Session]
	// Serializes read-modify-write cycles on one store.
	mu sync.Mutex
}

// NewSessionStore creates a [SessionStore] holding at most limit sessions.
func NewSessionStore(limit int) (*SessionStore, error) {
	if limit <= 0 {
		limit = DefaultSessionLimit
	}

	cache, err := lru.New[string, engine.Session](limit)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}

	return &SessionStore{cache: cache}, nil
}

// Add stores s under a new id.
func (st *SessionStore) Add(s engine.Session) string {
	id := uuid.NewString()
	st.cache.Add(id, s)

	return id
}

// Get returns the session stored under id.
func (st *SessionStore) Get(id string) (engine.Session, error) {
	s, ok := st.cache.Get(id)
	if !ok {
		return engine.Session{}, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}

	return s, nil
}

// Update replaces the session stored under id with the result of fn.
// The session is left unchanged when fn fails.
func (st *SessionStore) Update(id string, fn func(engine.Session) (engine.Session, error)) (engine.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, err := st.Get(id)
	if err != nil {
		return engine.Session{}, err
	}

	next, err := fn(s)
	if err != nil {
		return engine.Session{}, err
	}

	st.cache.Add(id, next)

	return next, nil
}

// Remove drops the session stored under id.
func (st *SessionStore) Remove(id string) {
	st.cache.Remove(id)
}

// Len returns the number of stored sessions.
func (st *SessionStore) Len() int {
	return st.cache.Len()
}
