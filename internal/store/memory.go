package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-archive/internal/dashboard"
)

var (
	// ErrNotFound is returned when no session exists for an id.
	ErrNotFound = errors.New("dashboard session not found")
)

type session struct {
	state      *dashboard.State
	lastAccess time.Time
}

// MemoryStore is a concurrency-safe in-memory registry of dashboard sessions.
type MemoryStore struct {
	mu sync.RWMutex

	// key: session id
	data map[string]*session

	// retention configuration
	maxSessions int           // max number of live sessions (0 = unlimited)
	maxAge      time.Duration // idle time after which a session is dropped (0 = unlimited)

	clock clockwork.Clock
}

// NewMemoryStore creates a new MemoryStore with optional limits.
func NewMemoryStore(maxSessions int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:        make(map[string]*session),
		maxSessions: maxSessions,
		maxAge:      maxAge,
		clock:       clockwork.NewRealClock(),
	}
}

// SetClock overrides the clock used for idle tracking. Intended for tests.
func (s *MemoryStore) SetClock(c clockwork.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = c
}

// Save registers a state under a fresh id and enforces retention.
func (s *MemoryStore) Save(state *dashboard.State) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[id] = &session{state: state, lastAccess: s.clock.Now()}
	s.enforceLocked(id)
	return id
}

// Get returns the session and marks it as recently used.
func (s *MemoryStore) Get(id string) (*dashboard.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.expiredLocked(sess) {
		s.removeLocked(id)
		return nil, ErrNotFound
	}
	sess.lastAccess = s.clock.Now()
	return sess.state, nil
}

// Delete closes and removes a session.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return ErrNotFound
	}
	s.removeLocked(id)
	return nil
}

// Len returns the number of sessions held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Prune drops idle sessions and returns how many were removed.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.data)
	s.enforceLocked("")
	return before - len(s.data)
}

// enforceLocked applies age then count retention, never evicting keep.
func (s *MemoryStore) enforceLocked(keep string) {
	// Enforce retention by age.
	if s.maxAge > 0 {
		for id, sess := range s.data {
			if id != keep && s.expiredLocked(sess) {
				s.removeLocked(id)
			}
		}
	}

	// Enforce retention by count, least recently used first.
	if s.maxSessions > 0 && len(s.data) > s.maxSessions {
		ids := make([]string, 0, len(s.data))
		for id := range s.data {
			if id != keep {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool {
			return s.data[ids[i]].lastAccess.Before(s.data[ids[j]].lastAccess)
		})
		for _, id := range ids {
			if len(s.data) <= s.maxSessions {
				break
			}
			s.removeLocked(id)
		}
	}
}

func (s *MemoryStore) expiredLocked(sess *session) bool {
	return s.maxAge > 0 && s.clock.Since(sess.lastAccess) > s.maxAge
}

func (s *MemoryStore) removeLocked(id string) {
	if sess, ok := s.data[id]; ok {
		sess.state.Close()
		delete(s.data, id)
	}
}
