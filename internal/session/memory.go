package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/qr-document/internal"
)

// MemoryStore is a Store for a single replica. Sessions expire ttl after their last update.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewMemoryStore(ttl time.Duration, logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return internal.NewConflictError("session already exists", internal.ErrCodeSessionExists)
	}
	stored := s.Clone()
	stored.UpdatedAt = m.now()
	m.sessions[s.ID] = stored
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(id)
	if !ok {
		return nil, internal.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn MutateFunc) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(id)
	if !ok {
		return nil, internal.ErrSessionNotFound
	}

	working := s.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = m.now()
	m.sessions[id] = working
	return working.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(id); !ok {
		return internal.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

// live must be called with mu held.
func (m *MemoryStore) live(id string) (*Session, bool) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if m.expired(s) {
		delete(m.sessions, id)
		return nil, false
	}
	return s, true
}

func (m *MemoryStore) expired(s *Session) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}
