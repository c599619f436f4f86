package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
)

// MemoryStore keeps sessions in process memory. Sessions idle for longer
// than the TTL are treated as absent and removed by Sweep.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore returns an empty store. A ttl of zero keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) expired(s Session, now time.Time) bool {
	return m.ttl > 0 && now.Sub(s.UpdatedAt) > m.ttl
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, chatID int64) (Session, bool, error) {
	m.mu.RLock()
	s, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if !ok {
		return Session{}, false, nil
	}
	if m.expired(s, m.now()) {
		m.mu.Lock()
		if cur, ok := m.sessions[chatID]; ok && m.expired(cur, m.now()) {
			delete(m.sessions, chatID)
		}
		m.mu.Unlock()
		return Session{}, false, nil
	}
	return s.Clone(), true, nil
}

// Put implements Store. UpdatedAt is set to the current time.
func (m *MemoryStore) Put(_ context.Context, s Session) error {
	s = s.Clone()
	s.UpdatedAt = m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ChatID] = s
	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}

// Len implements Store. Expired sessions not yet swept are counted.
func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done.
func (m *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.SVCSessions.Debug("sessions swept",
					slog.String("event", "session.sweep"),
					slog.String("status", "ok"),
					slog.Int("count", n),
				)
			}
		}
	}
}
