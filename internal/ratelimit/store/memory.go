package store

import (
	"context"
	"sync"
	"time"

	"emissions/internal/ratelimit/models"
	"emissions/pkg/platform/sentinel"
)

type entry struct {
	lockout   models.Lockout
	expiresAt time.Time
}

// InMemory keeps lockouts for a single instance. Expired entries are dropped
// lazily on read.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]entry), now: time.Now}
}

func (s *InMemory) Get(_ context.Context, key string) (*models.Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.live(key)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyLockout(l), nil
}

// Update applies fn while holding the store lock.
func (s *InMemory) Update(_ context.Context, key string, ttl time.Duration, fn func(*models.Lockout)) (*models.Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.live(key)
	if !ok {
		l = models.Lockout{Key: key}
	}
	working := copyLockout(l)
	fn(working)
	s.entries[key] = entry{lockout: *copyLockout(*working), expiresAt: s.now().Add(ttl)}
	return working, nil
}

// live must be called with mu held.
func (s *InMemory) live(key string) (models.Lockout, bool) {
	e, ok := s.entries[key]
	if !ok {
		return models.Lockout{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return models.Lockout{}, false
	}
	return e.lockout, true
}

func copyLockout(l models.Lockout) *models.Lockout {
	if l.LockedUntil != nil {
		until := *l.LockedUntil
		l.LockedUntil = &until
	}
	return &l
}

func (s *InMemory) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
