package store

import (
	"context"
	"sync"

	"emissions/internal/emission"
	"emissions/pkg/platform/sentinel"
)

// InMemory keeps every snapshot version in process.
type InMemory struct {
	mu       sync.RWMutex
	versions []emission.Snapshot
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Latest(_ context.Context) (*emission.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.versions) == 0 {
		return nil, sentinel.ErrNotFound
	}
	snap := s.versions[len(s.versions)-1].Clone()
	return &snap, nil
}

// Save appends snap. The version must be exactly one past the latest.
func (s *InMemory) Save(_ context.Context, snap emission.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest int64
	if n := len(s.versions); n > 0 {
		latest = s.versions[n-1].Version
	}
	if snap.Version != latest+1 {
		return sentinel.ErrConflict
	}
	s.versions = append(s.versions, snap.Clone())
	return nil
}
