package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"emissions/internal/user/models"
	id "emissions/pkg/domain"
	"emissions/pkg/platform/sentinel"
)

// InMemory keeps users behind a mutex, indexed by lower-cased username.
type InMemory struct {
	mu         sync.RWMutex
	users      map[id.UserID]*models.User
	byUsername map[string]id.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{
		users:      make(map[id.UserID]*models.User),
		byUsername: make(map[string]id.UserID),
	}
}

func (s *InMemory) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Username)
	if _, taken := s.byUsername[key]; taken {
		return sentinel.ErrAlreadyUsed
	}
	cp := *u
	s.users[u.ID] = &cp
	s.byUsername[key] = u.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, uid id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemory) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.users[uid]
	return &cp, nil
}

// Update saves role and password hash. Usernames are immutable.
func (s *InMemory) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	existing.Role = u.Role
	existing.PasswordHash = u.PasswordHash
	existing.UpdatedAt = u.UpdatedAt
	return nil
}

func (s *InMemory) Delete(_ context.Context, uid id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byUsername, strings.ToLower(u.Username))
	delete(s.users, uid)
	return nil
}

// List returns users ordered by username.
func (s *InMemory) List(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out, nil
}

func (s *InMemory) CountByRole(_ context.Context, role models.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}
