package store

import (
	"context"
	"sync"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// MemoryUserRepository is an in-memory implementation of the UserRepository interface
type MemoryUserRepository struct {
	byID    map[string]*core.User
	byEmail map[string]string
	mu      sync.RWMutex
}

// NewMemoryUserRepository creates a new in-memory user repository
func NewMemoryUserRepository() ports.UserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*core.User),
		byEmail: make(map[string]string),
	}
}

// FindByID returns a copy of the user with the given id
func (s *MemoryUserRepository) FindByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}

	u := *user
	return &u, nil
}

// FindByEmail returns a copy of the user registered with email
func (s *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, core.ErrUserNotFound
	}

	u := *s.byID[id]
	return &u, nil
}

// Insert stores the user if neither its email nor its id is taken
func (s *MemoryUserRepository) Insert(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return core.ErrDuplicateUser
	}
	if _, exists := s.byID[user.ID]; exists {
		return core.ErrDuplicateUser
	}

	u := *user
	s.byID[u.ID] = &u
	s.byEmail[u.Email] = u.ID

	return nil
}
