package billing

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-process UserStore for tests and local runs.
// E-mail lookups are case-insensitive.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewMemoryStore(users ...User) *MemoryStore {
	s := &MemoryStore{users: make(map[string]*User, len(users))}
	for _, u := range users {
		s.Put(u)
	}
	return s
}

// Put inserts or replaces a user.
func (s *MemoryStore) Put(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = cloneUser(&u)
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) UpdateBilling(_ context.Context, userID string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if patch.IsStale(u.Billing) {
		return ErrStaleEvent
	}
	u.Billing = patch.Apply(u.Billing)
	return nil
}

func cloneUser(u *User) *User {
	out := *u
	if u.Billing != nil {
		rec := *u.Billing
		out.Billing = &rec
	}
	return &out
}
