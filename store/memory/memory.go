// Package memory provides an in-memory duty.Repository for tests and
// development. It mirrors the sqlite store's semantics, including the
// optimistic version check.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/lssd/dutyclock/duty"
)

// Store keeps the whole roster in a map guarded by a mutex.
type Store struct {
	mu    sync.RWMutex
	users map[string]*duty.User
}

func New() *Store {
	return &Store{users: make(map[string]*duty.User)}
}

var _ duty.Repository = (*Store)(nil)

func (s *Store) GetUser(_ context.Context, id string) (*duty.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, duty.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*duty.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return nil, duty.ErrUserNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]*duty.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*duty.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u *duty.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u.Version = 1
	s.users[u.ID] = u.Clone()
	return nil
}

// UpdateUser rewrites the record only if the caller's version matches the
// stored one, then bumps both.
func (s *Store) UpdateUser(_ context.Context, u *duty.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[u.ID]
	if !ok {
		return duty.ErrUserNotFound
	}
	if stored.Version != u.Version {
		return duty.ErrConcurrentModification
	}

	u.Version++
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return duty.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}
