// Package auth keeps the allow-list of chat users who may relay files.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/filerelay/internal/common"
	"github.com/dmitrijs2005/filerelay/internal/jsonstore"
	"github.com/dmitrijs2005/filerelay/internal/logging"
)

var ErrAdminImmutable = errors.New("admin cannot be removed")

type document struct {
	Users []int64 `json:"users"`
}

// Store is a persisted set of user ids. The admin is always allowed and
// cannot be removed.
type Store struct {
	mu    sync.RWMutex
	store *jsonstore.Store
	admin int64
	users map[int64]struct{}
}

// Open loads the allow-list at path. seed ids are merged in; a corrupt file
// is quarantined and the list restarts from the seed.
func Open(path string, admin int64, seed []int64, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Discard()
	}
	s := &Store{
		store: jsonstore.New(path),
		admin: admin,
		users: make(map[int64]struct{}),
	}

	var doc document
	_, err := s.store.Load(&doc)
	switch {
	case errors.Is(err, jsonstore.ErrCorrupt):
		log.Warn(context.Background(), "allow-list quarantined, starting from seed", "path", path, "err", err)
	case err != nil:
		return nil, fmt.Errorf("open allow-list: %w", err)
	}

	for _, id := range doc.Users {
		s.users[id] = struct{}{}
	}
	for _, id := range seed {
		s.users[id] = struct{}{}
	}
	if admin != 0 {
		s.users[admin] = struct{}{}
	}

	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) IsAllowed(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[id]
	return ok
}

func (s *Store) IsAdmin(id int64) bool {
	return s.admin != 0 && id == s.admin
}

// Authorize returns common.ErrUnauthorized for ids not on the list.
func (s *Store) Authorize(id int64) error {
	if !s.IsAllowed(id) {
		return fmt.Errorf("user %d: %w", id, common.ErrUnauthorized)
	}
	return nil
}

func (s *Store) Add(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; ok {
		return nil
	}
	s.users[id] = struct{}{}
	if err := s.saveLocked(); err != nil {
		delete(s.users, id)
		return err
	}
	return nil
}

// Remove drops id. Removing an unknown id is a no-op.
func (s *Store) Remove(id int64) error {
	if s.IsAdmin(id) {
		return ErrAdminImmutable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return nil
	}
	delete(s.users, id)
	if err := s.saveLocked(); err != nil {
		s.users[id] = struct{}{}
		return err
	}
	return nil
}

// List returns the allowed ids in ascending order.
func (s *Store) List() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

func (s *Store) save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := s.store.Save(document{Users: s.sortedLocked()}); err != nil {
		return fmt.Errorf("persist allow-list: %w", err)
	}
	return nil
}

func (s *Store) sortedLocked() []int64 {
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
