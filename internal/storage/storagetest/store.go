// Package storagetest provides an in-memory ProfileStore for tests.
package storagetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/louisbranch/homebase/internal/profile"
	"github.com/louisbranch/homebase/internal/storage"
)

type record struct {
	doc     *profile.Profile
	version storage.Version
}

// Store is an in-memory ProfileStore with the same optimistic-concurrency
// semantics as the SQLite implementation.
type Store struct {
	mu       sync.Mutex
	profiles map[string]*record

	// SaveErr, when set, fails the next SaveProfile call.
	SaveErr error
	// Saves counts successful SaveProfile calls.
	Saves int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{profiles: make(map[string]*record)}
}

func key(accountID, profileID string) string {
	return accountID + "/" + profileID
}

// Seed inserts a profile directly, bypassing version checks. Intended for
// test fixtures.
func (s *Store) Seed(doc *profile.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[key(doc.AccountID, doc.ProfileID)] = &record{doc: doc.Clone(), version: 1}
}

// GetProfile implements storage.ProfileStore.
func (s *Store) GetProfile(ctx context.Context, accountID, profileID string) (*profile.Profile, storage.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.profiles[key(accountID, profileID)]
	if !ok {
		return nil, 0, storage.ErrNotFound
	}
	return stored.doc.Clone(), stored.version, nil
}

// SaveProfile implements storage.ProfileStore.
func (s *Store) SaveProfile(ctx context.Context, doc *profile.Profile, expected storage.Version) (storage.Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		err := s.SaveErr
		s.SaveErr = nil
		return 0, err
	}
	stored, ok := s.profiles[key(doc.AccountID, doc.ProfileID)]
	if !ok {
		return 0, storage.ErrNotFound
	}
	if stored.version != expected {
		return 0, storage.ErrVersionConflict
	}
	stored.doc = doc.Clone()
	stored.version++
	s.Saves++
	return stored.version, nil
}

// CreateProfile implements storage.ProfileStore.
func (s *Store) CreateProfile(ctx context.Context, doc *profile.Profile) (storage.Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(doc.AccountID, doc.ProfileID)
	if _, ok := s.profiles[k]; ok {
		return 0, fmt.Errorf("profile %s already exists", k)
	}
	s.profiles[k] = &record{doc: doc.Clone(), version: 1}
	return 1, nil
}
