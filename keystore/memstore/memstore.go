// Package memstore provides an in-memory keystore.Store. It backs the
// demo wiring and doubles as the test fake.
package memstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/keystore"
	"github.com/pkg/errors"
)

var _ keystore.Store = (*Store)(nil)

type Store struct {
	values map[string]string
	lock   sync.RWMutex

	// FailOps, when non-nil, makes the named operations fail. Used by
	// tests to exercise store-error propagation.
	FailOps map[string]bool
}

func New() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Store(ctx context.Context, key, value string) error {
	if err := s.failure(keystore.OpStore, key); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values[key] = value
	return nil
}

func (s *Store) Retrieve(ctx context.Context, key string) (string, bool, error) {
	if err := s.failure(keystore.OpRetrieve, key); err != nil {
		return "", false, err
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.failure(keystore.OpDelete, key); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.values, key)
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.failure(keystore.OpClear, ""); err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values = make(map[string]string)
	return nil
}

// Len reports the number of stored keys.
func (s *Store) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.values)
}

func (s *Store) failure(op, key string) error {
	s.lock.RLock()
	fail := s.FailOps[op]
	s.lock.RUnlock()
	if !fail {
		return nil
	}
	return &keystore.StoreError{Op: op, Key: key, Err: errors.New("injected failure")}
}
