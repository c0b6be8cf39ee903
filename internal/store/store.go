// package store defines a small keyed store for client state such as the bearer token and per-user sync flags.
//
// Backings are injectable: [Memory] for tests and short-lived sessions, and the SQLite settings repository for
// everything persisted between runs.
package store

import (
	"context"
	"sync"
)

const (
	TokenKey = "token"

	syncedPrefix = "user-synced-"
)

// SyncedKey returns the key that marks the user identified by sub as synced.
func SyncedKey(sub string) string {
	return syncedPrefix + sub
}

// Store is a string key/value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set creates or replaces the value for key.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process [Store].
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty [Memory] store.
func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// IsSet reports whether key holds a non-empty value.
func IsSet(ctx context.Context, s Store, key string) (bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return ok && v != "", nil
}
