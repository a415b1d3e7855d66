// Package memstore provides an in-memory ScopedStore. It backs tests and
// single-process use; nothing survives a restart.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/mesh-intelligence/epiclink/pkg/types"
)

// Store is a mutex-guarded map keyed by scope, visibility, member, and key.
type Store struct {
	mu     sync.RWMutex
	closed bool
	values map[string]json.RawMessage
}

// New creates an empty store.
func New() *Store {
	return &Store{values: make(map[string]json.RawMessage)}
}

// entryKey flattens the addressing tuple. Member only namespaces private
// keys, matching the host product's per-member visibility.
func entryKey(scope types.Scope, visibility, member, key string) string {
	if visibility != types.VisibilityPrivate {
		member = ""
	}
	return scope.Kind + "\x00" + scope.ID + "\x00" + visibility + "\x00" + member + "\x00" + key
}

// keyPrefix addresses every key of one scope/visibility/member combination.
func keyPrefix(scope types.Scope, visibility, member string) string {
	if visibility != types.VisibilityPrivate {
		member = ""
	}
	return scope.Kind + "\x00" + scope.ID + "\x00" + visibility + "\x00" + member + "\x00"
}

// Get implements types.ScopedStore.
func (s *Store) Get(ctx context.Context, scope types.Scope, visibility, member, key string) (json.RawMessage, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}
	value, ok := s.values[entryKey(scope, visibility, member, key)]
	if !ok {
		return nil, types.ErrKeyNotFound
	}
	out := make(json.RawMessage, len(value))
	copy(out, value)
	return out, nil
}

// Set implements types.ScopedStore.
func (s *Store) Set(ctx context.Context, scope types.Scope, visibility, member, key string, value json.RawMessage) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}
	stored := make(json.RawMessage, len(value))
	copy(stored, value)
	s.values[entryKey(scope, visibility, member, key)] = stored
	return nil
}

// Remove implements types.ScopedStore. Missing keys are ignored.
func (s *Store) Remove(ctx context.Context, scope types.Scope, visibility, member string, keys ...string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}
	for _, key := range keys {
		delete(s.values, entryKey(scope, visibility, member, key))
	}
	return nil
}

// Keys implements types.ScopedStore. Keys are returned sorted for stable
// iteration in tests.
func (s *Store) Keys(ctx context.Context, scope types.Scope, visibility, member string) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}
	prefix := keyPrefix(scope, visibility, member)
	var keys []string
	for k := range s.values {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k[len(prefix):])
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements types.ScopedStore. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
