// Package redistore provides a Redis-backed ScopedStore for multi-process
// deployments. Scopes and visibility are encoded in the key:
//
//	epiclink:card:<cardID>:shared:<key>
//	epiclink:card:<cardID>:private:<memberID>:<key>
//	epiclink:organization:<orgID>:shared:<key>
package redistore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/epiclink/pkg/types"
)

const keyPrefix = "epiclink:"

// Store implements types.ScopedStore on a Redis client.
type Store struct {
	client *redis.Client
}

// New connects to the Redis instance at redisURL and verifies the
// connection with a ping.
func New(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// redisKey builds the flattened key for one addressing tuple.
func redisKey(scope types.Scope, visibility, member, key string) string {
	if visibility == types.VisibilityPrivate {
		return fmt.Sprintf("%s%s:%s:%s:%s:%s", keyPrefix, scope.Kind, scope.ID, visibility, member, key)
	}
	return fmt.Sprintf("%s%s:%s:%s:%s", keyPrefix, scope.Kind, scope.ID, types.VisibilityShared, key)
}

// Get implements types.ScopedStore.
func (s *Store) Get(ctx context.Context, scope types.Scope, visibility, member, key string) (json.RawMessage, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, redisKey(scope, visibility, member, key)).Bytes()
	if err == redis.Nil {
		return nil, types.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return json.RawMessage(raw), nil
}

// Set implements types.ScopedStore. Values persist without TTL; relation
// records live until the protocol removes them.
func (s *Store) Set(ctx context.Context, scope types.Scope, visibility, member, key string, value json.RawMessage) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(scope, visibility, member, key), []byte(value), 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Remove implements types.ScopedStore.
func (s *Store) Remove(ctx context.Context, scope types.Scope, visibility, member string, keys ...string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = redisKey(scope, visibility, member, key)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Keys implements types.ScopedStore using SCAN over the scope prefix.
func (s *Store) Keys(ctx context.Context, scope types.Scope, visibility, member string) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	prefix := redisKey(scope, visibility, member, "")
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

// Close implements types.ScopedStore.
func (s *Store) Close() error {
	return s.client.Close()
}
