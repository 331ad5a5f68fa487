package cookiecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCookieNotFound is returned by Get when no cookie is cached for the key.
var ErrCookieNotFound = errors.New("cookie not found")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store caches session cookies in Redis with a fixed TTL.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore creates a Store on the given Redis client. prefix namespaces the
// keys; ttl must stay under the backend's cookie lifetime.
func NewStore(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Get returns the cached cookie for (account, origin), or ErrCookieNotFound.
func (s *Store) Get(ctx context.Context, account, origin string) (string, error) {
	val, err := s.redis.Get(ctx, s.key(account, origin)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCookieNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return val, nil
}

// Put stores cookie for (account, origin) with the Store's TTL.
func (s *Store) Put(ctx context.Context, account, origin, cookie string) error {
	if err := s.redis.Set(ctx, s.key(account, origin), cookie, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete drops the cached cookie for (account, origin). Deleting a missing
// key is not an error.
func (s *Store) Delete(ctx context.Context, account, origin string) error {
	if err := s.redis.Del(ctx, s.key(account, origin)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// TTL exposes the configured entry lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Keys hash the account and origin so that neither appears in the keyspace.
func (s *Store) key(account, origin string) string {
	sum := sha256.Sum256([]byte(account + "\x00" + origin))
	return s.prefix + ":ck:" + hex.EncodeToString(sum[:16])
}
