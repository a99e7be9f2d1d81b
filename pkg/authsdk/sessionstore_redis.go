package authsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/clubhouse/pkg/slogx"
)

// RedisSessionStore keeps the session under a single Redis key whose TTL
// matches the session expiry. Useful when several front-end processes of the
// same client share one login.
type RedisSessionStore struct {
	rdb *redis.Client
	key string

	// Clock overrides time.Now for expiry checks.
	Clock func() time.Time

	mu sync.Mutex
}

var _ SessionStore = (*RedisSessionStore)(nil)

// NewRedisSessionStore returns a store using key on rdb. An empty key uses
// DefaultSessionKey.
func NewRedisSessionStore(rdb *redis.Client, key string) *RedisSessionStore {
	if key == "" {
		key = DefaultSessionKey
	}
	return &RedisSessionStore{rdb: rdb, key: key}
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, s Session) error {
	data, err := encodeSession(s)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ttl := s.ExpiresAt.Sub(nowOr(r.Clock))
	if ttl <= 0 {
		// Already expired; nothing worth caching.
		return r.rdb.Del(ctx, r.key).Err()
	}
	if err := r.rdb.Set(ctx, r.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) Load(ctx context.Context) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	s, err := decodeSession(data)
	if err != nil {
		slogx.FromContext(ctx).Warn("discarding unreadable cached session", "key", r.key, "error", err)
		return nil, r.delLocked(ctx)
	}
	if s.Expired(nowOr(r.Clock)) {
		return nil, r.delLocked(ctx)
	}
	return s, nil
}

func (r *RedisSessionStore) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delLocked(ctx)
}

func (r *RedisSessionStore) delLocked(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
