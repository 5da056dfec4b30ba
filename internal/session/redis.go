// redis.go -- go-redis backed session store.
//
// One hash per session at "sess:<id>", field per key. TTL is refreshed on every
// write so an active login flow never expires mid-way.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis. Safe for concurrent use.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore connects to Redis and returns a ready-to-use session store.
// It pings Redis to verify connectivity before returning.
// Call once at startup from main.go...returned store is safe for concurrent use.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	// Parse redisURL to get option values, if err return it
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail fast at startup rather than on the first login
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

// Close shuts down the Redis client and releases all resources.
// Should be called via defer in main.go after creating the store.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Ping checks connectivity, used by the health check.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func sessionKey(id string) string {
	return fmt.Sprintf("sess:%s", id)
}

// Put sets one field and pushes the expiry out.
func (s *RedisStore) Put(ctx context.Context, id, key, value string) error {
	// Field write + expiry refresh in one MULTI so a session never exists without a TTL
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, sessionKey(id), key, value)
	pipe.Expire(ctx, sessionKey(id), s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// Get reads one field. A missing field or session is not an error.
func (s *RedisStore) Get(ctx context.Context, id, key string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, sessionKey(id), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading session: %w", err)
	}
	return v, true, nil
}

// Delete removes fields; Redis drops the hash itself once it is empty.
func (s *RedisStore) Delete(ctx context.Context, id string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.HDel(ctx, sessionKey(id), keys...).Err(); err != nil {
		return fmt.Errorf("deleting session keys: %w", err)
	}
	return nil
}

// Purge deletes the whole session.
func (s *RedisStore) Purge(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("purging session: %w", err)
	}
	return nil
}

// renewScript moves KEYS[1] to KEYS[2] with a fresh TTL (ARGV[1], ms).
// Returns 0 when KEYS[1] does not exist.
var renewScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("RENAME", KEYS[1], KEYS[2])
redis.call("PEXPIRE", KEYS[2], ARGV[1])
return 1
`)

// Renew moves the hash to a fresh id. The script runs atomically, so no request
// can see the contents under both ids.
func (s *RedisStore) Renew(ctx context.Context, id string) (string, error) {
	newID, err := NewID()
	if err != nil {
		return "", err
	}

	moved, err := renewScript.Run(ctx, s.rdb,
		[]string{sessionKey(id), sessionKey(newID)}, s.ttl.Milliseconds()).Int()
	if err != nil {
		return "", fmt.Errorf("renewing session: %w", err)
	}
	if moved == 0 {
		return "", ErrSessionNotFound
	}
	return newID, nil
}
