package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// casRotateScript performs the compare-and-swap server-side so the compare
// and the write are one atomic step in Redis.
var casRotateScript = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "refresh_hash")
if current == ARGV[1] then
	redis.call("HSET", KEYS[1], "refresh_hash", ARGV[2])
	return 1
end
return 0
`)

// invalidateScript bumps the version and drops the hash atomically.
var invalidateScript = redis.NewScript(`
redis.call("HINCRBY", KEYS[1], "token_version", 1)
redis.call("HDEL", KEYS[1], "refresh_hash")
return 1
`)

// RedisStore keeps session state in a per-principal Redis hash. Used by
// deployments that keep the hot session fields out of the document store.
// Missing keys read as version 0 with no active session.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a session store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(principalID string) string {
	return fmt.Sprintf("session:principal:%s", principalID)
}

// ReadTokenVersion returns the principal's current token version.
func (s *RedisStore) ReadTokenVersion(ctx context.Context, principalID string) (int64, error) {
	version, err := s.client.HGet(ctx, sessionKey(principalID), "token_version").Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

// ReadCurrentRefreshHash returns the stored hash, ok=false when absent.
func (s *RedisStore) ReadCurrentRefreshHash(ctx context.Context, principalID string) (string, bool, error) {
	hash, err := s.client.HGet(ctx, sessionKey(principalID), "refresh_hash").Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	return hash, true, nil
}

// CASRotate runs the compare-and-swap Lua script.
func (s *RedisStore) CASRotate(ctx context.Context, principalID, expectedOldHash, newHash string) (bool, error) {
	res, err := casRotateScript.Run(ctx, s.client, []string{sessionKey(principalID)}, expectedOldHash, newHash).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// InvalidateAll runs the invalidate script.
func (s *RedisStore) InvalidateAll(ctx context.Context, principalID string) error {
	return invalidateScript.Run(ctx, s.client, []string{sessionKey(principalID)}).Err()
}

// SetInitialSession unconditionally sets the refresh hash.
func (s *RedisStore) SetInitialSession(ctx context.Context, principalID, hash string) error {
	return s.client.HSet(ctx, sessionKey(principalID), "refresh_hash", hash).Err()
}
