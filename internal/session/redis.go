package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// RedisBackend stores sessions as "session:<id>" keys with a TTL.
type RedisBackend struct {
	rdb *redis.Client
}

func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func (b *RedisBackend) Save(ctx context.Context, sessionID string, userID int, ttl time.Duration) error {
	return b.rdb.Set(ctx, keyPrefix+sessionID, userID, ttl).Err()
}

func (b *RedisBackend) Lookup(ctx context.Context, sessionID string) (int, bool, error) {
	value, err := b.rdb.Get(ctx, keyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	userID, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, err
	}
	return userID, true, nil
}

func (b *RedisBackend) Delete(ctx context.Context, sessionID string) error {
	return b.rdb.Del(ctx, keyPrefix+sessionID).Err()
}
