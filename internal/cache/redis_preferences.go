package cache

import (
	"context"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "isdanary:prefs:"

// RedisPreferences stores each principal's settings in one hash.
type RedisPreferences struct {
	client *redis.Client
}

func NewRedisPreferences(addr string, password string, db int) *RedisPreferences {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPreferences{client: client}
}

func (c *RedisPreferences) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisPreferences) Close() error {
	return c.client.Close()
}

func (c *RedisPreferences) Get(ctx context.Context, principalID string, key string) (string, bool, error) {
	val, err := c.client.HGet(ctx, redisKeyPrefix+principalID, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisPreferences) Set(ctx context.Context, principalID string, key string, value string) error {
	return c.client.HSet(ctx, redisKeyPrefix+principalID, key, value).Err()
}
