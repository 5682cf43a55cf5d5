package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"stockpilot/backend/internal/domain"
)

const redisKeyPrefix = "stockpilot:assistant:"

type RedisSessionCache struct {
	client *redis.Client
}

func NewRedisSessionCache(addr string, password string, db int) *RedisSessionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSessionCache{client: client}
}

func (c *RedisSessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSessionCache) Close() error {
	return c.client.Close()
}

func (c *RedisSessionCache) Get(ctx context.Context, key string) (*domain.AssistantSession, bool, error) {
	val, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var session domain.AssistantSession
	if err := json.Unmarshal(val, &session); err != nil {
		return nil, false, err
	}
	return &session, true, nil
}

func (c *RedisSessionCache) Set(ctx context.Context, key string, value *domain.AssistantSession, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, redisKeyPrefix+key, payload, ttl).Err()
}

func (c *RedisSessionCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, redisKeyPrefix+key).Err()
}
