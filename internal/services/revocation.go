package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "authtrail:revoked:"

// RedisRevocationCache stores revoked-session flags with a TTL.
type RedisRevocationCache struct {
	client *redis.Client
}

func NewRedisRevocationCache(client *redis.Client) *RedisRevocationCache {
	return &RedisRevocationCache{client: client}
}

// NewRedisClient connects and pings, failing fast on a bad address.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *RedisRevocationCache) MarkRevoked(ctx context.Context, sessionID uuid.UUID, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		ttl = time.Minute
	}
	return c.client.Set(ctx, revokedKeyPrefix+sessionID.String(), "1", ttl).Err()
}

func (c *RedisRevocationCache) IsRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	n, err := c.client.Exists(ctx, revokedKeyPrefix+sessionID.String()).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
