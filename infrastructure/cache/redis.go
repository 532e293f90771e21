package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"stream-proxy/infrastructure/logger"
)

// NewRedisClient connects to redis and verifies the connection. A nil client
// with an error is returned when redis is unreachable; callers treat redis as
// optional and fall back to in-memory stores.
func NewRedisClient(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not reachable")
		return nil, err
	}
	return client, nil
}
