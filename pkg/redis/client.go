package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// NewClient connects to Redis and verifies the connection before returning.
// Callers treat a nil client as "Redis absent" and degrade to
// single-instance behavior, so a dead Redis is reported here, not later.
func NewClient(host string, port int, password string, db, poolSize int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, fmt.Errorf("redis ping %s:%d: %w", host, port, err)
	}

	return client, nil
}
