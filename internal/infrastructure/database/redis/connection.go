// internal/infrastructure/database/redis/connection.go
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-backend/internal/config"
)

const (
	connectAttempts = 3
	connectBackoff  = 500 * time.Millisecond
)

// Client owns the process-wide Redis client used by the rate limiter and
// the checkout idempotency store
type Client struct {
	Redis *redis.Client
}

func clientOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

// NewConnection dials Redis, retrying a few times while the server comes up
func NewConnection(cfg *config.Config, log logrus.FieldLogger) (*Client, error) {
	opts := clientOptions(cfg)
	rdb := redis.NewClient(opts)
	logger := log.WithFields(logrus.Fields{"addr": opts.Addr, "db": opts.DB})

	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err == nil {
			logger.Info("✅ Redis connection established successfully")
			return &Client{Redis: rdb}, nil
		}
		if attempt < connectAttempts {
			logger.WithError(err).Warnf("🔄 Redis not reachable, retrying (%d/%d)", attempt, connectAttempts)
			time.Sleep(time.Duration(attempt) * connectBackoff)
		}
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.Redis.Close()
}

// GetClient returns the underlying go-redis client
func (c *Client) GetClient() *redis.Client {
	return c.Redis
}

// Health pings Redis within ctx
func (c *Client) Health(ctx context.Context) error {
	return c.Redis.Ping(ctx).Err()
}
