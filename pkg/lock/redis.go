// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stagegate/stagegate/pkg/logger"
)

// releaseScript deletes the lock key only when it still holds our token,
// so an expired-and-reacquired lock is never released by the old holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisConfig configures the Redis lock coordinator.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`

	// KeyPrefix namespaces lock keys in a shared Redis.
	KeyPrefix string `mapstructure:"key_prefix"`

	// TTL bounds how long a crashed holder can block other waiters.
	TTL time.Duration `mapstructure:"ttl"`

	// AcquireTimeout bounds the total wait for acquisition.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`

	// RetryInterval is the poll interval while waiting for a held lock.
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// DefaultRedisConfig returns sensible defaults.
func DefaultRedisConfig(addr string) RedisConfig {
	return RedisConfig{
		Addr:           addr,
		PoolSize:       10,
		KeyPrefix:      "stagegate:lock:",
		TTL:            30 * time.Second,
		AcquireTimeout: 10 * time.Second,
		RetryInterval:  50 * time.Millisecond,
	}
}

// RedisCoordinator implements Coordinator with a single-key Redis lock
// (SET NX PX plus a compare-and-delete release script).
type RedisCoordinator struct {
	client  *redis.Client
	config  RedisConfig
	release *redis.Script
}

// NewRedisCoordinator creates a coordinator and verifies connectivity.
func NewRedisCoordinator(cfg RedisConfig) (*RedisCoordinator, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 50 * time.Millisecond
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCoordinator{
		client:  client,
		config:  cfg,
		release: redis.NewScript(releaseScript),
	}, nil
}

// NewRedisCoordinatorWithClient wraps an existing client (used by tests).
func NewRedisCoordinatorWithClient(client *redis.Client, cfg RedisConfig) *RedisCoordinator {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 50 * time.Millisecond
	}
	return &RedisCoordinator{
		client:  client,
		config:  cfg,
		release: redis.NewScript(releaseScript),
	}
}

// WithLock acquires the named lock, runs fn, and releases on every exit path.
func (c *RedisCoordinator) WithLock(ctx context.Context, lockID string, fn func(ctx context.Context) error) error {
	key := c.config.KeyPrefix + lockID
	token := uuid.NewString()

	if err := c.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := c.release.Run(releaseCtx, c.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			logger.Ctx(ctx).Warn().Err(err).Str("lock_id", lockID).Msg("failed to release lock; TTL will reclaim it")
		}
	}()

	return fn(ctx)
}

func (c *RedisCoordinator) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(c.config.AcquireTimeout)
	for {
		ok, err := c.client.SetNX(ctx, key, token, c.config.TTL).Result()
		if err != nil {
			return fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("acquire %s: %w", key, ErrNotAcquired)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire %s: %w", key, ctx.Err())
		case <-time.After(c.config.RetryInterval):
		}
	}
}

// Close releases the underlying Redis client.
func (c *RedisCoordinator) Close() error {
	return c.client.Close()
}
