package apitesting

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/paissahouse/paissadb/api/config"
	"github.com/paissahouse/paissadb/utils/pkg/retry"
)

// RedisConfig holds the Redis test container configuration.
type RedisConfig struct {
	Port           string
	ContainerImage string
}

// Redis represents a Redis test container shared by a test package. The
// keyspace is flushed per test, so tests sharing it must not run in
// parallel with each other.
type Redis struct {
	log       *slog.Logger
	cfg       *RedisConfig
	addr      string
	container *tcredis.RedisContainer
}

// Addr returns the Redis address (host:port).
func (r *Redis) Addr() string {
	return r.addr
}

// URI returns the Redis connection URI.
func (r *Redis) URI() string {
	return "redis://" + r.addr
}

// Close terminates the Redis container.
func (r *Redis) Close() {
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.container.Terminate(terminateCtx); err != nil {
		r.log.Error("failed to terminate Redis container", "error", err)
	}
}

func (cfg *RedisConfig) Validate() error {
	if cfg.Port == "" {
		cfg.Port = "6379"
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = "redis:7-alpine"
	}
	return nil
}

// NewRedis creates a new Redis testcontainer.
func NewRedis(ctx context.Context, log *slog.Logger, cfg *RedisConfig) (*Redis, error) {
	if cfg == nil {
		cfg = &RedisConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate Redis config: %w", err)
	}

	// Retry container start up to 3 times for retryable errors
	var container *tcredis.RedisContainer
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		var err error
		container, err = tcredis.Run(ctx, cfg.ContainerImage)
		if err != nil {
			lastErr = err
			if isRetryableContainerStartErr(err) && attempt < 3 {
				time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("failed to start Redis container after retries: %w", lastErr)
		}
		break
	}

	if container == nil {
		return nil, fmt.Errorf("failed to start Redis container after retries: %w", lastErr)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis container host: %w", err)
	}

	port := nat.Port(fmt.Sprintf("%s/tcp", cfg.Port))
	mappedPort, err := container.MappedPort(ctx, port)
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis container mapped port: %w", err)
	}

	r := &Redis{
		log:       log,
		cfg:       cfg,
		addr:      fmt.Sprintf("%s:%s", host, mappedPort.Port()),
		container: container,
	}

	return r, nil
}

// NewTestRedisClient returns a client bound to the shared container with an
// empty keyspace.
func NewTestRedisClient(t *testing.T, r *Redis) *redis.Client {
	ctx := t.Context()

	client := redis.NewClient(&redis.Options{Addr: r.addr})
	// The container port can open while Redis is still loading.
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		return client.Ping(ctx).Err()
	})
	require.NoError(t, err, "failed to ping Redis container")
	require.NoError(t, client.FlushAll(ctx).Err(), "failed to flush Redis container")

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

// SetupTestRedis points the config.Redis global at a fresh test client
// and restores the previous one on cleanup.
func SetupTestRedis(t *testing.T, r *Redis) *redis.Client {
	client := NewTestRedisClient(t, r)

	oldClient := config.Redis
	config.Redis = client

	t.Cleanup(func() {
		config.Redis = oldClient
	})

	return client
}
