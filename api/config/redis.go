package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the global redis client shared by the ingest path, the
// websocket fanout, and the CSV dump cache.
var Redis *redis.Client

// LoadRedis initializes the redis client from REDIS_URI.
func LoadRedis() error {
	uri := os.Getenv("REDIS_URI")
	if uri == "" {
		uri = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(uri)
	if err != nil {
		return err
	}

	log.Printf("Connecting to redis: addr=%s db=%d", opts.Addr, opts.DB)

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return err
	}

	Redis = client
	log.Printf("Connected to redis successfully")

	return nil
}

// CloseRedis closes the redis client
func CloseRedis() error {
	if Redis != nil {
		return Redis.Close()
	}
	return nil
}
