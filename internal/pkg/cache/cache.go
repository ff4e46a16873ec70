package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/evpago/evpago/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache connects to the redis server used for short-lived lookups such
// as the active gateway configuration. A failed connection is logged, not
// fatal; callers treat cache errors the same as cache misses.
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, port),
	})

	if pong, err := client.Ping(ctx).Result(); err != nil {
		log.Warnf("cache unreachable at %s:%s: %v", host, port, err)
	} else {
		log.Infof("cache connected: %s", pong)
	}
}

func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Set stores a value under key for the given TTL.
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get returns the string value stored under key.
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// Delete removes key from the cache.
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}
