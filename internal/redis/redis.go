package redis

import (
	"context"
	"fmt"
	"time"

	"automator/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client and checks the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// DeviceKey holds the JSON state snapshot of a device
func DeviceKey(deviceID string) string { return "device:" + deviceID }

// PackagesKey is the set of packages installed on a device
func PackagesKey(deviceID string) string { return "device:" + deviceID + ":packages" }

// ServicesKey is the hash of host listener service flags
func ServicesKey(deviceID string) string { return "device:" + deviceID + ":services" }

// EventStream is the inbox stream of a device
func EventStream(deviceID string) string { return "stream:events:" + deviceID }

// LastReadKey stores the last consumed entry id of the inbox stream
func LastReadKey(deviceID string) string { return "last_read:" + deviceID }

// BlockListKey is the set of blocked app packages
const BlockListKey = "blocklist:apps"
