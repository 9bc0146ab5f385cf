package database

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/parking-raffle-backend/internal/platform/config"
	glog "github.com/google/logger"
	"github.com/redis/go-redis/v9"
)

// RDB is the process-wide Redis client, set by InitRedis.
var RDB *redis.Client

const redisPingTimeout = 3 * time.Second

// InitRedis connects to Redis and verifies the connection with PING.
func InitRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cannot reach redis at %s: %w", cfg.Address, err)
	}

	RDB = client
	glog.Infof("redis connected (%s)", cfg.Address)
	return client, nil
}
