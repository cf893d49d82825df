package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/config"
)

const (
	connectAttempts = 5
	connectBaseWait = 500 * time.Millisecond
	pingTimeout     = 2 * time.Second
)

// Connect creates a Redis client and verifies connectivity. Redis often comes
// up after the service in compose environments, so the initial ping is retried
// with a growing wait before giving up.
func Connect(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	wait := connectBaseWait
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			if attempt > 1 {
				slog.Info("connected to redis after retry", "addr", cfg.Addr, "attempts", attempt)
			}
			return client, nil
		}
		if attempt < connectAttempts {
			slog.Warn("redis not reachable, retrying",
				"addr", cfg.Addr,
				"attempt", attempt,
				"next_retry_in", wait.String(),
				"error", err)
			time.Sleep(wait)
			wait *= 2
		}
	}

	client.Close()
	return nil, fmt.Errorf("redis unreachable at %s after %d attempts: %w", cfg.Addr, connectAttempts, err)
}
