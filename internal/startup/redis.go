package startup

import (
	"context"
	"time"

	redisstorage "github.com/chatwidget/internal/storage/redis"
)

// ConnectRedis connects to Redis with retries.
func ConnectRedis(redisURL string, maxWait time.Duration) (*redisstorage.Client, error) {
	var client *redisstorage.Client
	err := retry("redis connect", maxWait, func(ctx context.Context) error {
		c, err := redisstorage.New(ctx, redisURL)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	return client, err
}
