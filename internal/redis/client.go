package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// TokenIndexKey maps an HMAC of a provider's plaintext access token to the
// owning connection id, so webhook resolution avoids decrypting every active
// connection.
func TokenIndexKey(tokenHMAC string) string {
	return fmt.Sprintf("wearable:tok:%s", tokenHMAC)
}

// RefreshLockKey serializes token refresh per connection across overlapping
// sync runs.
func RefreshLockKey(connectionID string) string {
	return fmt.Sprintf("wearable:refresh:%s", connectionID)
}
