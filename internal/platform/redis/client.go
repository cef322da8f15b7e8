package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client оборачивает go-redis клиент проверкой здоровья.
type Client struct {
	*redis.Client
}

// New создаёт клиент по URL. Пустой URL означает, что redis не настроен: (nil, nil).
func New(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health проверяет соединение.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
