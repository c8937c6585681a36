// Package redis wires the go-redis client used for the certificate render
// cache and the redis-backed document store.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ecocert/internal/platform/config"
)

// Client wraps the go-redis client so callers get a health check alongside
// the raw command surface.
type Client struct {
	*redis.Client
}

// New dials redis from configuration. An empty URL means redis is not
// configured and both return values are nil; callers fall back to
// in-memory implementations.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers pings.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
