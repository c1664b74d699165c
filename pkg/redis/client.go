package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/quantmon/pkg/config"
)

// DefaultPrefix namespaces cache and rate-limit keys when REDIS_KEY_PREFIX is empty
const DefaultPrefix = "quantmon"

const defaultDialTimeout = 3 * time.Second

// Client is the shared Redis connection.
// With REDIS_ENABLED=false it has no connection: caches miss and limiters allow.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb    *redis.Client
	addr   string
	prefix string
}

// New connects and pings within the dial timeout
func New(cfg *config.Config) (*Client, error) {
	c := &Client{
		addr:   net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port),
		prefix: cfg.Redis.KeyPrefix,
	}
	if c.prefix == "" {
		c.prefix = DefaultPrefix
	}
	if !cfg.Redis.Enabled {
		return c, nil
	}

	timeout := cfg.Redis.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        c.addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis %s: ping: %w", c.addr, err)
	}

	c.rdb = rdb
	return c, nil
}

// Enabled reports whether a connection is open
func (c *Client) Enabled() bool {
	return c.rdb != nil
}

// Prefix is the key namespace shared by Cache and RateLimiter
func (c *Client) Prefix() string {
	return c.prefix
}

// Addr is host:port, also set when disabled (status output)
func (c *Client) Addr() string {
	return c.addr
}

// Ping checks the connection; a disabled client is always healthy
func (c *Client) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close closes the connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Redis returns the underlying go-redis client (nil when disabled)
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
