// Package redis provides the Redis-backed result cache, activation cache,
// transit snapshot store and pair locks.
package redis

import (
	"context"
	"crypto/tls"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

var ErrClientClosed = errors.New(errors.ErrCodeCacheError, "redis client is closed")

// ClientConfig holds connection parameters.  A single address connects a
// standalone client; several addresses connect a cluster client.
type ClientConfig struct {
	Addrs        []string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TLSEnabled   bool
}

// Client owns the go-redis connection pool.
type Client struct {
	rdb    redis.UniversalClient
	logger logging.Logger
	closed atomic.Bool
}

// NewClient connects and pings.  The client is closed again when the ping
// fails.
func NewClient(ctx context.Context, cfg ClientConfig, logger logging.Logger) (*Client, error) {
	if len(cfg.Addrs) == 0 || cfg.Addrs[0] == "" {
		return nil, errors.New(errors.ErrCodeValidation, "redis address required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	opts := &redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	c := NewClientFromUniversal(redis.NewUniversalClient(opts), logger)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		_ = c.rdb.Close()
		return nil, err
	}
	c.logger.Info("redis client connected", logging.Strings("addrs", cfg.Addrs), logging.Int("db", cfg.DB))
	return c, nil
}

// NewClientFromUniversal wraps an existing go-redis client, e.g. a redismock
// client in tests.
func NewClientFromUniversal(rdb redis.UniversalClient, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{rdb: rdb, logger: logger.Named("redis")}
}

// Ping checks connectivity; used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "redis ping failed")
	}
	return nil
}

// Close releases the pool.  Calling it twice is a no-op.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.logger.Info("redis client closed")
	return c.rdb.Close()
}

// Raw exposes the underlying client to the other types in this package.
func (c *Client) Raw() redis.UniversalClient {
	return c.rdb
}
