// Package rediscore wraps github.com/redis/go-redis/v9 with the
// connection-pool defaults and helper methods valley-pkg's redis package
// established, generalized to take a context per call (every Redis round
// trip in the dispatcher is a dispatch-attempt suspension point, so it
// must be cancellable independently of any one connection's lifetime).
package rediscore

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Client wraps a *redis.Client with the helpers the rest of this module
// needs (Lua script invocation with graceful NOSCRIPT fallback, simple
// string/hash accessors). A single Client is shared process-wide; it is
// the one piece of ambient, process-wide state this module carries
// (spec §9 "Global state").
type Client struct {
	raw *redis.Client
}

type Options struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PoolTimeout  time.Duration
}

func DefaultOptions(addr string) Options {
	return Options{
		Addr:         addr,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     20,
		PoolTimeout:  30 * time.Second,
	}
}

// New dials Redis and verifies connectivity with a PING.
func New(ctx context.Context, opt Options) (*Client, error) {
	raw := redis.NewClient(&redis.Options{
		Addr:         opt.Addr,
		Password:     opt.Password,
		DB:           opt.DB,
		DialTimeout:  opt.DialTimeout,
		ReadTimeout:  opt.ReadTimeout,
		WriteTimeout: opt.WriteTimeout,
		PoolSize:     opt.PoolSize,
		PoolTimeout:  opt.PoolTimeout,
	})

	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, errors.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{raw: raw}, nil
}

// NewFromClient wraps an already-constructed *redis.Client, used by tests
// to point at a miniredis instance.
func NewFromClient(raw *redis.Client) *Client {
	return &Client{raw: raw}
}

func (c *Client) Raw() *redis.Client { return c.raw }

func (c *Client) Close() error {
	logrus.Debug("closing redis client")
	return c.raw.Close()
}

func (c *Client) Set(ctx context.Context, key, value string, expire time.Duration) error {
	return c.raw.Set(ctx, key, value, expire).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.raw.Get(ctx, key).Result()
}

func (c *Client) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	args := make([]interface{}, 0, len(values)*2)
	for k, v := range values {
		args = append(args, k, v)
	}
	return c.raw.HSet(ctx, key, args...).Err()
}

func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.raw.HGetAll(ctx, key).Result()
}

// EvalShaOrLoad runs a cached script by its SHA1, loading it on the first
// NOSCRIPT miss. This is the access pattern every Lua script in leasestore
// uses instead of plain EVAL, so repeated calls only ship the script body
// to Redis once per connection.
func (c *Client) EvalShaOrLoad(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	res, err := script.Run(ctx, c.raw, keys, args...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return res, err
}
