// Package kvcache is the key-value cache client of the verdict
// family, backed by Redis strings. A cache miss is data (a not-found
// entry), never an error.
package kvcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verdictlabs/verdict"
	"github.com/verdictlabs/verdict/metrics"
)

// Operation kinds used on cache results.
const (
	OpGet    = "kv:get"
	OpSet    = "kv:set"
	OpDelete = "kv:delete"
	OpIncr   = "kv:incr"
	OpTTL    = "kv:ttl"
)

// Config holds cache backend configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Entry is the payload of a settled lookup. Found=false is a miss.
type Entry struct {
	Key   string
	Value []byte
	Found bool
}

// Backend is the subset of Redis commands the client issues.
// *redis.Client satisfies it; tests supply stubs.
type Backend interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Close() error
}

// Client runs cache operations settling into classified results.
type Client struct {
	rdb Backend

	closeOnce sync.Once
	closeErr  error
}

// New connects to the cache backend and verifies the connection.
func New(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithBackend(rdb), nil
}

// NewWithBackend wraps an existing backend.
func NewWithBackend(b Backend) *Client {
	return &Client{rdb: b}
}

// Close releases the backend connection. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rdb.Close()
	})
	return c.closeErr
}

// Get looks up a key. A miss settles successfully with Found=false.
func (c *Client) Get(ctx context.Context, opts verdict.Options, key string) (*verdict.Result[Entry], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (Entry, error) {
			raw, err := c.rdb.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return Entry{Key: key}, nil
			}
			if err != nil {
				return Entry{}, err
			}
			return Entry{Key: key, Value: raw, Found: true}, nil
		})

	res, verr := verdict.Settle(OpGet, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// Set stores a value. A zero ttl stores without expiry.
func (c *Client) Set(ctx context.Context, opts verdict.Options, key string, value []byte, ttl time.Duration) (*verdict.Result[bool], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (bool, error) {
			if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
				return false, err
			}
			return true, nil
		})

	res, verr := verdict.Settle(OpSet, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// Delete removes a key. Payload reports whether it existed.
func (c *Client) Delete(ctx context.Context, opts verdict.Options, key string) (*verdict.Result[bool], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (bool, error) {
			removed, err := c.rdb.Del(ctx, key).Result()
			if err != nil {
				return false, err
			}
			return removed > 0, nil
		})

	res, verr := verdict.Settle(OpDelete, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// Incr increments a counter key and settles into the new value.
func (c *Client) Incr(ctx context.Context, opts verdict.Options, key string) (*verdict.Result[int64], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (int64, error) {
			return c.rdb.Incr(ctx, key).Result()
		})

	res, verr := verdict.Settle(OpIncr, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// TTL reports the remaining lifetime of a key.
func (c *Client) TTL(ctx context.Context, opts verdict.Options, key string) (*verdict.Result[time.Duration], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (time.Duration, error) {
			return c.rdb.TTL(ctx, key).Result()
		})

	res, verr := verdict.Settle(OpTTL, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}
