package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps go-redis and namespaces every key it touches.
type Client struct {
	rdb    *redis.Client
	prefix string
}

const defaultPrefix = "sandwich:"

// Connect creates a Redis client from a redis:// url and verifies connectivity.
func Connect(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(rdb), nil
}

// New wraps an existing go-redis client.
func New(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, prefix: defaultPrefix}
}

// Raw returns the underlying redis.Client for middleware that needs the full command set.
func (c *Client) Raw() *redis.Client { return c.rdb }

func (c *Client) key(k string) string { return c.prefix + k }

// Set stores a value with optional TTL (0 = no expiry).
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key(key), value, ttl).Err()
}

// Get returns the stored bytes. A missing key yields (nil, false, nil).
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.rdb.Del(ctx, full...).Err()
}

// GetVersioned reads key and the counter at versionKey in one transaction. A missing counter
// reads as 0.
func (c *Client) GetVersioned(ctx context.Context, key, versionKey string) ([]byte, bool, int64, error) {
	var val, ver *redis.StringCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		val = pipe.Get(ctx, c.key(key))
		ver = pipe.Get(ctx, c.key(versionKey))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, 0, err
	}

	version, err := ver.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, 0, err
	}
	raw, err := val.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, version, nil
	}
	if err != nil {
		return nil, false, 0, err
	}
	return raw, true, version, nil
}

var errVersionChanged = errors.New("redis: version changed")

// SetIfVersion stores value only while the counter at versionKey still equals version. It
// reports whether the value was written.
func (c *Client) SetIfVersion(ctx context.Context, key, versionKey string, version int64, value []byte, ttl time.Duration) (bool, error) {
	vk := c.key(versionKey)
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return errVersionChanged
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(key), value, ttl)
			return nil
		})
		return err
	}, vk)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errVersionChanged), errors.Is(err, redis.TxFailedErr):
		return false, nil
	}
	return false, err
}

// Bump increments the counter at versionKey and deletes keys atomically.
func (c *Client) Bump(ctx context.Context, versionKey string, keys ...string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.key(versionKey))
		for _, k := range keys {
			pipe.Del(ctx, c.key(k))
		}
		return nil
	})
	return err
}

func (c *Client) Close() error { return c.rdb.Close() }
