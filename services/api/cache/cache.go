// Package cache keeps raw dataset payloads in Redis so repeated queries
// against one dataset skip the blob store round trip.
package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "markers:dataset:"

// Cache stores zstd-compressed dataset JSON under one key per dataset.
// A nil *Cache is a disabled cache: reads miss and writes are dropped.
type Cache struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

// New connects to the Redis instance at redisURL.
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.TLSConfig != nil {
		opt.TLSConfig.MinVersion = tls.VersionTLS12
	}
	return NewWithClient(redis.NewClient(opt), ttl)
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb redis.UniversalClient, ttl time.Duration) (*Cache, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Cache{rdb: rdb, ttl: ttl, prefix: defaultPrefix, enc: enc, dec: dec}, nil
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Close releases the client and codec resources.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	c.dec.Close()
	if err := c.enc.Close(); err != nil {
		return fmt.Errorf("close zstd encoder: %w", err)
	}
	return c.rdb.Close()
}

// Get returns the cached payload for a dataset.
func (c *Cache) Get(ctx context.Context, dataset string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	compressed, err := c.rdb.Get(ctx, c.key(dataset)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", dataset, err)
	}
	raw, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("decompress %s: %w", dataset, err)
	}
	return raw, true, nil
}

// Set stores a dataset payload with the configured TTL.
func (c *Cache) Set(ctx context.Context, dataset string, raw []byte) error {
	if c == nil {
		return nil
	}
	compressed := c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/4))
	if err := c.rdb.Set(ctx, c.key(dataset), compressed, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", dataset, err)
	}
	return nil
}

// Invalidate drops a dataset so the next load refetches it.
func (c *Cache) Invalidate(ctx context.Context, dataset string) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, c.key(dataset)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", dataset, err)
	}
	return nil
}

func (c *Cache) key(dataset string) string {
	return c.prefix + dataset
}
