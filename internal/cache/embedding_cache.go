// Package cache keeps query embeddings in Redis so repeated questions skip
// the embedding call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/asisten-gizi/server/internal/rag"
	"github.com/asisten-gizi/server/internal/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultTTL = 24 * time.Hour

// kv is the part of the Redis client the cache uses.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedEmbedder wraps an Embedder. Redis failures never fail an embedding;
// they are logged and the inner embedder is used.
type CachedEmbedder struct {
	inner  rag.Embedder
	client kv
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedEmbedder(inner rag.Embedder, client kv, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedEmbedder{inner: inner, client: client, ttl: ttl, logger: logger.Named("embedding-cache")}
}

// NewRedisClient parses a redis:// URL and checks the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		vec, decodeErr := utils.DecodeVector(raw)
		if decodeErr == nil {
			return vec, nil
		}
		c.logger.Warn("discarding corrupt cache entry", zap.String("key", key), zap.Error(decodeErr))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", zap.Error(err))
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, utils.EncodeVector(vec), c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
	return vec, nil
}

// key includes the model so switching embedders never serves stale vectors.
func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.inner.ModelName() + ":" + hex.EncodeToString(sum[:])
}
