package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheConfig configures the Redis read-through cache.
type CacheConfig struct {
	// KeyPrefix namespaces cache entries.
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	// TTL bounds how long a cached vector stays valid.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// DefaultCacheConfig returns the standard cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		KeyPrefix: "unimemory:embedding:",
		TTL:       24 * time.Hour,
	}
}

// CachedProvider wraps a Provider with a Redis read-through cache keyed by
// content hash. Cache failures never fail the embed: the wrapped provider
// is always the fallback.
type CachedProvider struct {
	inner  Provider
	client redis.UniversalClient
	config CacheConfig
	logger *zap.Logger
}

// NewCachedProvider wraps inner with a Redis cache.
func NewCachedProvider(inner Provider, client redis.UniversalClient, config CacheConfig, logger *zap.Logger) *CachedProvider {
	def := DefaultCacheConfig()
	if config.KeyPrefix == "" {
		config.KeyPrefix = def.KeyPrefix
	}
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		inner:  inner,
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "embedding_cache")),
	}
}

// Embed serves from cache when possible and populates it on miss.
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	key := p.key(text)

	if data, err := p.client.Get(ctx, key).Bytes(); err == nil {
		var vec []float64
		if err := json.Unmarshal(data, &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
		p.logger.Warn("dropping corrupt cache entry", zap.String("key", key))
		p.client.Del(ctx, key)
	} else if err != redis.Nil {
		p.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := p.client.Set(ctx, key, data, p.config.TTL).Err(); err != nil {
			p.logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return vec, nil
}

// Dimensions returns the wrapped provider's vector width.
func (p *CachedProvider) Dimensions() int { return p.inner.Dimensions() }

func (p *CachedProvider) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return p.config.KeyPrefix + hex.EncodeToString(sum[:])
}
