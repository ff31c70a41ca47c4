package s2_components

import (
	"context"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/logger"
	"github.com/wonny/conviction/pkg/redis"
)

// cachedReading is the serialized form of an available reading
type cachedReading struct {
	Score      *float64               `json:"score,omitempty"`
	Multiplier *float64               `json:"multiplier,omitempty"`
	Source     string                 `json:"source"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
}

// CachedProvider memoizes ticker-level readings in Redis per ticker and day.
// Only wrap providers whose value depends on ticker and date alone.
// Unavailable readings are never cached; cache errors fall through to the inner provider.
type CachedProvider struct {
	inner  contracts.ComponentProvider
	cache  *redis.Cache
	logger *logger.Logger
}

// NewCachedProvider wraps inner with the cache. A nil or disabled cache is a passthrough.
func NewCachedProvider(inner contracts.ComponentProvider, cache *redis.Cache, log *logger.Logger) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache, logger: log}
}

// Name returns the wrapped component name
func (p *CachedProvider) Name() string { return p.inner.Name() }

// Evaluate serves from cache or evaluates and stores the reading
func (p *CachedProvider) Evaluate(ctx context.Context, req contracts.ComponentRequest) contracts.Reading {
	if !p.cache.Enabled() {
		return p.inner.Evaluate(ctx, req)
	}

	key := redis.ComponentKey(p.Name(), req.Ticker(), req.AsOf.Format("2006-01-02"))

	var cached cachedReading
	hit, err := p.cache.Get(ctx, key, &cached)
	if err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Component cache read failed")
	}
	if hit {
		return readingFrom(cached.Score, cached.Multiplier, cached.Source, cached.Detail)
	}

	reading := p.inner.Evaluate(ctx, req)
	if !reading.IsAvailable() {
		return reading
	}

	entry := cachedReading{Source: reading.Source(), Detail: reading.Detail()}
	if s, ok := reading.Score(); ok {
		entry.Score = &s
	}
	if m, ok := reading.Multiplier(); ok {
		entry.Multiplier = &m
	}
	if err := p.cache.Set(ctx, key, entry, redis.TTLLong); err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Component cache write failed")
	}

	return reading
}
