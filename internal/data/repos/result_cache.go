package repos

import (
	"context"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/logger"
	"github.com/wonny/conviction/pkg/redis"
)

// CachedResultRepository keeps the latest result per ticker in Redis
// in front of the durable result store.
type CachedResultRepository struct {
	inner  contracts.ResultRepository
	cache  *redis.Cache
	logger *logger.Logger
}

// NewCachedResultRepository wraps inner. A disabled cache passes through.
func NewCachedResultRepository(inner contracts.ResultRepository, cache *redis.Cache, log *logger.Logger) *CachedResultRepository {
	return &CachedResultRepository{inner: inner, cache: cache, logger: log}
}

// SaveBatch persists first, then refreshes the cached latest results
func (r *CachedResultRepository) SaveBatch(ctx context.Context, runID string, results []*contracts.ConvictionResult) error {
	if err := r.inner.SaveBatch(ctx, runID, results); err != nil {
		return err
	}
	if !r.cache.Enabled() {
		return nil
	}

	for _, res := range latestPerTicker(results) {
		if err := r.cache.Set(ctx, redis.ResultKey(res.Ticker), res, redis.TTLDaily); err != nil {
			r.logger.WithError(err).WithField("ticker", res.Ticker).Warn("Failed to cache result")
		}
	}
	return nil
}

// GetLatestByTicker reads through the cache
func (r *CachedResultRepository) GetLatestByTicker(ctx context.Context, ticker string) (*contracts.ConvictionResult, error) {
	var res contracts.ConvictionResult
	err := r.cache.GetOrSet(ctx, redis.ResultKey(ticker), &res, redis.TTLDaily, func() (interface{}, error) {
		return r.inner.GetLatestByTicker(ctx, ticker)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// latestPerTicker keeps the most recently scored result for each ticker
func latestPerTicker(results []*contracts.ConvictionResult) map[string]*contracts.ConvictionResult {
	out := make(map[string]*contracts.ConvictionResult, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		key := redis.ResultKey(res.Ticker)
		if prev, ok := out[key]; ok && !res.ScoredAt.After(prev.ScoredAt) {
			continue
		}
		out[key] = res
	}
	return out
}
