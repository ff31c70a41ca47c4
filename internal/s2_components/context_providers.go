package s2_components

import (
	"context"
	"math"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/internal/s1_context"
)

// clusterFullScoreExcess is the multiplier excess over 1.0 that maps to a full score
const clusterFullScoreExcess = 0.5

// InsiderClusterProvider scores multi-insider buying from the request's accumulation context
type InsiderClusterProvider struct{}

// NewInsiderClusterProvider creates a new insider cluster provider
func NewInsiderClusterProvider() *InsiderClusterProvider {
	return &InsiderClusterProvider{}
}

// Name returns the component name
func (p *InsiderClusterProvider) Name() string { return contracts.ComponentInsiderCluster }

// Evaluate maps the accumulation multiplier onto [0,1]: 1.10→0.2, 1.25→0.5, 1.40→0.8
func (p *InsiderClusterProvider) Evaluate(_ context.Context, req contracts.ComponentRequest) contracts.Reading {
	acc := req.Accumulation
	if acc.InsiderCount == 0 {
		return contracts.Unavailable("no insider purchases in window")
	}

	score := math.Min((acc.ConfidenceMultiplier-1.0)/clusterFullScoreExcess, 1.0)
	return contracts.ScoreReading(math.Max(score, 0), "accumulation", contracts.Detail{
		"insider_count":         acc.InsiderCount,
		"transaction_count":     acc.TransactionCount,
		"confidence_multiplier": acc.ConfidenceMultiplier,
		"window_days":           acc.WindowDays,
		"insiders":              acc.InsiderNames,
	})
}

// EntryTimingProvider turns the timing context into a weighted score
type EntryTimingProvider struct{}

// NewEntryTimingProvider creates a new entry timing provider
func NewEntryTimingProvider() *EntryTimingProvider {
	return &EntryTimingProvider{}
}

// Name returns the component name
func (p *EntryTimingProvider) Name() string { return contracts.ComponentEntryTiming }

// Evaluate returns the timing score, Unavailable when price data was missing
func (p *EntryTimingProvider) Evaluate(_ context.Context, req contracts.ComponentRequest) contracts.Reading {
	t := req.Timing
	if t.Category == contracts.TimingUnknown || t.Category == "" {
		return contracts.Unavailable("price data unavailable")
	}

	return contracts.ScoreReading(t.Score, "timing", contracts.Detail{
		"timing_category":  string(t.Category),
		"days_since":       t.DaysSince,
		"price_change_pct": t.PriceChangePct,
		"interpretation":   t.Interpretation,
	})
}

// StalenessProvider applies the time-decay penalty as a multiplier
type StalenessProvider struct{}

// NewStalenessProvider creates a new staleness provider
func NewStalenessProvider() *StalenessProvider {
	return &StalenessProvider{}
}

// Name returns the component name
func (p *StalenessProvider) Name() string { return contracts.ComponentStaleness }

// Evaluate returns the penalty multiplier for the transaction's age
func (p *StalenessProvider) Evaluate(_ context.Context, req contracts.ComponentRequest) contracts.Reading {
	if req.Transaction.TransactionDate.IsZero() {
		return contracts.Unavailable("transaction date missing")
	}

	s := s1_context.CalculateStaleness(req.Transaction.TransactionDate, req.AsOf)
	return contracts.MultiplierReading(s.PenaltyMultiplier, "decay", contracts.Detail{
		"days_old": s.DaysOld,
		"category": string(s.Category),
		"summary":  s1_context.DescribeStaleness(s),
	})
}
