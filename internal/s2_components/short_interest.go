package s2_components

import (
	"context"
	"errors"

	"github.com/wonny/conviction/internal/contracts"
)

// shortInterestScoreBands maps short interest (% of float) to a score
var shortInterestScoreBands = []struct {
	minPct float64
	score  float64
}{
	{20, 1.0},
	{10, 0.7},
	{5, 0.4},
}

const lowShortInterestScore = 0.2

// ShortInterestProvider scores short interest and squeeze potential
type ShortInterestProvider struct {
	market contracts.MarketData
}

// NewShortInterestProvider creates a new short interest provider
func NewShortInterestProvider(market contracts.MarketData) *ShortInterestProvider {
	return &ShortInterestProvider{market: market}
}

// Name returns the component name
func (p *ShortInterestProvider) Name() string { return contracts.ComponentShortInterest }

// Evaluate fetches short interest and returns the band score with the squeeze multiplier
func (p *ShortInterestProvider) Evaluate(ctx context.Context, req contracts.ComponentRequest) contracts.Reading {
	if p.market == nil {
		return contracts.Unavailable("market data not configured")
	}

	si, err := p.market.ShortInterest(ctx, req.Ticker())
	if errors.Is(err, contracts.ErrUnavailable) {
		return contracts.Unavailable("no short interest data")
	}
	if err != nil {
		return contracts.Failed(err)
	}
	if si == nil {
		return contracts.Unavailable("no short interest data")
	}

	return contracts.ScoreAndMultiplierReading(
		ShortInterestScore(si.PercentFloat),
		SqueezeMultiplier(si.PercentFloat, si.DaysToCover),
		"market_data",
		contracts.Detail{
			"short_percent_float": si.PercentFloat,
			"days_to_cover":       si.DaysToCover,
		},
	)
}

// ShortInterestScore maps short interest % of float onto a score
func ShortInterestScore(pct float64) float64 {
	for _, b := range shortInterestScoreBands {
		if pct >= b.minPct {
			return b.score
		}
	}
	return lowShortInterestScore
}

// SqueezeMultiplier rates squeeze potential from short interest % and days to cover
func SqueezeMultiplier(pct, daysToCover float64) float64 {
	switch {
	case pct > 20:
		switch {
		case daysToCover > 5:
			return 1.5
		case daysToCover > 3:
			return 1.3
		default:
			return 1.2
		}
	case pct > 15:
		if daysToCover > 5 {
			return 1.3
		}
		return 1.1
	case pct > 10:
		if daysToCover > 5 {
			return 1.2
		}
		return 1.05
	default:
		return 1.0
	}
}
