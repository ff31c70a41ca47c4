package s2_components

import (
	"context"
	"math"

	"github.com/wonny/conviction/internal/contracts"
)

// filingSpeedBands maps filing delay (days after trade) to a multiplier.
// Anything slower than the last band gets slowFilingMultiplier.
var filingSpeedBands = []struct {
	maxDays    int
	multiplier float64
	label      string
}{
	{0, 1.4, "same day"},
	{1, 1.2, "next day"},
	{2, 1.0, "within 2 days"},
}

const (
	slowFilingMultiplier = 0.7
	maxFilingMultiplier  = 1.4
)

// FilingSpeedProvider rewards insiders that file quickly after trading
type FilingSpeedProvider struct{}

// NewFilingSpeedProvider creates a new filing speed provider
func NewFilingSpeedProvider() *FilingSpeedProvider {
	return &FilingSpeedProvider{}
}

// Name returns the component name
func (p *FilingSpeedProvider) Name() string { return contracts.ComponentFilingSpeed }

// Evaluate returns score = min(multiplier/1.4, 1) together with the multiplier
func (p *FilingSpeedProvider) Evaluate(_ context.Context, req contracts.ComponentRequest) contracts.Reading {
	delay := req.Transaction.FilingDelayDays()
	if delay < 0 {
		return contracts.Unavailable("filing date unknown or precedes trade")
	}

	mult, label := FilingSpeedMultiplier(delay)
	score := math.Min(mult/maxFilingMultiplier, 1.0)

	return contracts.ScoreAndMultiplierReading(score, mult, "filing", contracts.Detail{
		"delay_days": delay,
		"speed":      label,
	})
}

// FilingSpeedMultiplier returns the multiplier and label for a filing delay
func FilingSpeedMultiplier(delayDays int) (float64, string) {
	for _, b := range filingSpeedBands {
		if delayDays <= b.maxDays {
			return b.multiplier, b.label
		}
	}
	return slowFilingMultiplier, "slow"
}
