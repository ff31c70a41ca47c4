package s1_context

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/conviction/internal/contracts"
)

// TimingInput carries what the entry-timing analysis needs for one signal
type TimingInput struct {
	Ticker             string
	TransactionDate    time.Time
	CurrentPrice       float64
	PriceAtTransaction float64
}

type timingBand struct {
	maxDays  int
	category contracts.TimingCategory
	score    float64
	desc     string
}

// ⭐ SSOT: 진입 타이밍 구간은 여기서만
var timingBands = []timingBand{
	{7, contracts.TimingEarly, 1.0, "Early entry window (insider just bought)"},
	{30, contracts.TimingOptimal, 0.9, "Optimal window (insider buying confirmed, momentum building)"},
	{90, contracts.TimingLate, 0.7, "Late entry (insider bought months ago, missing initial run)"},
}

var staleTiming = timingBand{-1, contracts.TimingStale, 0.4, "Too late (insider signal becoming irrelevant)"}

// unknownTimingScore is returned whenever the inputs can't be classified
const unknownTimingScore = 0.5

// TimingAnalyzer classifies how long ago a signal originated and the price drift since.
// Stateless; safe for concurrent use.
type TimingAnalyzer struct{}

// NewTimingAnalyzer creates a new entry-timing analyzer
func NewTimingAnalyzer() *TimingAnalyzer {
	return &TimingAnalyzer{}
}

// Analyze returns the timing context. Missing or non-finite price data yields UNKNOWN/0.5.
func (a *TimingAnalyzer) Analyze(in TimingInput, now time.Time) contracts.TimingContext {
	if in.TransactionDate.IsZero() || !isFinite(in.CurrentPrice) || !isFinite(in.PriceAtTransaction) || in.CurrentPrice <= 0 {
		return UnknownTiming()
	}

	days := contracts.DaysBetween(in.TransactionDate, now)
	if days < 0 {
		days = 0
	}

	band := staleTiming
	for _, b := range timingBands {
		if days <= b.maxDays {
			band = b
			break
		}
	}

	pct := PriceChangePct(in.CurrentPrice, in.PriceAtTransaction)

	sign := ""
	if pct >= 0 {
		sign = "+"
	}

	return contracts.TimingContext{
		Category:       band.category,
		DaysSince:      days,
		PriceChangePct: pct,
		Score:          band.score,
		Interpretation: fmt.Sprintf("%s - Stock %s%.1f%% since insider buy", band.desc, sign, pct),
	}
}

// UnknownTiming is the neutral timing context for unclassifiable inputs
func UnknownTiming() contracts.TimingContext {
	return contracts.TimingContext{
		Category:       contracts.TimingUnknown,
		Score:          unknownTimingScore,
		Interpretation: "Unable to calculate entry timing",
	}
}

// PriceChangePct is the percent move from the transaction price, 0 when that price is not positive
func PriceChangePct(current, atTransaction float64) float64 {
	if atTransaction <= 0 || !isFinite(atTransaction) || !isFinite(current) {
		return 0
	}
	return (current - atTransaction) / atTransaction * 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
