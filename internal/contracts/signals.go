package contracts

import (
	"context"
	"time"
)

// Component names known to the default weight policy
const (
	ComponentInsiderCluster    = "insider_cluster"
	ComponentFilingSpeed       = "filing_speed"
	ComponentShortInterest     = "short_interest"
	ComponentInsiderCommitment = "insider_commitment"
	ComponentEntryTiming       = "entry_timing"
	ComponentOptionsFlow       = "options_flow"
	ComponentEarningsSentiment = "earnings_sentiment"
	ComponentNewsSentiment     = "news_sentiment"
	ComponentRedFlags          = "red_flags"
	ComponentStaleness         = "staleness"
)

// Reading sources recorded in the breakdown when the engine substitutes a value
const (
	SourceUnavailable = "unavailable"
	SourceError       = "error"
	SourceInvalid     = "invalid"
)

// ReadingStatus tags the Reading variant
type ReadingStatus string

const (
	ReadingAvailable   ReadingStatus = "available"
	ReadingUnavailable ReadingStatus = "unavailable"
)

// Detail is the opaque, provider-specific payload carried for explainability
type Detail map[string]interface{}

// Reading is what a component provider hands to the fusion engine:
// either Unavailable, or a value carrying a score, a multiplier, or both.
// Providers never pick their own fallback; the engine owns substitution.
// ⭐ SSOT: S2 → S3 컴포넌트 결과
type Reading struct {
	status        ReadingStatus
	score         float64
	hasScore      bool
	multiplier    float64
	hasMultiplier bool
	source        string
	reason        string
	detail        Detail
}

// ScoreReading is an available reading with a normalized [0,1] score
func ScoreReading(score float64, source string, detail Detail) Reading {
	return Reading{status: ReadingAvailable, score: score, hasScore: true, source: source, detail: detail}
}

// MultiplierReading is an available reading with only a multiplicative factor
func MultiplierReading(multiplier float64, source string, detail Detail) Reading {
	return Reading{status: ReadingAvailable, multiplier: multiplier, hasMultiplier: true, source: source, detail: detail}
}

// ScoreAndMultiplierReading carries both a score and a multiplier
func ScoreAndMultiplierReading(score, multiplier float64, source string, detail Detail) Reading {
	return Reading{
		status:        ReadingAvailable,
		score:         score,
		hasScore:      true,
		multiplier:    multiplier,
		hasMultiplier: true,
		source:        source,
		detail:        detail,
	}
}

// Unavailable marks a provider that returned nothing usable
func Unavailable(reason string) Reading {
	return Reading{status: ReadingUnavailable, source: SourceUnavailable, reason: reason}
}

// Failed marks a provider that errored, timed out or panicked
func Failed(err error) Reading {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return Reading{status: ReadingUnavailable, source: SourceError, reason: reason}
}

// Status returns the variant tag
func (r Reading) Status() ReadingStatus {
	if r.status == "" {
		return ReadingUnavailable
	}
	return r.status
}

// IsAvailable reports whether the provider produced a value
func (r Reading) IsAvailable() bool {
	return r.Status() == ReadingAvailable
}

// Score returns the normalized score if the reading carries one
func (r Reading) Score() (float64, bool) {
	return r.score, r.IsAvailable() && r.hasScore
}

// Multiplier returns the multiplicative factor if the reading carries one
func (r Reading) Multiplier() (float64, bool) {
	return r.multiplier, r.IsAvailable() && r.hasMultiplier
}

// Source is the provider source tag, or "unavailable"/"error" for the empty variant
func (r Reading) Source() string {
	if r.source == "" {
		return SourceUnavailable
	}
	return r.source
}

// Reason explains why a reading is unavailable
func (r Reading) Reason() string { return r.reason }

// Detail returns the provider payload
func (r Reading) Detail() Detail { return r.detail }

// SignalComponent is one row of the fusion breakdown
type SignalComponent struct {
	Name         string  `json:"name"`
	Score        float64 `json:"normalized_score"`
	Weight       float64 `json:"weight"`
	Multiplier   float64 `json:"multiplier"`
	Contribution float64 `json:"contribution"`
	Source       string  `json:"source"`
	Substituted  bool    `json:"substituted"`
	Reason       string  `json:"reason,omitempty"`
	Detail       Detail  `json:"detail,omitempty"`
}

// ComponentRequest is the context handed to every provider for one canonical transaction
type ComponentRequest struct {
	Transaction  CanonicalTransaction
	History      []CanonicalTransaction // all known transactions for the ticker
	Accumulation AccumulationContext
	Timing       TimingContext
	AsOf         time.Time
}

// Ticker is a shortcut for the request's ticker
func (r ComponentRequest) Ticker() string {
	return r.Transaction.Key().Ticker
}

// ComponentProvider supplies one component reading.
// Implementations must not panic; any failure is reported as an Unavailable reading.
// ⭐ SSOT: S2 컴포넌트 제공자 인터페이스
type ComponentProvider interface {
	Name() string
	Evaluate(ctx context.Context, req ComponentRequest) Reading
}
