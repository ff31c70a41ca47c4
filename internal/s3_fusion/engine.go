package s3_fusion

import (
	"math"
	"sort"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/internal/s4_category"
	"github.com/wonny/conviction/pkg/logger"
)

// Engine fuses component readings into one bounded conviction score.
// It holds no mutable state; the weight policy is passed into every call.
// ⭐ SSOT: 가중 합산 + 승수 결합 + 클램프는 여기서만
type Engine struct {
	logger *logger.Logger
}

// NewEngine creates a new fusion engine
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{logger: log}
}

// Fuse computes final = clamp(Σ score_i·weight_i × combine(multipliers), 0, 1).
//
// Substitution rule for readings that are unavailable, failed or malformed:
// the score becomes policy.NeutralScore when the component is weighted and the
// multiplier becomes policy.NeutralMultiplier. Components absent from readings
// contribute nothing but lower the coverage.
func (e *Engine) Fuse(ticker string, readings map[string]contracts.Reading, policy contracts.WeightPolicy) contracts.ConvictionResult {
	names := make([]string, 0, len(readings))
	for name := range readings {
		names = append(names, name)
	}
	sort.Strings(names)

	neutralScore := clamp01(policy.NeutralScore)
	neutralMult := sanitizeMultiplier(policy.NeutralMultiplier, 1.0)

	components := make([]contracts.SignalComponent, 0, len(names))
	factors := make([]Factor, 0, len(names))
	weighted := 0.0
	coveredWeight := 0.0

	for _, name := range names {
		r := readings[name]
		weight := clamp01(policy.Weight(name))

		c := contracts.SignalComponent{
			Name:       name,
			Weight:     weight,
			Multiplier: 1.0,
			Source:     r.Source(),
			Reason:     r.Reason(),
			Detail:     r.Detail(),
		}

		if !r.IsAvailable() {
			c.Substituted = true
			if weight > 0 {
				c.Score = neutralScore
			}
			c.Multiplier = neutralMult
			factors = append(factors, Factor{Name: name, Value: c.Multiplier})
		} else {
			e.applyScore(&c, r, neutralScore)
			if m, ok := r.Multiplier(); ok {
				c.Multiplier = e.applyMultiplier(&c, m, neutralMult)
				factors = append(factors, Factor{Name: name, Value: c.Multiplier})
			}
		}

		c.Contribution = c.Score * weight
		weighted += c.Contribution
		if !c.Substituted {
			coveredWeight += weight
		}

		components = append(components, c)
	}

	combiner := CombinerFor(policy.Combination)
	total := combiner.Combine(factors)

	final := clamp01(weighted * total)

	coverage := 0.0
	if policyWeight := totalPolicyWeight(policy); policyWeight > 0 {
		coverage = math.Min(coveredWeight/policyWeight, 1.0)
	}

	result := contracts.ConvictionResult{
		Ticker:           ticker,
		WeightedScore:    weighted,
		TotalMultiplier:  total,
		FinalScore:       final,
		Components:       components,
		SignalStrength:   s4_category.Categorize(final, 1.0).Category,
		PolicyVersion:    policy.Version,
		Coverage:         coverage,
		InsufficientData: coverage < policy.MinCoverage,
	}

	e.logger.WithFields(map[string]interface{}{
		"ticker":     ticker,
		"weighted":   weighted,
		"multiplier": total,
		"final":      final,
		"coverage":   coverage,
		"combiner":   string(combiner.Mode()),
	}).Debug("Fused conviction score")

	return result
}

// applyScore fills the normalized score of an available reading
func (e *Engine) applyScore(c *contracts.SignalComponent, r contracts.Reading, neutral float64) {
	score, ok := r.Score()
	switch {
	case !ok && c.Weight > 0:
		// 가중 컴포넌트인데 점수가 없음
		c.Score = neutral
		c.Substituted = true
		c.Source = contracts.SourceInvalid
		c.Reason = "weighted component returned no score"
	case !ok:
		c.Score = 0
	case math.IsNaN(score):
		c.Score = neutral
		c.Substituted = true
		c.Source = contracts.SourceInvalid
		c.Reason = "score is NaN"
	default:
		c.Score = clamp01(score)
	}
}

// applyMultiplier sanitizes a reported multiplier
func (e *Engine) applyMultiplier(c *contracts.SignalComponent, m, neutral float64) float64 {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		c.Substituted = true
		c.Source = contracts.SourceInvalid
		c.Reason = "multiplier is not finite"
		return neutral
	}
	if m < 0 {
		return 0
	}
	if m > MaxFactor {
		c.Reason = "multiplier capped"
		return MaxFactor
	}
	return m
}

func totalPolicyWeight(policy contracts.WeightPolicy) float64 {
	sum := 0.0
	for _, name := range policy.ComponentNames() {
		sum += clamp01(policy.Weights[name])
	}
	return sum
}

// clamp01 bounds v to [0,1]; NaN maps to 0
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sanitizeMultiplier(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fallback
	}
	return math.Min(v, MaxFactor)
}
