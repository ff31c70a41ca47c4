package s3_fusion

import (
	"math"

	"github.com/wonny/conviction/internal/contracts"
)

// MaxFactor caps a single multiplier. The largest built-in boost is 1.5.
const MaxFactor = 10.0

// MaxTotalMultiplier caps the combined multiplier so it always stays finite
const MaxTotalMultiplier = 1000.0

// Factor is one multiplicative adjustment entering the combiner
type Factor struct {
	Name  string
	Value float64
}

// Combiner merges multiplicative factors into one total multiplier.
// Implementations are monotonically non-decreasing in every factor.
type Combiner interface {
	Mode() contracts.CombinationMode
	Combine(factors []Factor) float64
}

// Product multiplies the factors as-is
type Product struct{}

// Mode returns the combination mode
func (Product) Mode() contracts.CombinationMode { return contracts.CombineProduct }

// Combine returns Π m_i, 1.0 for no factors. A zero factor vetoes to 0.
func (Product) Combine(factors []Factor) float64 {
	total := 1.0
	for _, f := range factors {
		v := boundFactor(f.Value)
		if v == 0 {
			return 0
		}
		total *= v
	}
	return math.Min(total, MaxTotalMultiplier)
}

// WeightedBlend dampens each factor by its exponent: Π m_i^e_i
type WeightedBlend struct {
	Rule contracts.CombinationRule
}

// Mode returns the combination mode
func (WeightedBlend) Mode() contracts.CombinationMode { return contracts.CombineWeightedBlend }

// Combine returns Π m_i^e_i, 1.0 for no factors. A zero factor with a
// positive exponent vetoes to 0; exponent 0 ignores the factor.
func (b WeightedBlend) Combine(factors []Factor) float64 {
	total := 1.0
	for _, f := range factors {
		e := b.Rule.Exponent(f.Name)
		if e == 0 {
			continue
		}
		v := boundFactor(f.Value)
		if v == 0 {
			return 0
		}
		total *= math.Pow(v, e)
	}
	return math.Min(total, MaxTotalMultiplier)
}

// boundFactor maps a factor into [0, MaxFactor]; NaN counts as neutral
func boundFactor(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 1.0
	case v < 0:
		return 0
	case v > MaxFactor:
		return MaxFactor
	}
	return v
}

// CombinerFor builds the combiner configured by the rule, Product when unknown
func CombinerFor(rule contracts.CombinationRule) Combiner {
	if rule.Mode == contracts.CombineWeightedBlend {
		return WeightedBlend{Rule: rule}
	}
	return Product{}
}
