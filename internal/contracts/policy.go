package contracts

import (
	"fmt"
	"math"
	"sort"
)

// CombinationMode selects how multiplicative factors are merged
type CombinationMode string

const (
	// CombineProduct multiplies all factors: Π m_i
	CombineProduct CombinationMode = "product"
	// CombineWeightedBlend dampens each factor by an exponent: Π m_i^e_i
	CombineWeightedBlend CombinationMode = "weighted_blend"
)

// DefaultBlendExponent is the per-factor exponent used by the weighted blend
const DefaultBlendExponent = 0.3

// weightSumTolerance bounds how far the weights may drift from 1.0
const weightSumTolerance = 1e-6

// CombinationRule configures the multiplier combiner
type CombinationRule struct {
	Mode            CombinationMode    `json:"mode" yaml:"mode"`
	DefaultExponent float64            `json:"default_exponent,omitempty" yaml:"default_exponent"`
	Exponents       map[string]float64 `json:"exponents,omitempty" yaml:"exponents"`
}

// Exponent returns the blend exponent for one factor
func (r CombinationRule) Exponent(name string) float64 {
	if e, ok := r.Exponents[name]; ok {
		return e
	}
	if r.DefaultExponent > 0 {
		return r.DefaultExponent
	}
	return DefaultBlendExponent
}

// WeightPolicy is the versioned weighting table handed to every fusion call.
// A policy is immutable once built; suppliers (config file, optimizer) produce new values.
// ⭐ SSOT: S3 가중치 정책
type WeightPolicy struct {
	Version           string             `json:"version"`
	Weights           map[string]float64 `json:"weights"`
	NeutralScore      float64            `json:"neutral_score"`
	NeutralMultiplier float64            `json:"neutral_multiplier"`
	MinCoverage       float64            `json:"min_coverage"`
	Combination       CombinationRule    `json:"combination"`
}

// DefaultWeightPolicy returns the built-in weighting table
func DefaultWeightPolicy() WeightPolicy {
	return WeightPolicy{
		Version: "default-v2",
		Weights: map[string]float64{
			ComponentInsiderCluster:    0.20,
			ComponentFilingSpeed:       0.15,
			ComponentShortInterest:     0.12,
			ComponentInsiderCommitment: 0.12,
			ComponentEntryTiming:       0.16,
			ComponentOptionsFlow:       0.10,
			ComponentEarningsSentiment: 0.08,
			ComponentNewsSentiment:     0.07,
		},
		NeutralScore:      0.5,
		NeutralMultiplier: 1.0,
		MinCoverage:       0.5,
		Combination: CombinationRule{
			Mode:            CombineProduct,
			DefaultExponent: DefaultBlendExponent,
		},
	}
}

// Weight returns the weight of a component, 0 when the policy doesn't weight it
func (p WeightPolicy) Weight(name string) float64 {
	return p.Weights[name]
}

// IsWeighted reports whether the component contributes to the weighted sum
func (p WeightPolicy) IsWeighted(name string) bool {
	return p.Weights[name] > 0
}

// ComponentNames returns the weighted component names in sorted order
func (p WeightPolicy) ComponentNames() []string {
	names := make([]string, 0, len(p.Weights))
	for name := range p.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WeightSum adds the weights in sorted name order
func (p WeightPolicy) WeightSum() float64 {
	sum := 0.0
	for _, name := range p.ComponentNames() {
		sum += p.Weights[name]
	}
	return sum
}

// Validate checks that the policy is usable as-is.
// Weights must each lie in [0,1] and sum to 1.0.
func (p WeightPolicy) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("%w: version required", ErrInvalidPolicy)
	}
	if len(p.Weights) == 0 {
		return fmt.Errorf("%w: weights must not be empty", ErrInvalidPolicy)
	}
	for _, name := range p.ComponentNames() {
		w := p.Weights[name]
		if math.IsNaN(w) || w < 0 || w > 1 {
			return fmt.Errorf("%w: weight %s=%v must be in [0, 1]", ErrInvalidPolicy, name, w)
		}
	}
	if sum := p.WeightSum(); math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("%w: weights must sum to 1.0, got %.4f", ErrInvalidPolicy, sum)
	}
	if p.NeutralScore < 0 || p.NeutralScore > 1 {
		return fmt.Errorf("%w: neutral_score must be in [0, 1]", ErrInvalidPolicy)
	}
	if p.NeutralMultiplier < 0 || math.IsInf(p.NeutralMultiplier, 0) || math.IsNaN(p.NeutralMultiplier) {
		return fmt.Errorf("%w: neutral_multiplier must be a finite value >= 0", ErrInvalidPolicy)
	}
	if p.MinCoverage < 0 || p.MinCoverage > 1 {
		return fmt.Errorf("%w: min_coverage must be in [0, 1]", ErrInvalidPolicy)
	}

	switch p.Combination.Mode {
	case CombineProduct, CombineWeightedBlend:
	default:
		return fmt.Errorf("%w: unknown combination mode %q", ErrInvalidPolicy, p.Combination.Mode)
	}
	if p.Combination.DefaultExponent < 0 {
		return fmt.Errorf("%w: default_exponent must be >= 0", ErrInvalidPolicy)
	}
	for name, e := range p.Combination.Exponents {
		if e < 0 || math.IsNaN(e) {
			return fmt.Errorf("%w: exponent %s must be >= 0", ErrInvalidPolicy, name)
		}
	}

	return nil
}

// Normalized returns a copy whose weights are rescaled to sum to 1.0.
// Negative and NaN weights are dropped to 0 first. A policy with no positive weight is returned unchanged.
func (p WeightPolicy) Normalized() WeightPolicy {
	out := p
	out.Weights = make(map[string]float64, len(p.Weights))

	sum := 0.0
	for _, name := range p.ComponentNames() {
		w := p.Weights[name]
		if math.IsNaN(w) || w < 0 {
			w = 0
		}
		out.Weights[name] = w
		sum += w
	}
	if sum <= 0 || math.IsInf(sum, 0) {
		return out
	}

	for name, w := range out.Weights {
		out.Weights[name] = w / sum
	}
	return out
}
