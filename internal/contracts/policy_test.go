package contracts

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultWeightPolicy_Valid(t *testing.T) {
	p := DefaultWeightPolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}

	if diff := math.Abs(p.WeightSum() - 1.0); diff > 1e-9 {
		t.Errorf("WeightSum() = %v, want 1.0", p.WeightSum())
	}
	if p.IsWeighted(ComponentStaleness) {
		t.Error("staleness should be multiplier-only")
	}
}

func TestWeightPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *WeightPolicy)
	}{
		{"missing version", func(p *WeightPolicy) { p.Version = "" }},
		{"empty weights", func(p *WeightPolicy) { p.Weights = nil }},
		{"weight above one", func(p *WeightPolicy) { p.Weights[ComponentFilingSpeed] = 1.5 }},
		{"negative weight", func(p *WeightPolicy) { p.Weights[ComponentFilingSpeed] = -0.15 }},
		{"drifting sum", func(p *WeightPolicy) { p.Weights[ComponentFilingSpeed] = 0.26 }},
		{"neutral score out of range", func(p *WeightPolicy) { p.NeutralScore = 1.2 }},
		{"negative neutral multiplier", func(p *WeightPolicy) { p.NeutralMultiplier = -1 }},
		{"coverage out of range", func(p *WeightPolicy) { p.MinCoverage = 2 }},
		{"unknown combiner", func(p *WeightPolicy) { p.Combination.Mode = "partial_sum" }},
		{"negative exponent", func(p *WeightPolicy) {
			p.Combination.Exponents = map[string]float64{ComponentStaleness: -0.3}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultWeightPolicy()
			tt.mutate(&p)

			err := p.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("error should wrap ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestWeightPolicy_Normalized(t *testing.T) {
	p := DefaultWeightPolicy()
	// 1.11 합계 (드리프트된 가중치)
	p.Weights[ComponentFilingSpeed] = 0.26

	n := p.Normalized()
	if diff := math.Abs(n.WeightSum() - 1.0); diff > 1e-9 {
		t.Errorf("normalized sum = %v, want 1.0", n.WeightSum())
	}
	if err := n.Validate(); err != nil {
		t.Errorf("normalized policy should validate: %v", err)
	}

	// 원본은 변경되지 않음
	if p.Weights[ComponentFilingSpeed] != 0.26 {
		t.Error("Normalized() mutated the receiver")
	}

	// 비율 유지
	ratio := n.Weights[ComponentFilingSpeed] / n.Weights[ComponentInsiderCluster]
	if diff := math.Abs(ratio - 0.26/0.20); diff > 1e-9 {
		t.Errorf("ratio = %v, want %v", ratio, 0.26/0.20)
	}
}

func TestWeightPolicy_NormalizedAllZero(t *testing.T) {
	p := WeightPolicy{Version: "zero", Weights: map[string]float64{"a": 0, "b": -1}}

	n := p.Normalized()
	if n.Weights["a"] != 0 || n.Weights["b"] != 0 {
		t.Errorf("expected zeroed weights, got %v", n.Weights)
	}
}

func TestCombinationRule_Exponent(t *testing.T) {
	r := CombinationRule{Mode: CombineWeightedBlend, Exponents: map[string]float64{ComponentStaleness: 1.0}}

	if got := r.Exponent(ComponentStaleness); got != 1.0 {
		t.Errorf("Exponent(staleness) = %v, want 1.0", got)
	}
	if got := r.Exponent(ComponentRedFlags); got != DefaultBlendExponent {
		t.Errorf("Exponent(red_flags) = %v, want %v", got, DefaultBlendExponent)
	}
}
