package strategyconfig

import (
	"time"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/internal/s1_context"
)

// Config는 컨빅션 스코어링 정책 파일 전체
type Config struct {
	Meta         Meta               `yaml:"meta" json:"meta"`
	Weights      map[string]float64 `yaml:"weights" json:"weights"`
	Normalize    bool               `yaml:"normalize" json:"normalize"` // 가중치 합이 1이 아니면 재조정
	Neutral      Neutral            `yaml:"neutral" json:"neutral"`
	MinCoverage  float64            `yaml:"min_coverage" json:"min_coverage"`
	Combination  Combination        `yaml:"combination" json:"combination"`
	Accumulation Accumulation       `yaml:"accumulation" json:"accumulation"`
	Staleness    Staleness          `yaml:"staleness" json:"staleness"`
	Providers    Providers          `yaml:"providers" json:"providers"`
}

// Meta 메타 정보
type Meta struct {
	PolicyID string `yaml:"policy_id" json:"policy_id"`
	Version  string `yaml:"version" json:"version"` // 비어 있으면 해시로 대체
}

// Neutral 실패한 컴포넌트의 대체값
type Neutral struct {
	Score      float64 `yaml:"score" json:"score"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// Combination S3: 승수 결합 방식
type Combination struct {
	Mode            string             `yaml:"mode" json:"mode"` // product | weighted_blend
	DefaultExponent float64            `yaml:"default_exponent" json:"default_exponent"`
	Exponents       map[string]float64 `yaml:"exponents" json:"exponents"`
}

// Accumulation S1: 다중 내부자 매집
type Accumulation struct {
	WindowDays int       `yaml:"window_days" json:"window_days"`
	Steps      []float64 `yaml:"steps" json:"steps"`
}

// Staleness S1: 신호 노후화 필터
type Staleness struct {
	MaxAgeDays int `yaml:"max_age_days" json:"max_age_days"` // 0 = 필터 없음
}

// Providers S2: 컴포넌트 제공자 설정
type Providers struct {
	TimeoutSeconds         int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	RemoteBaseURL          string `yaml:"remote_base_url" json:"remote_base_url"`
	CommitmentLookbackDays int    `yaml:"commitment_lookback_days" json:"commitment_lookback_days"`
}

// Default returns the built-in policy file equivalent of contracts.DefaultWeightPolicy
func Default() *Config {
	p := contracts.DefaultWeightPolicy()

	weights := make(map[string]float64, len(p.Weights))
	for k, v := range p.Weights {
		weights[k] = v
	}

	return &Config{
		Meta:        Meta{PolicyID: "insider_conviction", Version: p.Version},
		Weights:     weights,
		Neutral:     Neutral{Score: p.NeutralScore, Multiplier: p.NeutralMultiplier},
		MinCoverage: p.MinCoverage,
		Combination: Combination{
			Mode:            string(p.Combination.Mode),
			DefaultExponent: p.Combination.DefaultExponent,
		},
		Accumulation: Accumulation{
			WindowDays: 30,
			Steps:      s1_context.DefaultAccumulationPolicy().Steps,
		},
		Staleness: Staleness{MaxAgeDays: 90},
		Providers: Providers{TimeoutSeconds: 10, CommitmentLookbackDays: 90},
	}
}

// ProviderTimeout returns the per-provider deadline
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Providers.TimeoutSeconds) * time.Second
}

// AccumulationPolicy returns the accumulation step table
func (c *Config) AccumulationPolicy() s1_context.AccumulationPolicy {
	return s1_context.AccumulationPolicy{Steps: c.Accumulation.Steps}
}

// PolicySnapshot 정책 스냅샷 (재현성용)
type PolicySnapshot struct {
	PolicyHash    string    `json:"policy_hash"`
	PolicyYAML    string    `json:"policy_yaml,omitempty"`
	PolicyID      string    `json:"policy_id"`
	PolicyVersion string    `json:"policy_version"`
	CreatedAt     time.Time `json:"created_at"`
}
