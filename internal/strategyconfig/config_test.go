package strategyconfig

import (
	"errors"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/wonny/conviction/internal/contracts"
)

func TestLoad(t *testing.T) {
	// 저장소에 포함된 정책 파일
	path := "../../config/policy/insider_conviction.yaml"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("policy file not found")
	}

	cfg, yamlData, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Meta.PolicyID != "insider_conviction" {
		t.Errorf("expected policy_id=insider_conviction, got %s", cfg.Meta.PolicyID)
	}
	if cfg.Weights[contracts.ComponentInsiderCluster] != 0.20 {
		t.Errorf("expected insider_cluster=0.20, got %v", cfg.Weights[contracts.ComponentInsiderCluster])
	}

	hash, err := Hash(cfg)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(hash))
	}

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	if hash != hash2 {
		t.Error("hash not deterministic")
	}

	t.Logf("policy hash: %s", hash)
	t.Logf("yaml size: %d bytes", len(yamlData))
}

func TestParse_UnknownField(t *testing.T) {
	data := []byte("meta:\n  policy_id: x\nweigths:\n  filing_speed: 1.0\n")
	if _, err := Parse(data); err == nil {
		t.Error("expected error for misspelled field")
	}
}

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	policy, err := ToPolicy(cfg)
	if err != nil {
		t.Fatalf("ToPolicy failed: %v", err)
	}
	if !strings.HasPrefix(policy.Version, "sha256:") {
		t.Errorf("expected hash version, got %s", policy.Version)
	}
	if len(policy.Weights) != len(contracts.DefaultWeightPolicy().Weights) {
		t.Errorf("expected default weights, got %v", policy.Weights)
	}
}

func TestParse_WeightsReplaceDefaults(t *testing.T) {
	data := []byte(`
meta:
  policy_id: two_factor
weights:
  insider_cluster: 0.6
  filing_speed: 0.4
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(cfg.Weights) != 2 {
		t.Errorf("expected 2 weights, got %d", len(cfg.Weights))
	}

	policy, err := ToPolicy(cfg)
	if err != nil {
		t.Fatalf("ToPolicy failed: %v", err)
	}
	// 버전 미지정 → 해시 버전
	if len(policy.Version) != len("sha256:")+12 {
		t.Errorf("expected hash version, got %s", policy.Version)
	}
}

func TestParse_WeightSum(t *testing.T) {
	drifting := []byte(`
meta:
  policy_id: drift
weights:
  insider_cluster: 0.6
  filing_speed: 0.51
`)
	_, err := Parse(drifting)
	var verr ValidationError
	if !errors.As(err, &verr) || verr.Field != "weights" {
		t.Fatalf("expected weights ValidationError, got %v", err)
	}

	normalized := append(drifting, []byte("normalize: true\n")...)
	cfg, err := Parse(normalized)
	if err != nil {
		t.Fatalf("Parse with normalize failed: %v", err)
	}

	sum := cfg.Weights[contracts.ComponentInsiderCluster] + cfg.Weights[contracts.ComponentFilingSpeed]
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("expected normalized sum 1.0, got %.6f", sum)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing policy id", func(c *Config) { c.Meta.PolicyID = "" }, "meta.policy_id"},
		{"unknown component", func(c *Config) { c.Weights["moon_phase"] = 0 }, "weights.moon_phase"},
		{"weight out of range", func(c *Config) { c.Weights[contracts.ComponentFilingSpeed] = 1.5 }, "weights.filing_speed"},
		{"neutral score", func(c *Config) { c.Neutral.Score = 2 }, "neutral.score"},
		{"neutral multiplier", func(c *Config) { c.Neutral.Multiplier = -1 }, "neutral.multiplier"},
		{"combination mode", func(c *Config) { c.Combination.Mode = "sum" }, "combination.mode"},
		{"window", func(c *Config) { c.Accumulation.WindowDays = 0 }, "accumulation.window_days"},
		{"decreasing steps", func(c *Config) { c.Accumulation.Steps = []float64{1.3, 1.2} }, "accumulation.steps"},
		{"timeout", func(c *Config) { c.Providers.TimeoutSeconds = 0 }, "providers.timeout_seconds"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("expected field %s, got %s", tc.field, verr.Field)
			}
		})
	}

	if err := Validate(Default()); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestWarn(t *testing.T) {
	cfg := Default()
	cfg.MinCoverage = 0.1

	warnings := Warn(cfg)
	// options_flow, earnings_sentiment, news_sentiment 원격 미설정 + 낮은 커버리지
	if len(warnings) != 4 {
		t.Errorf("expected 4 warnings, got %d", len(warnings))
	}
}

func TestPolicySnapshot(t *testing.T) {
	cfg := Default()
	yamlData := []byte("test yaml content")

	snapshot, err := NewPolicySnapshot(cfg, yamlData)
	if err != nil {
		t.Fatalf("NewPolicySnapshot failed: %v", err)
	}

	if snapshot.PolicyID != "insider_conviction" {
		t.Errorf("expected policy_id=insider_conviction, got %s", snapshot.PolicyID)
	}
	if snapshot.PolicyVersion != "default-v2" {
		t.Errorf("expected version=default-v2, got %s", snapshot.PolicyVersion)
	}
	if len(snapshot.PolicyHash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(snapshot.PolicyHash))
	}
}

func TestValidateWeightsSum(t *testing.T) {
	tests := []struct {
		weights map[string]float64
		valid   bool
	}{
		{map[string]float64{"a": 0.4, "b": 0.35, "c": 0.25}, true},
		{map[string]float64{"a": 0.5, "b": 0.5}, true},
		{map[string]float64{"a": 0.3, "b": 0.3, "c": 0.3}, false}, // 0.9
		{map[string]float64{}, false},
	}

	for _, tc := range tests {
		err := validateWeightsSum(tc.weights, 1.0, 1e-6)
		if tc.valid && err != nil {
			t.Errorf("validateWeightsSum(%v) expected valid, got error: %v", tc.weights, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("validateWeightsSum(%v) expected error, got nil", tc.weights)
		}
	}
}
