package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/conviction/internal/contracts"
)

// Load reads a policy YAML file and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes policy YAML on top of Default(); omitted sections keep their defaults.
// A weights section replaces the default weights entirely, and the version is only taken from the file.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Weights = nil
	cfg.Meta.Version = ""

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode policy: %w", err)
	}

	if cfg.Weights == nil {
		cfg.Weights = Default().Weights
	}
	if cfg.Normalize {
		cfg.Weights = contracts.WeightPolicy{Weights: cfg.Weights}.Normalized().Weights
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: encoding/json은 map 키를 정렬하므로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// ToPolicy converts the file into the weight policy handed to the fusion engine.
// Without an explicit version the policy is versioned by its content hash.
func ToPolicy(cfg *Config) (contracts.WeightPolicy, error) {
	version := cfg.Meta.Version
	if version == "" {
		hash, err := Hash(cfg)
		if err != nil {
			return contracts.WeightPolicy{}, err
		}
		version = "sha256:" + hash[:12]
	}

	weights := make(map[string]float64, len(cfg.Weights))
	for k, v := range cfg.Weights {
		weights[k] = v
	}
	exponents := make(map[string]float64, len(cfg.Combination.Exponents))
	for k, v := range cfg.Combination.Exponents {
		exponents[k] = v
	}

	policy := contracts.WeightPolicy{
		Version:           version,
		Weights:           weights,
		NeutralScore:      cfg.Neutral.Score,
		NeutralMultiplier: cfg.Neutral.Multiplier,
		MinCoverage:       cfg.MinCoverage,
		Combination: contracts.CombinationRule{
			Mode:            contracts.CombinationMode(cfg.Combination.Mode),
			DefaultExponent: cfg.Combination.DefaultExponent,
			Exponents:       exponents,
		},
	}

	if err := policy.Validate(); err != nil {
		return contracts.WeightPolicy{}, err
	}
	return policy, nil
}

// NewPolicySnapshot creates a snapshot for audit
func NewPolicySnapshot(cfg *Config, yamlData []byte) (*PolicySnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}
	policy, err := ToPolicy(cfg)
	if err != nil {
		return nil, err
	}

	return &PolicySnapshot{
		PolicyHash:    hash,
		PolicyYAML:    string(yamlData),
		PolicyID:      cfg.Meta.PolicyID,
		PolicyVersion: policy.Version,
		CreatedAt:     time.Now(),
	}, nil
}
