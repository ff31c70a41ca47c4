package strategyconfig

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/wonny/conviction/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// knownComponents are the components the scorer can supply
var knownComponents = map[string]bool{
	contracts.ComponentInsiderCluster:    true,
	contracts.ComponentFilingSpeed:       true,
	contracts.ComponentShortInterest:     true,
	contracts.ComponentInsiderCommitment: true,
	contracts.ComponentEntryTiming:       true,
	contracts.ComponentOptionsFlow:       true,
	contracts.ComponentEarningsSentiment: true,
	contracts.ComponentNewsSentiment:     true,
	contracts.ComponentRedFlags:          true,
	contracts.ComponentStaleness:         true,
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.PolicyID == "" {
		return ValidationError{"meta.policy_id", "required"}
	}

	// === Weights ===
	names := sortedNames(cfg.Weights)
	for _, name := range names {
		if !knownComponents[name] {
			return ValidationError{fmt.Sprintf("weights.%s", name), "unknown component"}
		}
		if err := validatePctRange(cfg.Weights[name], fmt.Sprintf("weights.%s", name)); err != nil {
			return err
		}
	}
	if err := validateWeightsSum(cfg.Weights, 1.0, 1e-6); err != nil {
		return ValidationError{"weights", err.Error()}
	}

	// === Neutral ===
	if err := validatePctRange(cfg.Neutral.Score, "neutral.score"); err != nil {
		return err
	}
	if cfg.Neutral.Multiplier < 0 || math.IsNaN(cfg.Neutral.Multiplier) || math.IsInf(cfg.Neutral.Multiplier, 0) {
		return ValidationError{"neutral.multiplier", "must be a finite value >= 0"}
	}
	if err := validatePctRange(cfg.MinCoverage, "min_coverage"); err != nil {
		return err
	}

	// === Combination ===
	switch contracts.CombinationMode(cfg.Combination.Mode) {
	case contracts.CombineProduct, contracts.CombineWeightedBlend:
	default:
		return ValidationError{"combination.mode", "must be product or weighted_blend"}
	}
	if cfg.Combination.DefaultExponent < 0 {
		return ValidationError{"combination.default_exponent", "must be >= 0"}
	}
	for _, name := range sortedNames(cfg.Combination.Exponents) {
		if cfg.Combination.Exponents[name] < 0 {
			return ValidationError{fmt.Sprintf("combination.exponents.%s", name), "must be >= 0"}
		}
	}

	// === Accumulation ===
	if cfg.Accumulation.WindowDays <= 0 {
		return ValidationError{"accumulation.window_days", "must be > 0"}
	}
	if err := cfg.AccumulationPolicy().Validate(); err != nil {
		return ValidationError{"accumulation.steps", err.Error()}
	}

	// === Staleness / Providers ===
	if cfg.Staleness.MaxAgeDays < 0 {
		return ValidationError{"staleness.max_age_days", "must be >= 0"}
	}
	if cfg.Providers.TimeoutSeconds <= 0 {
		return ValidationError{"providers.timeout_seconds", "must be > 0"}
	}
	if cfg.Providers.CommitmentLookbackDays < 0 {
		return ValidationError{"providers.commitment_lookback_days", "must be >= 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 승수 전용 컴포넌트에 가중치
	for _, name := range []string{contracts.ComponentRedFlags, contracts.ComponentStaleness} {
		if cfg.Weights[name] > 0 {
			warnings = append(warnings, Warning{
				Code:    "WEIGHTED_MULTIPLIER",
				Message: fmt.Sprintf("%s only reports a multiplier; its weight will always be neutral-filled", name),
			})
		}
	}

	// 원격 컴포넌트 미설정
	if cfg.Providers.RemoteBaseURL == "" {
		for _, name := range []string{contracts.ComponentOptionsFlow, contracts.ComponentEarningsSentiment, contracts.ComponentNewsSentiment} {
			if cfg.Weights[name] > 0 {
				warnings = append(warnings, Warning{
					Code:    "REMOTE_UNCONFIGURED",
					Message: fmt.Sprintf("%s is weighted but providers.remote_base_url is empty", name),
				})
			}
		}
	}

	if cfg.MinCoverage < 0.3 {
		warnings = append(warnings, Warning{
			Code:    "LOW_COVERAGE",
			Message: "min_coverage < 0.3: scores may rest mostly on neutral substitutes",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateWeightsSum(weights map[string]float64, target float64, epsilon float64) error {
	if len(weights) == 0 {
		return errors.New("must not be empty")
	}
	sum := 0.0
	for _, name := range sortedNames(weights) {
		sum += weights[name]
	}
	if math.Abs(sum-target) > epsilon {
		return fmt.Errorf("must sum to %.2f, got %.4f", target, sum)
	}
	return nil
}

// validatePctRange는 값이 0~1 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if math.IsNaN(pct) || pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
