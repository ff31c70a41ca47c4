package s1_context

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/conviction/internal/contracts"
)

// AccumulationPolicy is the step table from distinct insider count to confidence multiplier.
// Steps[i] applies to i+1 insiders; counts beyond the table use the last step.
type AccumulationPolicy struct {
	Steps []float64 `json:"steps" yaml:"steps"`
}

// DefaultAccumulationPolicy returns 1 insider → 1.10, 2 → 1.25, 3+ → 1.40
func DefaultAccumulationPolicy() AccumulationPolicy {
	return AccumulationPolicy{Steps: []float64{1.10, 1.25, 1.40}}
}

// Validate checks the steps are >= 1.0 and non-decreasing
func (p AccumulationPolicy) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("accumulation steps must not be empty")
	}
	prev := 1.0
	for i, s := range p.Steps {
		if s < prev {
			return fmt.Errorf("accumulation step %d (%.2f) must be >= %.2f", i, s, prev)
		}
		prev = s
	}
	return nil
}

// Multiplier returns the confidence multiplier for a distinct insider count
func (p AccumulationPolicy) Multiplier(insiderCount int) float64 {
	if insiderCount <= 0 || len(p.Steps) == 0 {
		return 1.0
	}
	if insiderCount > len(p.Steps) {
		return p.Steps[len(p.Steps)-1]
	}
	return p.Steps[insiderCount-1]
}

// AccumulationDetector counts distinct insiders buying a ticker inside a window
// ⭐ SSOT: 다중 내부자 매집 탐지는 여기서만
type AccumulationDetector struct {
	policy AccumulationPolicy
}

// NewAccumulationDetector creates a detector; an invalid policy is replaced by the default
func NewAccumulationDetector(policy AccumulationPolicy) *AccumulationDetector {
	if policy.Validate() != nil {
		policy = DefaultAccumulationPolicy()
	}
	return &AccumulationDetector{policy: policy}
}

// Detect examines txns for ticker within [now-windowDays, now], both ends inclusive at day granularity.
// SALE transactions are not counted as accumulation.
func (d *AccumulationDetector) Detect(ticker string, txns []contracts.CanonicalTransaction, windowDays int, now time.Time) contracts.AccumulationContext {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if windowDays < 0 {
		windowDays = 0
	}

	names := make(map[string]struct{})
	matched := 0
	for _, t := range txns {
		if !strings.EqualFold(strings.TrimSpace(t.Ticker), ticker) {
			continue
		}
		if t.TransactionType == contracts.TransactionSale || t.TransactionDate.IsZero() {
			continue
		}
		age := contracts.DaysBetween(t.TransactionDate, now)
		if age < 0 || age > windowDays {
			continue
		}
		matched++
		names[strings.TrimSpace(t.InsiderName)] = struct{}{}
	}

	insiderNames := make([]string, 0, len(names))
	for n := range names {
		insiderNames = append(insiderNames, n)
	}
	sort.Strings(insiderNames)

	count := len(insiderNames)
	return contracts.AccumulationContext{
		Ticker:               ticker,
		WindowDays:           windowDays,
		InsiderCount:         count,
		TransactionCount:     matched,
		ConfidenceMultiplier: d.policy.Multiplier(count),
		InsiderNames:         insiderNames,
		Interpretation:       interpretAccumulation(count),
	}
}

func interpretAccumulation(count int) string {
	switch {
	case count >= 3:
		return fmt.Sprintf("ACCUMULATION: %d insiders buying (very strong)", count)
	case count == 2:
		return fmt.Sprintf("COORDINATED: %d insiders buying together", count)
	case count == 1:
		return "Single insider activity"
	default:
		return "No recent insider activity"
	}
}
