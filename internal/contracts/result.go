package contracts

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ConvictionResult is the scored outcome for one canonical transaction
// ⭐ SSOT: S3/S4 → 소비자 (시그널 생성, 리포팅)
type ConvictionResult struct {
	Ticker           string            `json:"ticker"`
	WeightedScore    float64           `json:"weighted_score"`
	TotalMultiplier  float64           `json:"total_multiplier"`
	FinalScore       float64           `json:"final_score"`
	Components       []SignalComponent `json:"components"` // sorted by name
	SignalStrength   SignalCategory    `json:"signal_strength"`
	PolicyVersion    string            `json:"policy_version"`
	Coverage         float64           `json:"coverage"`
	InsufficientData bool              `json:"insufficient_data"`

	// Filled by the scorer, zero when the engine is used on its own
	Decision     *CategoryDecision     `json:"decision,omitempty"`
	Accumulation *AccumulationContext  `json:"accumulation,omitempty"`
	Timing       *TimingContext        `json:"timing,omitempty"`
	Staleness    *StalenessContext     `json:"staleness,omitempty"`
	Transaction  *CanonicalTransaction `json:"transaction,omitempty"`
	ScoredAt     time.Time             `json:"scored_at"`
}

// Component finds a breakdown row by name
func (r *ConvictionResult) Component(name string) (SignalComponent, bool) {
	i := sort.Search(len(r.Components), func(i int) bool {
		return r.Components[i].Name >= name
	})
	if i < len(r.Components) && r.Components[i].Name == name {
		return r.Components[i], true
	}
	return SignalComponent{}, false
}

// SubstitutedComponents lists the components the engine replaced with neutral values
func (r *ConvictionResult) SubstitutedComponents() []string {
	var names []string
	for _, c := range r.Components {
		if c.Substituted {
			names = append(names, c.Name)
		}
	}
	return names
}

// Explain renders a short human readable "why" from the breakdown
func (r *ConvictionResult) Explain() string {
	var b strings.Builder

	label := r.SignalStrength
	if r.Decision != nil {
		label = r.Decision.Category
	}
	fmt.Fprintf(&b, "%s %s: final=%.3f (weighted=%.3f x multiplier=%.3f)\n",
		r.Ticker, label, r.FinalScore, r.WeightedScore, r.TotalMultiplier)

	// 기여도 큰 순서로
	rows := make([]SignalComponent, len(r.Components))
	copy(rows, r.Components)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Contribution > rows[j].Contribution
	})

	for _, c := range rows {
		switch {
		case c.Substituted:
			fmt.Fprintf(&b, "  - %s: neutral (%s", c.Name, c.Source)
			if c.Reason != "" {
				fmt.Fprintf(&b, ": %s", c.Reason)
			}
			b.WriteString(")\n")
		case c.Weight > 0:
			fmt.Fprintf(&b, "  - %s: score=%.2f weight=%.2f contribution=%.3f\n", c.Name, c.Score, c.Weight, c.Contribution)
		default:
			fmt.Fprintf(&b, "  - %s: multiplier=%.2f\n", c.Name, c.Multiplier)
		}
	}

	if r.Accumulation != nil && r.Accumulation.InsiderCount > 0 {
		fmt.Fprintf(&b, "  accumulation: %s\n", r.Accumulation.Interpretation)
	}
	if r.Timing != nil && r.Timing.Interpretation != "" {
		fmt.Fprintf(&b, "  timing: %s\n", r.Timing.Interpretation)
	}
	if r.InsufficientData {
		fmt.Fprintf(&b, "  insufficient data: coverage %.0f%%\n", r.Coverage*100)
	}

	return strings.TrimRight(b.String(), "\n")
}

// SortByScore orders results by final score descending, ticker ascending on ties
func SortByScore(results []*ConvictionResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].Ticker < results[j].Ticker
	})
}
