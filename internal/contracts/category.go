package contracts

// SignalCategory is the ordered action label derived from a conviction score
type SignalCategory string

const (
	CategorySkip       SignalCategory = "SKIP"
	CategoryWeakBuy    SignalCategory = "WEAK_BUY"
	CategoryWatch      SignalCategory = "WATCH"
	CategoryAccumulate SignalCategory = "ACCUMULATE"
	CategoryBuy        SignalCategory = "BUY"
	CategoryStrongBuy  SignalCategory = "STRONG_BUY"
)

// categoryRank orders categories from SKIP (0) to STRONG_BUY (5)
var categoryRank = map[SignalCategory]int{
	CategorySkip:       0,
	CategoryWeakBuy:    1,
	CategoryWatch:      2,
	CategoryAccumulate: 3,
	CategoryBuy:        4,
	CategoryStrongBuy:  5,
}

// Rank returns the ordinal of the category, -1 for unknown labels
func (c SignalCategory) Rank() int {
	if r, ok := categoryRank[c]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether c is the same as or stronger than other
func (c SignalCategory) AtLeast(other SignalCategory) bool {
	return c.Rank() >= other.Rank() && c.Rank() >= 0
}

// IsActionable reports whether the category recommends taking a position
func (c SignalCategory) IsActionable() bool {
	return c.AtLeast(CategoryAccumulate)
}

// CategoryDecision is the categorizer output
// ⭐ SSOT: S4 카테고리 결정
type CategoryDecision struct {
	Category             SignalCategory `json:"category"`
	Action               string         `json:"action"`
	Marker               string         `json:"marker"`
	AdjustedScore        float64        `json:"adjusted_score"`
	ConfidenceMultiplier float64        `json:"confidence_multiplier"`
}
