package s4_category

import (
	"math"

	"github.com/wonny/conviction/internal/contracts"
)

type tier struct {
	category  contracts.SignalCategory
	threshold float64
	inclusive bool
	action    string
	marker    string
}

// tiers are evaluated high to low.
// WEAK_BUY is the only exclusive lower bound: exactly 0.50 is SKIP.
// ⭐ SSOT: 점수 → 카테고리 매핑은 여기서만
var tiers = []tier{
	{contracts.CategoryStrongBuy, 0.85, true, "EXECUTE IMMEDIATELY - Multiple bullish signals aligned", "🔥"},
	{contracts.CategoryBuy, 0.75, true, "HIGH CONFIDENCE - Strong insider signal with confirmation", "✅"},
	{contracts.CategoryAccumulate, 0.65, true, "GOOD SETUP - Consider building position over time", "👍"},
	{contracts.CategoryWatch, 0.60, true, "MONITOR - Weak signals but possible opportunity if they strengthen", "👀"},
	{contracts.CategoryWeakBuy, 0.50, false, "RISKY - Mixed signals, high false positive risk", "❓"},
}

var skip = tier{contracts.CategorySkip, 0, true, "SKIP - Too many red flags, not worth capital", "❌"}

// Categorize maps a final score and a confidence multiplier onto an action category.
// adjusted = min(final × confidence, 1.0). NaN scores fall through to SKIP.
func Categorize(finalScore, confidenceMultiplier float64) contracts.CategoryDecision {
	adjusted := math.Min(finalScore*confidenceMultiplier, 1.0)

	t := skip
	for _, candidate := range tiers {
		if candidate.matches(adjusted) {
			t = candidate
			break
		}
	}

	return contracts.CategoryDecision{
		Category:             t.category,
		Action:               t.action,
		Marker:               t.marker,
		AdjustedScore:        adjusted,
		ConfidenceMultiplier: confidenceMultiplier,
	}
}

// Threshold returns the lower bound of a category and whether it is inclusive
func Threshold(c contracts.SignalCategory) (float64, bool) {
	for _, t := range tiers {
		if t.category == c {
			return t.threshold, t.inclusive
		}
	}
	return skip.threshold, skip.inclusive
}

func (t tier) matches(score float64) bool {
	if t.inclusive {
		return score >= t.threshold
	}
	return score > t.threshold
}
