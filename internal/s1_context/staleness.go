package s1_context

import (
	"fmt"
	"time"

	"github.com/wonny/conviction/internal/contracts"
)

// stalenessBand is one step of the time-decay table, upper bound inclusive
type stalenessBand struct {
	maxDays    int
	multiplier float64
	category   contracts.StalenessCategory
}

// ⭐ SSOT: 시간 감쇠 구간은 여기서만
var stalenessBands = []stalenessBand{
	{14, 1.00, contracts.StalenessFresh},
	{30, 0.95, contracts.StalenessRecent},
	{45, 0.85, contracts.StalenessAging},
	{60, 0.70, contracts.StalenessStale},
}

var veryStale = stalenessBand{-1, 0.50, contracts.StalenessVeryStale}

// CalculateStaleness returns the time-decay penalty for a transaction dated txDate
func CalculateStaleness(txDate, now time.Time) contracts.StalenessContext {
	return StalenessForDays(contracts.DaysBetween(txDate, now))
}

// StalenessForDays maps an age in days onto the decay bands. Negative ages count as 0.
func StalenessForDays(daysOld int) contracts.StalenessContext {
	if daysOld < 0 {
		daysOld = 0
	}

	band := veryStale
	for _, b := range stalenessBands {
		if daysOld <= b.maxDays {
			band = b
			break
		}
	}

	return contracts.StalenessContext{
		DaysOld:           daysOld,
		PenaltyMultiplier: band.multiplier,
		Category:          band.category,
	}
}

// DescribeStaleness renders a one-line description of the decay band
func DescribeStaleness(s contracts.StalenessContext) string {
	switch s.Category {
	case contracts.StalenessFresh:
		return fmt.Sprintf("Fresh signal (%dd old) - highly actionable", s.DaysOld)
	case contracts.StalenessRecent:
		return fmt.Sprintf("Recent signal (%dd old) - still relevant with slight decay", s.DaysOld)
	case contracts.StalenessAging:
		return fmt.Sprintf("Aging signal (%dd old) - relevance declining", s.DaysOld)
	case contracts.StalenessStale:
		return fmt.Sprintf("Stale signal (%dd old) - information likely priced in", s.DaysOld)
	case contracts.StalenessVeryStale:
		return fmt.Sprintf("Very stale signal (%dd old) - outdated information", s.DaysOld)
	default:
		return fmt.Sprintf("Unknown (%dd old)", s.DaysOld)
	}
}

// ShouldFilter reports whether a signal is older than maxAgeDays.
// maxAgeDays <= 0 disables the filter.
func ShouldFilter(daysOld, maxAgeDays int) bool {
	if maxAgeDays <= 0 {
		return false
	}
	return daysOld > maxAgeDays
}
