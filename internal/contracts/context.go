package contracts

// AccumulationContext describes multi-insider buying in a window
// ⭐ SSOT: S1 다중 내부자 매집 컨텍스트
type AccumulationContext struct {
	Ticker               string   `json:"ticker"`
	WindowDays           int      `json:"window_days"`
	InsiderCount         int      `json:"insider_count"`
	TransactionCount     int      `json:"transaction_count"`
	ConfidenceMultiplier float64  `json:"confidence_multiplier"`
	InsiderNames         []string `json:"insider_names"`
	Interpretation       string   `json:"interpretation"`
}

// MultipleInsiders reports a coordinated signal (two or more distinct buyers)
func (a AccumulationContext) MultipleInsiders() bool {
	return a.InsiderCount >= 2
}

// TimingCategory classifies how long ago the insider bought
type TimingCategory string

const (
	TimingEarly   TimingCategory = "EARLY"
	TimingOptimal TimingCategory = "OPTIMAL"
	TimingLate    TimingCategory = "LATE"
	TimingStale   TimingCategory = "STALE"
	TimingUnknown TimingCategory = "UNKNOWN"
)

// TimingContext is the entry-timing classification of a signal
type TimingContext struct {
	Category       TimingCategory `json:"timing_category"`
	DaysSince      int            `json:"days_since_transaction"`
	PriceChangePct float64        `json:"price_change_pct"`
	Score          float64        `json:"timing_score"`
	Interpretation string         `json:"interpretation"`
}

// StalenessCategory is the time-decay band
type StalenessCategory string

const (
	StalenessFresh     StalenessCategory = "FRESH"
	StalenessRecent    StalenessCategory = "RECENT"
	StalenessAging     StalenessCategory = "AGING"
	StalenessStale     StalenessCategory = "STALE"
	StalenessVeryStale StalenessCategory = "VERY_STALE"
)

// StalenessContext is the time-decay penalty for a signal
type StalenessContext struct {
	DaysOld           int               `json:"days_old"`
	PenaltyMultiplier float64           `json:"penalty_multiplier"`
	Category          StalenessCategory `json:"category"`
}
