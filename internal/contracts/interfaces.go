package contracts

import (
	"context"
	"time"
)

// TransactionNormalizer collapses raw filings into canonical transactions (S0)
// ⭐ SSOT: S0 정규화 인터페이스
type TransactionNormalizer interface {
	Normalize(raw []RawTransaction) []CanonicalTransaction
}

// TransactionSource supplies raw filings to the scoring jobs
// ⭐ SSOT: 외부 피드 인터페이스 (스크래퍼, DB, Kafka)
type TransactionSource interface {
	FetchSince(ctx context.Context, since time.Time) ([]RawTransaction, error)
}

// PriceQuote is a point-in-time market price for a ticker
type PriceQuote struct {
	Ticker string    `json:"ticker"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"as_of"`
}

// ShortInterest is the short-side positioning snapshot for a ticker
type ShortInterest struct {
	Ticker       string    `json:"ticker"`
	PercentFloat float64   `json:"short_percent_float"` // 0-100
	DaysToCover  float64   `json:"days_to_cover"`
	AsOf         time.Time `json:"as_of"`
}

// PriceBar is one daily close
type PriceBar struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// MarketData is the market-data collaborator used by the timing, short-interest
// and red-flag components
type MarketData interface {
	Quote(ctx context.Context, ticker string) (*PriceQuote, error)
	ShortInterest(ctx context.Context, ticker string) (*ShortInterest, error)
	// PriceHistory returns daily closes in [from, to], oldest first
	PriceHistory(ctx context.Context, ticker string, from, to time.Time) ([]PriceBar, error)
	// EarningsDates returns known earnings announcement dates
	EarningsDates(ctx context.Context, ticker string) ([]time.Time, error)
}
