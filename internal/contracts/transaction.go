package contracts

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the Form 4 transaction code family
type TransactionType string

const (
	TransactionBuy      TransactionType = "BUY"
	TransactionSale     TransactionType = "SALE"
	TransactionExercise TransactionType = "EXERCISE"
)

// IsAcquisition reports whether the transaction adds shares to the insider's position
func (t TransactionType) IsAcquisition() bool {
	return t == TransactionBuy || t == TransactionExercise
}

// RawTransaction is one filing record as delivered by the scraper / feed
// ⭐ SSOT: 피드 → S0 원본 거래 레코드
type RawTransaction struct {
	Ticker          string          `json:"ticker" validate:"required"`
	InsiderName     string          `json:"insider_name" validate:"required"`
	InsiderTitle    string          `json:"insider_title,omitempty"`
	TransactionDate time.Time       `json:"transaction_date" validate:"required"`
	FilingDate      time.Time       `json:"filing_date"`
	Shares          int64           `json:"shares" validate:"gte=0"`
	PricePerShare   decimal.Decimal `json:"price_per_share"` // zero = not reported
	TotalValue      decimal.Decimal `json:"total_value"`
	TransactionType TransactionType `json:"transaction_type" validate:"omitempty,oneof=BUY SALE EXERCISE"`
}

// DedupKey identifies one economic event across repeated filings
type DedupKey struct {
	Ticker      string
	InsiderName string
	Day         string // YYYY-MM-DD
	Shares      int64
	Price       string
}

// String renders the key for logs and storage
func (k DedupKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%d|%s", k.Ticker, k.InsiderName, k.Day, k.Shares, k.Price)
}

// Key returns the dedup key of the record
func (t RawTransaction) Key() DedupKey {
	return DedupKey{
		Ticker:      strings.ToUpper(strings.TrimSpace(t.Ticker)),
		InsiderName: strings.TrimSpace(t.InsiderName),
		Day:         t.TransactionDate.Format("2006-01-02"),
		Shares:      t.Shares,
		Price:       t.PricePerShare.String(),
	}
}

// CanonicalTransaction is the deduplicated representation of one or more raw filings
// ⭐ SSOT: S0 → S1/S2 정규화된 거래
type CanonicalTransaction struct {
	RawTransaction

	DuplicateCount int             `json:"duplicate_count"`
	GroupedShares  int64           `json:"grouped_shares"`
	GroupedValue   decimal.Decimal `json:"grouped_value"`
}

// IsGrouped reports whether more than one filing collapsed into this record
func (c CanonicalTransaction) IsGrouped() bool {
	return c.DuplicateCount > 1
}

// FilingDelayDays returns calendar days between trade and filing, -1 when unknown
func (c CanonicalTransaction) FilingDelayDays() int {
	if c.FilingDate.IsZero() || c.TransactionDate.IsZero() {
		return -1
	}
	return DaysBetween(c.TransactionDate, c.FilingDate)
}

// DaysBetween counts whole calendar days from "from" to "to" using each
// timestamp's own calendar date. Negative when to precedes from.
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
