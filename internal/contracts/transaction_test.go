package contracts

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRawTransaction_Key(t *testing.T) {
	day := time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC)

	a := RawTransaction{Ticker: "cmc", InsiderName: "Jane Doe", TransactionDate: day, Shares: 1000, PricePerShare: decimal.RequireFromString("99.45")}
	b := RawTransaction{Ticker: " CMC ", InsiderName: "Jane Doe", TransactionDate: day.Add(-6 * time.Hour), Shares: 1000, PricePerShare: decimal.RequireFromString("99.450")}

	if a.Key() != b.Key() {
		t.Errorf("keys differ: %s vs %s", a.Key(), b.Key())
	}
	if got := a.Key().String(); got != "CMC|Jane Doe|2024-03-05|1000|99.45" {
		t.Errorf("Key().String() = %q", got)
	}
}

func TestDaysBetween(t *testing.T) {
	base := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name string
		to   time.Time
		want int
	}{
		{"same day", time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC), 0},
		{"next calendar day", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 1},
		{"leap year", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 60},
		{"backwards", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysBetween(base, tt.to); got != tt.want {
				t.Errorf("DaysBetween() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCanonicalTransaction_FilingDelayDays(t *testing.T) {
	c := CanonicalTransaction{RawTransaction: RawTransaction{
		TransactionDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		FilingDate:      time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
	}}
	if got := c.FilingDelayDays(); got != 2 {
		t.Errorf("FilingDelayDays() = %d, want 2", got)
	}

	c.FilingDate = time.Time{}
	if got := c.FilingDelayDays(); got != -1 {
		t.Errorf("FilingDelayDays() without filing date = %d, want -1", got)
	}
}

func TestTransactionType_IsAcquisition(t *testing.T) {
	if !TransactionBuy.IsAcquisition() || !TransactionExercise.IsAcquisition() {
		t.Error("BUY and EXERCISE should be acquisitions")
	}
	if TransactionSale.IsAcquisition() {
		t.Error("SALE should not be an acquisition")
	}
}
