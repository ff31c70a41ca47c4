package s2_components

import (
	"context"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/conviction/internal/contracts"
)

// Red flag rules. Each triggered flag multiplies the penalty; the product is floored.
const (
	smallPurchaseLookbackDays = 180
	smallPurchaseMinRows      = 3
	smallPurchasePenalty      = 0.85

	runUpLookbackDays = 60
	runUpMinBars      = 5
	runUpThresholdPct = 30.0
	runUpPenalty      = 0.8

	earningsBlackoutDays    = 14
	earningsBlackoutPenalty = 0.3

	redFlagFloor = 0.5
)

// smallPurchaseRatio flags purchases below half the ticker's average value
var smallPurchaseRatio = decimal.NewFromFloat(0.5)

// RedFlagProvider penalizes token purchases, buys after a run-up and buys just
// before earnings
type RedFlagProvider struct {
	market contracts.MarketData
}

// NewRedFlagProvider creates a new red flag provider. market may be nil, in
// which case only the history-based check runs.
func NewRedFlagProvider(market contracts.MarketData) *RedFlagProvider {
	return &RedFlagProvider{market: market}
}

// Name returns the component name
func (p *RedFlagProvider) Name() string { return contracts.ComponentRedFlags }

// Evaluate returns the product of triggered penalties, floored at 0.5
func (p *RedFlagProvider) Evaluate(ctx context.Context, req contracts.ComponentRequest) contracts.Reading {
	mult := 1.0
	flags := make([]string, 0, 3)
	detail := contracts.Detail{}

	small, avg := smallPurchase(req)
	if !avg.IsZero() {
		detail["average_value"] = avg.StringFixed(2)
	}
	if small {
		mult *= smallPurchasePenalty
		flags = append(flags, "small_purchase")
	}

	runUp, checked := p.preBuyRunUp(ctx, req)
	detail["run_up_checked"] = checked
	if checked {
		detail["run_up_pct"] = runUp
		if runUp > runUpThresholdPct {
			mult *= runUpPenalty
			flags = append(flags, "recent_runup")
		}
	}

	blackout, checked := p.earningsBlackout(ctx, req)
	detail["earnings_checked"] = checked
	if blackout {
		mult *= earningsBlackoutPenalty
		flags = append(flags, "earnings_blackout")
	}

	detail["flags"] = flags
	return contracts.MultiplierReading(math.Max(mult, redFlagFloor), "rules", detail)
}

// smallPurchase compares the purchase to the mean value of the ticker's
// transactions in the 180 days up to it. Needs at least 3 rows.
func smallPurchase(req contracts.ComponentRequest) (bool, decimal.Decimal) {
	txn := req.Transaction
	ticker := strings.ToUpper(txn.Ticker)

	sum := decimal.Zero
	rows := 0
	for _, h := range req.History {
		if strings.ToUpper(h.Ticker) != ticker {
			continue
		}
		age := contracts.DaysBetween(h.TransactionDate, txn.TransactionDate)
		if age < 0 || age > smallPurchaseLookbackDays {
			continue
		}
		sum = sum.Add(transactionValue(h))
		rows++
	}
	if rows < smallPurchaseMinRows {
		return false, decimal.Zero
	}

	avg := sum.Div(decimal.NewFromInt(int64(rows)))
	return transactionValue(txn).LessThan(avg.Mul(smallPurchaseRatio)), avg
}

func transactionValue(t contracts.CanonicalTransaction) decimal.Decimal {
	if t.GroupedValue.IsZero() {
		return t.TotalValue
	}
	return t.GroupedValue
}

// preBuyRunUp is the close-to-close return over the 60 days before the
// purchase. Unchecked without market data or with fewer than 5 bars.
func (p *RedFlagProvider) preBuyRunUp(ctx context.Context, req contracts.ComponentRequest) (float64, bool) {
	if p.market == nil {
		return 0, false
	}

	end := req.Transaction.TransactionDate
	bars, err := p.market.PriceHistory(ctx, req.Ticker(), end.AddDate(0, 0, -runUpLookbackDays), end)
	if err != nil || len(bars) < runUpMinBars {
		return 0, false
	}

	first, last := bars[0].Close, bars[len(bars)-1].Close
	if first <= 0 {
		return 0, false
	}
	return (last - first) / first * 100, true
}

// earningsBlackout reports a purchase made 0..14 days before an earnings date
func (p *RedFlagProvider) earningsBlackout(ctx context.Context, req contracts.ComponentRequest) (bool, bool) {
	if p.market == nil {
		return false, false
	}

	dates, err := p.market.EarningsDates(ctx, req.Ticker())
	if err != nil {
		return false, false
	}

	for _, d := range dates {
		until := contracts.DaysBetween(req.Transaction.TransactionDate, d)
		if until >= 0 && until <= earningsBlackoutDays {
			return true, true
		}
	}
	return false, true
}
