package s2_components

import (
	"context"
	"sort"
	"strings"

	"github.com/wonny/conviction/internal/contracts"
)

// DefaultCommitmentLookbackDays bounds the history considered for net sentiment
const DefaultCommitmentLookbackDays = 90

// CommitmentProvider measures whether insiders of a ticker are net buyers or sellers
type CommitmentProvider struct {
	lookbackDays int
}

// NewCommitmentProvider creates a new commitment provider. lookbackDays <= 0 uses the default.
func NewCommitmentProvider(lookbackDays int) *CommitmentProvider {
	if lookbackDays <= 0 {
		lookbackDays = DefaultCommitmentLookbackDays
	}
	return &CommitmentProvider{lookbackDays: lookbackDays}
}

// Name returns the component name
func (p *CommitmentProvider) Name() string { return contracts.ComponentInsiderCommitment }

// Evaluate returns (net+1)/2 where net = (buys - sells) / (buys + sells)
func (p *CommitmentProvider) Evaluate(_ context.Context, req contracts.ComponentRequest) contracts.Reading {
	ticker := req.Ticker()

	buys, sells := 0, 0
	bought := make(map[string]bool)
	sold := make(map[string]bool)

	for _, t := range req.History {
		if !strings.EqualFold(strings.TrimSpace(t.Ticker), ticker) {
			continue
		}
		age := contracts.DaysBetween(t.TransactionDate, req.AsOf)
		if age < 0 || age > p.lookbackDays {
			continue
		}

		name := strings.TrimSpace(t.InsiderName)
		switch t.TransactionType {
		case contracts.TransactionSale:
			sells++
			sold[name] = true
		case contracts.TransactionBuy:
			buys++
			bought[name] = true
		}
	}

	total := buys + sells
	if total == 0 {
		return contracts.Unavailable("no insider activity in lookback")
	}

	// 같은 기간에 매수와 매도를 모두 한 내부자
	conflicted := make([]string, 0)
	for name := range bought {
		if sold[name] {
			conflicted = append(conflicted, name)
		}
	}
	sort.Strings(conflicted)

	net := float64(buys-sells) / float64(total)
	return contracts.ScoreReading((net+1)/2, "history", contracts.Detail{
		"buys":          buys,
		"sells":         sells,
		"net_sentiment": net,
		"conflicted":    conflicted,
		"lookback_days": p.lookbackDays,
	})
}
