package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만

// TransactionRepository stores raw filings as delivered by the feed
type TransactionRepository interface {
	TransactionSource
	SaveBatch(ctx context.Context, txns []RawTransaction) (int, error)
	GetByTicker(ctx context.Context, ticker string, since time.Time) ([]RawTransaction, error)
}

// ResultRepository stores scored results per run
type ResultRepository interface {
	SaveBatch(ctx context.Context, runID string, results []*ConvictionResult) error
	GetLatestByTicker(ctx context.Context, ticker string) (*ConvictionResult, error)
}
