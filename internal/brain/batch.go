package brain

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/internal/metrics"
	"github.com/wonny/conviction/pkg/logger"
)

// Batch defaults
const (
	DefaultSequentialThreshold = 5
	DefaultMaxWorkers          = 5
)

// TransactionScorer scores one canonical transaction
type TransactionScorer interface {
	Score(ctx context.Context, txn contracts.CanonicalTransaction, history []contracts.CanonicalTransaction) (*contracts.ConvictionResult, error)
}

// BatchConfig bounds batch concurrency
type BatchConfig struct {
	SequentialThreshold int // 이보다 적으면 순차 처리
	MaxWorkers          int
}

// ItemFailure records a transaction excluded from a batch
type ItemFailure struct {
	Ticker string `json:"ticker"`
	Key    string `json:"key"`
	Error  string `json:"error"`
}

// BatchResult holds the outcome of one batch run.
// Results are in completion order; use contracts.SortByScore for a stable order.
type BatchResult struct {
	RunID    uuid.UUID                     `json:"run_id"`
	Results  []*contracts.ConvictionResult `json:"results"`
	Failures []ItemFailure                 `json:"failures,omitempty"`
	Filtered int                           `json:"filtered"` // max age 초과
	Duration time.Duration                 `json:"duration"`
}

// BatchCoordinator scores many transactions with bounded concurrency
// ⭐ SSOT: 배치 동시성 제어는 여기서만
type BatchCoordinator struct {
	scorer  TransactionScorer
	cfg     BatchConfig
	metrics *metrics.Recorder
	logger  *logger.Logger
}

// NewBatchCoordinator creates a coordinator. metrics may be nil.
func NewBatchCoordinator(scorer TransactionScorer, cfg BatchConfig, rec *metrics.Recorder, log *logger.Logger) *BatchCoordinator {
	if cfg.SequentialThreshold <= 0 {
		cfg.SequentialThreshold = DefaultSequentialThreshold
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	return &BatchCoordinator{
		scorer:  scorer,
		cfg:     cfg,
		metrics: rec,
		logger:  log.Module("batch"),
	}
}

// ScoreAll scores every transaction. Failing items are logged and excluded;
// the only error returned is the caller's context error, alongside the partial result.
func (b *BatchCoordinator) ScoreAll(ctx context.Context, txns []contracts.CanonicalTransaction) (*BatchResult, error) {
	return b.ScoreAllWithHistory(ctx, txns, txns)
}

// ScoreAllWithHistory scores txns against a wider history (prior filings of the same tickers).
// history should contain txns; missing entries are added per item by the scorer.
func (b *BatchCoordinator) ScoreAllWithHistory(ctx context.Context, txns, history []contracts.CanonicalTransaction) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{
		RunID:   uuid.New(),
		Results: make([]*contracts.ConvictionResult, 0, len(txns)),
	}

	var mu sync.Mutex
	scoreOne := func(txn contracts.CanonicalTransaction) {
		res, err := b.scorer.Score(ctx, txn, history)

		mu.Lock()
		defer mu.Unlock()
		switch {
		case errors.Is(err, ErrStaleSignal):
			result.Filtered++
		case err != nil:
			result.Failures = append(result.Failures, ItemFailure{
				Ticker: txn.Key().Ticker,
				Key:    txn.Key().String(),
				Error:  err.Error(),
			})
			b.metrics.RecordFailure()
			b.logger.WithError(err).WithField("ticker", txn.Key().Ticker).Warn("Scoring failed, excluded from batch")
		default:
			result.Results = append(result.Results, res)
			b.metrics.RecordResult(res)
		}
	}

	if len(txns) < b.cfg.SequentialThreshold {
		for _, txn := range txns {
			if ctx.Err() != nil {
				break
			}
			scoreOne(txn)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(b.cfg.MaxWorkers)
		for _, txn := range txns {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				scoreOne(txn)
				return nil
			})
		}
		_ = g.Wait() // 개별 실패는 result.Failures에 기록
	}

	result.Duration = time.Since(start)
	b.metrics.RecordBatch(len(txns), result.Duration)

	b.logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID.String(),
		"total":    len(txns),
		"scored":   len(result.Results),
		"failed":   len(result.Failures),
		"filtered": result.Filtered,
		"duration": result.Duration.Seconds(),
	}).Info("Batch scoring completed")

	return result, ctx.Err()
}
