package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/logger"
)

// Orchestrator coordinates fetch → normalize → batch score → persist
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	source     contracts.TransactionSource
	normalizer contracts.TransactionNormalizer
	batch      *BatchCoordinator
	results    contracts.ResultRepository
	history    HistorySource
	lookback   time.Duration

	logger *logger.Logger
}

// HistorySource supplies prior filings of a ticker (accumulation context)
type HistorySource interface {
	GetByTicker(ctx context.Context, ticker string, since time.Time) ([]contracts.RawTransaction, error)
}

// RunConfig holds configuration for a pipeline run
type RunConfig struct {
	Since  time.Time // 이 날짜 이후 거래만
	DryRun bool      // If true, skip persisting results
}

// RunResult holds the results of a complete pipeline run
type RunResult struct {
	Success         bool
	Error           error
	CompletedStages []string
	RawCount        int
	CanonicalCount  int
	Batch           *BatchResult
	Duration        time.Duration
}

// NewOrchestrator creates a new orchestrator. source and results may be nil
// when the orchestrator is only used through ScoreRaw.
func NewOrchestrator(
	source contracts.TransactionSource,
	normalizer contracts.TransactionNormalizer,
	batch *BatchCoordinator,
	results contracts.ResultRepository,
	logger *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		source:     source,
		normalizer: normalizer,
		batch:      batch,
		results:    results,
		logger:     logger,
	}
}

// WithHistory makes ScoreRaw load stored filings of the same tickers
// within lookbackDays as context. Used by the stream worker, whose
// micro-batches would otherwise miss clusters spanning batches.
func (o *Orchestrator) WithHistory(history HistorySource, lookbackDays int) *Orchestrator {
	o.history = history
	o.lookback = time.Duration(lookbackDays) * 24 * time.Hour
	return o
}

// Run executes the pipeline over transactions fetched from the source
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()
	result := &RunResult{CompletedStages: make([]string, 0, 3)}

	if o.source == nil {
		result.Error = fmt.Errorf("no transaction source configured")
		return result, result.Error
	}
	ctx = logger.FromContext(ctx, o.logger).WithField("trigger", "fetch").WithContext(ctx)

	o.logger.WithFields(map[string]interface{}{
		"since":   config.Since.Format("2006-01-02"),
		"dry_run": config.DryRun,
	}).Info("Starting scoring run")

	raw, err := o.source.FetchSince(ctx, config.Since)
	if err != nil {
		result.Error = fmt.Errorf("fetch failed: %w", err)
		return result, result.Error
	}
	result.RawCount = len(raw)
	result.CompletedStages = append(result.CompletedStages, "Fetch")

	if err := o.score(ctx, o.normalizer.Normalize(raw), config.DryRun, result); err != nil {
		return result, err
	}

	result.Success = true
	result.Duration = time.Since(startTime)

	o.logger.WithFields(map[string]interface{}{
		"run_id":   result.Batch.RunID.String(),
		"duration": result.Duration.Seconds(),
		"stages":   len(result.CompletedStages),
	}).Info("Scoring run completed successfully")

	return result, nil
}

// ScoreRaw normalizes and scores records delivered directly (API, stream)
func (o *Orchestrator) ScoreRaw(ctx context.Context, raw []contracts.RawTransaction, dryRun bool) (*RunResult, error) {
	startTime := time.Now()
	result := &RunResult{RawCount: len(raw), CompletedStages: make([]string, 0, 2)}
	ctx = logger.FromContext(ctx, o.logger).WithField("trigger", "direct").WithContext(ctx)

	canonical := o.normalizer.Normalize(raw)
	history, err := o.loadHistory(ctx, raw, canonical)
	if err != nil {
		result.Error = fmt.Errorf("load history: %w", err)
		return result, result.Error
	}

	if err := o.scoreWithHistory(ctx, canonical, history, dryRun, result); err != nil {
		return result, err
	}

	result.Success = true
	result.Duration = time.Since(startTime)
	return result, nil
}

// loadHistory returns nil (batch-only history) without a history source.
// The lookup window and tickers come from validated records only.
func (o *Orchestrator) loadHistory(ctx context.Context, raw []contracts.RawTransaction, canonical []contracts.CanonicalTransaction) ([]contracts.CanonicalTransaction, error) {
	if o.history == nil || len(canonical) == 0 {
		return nil, nil
	}

	// 배치 내 가장 이른 거래일 기준으로 조회
	earliest := canonical[0].TransactionDate
	tickers := make([]string, 0, len(canonical))
	seen := make(map[string]bool)
	inBatch := make(map[contracts.DedupKey]bool, len(canonical))
	for _, txn := range canonical {
		key := txn.Key()
		inBatch[key] = true
		if !seen[key.Ticker] {
			seen[key.Ticker] = true
			tickers = append(tickers, key.Ticker)
		}
		if txn.TransactionDate.Before(earliest) {
			earliest = txn.TransactionDate
		}
	}
	since := earliest.Add(-o.lookback)

	all := append([]contracts.RawTransaction(nil), raw...)
	for _, ticker := range tickers {
		prior, err := o.history.GetByTicker(ctx, ticker, since)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ticker, err)
		}
		// 스트림 워커는 저장 후 점수화하므로 배치 자신은 제외
		for _, txn := range prior {
			if !inBatch[txn.Key()] {
				all = append(all, txn)
			}
		}
	}

	return o.normalizer.Normalize(all), nil
}

// score runs S0 (already applied) → S1..S4 → persist
func (o *Orchestrator) score(ctx context.Context, canonical []contracts.CanonicalTransaction, dryRun bool, result *RunResult) error {
	return o.scoreWithHistory(ctx, canonical, nil, dryRun, result)
}

// scoreWithHistory scores canonical against history; nil history means the batch itself
func (o *Orchestrator) scoreWithHistory(ctx context.Context, canonical, history []contracts.CanonicalTransaction, dryRun bool, result *RunResult) error {
	result.CanonicalCount = len(canonical)
	result.CompletedStages = append(result.CompletedStages, "S0:Normalize")

	if history == nil {
		history = canonical
	}
	batch, err := o.batch.ScoreAllWithHistory(ctx, canonical, history)
	result.Batch = batch
	if err != nil {
		result.Error = fmt.Errorf("scoring interrupted: %w", err)
		return result.Error
	}
	contracts.SortByScore(batch.Results)
	result.CompletedStages = append(result.CompletedStages, "S1-S4:Score")

	if dryRun || o.results == nil {
		o.logger.Info("Skipping result persistence")
		return nil
	}

	if err := o.results.SaveBatch(ctx, batch.RunID.String(), batch.Results); err != nil {
		result.Error = fmt.Errorf("save results: %w", err)
		return result.Error
	}
	result.CompletedStages = append(result.CompletedStages, "Save")

	return nil
}
