package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/logger"
)

// FilingCollectionJob pulls recent filings from the scraper and stores them
type FilingCollectionJob struct {
	source   contracts.TransactionSource
	store    contracts.TransactionRepository
	schedule string
	lookback time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

// NewFilingCollectionJob creates a collection job
func NewFilingCollectionJob(source contracts.TransactionSource, store contracts.TransactionRepository, schedule string, lookbackDays int, log *logger.Logger) *FilingCollectionJob {
	if lookbackDays <= 0 {
		lookbackDays = 3
	}
	return &FilingCollectionJob{
		source:   source,
		store:    store,
		schedule: schedule,
		lookback: time.Duration(lookbackDays) * 24 * time.Hour,
		logger:   log,
		now:      time.Now,
	}
}

// Name returns the job name
func (j *FilingCollectionJob) Name() string {
	return "filing_collection"
}

// Schedule returns the cron schedule
func (j *FilingCollectionJob) Schedule() string {
	return j.schedule
}

// Run fetches and stores filings. Duplicates are dropped by the store.
func (j *FilingCollectionJob) Run(ctx context.Context) error {
	since := j.now().Add(-j.lookback)

	raw, err := j.source.FetchSince(ctx, since)
	if err != nil {
		return fmt.Errorf("fetch filings: %w", err)
	}

	inserted, err := j.store.SaveBatch(ctx, raw)
	if err != nil {
		return fmt.Errorf("save filings: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"fetched":  len(raw),
		"inserted": inserted,
	}).Info("Filing collection completed")

	return nil
}
