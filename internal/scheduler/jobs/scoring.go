package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/conviction/internal/brain"
	"github.com/wonny/conviction/pkg/logger"
)

// PipelineRunner runs one fetch → score → persist pass
type PipelineRunner interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// ScoringJob scores stored filings from the recent window
// ⭐ SSOT: 배치 스코어링 스케줄은 이 Job에서만
type ScoringJob struct {
	runner   PipelineRunner
	schedule string
	lookback time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

// NewScoringJob creates a scoring job. lookbackDays bounds which filings are rescored.
func NewScoringJob(runner PipelineRunner, schedule string, lookbackDays int, log *logger.Logger) *ScoringJob {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &ScoringJob{
		runner:   runner,
		schedule: schedule,
		lookback: time.Duration(lookbackDays) * 24 * time.Hour,
		logger:   log,
		now:      time.Now,
	}
}

// Name returns the job name
func (j *ScoringJob) Name() string {
	return "conviction_scoring"
}

// Schedule returns the cron schedule
func (j *ScoringJob) Schedule() string {
	return j.schedule
}

// Run executes one scoring pass
func (j *ScoringJob) Run(ctx context.Context) error {
	since := j.now().Add(-j.lookback)

	result, err := j.runner.Run(ctx, brain.RunConfig{Since: since})
	if err != nil {
		return fmt.Errorf("scoring run: %w", err)
	}

	fields := map[string]interface{}{
		"raw":       result.RawCount,
		"canonical": result.CanonicalCount,
		"duration":  result.Duration,
	}
	if result.Batch != nil {
		fields["scored"] = len(result.Batch.Results)
		fields["failed"] = len(result.Batch.Failures)
		fields["filtered"] = result.Batch.Filtered
	}
	j.logger.WithFields(fields).Info("Scheduled scoring completed")

	return nil
}
