package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/internal/feed"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Kafka 스트림 워커",
	Long: `Kafka 토픽에서 원본 공시를 받아 저장하고 점수화합니다.

이 워커는:
- KAFKA_TOPIC에서 메시지를 micro-batch로 수집
- 원본 거래를 DB에 저장 (중복 무시)
- 배치를 S0 → S4로 점수화하고 결과 저장
- 처리 성공 후에만 offset commit
- Graceful shutdown (Ctrl+C)

Example:
  go run ./cmd/quant worker
  go run ./cmd/quant worker --batch-size 100 --flush-interval 2s`,
	RunE: runWorker,
}

var (
	workerBatchSize     int
	workerFlushInterval time.Duration
	workerPolicy        string
)

func init() {
	rootCmd.AddCommand(workerCmd)

	// Flags
	workerCmd.Flags().IntVar(&workerBatchSize, "batch-size", 50, "배치당 최대 메시지 수")
	workerCmd.Flags().DurationVar(&workerFlushInterval, "flush-interval", 5*time.Second, "부분 배치 flush 간격")
	workerCmd.Flags().StringVar(&workerPolicy, "policy", "", "weight policy YAML")
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{policyPath: workerPolicy, needDB: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.EnsureSchema(cmd.Context()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	a.orchestrator.WithHistory(a.transactions, a.windowDays)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := feed.NewReader(a.cfg.Kafka)
	consumer := feed.NewConsumer(reader, a.handleFeedBatch, workerBatchSize, workerFlushInterval, a.log)

	a.log.WithFields(map[string]interface{}{
		"brokers": a.cfg.Kafka.Brokers,
		"topic":   a.cfg.Kafka.Topic,
		"group":   a.cfg.Kafka.GroupID,
	}).Info("Worker started")

	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}

	a.log.Info("Worker stopped")
	return nil
}

// handleFeedBatch stores then scores one micro-batch
func (a *app) handleFeedBatch(ctx context.Context, raw []contracts.RawTransaction) error {
	inserted, err := a.transactions.SaveBatch(ctx, raw)
	if err != nil {
		return fmt.Errorf("store filings: %w", err)
	}

	run, err := a.orchestrator.ScoreRaw(ctx, raw, false)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		"received": len(raw),
		"inserted": inserted,
	}
	if run.Batch != nil {
		fields["scored"] = len(run.Batch.Results)
		fields["failed"] = len(run.Batch.Failures)
	}
	a.log.WithFields(fields).Info("Feed batch processed")
	return nil
}
