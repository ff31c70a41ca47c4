package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/conviction/internal/scheduler"
	"github.com/wonny/conviction/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 즉시 실행합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/quant scheduler start
  go run ./cmd/quant scheduler list
  go run ./cmd/quant scheduler run conviction_scoring`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- filing_collection: SCRAPER_SCHEDULE (openinsider 수집 → DB)
- conviction_scoring: SCORING_SCHEDULE (최근 거래 점수화 → DB)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerPolicy       string
	schedulerNoCollection bool
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerCmd.PersistentFlags().StringVar(&schedulerPolicy, "policy", "", "weight policy YAML")
	schedulerCmd.PersistentFlags().BoolVar(&schedulerNoCollection, "no-collection", false, "openinsider 수집 작업 비활성화")
}

// setupScheduler wires the app and registers the jobs
func setupScheduler() (*app, *scheduler.Scheduler, error) {
	a, err := newApp(appOptions{policyPath: schedulerPolicy, needDB: true})
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(a.log)

	if !schedulerNoCollection {
		collect := jobs.NewFilingCollectionJob(a.scraper(), a.transactions, a.cfg.Scraper.Schedule, a.cfg.Scraper.LookbackDays, a.log)
		if err := sched.AddJob(collect); err != nil {
			a.Close()
			return nil, nil, err
		}
	}

	// 누적 윈도우 전체를 재점수화해야 클러스터가 반영됨
	scoring := jobs.NewScoringJob(a.orchestrator, a.cfg.Scoring.Schedule, a.windowDays, a.log)
	if err := sched.AddJob(scoring); err != nil {
		a.Close()
		return nil, nil, err
	}

	return a, sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, sched, err := setupScheduler()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.EnsureSchema(cmd.Context()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)
	fmt.Println("✅ Scheduler started")
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("   • %s\n", name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()
	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := setupScheduler()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	widths := []int{22, 18}
	printTableHeader(out, []string{"JOB", "SCHEDULE"}, widths)
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		printTableRow(out, []string{name, stats[name].Schedule}, widths)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	a, sched, err := setupScheduler()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := sched.RunJobSync(args[0])
	if err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("job %s failed: %s", result.JobName, result.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s completed in %s\n", result.JobName, result.Duration.Round(time.Millisecond))
	return nil
}
