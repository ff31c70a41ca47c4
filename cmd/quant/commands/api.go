package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wonny/conviction/internal/api"
	"github.com/wonny/conviction/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                 - Health check
  GET  /metrics                - Prometheus metrics
  POST /api/score              - 거래 점수화
  GET  /api/results/{ticker}   - 최신 결과 조회
  GET  /api/policy             - 현재 weight policy

Example:
  go run ./cmd/quant api
  go run ./cmd/quant api --port 8080 --policy config/policy/insider_conviction.yaml`,
	RunE: runAPIServer,
}

var (
	apiPort   string
	apiPolicy string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().StringVar(&apiPolicy, "policy", "", "weight policy YAML")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	// 1. Wire the scoring stack (DB optional)
	a, err := newApp(appOptions{policyPath: apiPolicy, useDB: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.log

	// 2. Create handler and router
	scoringHandler := handlers.NewScoringHandler(a.orchestrator, a.results, a.snap, log)
	metricsHandler := promhttp.HandlerFor(a.metricsRegistry, promhttp.HandlerOpts{})
	checks := map[string]api.HealthChecker{"redis": a.redis}
	if a.db != nil {
		checks["postgres"] = a.db
	}
	router := api.NewRouter(scoringHandler, metricsHandler, checks, log)

	// 3. Create server
	server := api.New(a.cfg, log, router)

	// 4. Serve until Ctrl+C, then shut down gracefully
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx); err != nil {
		return err
	}

	log.Info("Server stopped")
	return nil
}
