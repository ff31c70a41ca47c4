package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Insider conviction scoring",
	Long: `Insider Conviction Unified CLI

내부자 매수 공시를 정규화(S0) → 컨텍스트(S1) → 컴포넌트(S2)
→ 융합(S3) → 카테고리(S4) 파이프라인으로 점수화합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant score --input filings.json --explain
  go run ./cmd/quant api
  go run ./cmd/quant worker
  go run ./cmd/quant scheduler start
  go run ./cmd/quant policy validate config/policy/insider_conviction.yaml`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
