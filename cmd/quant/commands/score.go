package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/conviction/internal/brain"
	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/internal/external/openinsider"
	"github.com/wonny/conviction/internal/feed"
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "거래 점수화 (one-shot)",
	Long: `내부자 거래를 한 번 점수화하고 순위를 출력합니다.

입력 (하나 선택):
  --input  JSON 파일 (객체 하나 또는 배열)
  --html   openinsider 스크린 HTML 파일
  --fetch  openinsider에서 최근 거래 수집

기본은 dry run이며 --save일 때만 결과를 DB에 저장합니다.

Example:
  go run ./cmd/quant score --input filings.json --explain
  go run ./cmd/quant score --fetch --since-days 7 --top 20
  go run ./cmd/quant score --input filings.json --policy config/policy/insider_conviction.yaml --json`,
	RunE: runScore,
}

var (
	scoreInput     string
	scoreHTML      string
	scoreFetch     bool
	scoreSinceDays int
	scorePolicy    string
	scoreExplain   bool
	scoreTop       int
	scoreSave      bool
	scoreJSON      bool
)

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreInput, "input", "", "JSON 거래 파일")
	scoreCmd.Flags().StringVar(&scoreHTML, "html", "", "openinsider HTML 파일")
	scoreCmd.Flags().BoolVar(&scoreFetch, "fetch", false, "openinsider에서 수집")
	scoreCmd.Flags().IntVar(&scoreSinceDays, "since-days", 7, "--fetch 조회 기간 (일)")
	scoreCmd.Flags().StringVar(&scorePolicy, "policy", "", "weight policy YAML (기본: SCORING_POLICY_PATH 또는 내장 기본값)")
	scoreCmd.Flags().BoolVar(&scoreExplain, "explain", false, "컴포넌트별 설명 출력")
	scoreCmd.Flags().IntVar(&scoreTop, "top", 0, "상위 N개만 출력 (0 = 전체)")
	scoreCmd.Flags().BoolVar(&scoreSave, "save", false, "결과를 DB에 저장")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "JSON으로 출력")
	scoreCmd.MarkFlagsMutuallyExclusive("input", "html", "fetch")
	scoreCmd.MarkFlagsOneRequired("input", "html", "fetch")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(appOptions{
		policyPath:  scorePolicy,
		needDB:      scoreSave,
		useScraper:  scoreFetch,
		dryRunStore: !scoreSave,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	var run *brain.RunResult
	if scoreFetch {
		run, err = a.orchestrator.Run(ctx, brain.RunConfig{
			Since:  time.Now().AddDate(0, 0, -scoreSinceDays),
			DryRun: !scoreSave,
		})
	} else {
		var raw []contracts.RawTransaction
		raw, err = readScoreInput(scoreInput, scoreHTML)
		if err != nil {
			return err
		}
		run, err = a.orchestrator.ScoreRaw(ctx, raw, !scoreSave)
	}
	if err != nil && run == nil {
		return err
	}

	out := cmd.OutOrStdout()
	if scoreJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(run.Batch); encErr != nil {
			return encErr
		}
		return err
	}

	printHeader(out, "Insider Conviction Scores", [][2]string{
		{"Policy", fmt.Sprintf("%s (%s)", a.snap.PolicyID, a.snap.PolicyVersion)},
		{"Saved", fmt.Sprintf("%v", scoreSave)},
	})
	if run.Batch != nil {
		printRankedResults(out, run.Batch.Results, scoreTop, scoreExplain)
		printFailures(out, run.Batch.Failures)
	}
	printRunSummary(out, run)

	return err
}

// readScoreInput decodes filings from a JSON or HTML file
func readScoreInput(jsonPath, htmlPath string) ([]contracts.RawTransaction, error) {
	if htmlPath != "" {
		data, err := os.ReadFile(htmlPath)
		if err != nil {
			return nil, fmt.Errorf("read html: %w", err)
		}
		return openinsider.ParseTable(bytes.NewReader(data))
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	raw, err := feed.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no transactions in %s", jsonPath)
	}
	return raw, nil
}
