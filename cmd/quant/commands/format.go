package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wonny/conviction/internal/brain"
	"github.com/wonny/conviction/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	singleLine = "───────────────────────────────────────────────────────────"
	doubleLine = "═══════════════════════════════════════════════════════════"
)

// printHeader prints a titled block of key/value lines
func printHeader(w io.Writer, title string, kv [][2]string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, doubleLine)
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, singleLine)
	for _, pair := range kv {
		fmt.Fprintf(w, "  %-10s: %s\n", pair[0], pair[1])
	}
	fmt.Fprintln(w, singleLine)
}

// printTableHeader prints a table header
func printTableHeader(w io.Writer, columns []string, widths []int) {
	printTableRow(w, columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", totalWidth))
}

// printTableRow prints a table row
func printTableRow(w io.Writer, values []string, widths []int) {
	for i, val := range values {
		fmt.Fprintf(w, "%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
}

// printRankedResults prints results in rank order, optionally with the breakdown
func printRankedResults(w io.Writer, results []*contracts.ConvictionResult, top int, explain bool) {
	if top <= 0 || top > len(results) {
		top = len(results)
	}

	columns := []string{"#", "TICKER", "INSIDER", "FINAL", "WEIGHTED", "MULT", "CATEGORY", "COVERAGE"}
	widths := []int{3, 7, 24, 6, 8, 5, 11, 8}
	printTableHeader(w, columns, widths)

	for i, r := range results[:top] {
		insider := ""
		if r.Transaction != nil {
			insider = truncate(r.Transaction.InsiderName, widths[2])
		}
		printTableRow(w, []string{
			fmt.Sprintf("%d", i+1),
			r.Ticker,
			insider,
			fmt.Sprintf("%.3f", r.FinalScore),
			fmt.Sprintf("%.3f", r.WeightedScore),
			fmt.Sprintf("%.2f", r.TotalMultiplier),
			string(resultCategory(r)),
			fmt.Sprintf("%.0f%%", r.Coverage*100),
		}, widths)
	}

	if !explain {
		return
	}
	for _, r := range results[:top] {
		fmt.Fprintln(w)
		fmt.Fprintln(w, r.Explain())
	}
}

// printFailures lists items excluded from a batch
func printFailures(w io.Writer, failures []brain.ItemFailure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(w, "\n⚠️  %d transaction(s) failed:\n", len(failures))
	for _, f := range failures {
		fmt.Fprintf(w, "   • %s (%s): %s\n", f.Ticker, f.Key, f.Error)
	}
}

// printRunSummary prints the stage and count summary of a run
func printRunSummary(w io.Writer, run *brain.RunResult) {
	fmt.Fprintln(w, singleLine)
	fmt.Fprintf(w, "  Stages    : %s\n", strings.Join(run.CompletedStages, " → "))
	fmt.Fprintf(w, "  Raw       : %d\n", run.RawCount)
	fmt.Fprintf(w, "  Canonical : %d\n", run.CanonicalCount)
	if run.Batch != nil {
		fmt.Fprintf(w, "  Scored    : %d\n", len(run.Batch.Results))
		fmt.Fprintf(w, "  Filtered  : %d\n", run.Batch.Filtered)
		fmt.Fprintf(w, "  Failed    : %d\n", len(run.Batch.Failures))
		fmt.Fprintf(w, "  Run ID    : %s\n", run.Batch.RunID)
	}
	fmt.Fprintf(w, "  Duration  : %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, singleLine)
}

// resultCategory prefers the confidence-adjusted decision
func resultCategory(r *contracts.ConvictionResult) contracts.SignalCategory {
	if r.Decision != nil {
		return r.Decision.Category
	}
	return r.SignalStrength
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
