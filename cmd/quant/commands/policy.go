package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/conviction/internal/strategyconfig"
)

// policyCmd represents the policy command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Weight policy 검증",
	Long: `Weight policy YAML을 검증하고 요약을 출력합니다.

Example:
  go run ./cmd/quant policy validate config/policy/insider_conviction.yaml`,
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Policy 파일 검증",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyValidate,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyValidateCmd)
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	cfg, data, err := strategyconfig.Load(args[0])
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}

	snap, err := strategyconfig.NewPolicySnapshot(cfg, data)
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	policy, err := strategyconfig.ToPolicy(cfg)
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}

	out := cmd.OutOrStdout()
	printHeader(out, "Weight Policy", [][2]string{
		{"ID", snap.PolicyID},
		{"Version", snap.PolicyVersion},
		{"Hash", snap.PolicyHash[:12]},
		{"Mode", string(policy.Combination.Mode)},
	})

	widths := []int{20, 8}
	printTableHeader(out, []string{"COMPONENT", "WEIGHT"}, widths)
	for _, name := range policy.ComponentNames() {
		printTableRow(out, []string{name, fmt.Sprintf("%.3f", policy.Weight(name))}, widths)
	}

	for _, w := range strategyconfig.Warn(cfg) {
		fmt.Fprintf(out, "⚠️  [%s] %s\n", w.Code, w.Message)
	}
	fmt.Fprintln(out, "✅ Policy is valid")
	return nil
}
