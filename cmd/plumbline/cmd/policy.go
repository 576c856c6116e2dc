package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/plumbline/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Write or check a target-weight policy",
	Long: `Manage the policy document.

Subcommands:
  init     - Write an example core/satellite policy
  validate - Validate a policy and print its normalized targets

Examples:
  plumbline policy init -o policy.yaml
  plumbline policy validate policy.yaml`,
}

var policyInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write an example policy",
	Annotations: map[string]string{"config": "none"},
	RunE:        runPolicyInit,
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a policy and print its targets",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPolicyValidate,
}

var policyInitOutput string

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyInitCmd)
	policyCmd.AddCommand(policyValidateCmd)

	policyInitCmd.Flags().StringVarP(&policyInitOutput, "output", "o", "policy.yaml", "output policy file path")
}

func runPolicyInit(cmd *cobra.Command, args []string) error {
	if err := policy.Example().SaveToFile(policyInitOutput); err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Created example policy: %s\n", policyInitOutput)
	return nil
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	p, err := loadPolicy(path)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Policy valid (hash %s)\n", p.Hash()[:12])
	fmt.Fprintf(out, "  Base currency: %s\n", p.BaseCurrency)
	fmt.Fprintf(out, "  Drift bands: soft %.2f%% / hard %.2f%%\n", 100*p.DriftThresholds.Soft, 100*p.DriftThresholds.Hard)
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tBUCKET\tCORE\tCORE+SATELLITE\tCAP")
	for _, t := range p.Tickers(policy.CoreSatellite) {
		b, _ := p.BucketOf(t)
		capText := "-"
		if w, ok := p.Constraints.Cap(t); ok {
			capText = fmt.Sprintf("%.2f%%", 100*w)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f%%\t%.2f%%\t%s\n", t, b,
			100*p.Target(t, policy.CoreOnly), 100*p.Target(t, policy.CoreSatellite), capText)
	}
	return tw.Flush()
}
