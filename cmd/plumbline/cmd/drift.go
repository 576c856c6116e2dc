package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/policy"
	"github.com/rustyeddy/plumbline/risk"
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Compare holdings to the policy targets",
	Long: `Value the holdings in the policy base currency and report each ticker's
current weight, target weight and drift.

Holdings come from --holdings when given, otherwise from a stored snapshot
(--snapshot, or the latest one).

Example:
  plumbline drift --as-of 2024-06-28 --universe core+satellite`,
	Args: cobra.NoArgs,
	RunE: runDrift,
}

// evalFlags are shared by drift and propose.
type evalFlags struct {
	policyFile string
	holdings   holdingsSource
	asOf       string
	universe   string
	json       bool
}

func (f *evalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.policyFile, "policy", "p", "", "policy file (default policy.file)")
	cmd.Flags().StringVar(&f.holdings.path, "holdings", "", "read holdings from this file instead of the journal")
	cmd.Flags().StringVar(&f.holdings.format, "format", "", "holdings file format: csv or ibkr")
	cmd.Flags().StringVar(&f.holdings.id, "snapshot", "", "stored snapshot id (default latest)")
	cmd.Flags().StringVar(&f.asOf, "as-of", "", "valuation date YYYY-MM-DD (default snapshot date)")
	cmd.Flags().StringVarP(&f.universe, "universe", "u", "", "core or core+satellite (default policy contribution universe)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print JSON")
}

// evaluate loads everything a drift report needs and computes it.
func (f *evalFlags) evaluate(ctx context.Context) (*policy.Policy, risk.Report, *market.FXSeries, error) {
	p, err := loadPolicy(f.policyFile)
	if err != nil {
		return nil, risk.Report{}, nil, err
	}
	asOf, err := dateFlag("as-of", f.asOf)
	if err != nil {
		return nil, risk.Report{}, nil, err
	}
	u := p.ContributionDefaults.Universe
	if f.universe != "" {
		if u, err = policy.ParseUniverse(f.universe); err != nil {
			return nil, risk.Report{}, nil, err
		}
	}
	snap, err := f.holdings.load(ctx, asOf)
	if err != nil {
		return nil, risk.Report{}, nil, err
	}
	prices, fx, err := loadMarket()
	if err != nil {
		return nil, risk.Report{}, nil, err
	}

	report, err := risk.Compute(p, snap, prices, fx, snap.AsOf(), u)
	if err != nil {
		return nil, risk.Report{}, nil, fmt.Errorf("drift: %w", err)
	}
	return p, report, fx, nil
}

var driftFlags evalFlags

func init() {
	rootCmd.AddCommand(driftCmd)
	driftFlags.register(driftCmd)
}

func runDrift(cmd *cobra.Command, args []string) error {
	_, report, _, err := driftFlags.evaluate(cmd.Context())
	if err != nil {
		return err
	}
	for _, e := range report.Breaches(risk.SeverityHard) {
		log.Warn().Str("ticker", e.Ticker).Float64("drift", e.Drift).Msg("hard drift breach")
	}
	if driftFlags.json {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	return printDrift(cmd.OutOrStdout(), report)
}

func printDrift(w io.Writer, r risk.Report) error {
	fmt.Fprintf(w, "As of %s, universe %s, total %s\n\n", r.AsOf, r.Universe, market.FormatAmount(r.TotalValue, r.BaseCurrency))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tBUCKET\tVALUE\tCURRENT\tTARGET\tDRIFT\tSEVERITY")
	for _, e := range r.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f%%\t%.2f%%\t%+.2f%%\t%s\n",
			e.Ticker, e.Bucket, e.MarketValue, 100*e.CurrentWeight, 100*e.TargetWeight, 100*e.Drift, e.Severity)
	}
	for _, x := range r.OutOfPolicy {
		fmt.Fprintf(tw, "%s\t-\t%.2f\t%.2f%%\t-\t-\tout of policy\n", x.Ticker, x.MarketValue, 100*x.CurrentWeight)
	}
	return tw.Flush()
}
