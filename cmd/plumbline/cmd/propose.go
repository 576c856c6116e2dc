package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/plumbline/allocator"
	"github.com/rustyeddy/plumbline/market"
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Split a contribution into buy orders",
	Long: `Propose how to invest a new contribution so the portfolio moves toward
its targets without selling. Underweight tickers receive cash in
proportion to their drift, subject to weight caps and the minimum trade
value.

Example:
  plumbline propose --amount 1000 --currency EUR --save`,
	Args: cobra.NoArgs,
	RunE: runPropose,
}

var (
	proposeFlags    evalFlags
	proposeAmount   float64
	proposeCurrency string
	proposeMinTrade float64
	proposeSave     bool
)

func init() {
	rootCmd.AddCommand(proposeCmd)
	proposeFlags.register(proposeCmd)

	proposeCmd.Flags().Float64VarP(&proposeAmount, "amount", "a", 0, "contribution amount (default policy contribution amount)")
	proposeCmd.Flags().StringVar(&proposeCurrency, "currency", "", "contribution currency (default policy contribution currency)")
	proposeCmd.Flags().Float64Var(&proposeMinTrade, "min-trade", 0, "override the policy minimum trade value")
	proposeCmd.Flags().BoolVar(&proposeSave, "save", false, "store the plan in the journal")
}

func runPropose(cmd *cobra.Command, args []string) error {
	p, report, fx, err := proposeFlags.evaluate(cmd.Context())
	if err != nil {
		return err
	}

	req := allocator.Request{
		Amount:   p.ContributionDefaults.Amount,
		Currency: market.NormalizeCurrency(proposeCurrency),
		Universe: report.Universe,
	}
	if cmd.Flags().Changed("amount") {
		req.Amount = proposeAmount
	}
	if cmd.Flags().Changed("min-trade") {
		req.MinTradeValue = &proposeMinTrade
	}

	plan, err := allocator.Allocate(req, p, report, fx)
	if err != nil {
		return fmt.Errorf("propose: %w", err)
	}
	for _, c := range plan.ConstraintsApplied {
		log.Debug().Str("ticker", c.Ticker).Str("code", c.Code).Msg(c.Msg)
	}

	if proposeSave {
		j, err := openJournal()
		if err != nil {
			return err
		}
		defer j.Close()
		if err := j.SaveProposal(cmd.Context(), plan); err != nil {
			return fmt.Errorf("save proposal: %w", err)
		}
		log.Info().Str("inputs_hash", plan.InputsHash).Msg("proposal stored")
	}

	if proposeFlags.json {
		return writeJSON(cmd.OutOrStdout(), plan)
	}
	return printPlan(cmd.OutOrStdout(), plan)
}

func printPlan(w io.Writer, b allocator.BuyPlan) error {
	fmt.Fprintf(w, "Contribution %s", market.FormatAmount(b.ContributionAmount, b.ContributionCurrency))
	if b.ContributionCurrency != b.BaseCurrency {
		fmt.Fprintf(w, " = %s at %.6g", market.FormatAmount(b.ContributionBase, b.BaseCurrency), b.FXRate)
	}
	fmt.Fprintf(w, " as of %s (%s)\n\n", b.AsOf, b.Universe)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tAMOUNT\tPRE\tTARGET\tPOST\tRATIONALE")
	for _, a := range b.Allocations {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f%%\t%.2f%%\t%.2f%%\t%s\n",
			a.Ticker, a.AmountBase, 100*a.PreWeight, 100*a.TargetWeight, 100*a.PostWeight, a.Rationale)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nUnallocated: %s\n", market.FormatAmount(b.UnallocatedCash, b.BaseCurrency))
	for _, c := range b.ConstraintsApplied {
		fmt.Fprintf(w, "  [%s] %s: %s\n", c.Code, c.Ticker, c.Msg)
	}
	for _, n := range b.Notes {
		fmt.Fprintf(w, "  note: %s\n", n)
	}
	fmt.Fprintf(w, "Inputs hash: %s\n", b.InputsHash)
	return nil
}
