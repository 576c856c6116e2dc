package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/plumbline/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query stored backtest runs and proposals",
	Long: `Query and export records from the SQLite journal.

Subcommands:
  runs     - List stored backtest runs
  show     - Print the Org report of a run
  equity   - Export the equity curve of a run as CSV
  proposal - Print a stored buy plan by inputs hash

Examples:
  plumbline journal runs
  plumbline journal show <run-id>
  plumbline journal equity <run-id> -o equity.csv`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored backtest runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the Org report of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity <run-id>",
	Short: "Export the equity curve of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEquity,
}

var journalProposalCmd = &cobra.Command{
	Use:   "proposal <inputs-hash>",
	Short: "Print a stored buy plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalProposal,
}

var (
	journalLimit  int
	journalOutput string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd, journalShowCmd, journalEquityCmd, journalProposalCmd)

	journalRunsCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "max runs to list")
	journalEquityCmd.Flags().StringVarP(&journalOutput, "output", "o", "equity.csv", "output CSV path")
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListBacktestRuns(cmd.Context(), journalLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tRANGE\tUNIVERSE\tEND EQUITY\tCAGR\tMAX DD")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s..%s\t%s\t%.2f\t%.2f%%\t%.2f%%\n",
			r.RunID, r.Start, r.End, r.Universe, r.Summary.EndEquity, 100*r.Summary.CAGR, 100*r.Summary.MaxDrawdown)
	}
	return tw.Flush()
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	org, err := j.ExportBacktestOrg(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), org)
	return nil
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	runID := args[0]
	if _, err := j.GetBacktestRun(cmd.Context(), runID); err != nil {
		return err
	}
	points, err := j.ListEquityByRunID(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}

	out, err := journal.NewCSV("", journalOutput)
	if err != nil {
		return err
	}
	for _, p := range points {
		if err := out.RecordEquity(runID, p); err != nil {
			_ = out.Close()
			return err
		}
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d points to %s\n", len(points), journalOutput)
	return nil
}

func runJournalProposal(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	plan, err := j.GetProposal(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printPlan(cmd.OutOrStdout(), plan)
}
