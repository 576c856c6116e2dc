package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/plumbline/importer"
	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/portfolio"
)

var holdingsCmd = &cobra.Command{
	Use:   "holdings",
	Short: "Import and inspect stored holdings snapshots",
	Long: `Store holdings snapshots in the SQLite journal.

Subcommands:
  import - Import a holdings CSV or IBKR activity statement
  list   - List stored snapshots, newest first
  show   - Print a snapshot (the latest by default)
  delete - Remove a snapshot

Examples:
  plumbline holdings import holdings.csv --as-of 2024-06-28
  plumbline holdings import statement.csv --format ibkr
  plumbline holdings show`,
}

var holdingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import holdings into the journal",
	Args:  cobra.ExactArgs(1),
	RunE:  runHoldingsImport,
}

var holdingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots",
	Args:  cobra.NoArgs,
	RunE:  runHoldingsList,
}

var holdingsShowCmd = &cobra.Command{
	Use:   "show [snapshot-id]",
	Short: "Print a stored snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHoldingsShow,
}

var holdingsDeleteCmd = &cobra.Command{
	Use:   "delete <snapshot-id>",
	Short: "Delete a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runHoldingsDelete,
}

var (
	holdingsFormat string
	holdingsAsOf   string
	holdingsLimit  int
)

func init() {
	rootCmd.AddCommand(holdingsCmd)
	holdingsCmd.AddCommand(holdingsImportCmd, holdingsListCmd, holdingsShowCmd, holdingsDeleteCmd)

	holdingsImportCmd.Flags().StringVar(&holdingsFormat, "format", "", "file format: csv or ibkr (default data.holdings_format)")
	holdingsImportCmd.Flags().StringVar(&holdingsAsOf, "as-of", "", "snapshot date YYYY-MM-DD (default: statement period end for ibkr)")
	holdingsListCmd.Flags().IntVarP(&holdingsLimit, "limit", "n", 20, "max snapshots to list")
}

func runHoldingsImport(cmd *cobra.Command, args []string) error {
	asOf, err := dateFlag("as-of", holdingsAsOf)
	if err != nil {
		return err
	}
	format := holdingsFormat
	if format == "" {
		format = cfg.Data.HoldingsFormat
	}
	if format == "" {
		format = "csv"
	}

	var snap portfolio.Snapshot
	if format == "ibkr" && asOf.IsZero() {
		snap, err = importer.LoadStatement(args[0])
	} else {
		if asOf.IsZero() {
			return fmt.Errorf("--as-of is required for %s holdings", format)
		}
		snap, err = importer.LoadHoldings(args[0], format, asOf)
	}
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}

	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	sid, err := j.SaveSnapshot(cmd.Context(), snap, format)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	log.Info().Str("snapshot", sid).Int("positions", snap.Len()).Stringer("as_of", snap.AsOf()).Msg("holdings imported")
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Stored snapshot %s (%d positions as of %s)\n", sid, snap.Len(), snap.AsOf())
	return nil
}

func runHoldingsList(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	recs, err := j.ListSnapshots(cmd.Context(), holdingsLimit)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAS OF\tSOURCE\tCREATED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.AsOf(), r.Source, r.Created.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runHoldingsShow(cmd *cobra.Command, args []string) error {
	src := holdingsSource{}
	if len(args) == 1 {
		src.id = args[0]
	}
	snap, err := src.load(cmd.Context(), market.Date{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "As of %s\n\n", snap.AsOf())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKER\tQUANTITY\tCCY\tTYPE\tNAME")
	for _, p := range snap.Positions() {
		fmt.Fprintf(tw, "%s\t%g\t%s\t%s\t%s\n", p.Ticker, p.Quantity, p.Currency, p.AssetType, p.Name)
	}
	return tw.Flush()
}

func runHoldingsDelete(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	if err := j.DeleteSnapshot(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted snapshot %s\n", args[0])
	return nil
}
