package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/plumbline/backtest"
	"github.com/rustyeddy/plumbline/journal"
	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/policy"
	"github.com/rustyeddy/plumbline/portfolio"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a contribution schedule over historical prices",
	Long: `Backtest simulates the policy one trading day at a time: scheduled
contributions are invested with the same allocator used by propose, and
when selling is allowed a hard drift breach triggers a rebalance.

Results are journaled according to journal.type (sqlite or csv), and an
Org report is written to journal.org_dir when it is set.

Example:
  plumbline backtest --from 2020-01-01 --to 2024-12-31 --amount 500`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

var (
	btPolicyFile string
	btFrom       string
	btTo         string
	btUniverse   string
	btCash       float64
	btAmount     float64
	btCurrency   string
	btDay        int
	btSnapshot   string
	btTrades     string
	btJSON       bool
	btNoJournal  bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btPolicyFile, "policy", "p", "", "policy file (default policy.file)")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "first day YYYY-MM-DD (default backtest.from)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "last day YYYY-MM-DD (default backtest.to)")
	backtestCmd.Flags().StringVarP(&btUniverse, "universe", "u", "", "core or core+satellite (default backtest.universe)")
	backtestCmd.Flags().Float64Var(&btCash, "cash", 0, "starting cash in base currency (default backtest.cash)")
	backtestCmd.Flags().Float64VarP(&btAmount, "amount", "a", 0, "monthly contribution amount")
	backtestCmd.Flags().StringVar(&btCurrency, "currency", "", "monthly contribution currency")
	backtestCmd.Flags().IntVar(&btDay, "day", 0, "monthly contribution day of month (1-28)")
	backtestCmd.Flags().StringVar(&btSnapshot, "snapshot", "", "start from the positions of this stored snapshot")
	backtestCmd.Flags().StringVar(&btTrades, "trades", "", "csv journal: also write trades to this file")
	backtestCmd.Flags().BoolVar(&btJSON, "json", false, "print the run as JSON")
	backtestCmd.Flags().BoolVar(&btNoJournal, "no-journal", false, "do not journal the run")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := loadPolicy(btPolicyFile)
	if err != nil {
		return err
	}

	bc := cfg.Backtest
	if bc.From, err = overrideDate("from", btFrom, bc.From); err != nil {
		return err
	}
	if bc.To, err = overrideDate("to", btTo, bc.To); err != nil {
		return err
	}
	if btUniverse != "" {
		bc.Universe = btUniverse
	}
	if cmd.Flags().Changed("cash") {
		bc.Cash = btCash
	}
	if btAmount > 0 {
		bc.Amount, bc.Contributions = btAmount, nil
	}
	if btCurrency != "" {
		bc.Currency = btCurrency
	}
	if btDay > 0 {
		bc.DayOfMonth = btDay
	}
	u := p.ContributionDefaults.Universe
	if bc.Universe != "" {
		if u, err = policy.ParseUniverse(bc.Universe); err != nil {
			return err
		}
	}

	holdings, err := portfolio.NewSnapshot(bc.From, nil)
	if err != nil {
		return err
	}
	if btSnapshot != "" {
		if holdings, err = (holdingsSource{id: btSnapshot}).load(ctx, bc.From); err != nil {
			return err
		}
	}

	prices, fx, err := loadMarket()
	if err != nil {
		return err
	}

	engine, err := backtest.NewEngine(backtest.Config{
		Policy:   p,
		Range:    bc.Range(),
		Universe: u,
		Schedule: bc.Schedule(p),
		Holdings: holdings,
		Cash:     bc.Cash,
	}, prices, fx, backtest.WithLogger(log))
	if err != nil {
		return err
	}

	run, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	if !btNoJournal {
		if err := journalRun(cmd, run); err != nil {
			return err
		}
	}

	if btJSON {
		return writeJSON(cmd.OutOrStdout(), run)
	}
	printSummary(cmd.OutOrStdout(), run)
	return nil
}

func overrideDate(name, flag string, def market.Date) (market.Date, error) {
	d, err := dateFlag(name, flag)
	if err != nil || d.IsZero() {
		return def, err
	}
	return d, nil
}

func journalRun(cmd *cobra.Command, run *backtest.Run) error {
	jc := cfg.Journal
	switch jc.Type {
	case "csv":
		j, err := journal.NewCSV(btTrades, jc.EquityFile)
		if err != nil {
			return fmt.Errorf("open csv journal: %w", err)
		}
		if err := journal.WriteRun(j, run); err != nil {
			_ = j.Close()
			return fmt.Errorf("write csv journal: %w", err)
		}
		if err := j.Close(); err != nil {
			return err
		}
		log.Info().Str("file", jc.EquityFile).Msg("equity curve written")
	default:
		j, err := openJournal()
		if err != nil {
			return err
		}
		defer j.Close()
		if err := j.RecordBacktest(cmd.Context(), run); err != nil {
			return fmt.Errorf("record backtest: %w", err)
		}
		log.Info().Str("run_id", run.ID).Msg("run stored")
	}

	if jc.OrgDir != "" {
		btr := journal.NewBacktestRun(run)
		btr.OrgPath = filepath.Join(jc.OrgDir, "backtest-"+run.ID[:12]+".org")
		if err := btr.WriteBacktestOrg(); err != nil {
			return fmt.Errorf("write org report: %w", err)
		}
		log.Info().Str("file", btr.OrgPath).Msg("org report written")
	}
	return nil
}

func printSummary(w io.Writer, run *backtest.Run) {
	s := run.Summary
	fmt.Fprintf(w, "Backtest %s (%s)\n", run.Range, run.Universe)
	fmt.Fprintf(w, "  Run ID:        %s\n", run.ID)
	fmt.Fprintf(w, "  Schedule:      %s\n", run.Schedule)
	fmt.Fprintf(w, "  Calendar days: %d\n", s.Days)
	fmt.Fprintf(w, "  Contributed:   %.2f\n", s.TotalContributed)
	fmt.Fprintf(w, "  End equity:    %.2f\n", s.EndEquity)
	fmt.Fprintf(w, "  CAGR:          %.2f%%\n", 100*s.CAGR)
	fmt.Fprintf(w, "  Volatility:    %.2f%%\n", 100*s.Volatility)
	fmt.Fprintf(w, "  Max drawdown:  %.2f%%\n", 100*s.MaxDrawdown)
	fmt.Fprintf(w, "  TWR:           %.2f%%\n", 100*s.TWR)
	fmt.Fprintf(w, "  Turnover:      %.2f\n", s.TotalTurnover)
	fmt.Fprintf(w, "  Costs:         %.2f\n", s.TotalCost)
	fmt.Fprintf(w, "  Trades:        %d\n", len(run.Trades))
}
