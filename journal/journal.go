// Package journal stores holdings snapshots, buy proposals and backtest
// runs, and exports run results as CSV and Org.
package journal

import (
	"github.com/rustyeddy/plumbline/backtest"
)

// Journal receives the trades and equity curve of a run.
type Journal interface {
	RecordTrade(runID string, t backtest.Trade) error
	RecordEquity(runID string, p backtest.EquityPoint) error
	Close() error
}

// WriteRun streams the trades and equity points of run into j, in the
// order the engine produced them.
func WriteRun(j Journal, run *backtest.Run) error {
	for _, t := range run.Trades {
		if err := j.RecordTrade(run.ID, t); err != nil {
			return err
		}
	}
	for _, p := range run.Points {
		if err := j.RecordEquity(run.ID, p); err != nil {
			return err
		}
	}
	return nil
}
