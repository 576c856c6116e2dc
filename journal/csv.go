package journal

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rustyeddy/plumbline/backtest"
)

var (
	tradesHeader = []string{"run_id", "date", "ticker", "side", "quantity", "price", "amount_base", "cost", "reason"}
	equityHeader = []string{"date", "equity", "cash", "drawdown", "turnover"}
)

// CSVJournal writes trades and the equity curve to two CSV files. Rows are
// written in the order they are recorded.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

// NewCSV creates both files and writes their headers. An empty tradesPath
// skips the trades file.
func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	j := &CSVJournal{}

	ef, err := os.Create(equityPath)
	if err != nil {
		return nil, err
	}
	j.ef, j.equity = ef, csv.NewWriter(ef)
	if err := j.equity.Write(equityHeader); err != nil {
		_ = ef.Close()
		return nil, err
	}

	if tradesPath != "" {
		tf, err := os.Create(tradesPath)
		if err != nil {
			_ = ef.Close()
			return nil, err
		}
		j.tf, j.trades = tf, csv.NewWriter(tf)
		if err := j.trades.Write(tradesHeader); err != nil {
			_ = j.Close()
			return nil, err
		}
	}

	return j, nil
}

func (j *CSVJournal) RecordTrade(runID string, t backtest.Trade) error {
	if j.trades == nil {
		return nil
	}
	return j.trades.Write([]string{
		runID,
		t.Date.String(),
		t.Ticker,
		string(t.Side),
		f(t.Quantity),
		f(t.Price),
		f(t.AmountBase),
		f(t.Cost),
		t.Reason,
	})
}

func (j *CSVJournal) RecordEquity(_ string, p backtest.EquityPoint) error {
	return j.equity.Write([]string{
		p.Date.String(),
		f(p.Equity),
		f(p.Cash),
		f(p.Drawdown),
		f(p.Turnover),
	})
}

func (j *CSVJournal) Close() error {
	if j.trades != nil {
		j.trades.Flush()
		if err := j.trades.Error(); err != nil {
			return err
		}
		if err := j.tf.Close(); err != nil {
			return err
		}
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
