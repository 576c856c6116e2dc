package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/plumbline/backtest"
	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/policy"
)

var (
	d1 = market.NewDate(2024, 1, 2)
	d2 = market.NewDate(2024, 1, 3)
	d3 = market.NewDate(2024, 1, 4)
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return j, path
}

func testRun(runID string) *backtest.Run {
	return &backtest.Run{
		ID:         runID,
		PolicyHash: "p0licy",
		Range:      market.Range{From: d1, To: d3},
		Universe:   policy.CoreOnly,
		Schedule:   "monthly 1000.00 on day 1",
		Points: []backtest.EquityPoint{
			{Date: d1, Equity: 1000, Cash: 1, Turnover: 999},
			{Date: d2, Equity: 990, Cash: 1, Drawdown: 0.01},
			{Date: d3, Equity: 1010, Cash: 1},
		},
		Trades: []backtest.Trade{
			{Date: d1, Ticker: "AAA", Side: backtest.Buy, Quantity: 6, Price: 100, AmountBase: 600, Cost: 0.6, Reason: "contribution"},
			{Date: d1, Ticker: "BBB", Side: backtest.Buy, Quantity: 4, Price: 100, AmountBase: 400, Cost: 0.4, Reason: "contribution"},
		},
		Summary: backtest.Summary{
			Days: 3, StartEquity: 1000, EndEquity: 1010, CAGR: 0.12,
			MaxDrawdown: 0.01, TotalTurnover: 999, TotalCost: 1, TotalContributed: 1000, TWR: 0.01,
		},
		CurveHash: "curve",
	}
}
