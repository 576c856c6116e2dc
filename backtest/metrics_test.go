package backtest

import (
	"math"
	"testing"

	"github.com/rustyeddy/plumbline/market"
	"github.com/stretchr/testify/assert"
)

func TestCAGR(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		start, end float64
		days       int
		want       float64
	}{
		{"one year", 100, 110, 365, math.Pow(1.1, 365.25/365) - 1},
		{"two years", 100, 121, 730, math.Pow(1.21, 365.25/730) - 1},
		{"no days", 100, 150, 0, 0},
		{"no start", 0, 150, 30, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, CAGR(tt.start, tt.end, tt.days), 1e-12)
		})
	}
}

func TestVolatility(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Volatility(nil))
	assert.Zero(t, Volatility([]float64{0.01}))
	assert.Zero(t, Volatility([]float64{0.01, 0.01, 0.01}))
	assert.InDelta(t, math.Sqrt(0.0002)*math.Sqrt(252), Volatility([]float64{0.01, -0.01}), 1e-12)
}

func TestSummarizeNetsOutFlows(t *testing.T) {
	t.Parallel()

	d := market.NewDate(2024, 1, 1)
	points := []EquityPoint{
		{Date: d, Equity: 100},
		{Date: d.AddDays(1), Equity: 210, Turnover: 0.5},
		{Date: d.AddDays(2), Equity: 231},
		{Date: d.AddDays(3), Equity: 207.9, Drawdown: 0.1},
	}
	flows := []float64{100, 100, 0, 0}

	s := Summarize(points, flows, 1.5)
	assert.Equal(t, 3, s.Days)
	assert.Equal(t, 100.0, s.StartEquity)
	assert.Equal(t, 207.9, s.EndEquity)
	assert.InDelta(t, 1.1*1.1*0.9-1, s.TWR, 1e-12)
	assert.Equal(t, 200.0, s.TotalContributed)
	assert.Equal(t, 1.5, s.TotalCost)
	assert.Equal(t, 0.5, s.TotalTurnover)
	assert.Equal(t, 0.1, s.MaxDrawdown)
	assert.Positive(t, s.Volatility)

	assert.Equal(t, Summary{TotalCost: 2}, Summarize(nil, nil, 2))
}

func TestCurveHash(t *testing.T) {
	t.Parallel()

	d := market.NewDate(2024, 1, 1)
	a := []EquityPoint{{Date: d, Equity: 100, Cash: 1}}
	b := []EquityPoint{{Date: d, Equity: 100, Cash: 1.0000001}}
	assert.Equal(t, CurveHash(a), CurveHash([]EquityPoint{{Date: d, Equity: 100, Cash: 1}}))
	assert.NotEqual(t, CurveHash(a), CurveHash(b))
	assert.NotEqual(t, CurveHash(a), CurveHash(nil))
}
