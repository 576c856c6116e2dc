package backtest

import (
	"math"

	"github.com/rustyeddy/plumbline/pkg/id"
)

// TradingDaysPerYear annualizes daily volatility.
const TradingDaysPerYear = 252

// Summary holds the headline metrics of a run.
type Summary struct {
	Days             int     `json:"days"`
	StartEquity      float64 `json:"start_equity"`
	EndEquity        float64 `json:"end_equity"`
	CAGR             float64 `json:"cagr"`
	Volatility       float64 `json:"volatility"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	TotalTurnover    float64 `json:"total_turnover"`
	TotalCost        float64 `json:"total_cost"`
	TotalContributed float64 `json:"total_contributed"`
	TWR              float64 `json:"twr"`
}

// Summarize computes the run metrics from its equity curve. flows[i] is the
// cash contributed on points[i]; daily returns and TWR are measured net of
// it so that deposits do not read as gains.
func Summarize(points []EquityPoint, flows []float64, totalCost float64) Summary {
	s := Summary{TotalCost: totalCost}
	for _, f := range flows {
		s.TotalContributed += f
	}
	if len(points) == 0 {
		return s
	}
	first, last := points[0], points[len(points)-1]
	s.StartEquity, s.EndEquity = first.Equity, last.Equity
	s.Days = first.Date.DaysUntil(last.Date)
	s.CAGR = CAGR(first.Equity, last.Equity, s.Days)

	for _, p := range points {
		s.MaxDrawdown = math.Max(s.MaxDrawdown, p.Drawdown)
		s.TotalTurnover += p.Turnover
	}

	var logReturns []float64
	growth := 1.0
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Equity
		cur := points[i].Equity
		if i < len(flows) {
			cur -= flows[i]
		}
		if prev <= 0 || cur <= 0 {
			continue
		}
		r := cur / prev
		growth *= r
		logReturns = append(logReturns, math.Log(r))
	}
	s.TWR = growth - 1
	s.Volatility = Volatility(logReturns)
	return s
}

// CAGR is (end/start)^(365.25/days) - 1, or 0 when it is undefined.
func CAGR(start, end float64, days int) float64 {
	if days <= 0 || start <= 0 || end < 0 {
		return 0
	}
	return math.Pow(end/start, 365.25/float64(days)) - 1
}

// Volatility is the sample standard deviation of daily log returns,
// annualized. It needs at least two returns.
func Volatility(logReturns []float64) float64 {
	n := len(logReturns)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range logReturns {
		mean += r
	}
	mean /= float64(n)
	ss := 0.0
	for _, r := range logReturns {
		ss += (r - mean) * (r - mean)
	}
	return math.Sqrt(ss/float64(n-1)) * math.Sqrt(TradingDaysPerYear)
}

// CurveHash digests every field of every point in order.
func CurveHash(points []EquityPoint) string {
	d := id.NewDigest("curve")
	for _, p := range points {
		d.Str("date", p.Date.String()).
			Float("equity", p.Equity).
			Float("cash", p.Cash).
			Float("drawdown", p.Drawdown).
			Float("turnover", p.Turnover)
	}
	return d.Sum()
}
