// Package risk measures how far a portfolio sits from its policy targets
// and what trading toward them costs.
package risk

import (
	"math"
	"slices"
	"strings"

	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/policy"
	"github.com/rustyeddy/plumbline/portfolio"
)

// Severity classifies the size of a drift against the policy thresholds.
type Severity string

const (
	SeverityNone Severity = "none"
	SeveritySoft Severity = "soft"
	SeverityHard Severity = "hard"
)

func (s Severity) rank() int {
	switch s {
	case SeverityHard:
		return 2
	case SeveritySoft:
		return 1
	}
	return 0
}

// Classify returns the band of drift d under th.
func Classify(d float64, th policy.Thresholds) Severity {
	a := math.Abs(d)
	switch {
	case a >= th.Hard:
		return SeverityHard
	case a >= th.Soft:
		return SeveritySoft
	default:
		return SeverityNone
	}
}

// Entry is the drift of one ticker in the selected universe.
// Drift is Target - Current, positive meaning underweight.
type Entry struct {
	Ticker        string        `json:"ticker"`
	Bucket        policy.Bucket `json:"bucket"`
	MarketValue   float64       `json:"market_value"`
	CurrentWeight float64       `json:"current_weight"`
	TargetWeight  float64       `json:"target_weight"`
	Drift         float64       `json:"drift"`
	Severity      Severity      `json:"severity"`
}

// Exposure is a held position that carries no target in the universe.
type Exposure struct {
	Ticker        string  `json:"ticker"`
	MarketValue   float64 `json:"market_value"`
	CurrentWeight float64 `json:"current_weight"`
}

// Report is the drift of a snapshot on one valuation date. Entries and
// OutOfPolicy are sorted by ticker.
type Report struct {
	AsOf         market.Date     `json:"as_of"`
	BaseCurrency string          `json:"base_currency"`
	Universe     policy.Universe `json:"universe"`
	TotalValue   float64         `json:"total_value"`
	Entries      []Entry         `json:"entries"`
	OutOfPolicy  []Exposure      `json:"out_of_policy,omitempty"`
}

// Entry returns the drift entry of ticker.
func (r Report) Entry(ticker string) (Entry, bool) {
	i, ok := slices.BinarySearchFunc(r.Entries, ticker, func(e Entry, t string) int {
		return strings.Compare(e.Ticker, t)
	})
	if !ok {
		return Entry{}, false
	}
	return r.Entries[i], true
}

// Breaches returns the entries at severity s or worse.
func (r Report) Breaches(s Severity) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Severity.rank() >= s.rank() {
			out = append(out, e)
		}
	}
	return out
}

// HasHardBreach reports whether any entry is at hard severity.
func (r Report) HasHardBreach() bool {
	for _, e := range r.Entries {
		if e.Severity == SeverityHard {
			return true
		}
	}
	return false
}

// Compute values holdings on asOf and compares each universe ticker to its
// target. Every held position counts toward TotalValue; held tickers with no
// target in u are reported as OutOfPolicy rather than as entries. Policy
// tickers that are not held appear with zero current weight.
func Compute(p *policy.Policy, holdings portfolio.Snapshot, prices market.PriceSource, fx market.RateSource, asOf market.Date, u policy.Universe) (Report, error) {
	val, err := portfolio.Value(holdings, prices, fx, p.BaseCurrency, asOf)
	if err != nil {
		return Report{}, err
	}

	r := Report{AsOf: asOf, BaseCurrency: p.BaseCurrency, Universe: u, TotalValue: val.Total}
	weight := func(v float64) float64 {
		if val.Total <= 0 {
			return 0
		}
		return v / val.Total
	}

	inUniverse := make(map[string]bool)
	for _, t := range p.Tickers(u) {
		inUniverse[t] = true
		b, _ := p.BucketOf(t)
		mv := val.Value(t)
		cur := weight(mv)
		tgt := p.Target(t, u)
		d := tgt - cur
		r.Entries = append(r.Entries, Entry{
			Ticker:        t,
			Bucket:        b,
			MarketValue:   mv,
			CurrentWeight: cur,
			TargetWeight:  tgt,
			Drift:         d,
			Severity:      Classify(d, p.DriftThresholds),
		})
	}
	for _, t := range val.Tickers() {
		if inUniverse[t] || holdings.Quantity(t) == 0 {
			continue
		}
		r.OutOfPolicy = append(r.OutOfPolicy, Exposure{Ticker: t, MarketValue: val.Value(t), CurrentWeight: weight(val.Value(t))})
	}
	return r, nil
}
