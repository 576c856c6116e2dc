package market

import (
	"slices"

	"github.com/rustyeddy/plumbline/errs"
)

// RateSource converts between currencies on a given day.
type RateSource interface {
	Rate(from, to string, on Date) (float64, error)
}

// FXSeries is a read-only (pair, date) -> rate table. A rate for "EUR/USD"
// is the number of USD paid for one EUR.
type FXSeries struct {
	rates map[string]map[Date]float64
}

// NewFXSeries returns an empty series.
func NewFXSeries() *FXSeries {
	return &FXSeries{rates: make(map[string]map[Date]float64)}
}

// Add records the rate of from/to on a day.
func (s *FXSeries) Add(from, to string, on Date, rate float64) error {
	from, to = NormalizeCurrency(from), NormalizeCurrency(to)
	if rate <= 0 {
		return errs.Validation("fx rate %s on %s must be > 0, got %v", Pair(from, to), on, rate)
	}
	if from == to {
		return errs.Validation("fx pair %s converts a currency to itself", Pair(from, to))
	}
	p := Pair(from, to)
	days, ok := s.rates[p]
	if !ok {
		days = make(map[Date]float64)
		s.rates[p] = days
	}
	days[on] = rate
	return nil
}

// Rate returns how many units of to one unit of from buys on a day.
//
//   - same currency: 1
//   - stored from/to pair: the stored rate
//   - stored to/from pair: its exact inverse
//
// Anything else is a DataMissingError naming the pair. Rates on other days
// are never used in place of the requested one.
func (s *FXSeries) Rate(from, to string, on Date) (float64, error) {
	if from == to {
		return 1, nil
	}
	if r, ok := s.rates[Pair(from, to)][on]; ok {
		return r, nil
	}
	if r, ok := s.rates[Pair(to, from)][on]; ok {
		return 1 / r, nil
	}
	return 0, errs.Missing(Pair(from, to), on)
}

// Pairs returns every stored pair, ascending.
func (s *FXSeries) Pairs() []string {
	out := make([]string, 0, len(s.rates))
	for p := range s.rates {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Points returns the stored rates of pair in ascending date order.
func (s *FXSeries) Points(pair string) []Point {
	return points(s.rates[pair])
}
