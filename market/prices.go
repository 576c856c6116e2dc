package market

import (
	"slices"

	"github.com/rustyeddy/plumbline/errs"
)

// PriceSource looks up a close price in the instrument's own currency.
type PriceSource interface {
	Price(ticker string, on Date) (float64, error)
	Currency(ticker string) (string, bool)
}

// PriceSeries is a read-only (ticker, date) -> close table. Build it with
// Add, then treat it as immutable.
type PriceSeries struct {
	currency map[string]string
	closes   map[string]map[Date]float64
}

// NewPriceSeries returns an empty series.
func NewPriceSeries() *PriceSeries {
	return &PriceSeries{
		currency: make(map[string]string),
		closes:   make(map[string]map[Date]float64),
	}
}

// Add records the close of ticker on a day. The first call for a ticker
// fixes its quote currency.
func (s *PriceSeries) Add(ticker, currency string, on Date, px float64) error {
	if px <= 0 {
		return errs.Validation("price for %s on %s must be > 0, got %v", ticker, on, px)
	}
	currency = NormalizeCurrency(currency)
	if cur, ok := s.currency[ticker]; ok && cur != currency {
		return errs.Validation("price for %s on %s quoted in %s, series is in %s", ticker, on, currency, cur)
	}
	s.currency[ticker] = currency
	days, ok := s.closes[ticker]
	if !ok {
		days = make(map[Date]float64)
		s.closes[ticker] = days
	}
	days[on] = px
	return nil
}

// Price returns the close of ticker on a day or a DataMissingError.
func (s *PriceSeries) Price(ticker string, on Date) (float64, error) {
	if px, ok := s.closes[ticker][on]; ok {
		return px, nil
	}
	return 0, errs.Missing(ticker, on)
}

// Currency returns the quote currency of ticker.
func (s *PriceSeries) Currency(ticker string) (string, bool) {
	c, ok := s.currency[ticker]
	return c, ok
}

// Tickers returns every ticker in the series, ascending.
func (s *PriceSeries) Tickers() []string {
	out := make([]string, 0, len(s.closes))
	for t := range s.closes {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Dates returns the trading calendar within r: the union of every ticker's
// dates, ascending.
func (s *PriceSeries) Dates(r Range) []Date {
	seen := make(map[Date]struct{})
	for _, days := range s.closes {
		for d := range days {
			if r.Contains(d) {
				seen[d] = struct{}{}
			}
		}
	}
	return sortedDates(seen)
}

// Points returns the closes of ticker in ascending date order.
func (s *PriceSeries) Points(ticker string) []Point {
	return points(s.closes[ticker])
}

// Point is one dated value of a series.
type Point struct {
	Date  Date
	Value float64
}

func points(m map[Date]float64) []Point {
	out := make([]Point, 0, len(m))
	for d, v := range m {
		out = append(out, Point{Date: d, Value: v})
	}
	slices.SortFunc(out, func(a, b Point) int { return compareDates(a.Date, b.Date) })
	return out
}

func sortedDates(set map[Date]struct{}) []Date {
	out := make([]Date, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	slices.SortFunc(out, compareDates)
	return out
}

func compareDates(a, b Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
