package portfolio

import (
	"slices"

	"github.com/rustyeddy/plumbline/market"
)

// Valuation is a snapshot priced in a base currency on one day.
type Valuation struct {
	On           market.Date
	BaseCurrency string
	Total        float64
	values       map[string]float64
}

// Value returns the base-currency market value of ticker, 0 when not held.
func (v Valuation) Value(ticker string) float64 { return v.values[ticker] }

// Tickers returns the valued tickers, ascending.
func (v Valuation) Tickers() []string {
	out := make([]string, 0, len(v.values))
	for t := range v.values {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Value prices every position of s on a day and converts it to base.
// Zero-quantity positions need no price. A missing price or rate fails
// with the DataMissingError of the source.
func Value(s Snapshot, prices market.PriceSource, fx market.RateSource, base string, on market.Date) (Valuation, error) {
	v := Valuation{On: on, BaseCurrency: base, values: make(map[string]float64, s.Len())}
	for _, p := range s.positions {
		if p.Quantity == 0 {
			v.values[p.Ticker] = 0
			continue
		}
		px, err := PriceInBase(p.Ticker, p.Currency, prices, fx, base, on)
		if err != nil {
			return Valuation{}, err
		}
		mv := p.Quantity * px
		v.values[p.Ticker] = mv
		v.Total += mv
	}
	return v, nil
}

// PriceInBase returns the close of ticker converted to base. currency is
// the holding's currency; when empty the series' quote currency is used.
func PriceInBase(ticker, currency string, prices market.PriceSource, fx market.RateSource, base string, on market.Date) (float64, error) {
	px, err := prices.Price(ticker, on)
	if err != nil {
		return 0, err
	}
	if currency == "" {
		currency, _ = prices.Currency(ticker)
	}
	if currency == "" {
		currency = base
	}
	rate, err := fx.Rate(currency, base, on)
	if err != nil {
		return 0, err
	}
	return px * rate, nil
}
