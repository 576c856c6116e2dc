// Package portfolio holds immutable holdings snapshots and their valuation
// in a base currency.
package portfolio

import (
	"slices"

	"github.com/rustyeddy/plumbline/errs"
	"github.com/rustyeddy/plumbline/market"
)

// Position is one holding line of a snapshot.
type Position struct {
	Ticker    string  `json:"ticker" yaml:"ticker"`
	Quantity  float64 `json:"quantity" yaml:"quantity"`
	Currency  string  `json:"currency" yaml:"currency"`
	AssetType string  `json:"asset_type" yaml:"asset_type"`
	Name      string  `json:"name,omitempty" yaml:"name,omitempty"`
}

// Snapshot is the state of a portfolio as of a day. It is never mutated:
// Apply returns a new snapshot.
type Snapshot struct {
	asOf      market.Date
	positions []Position
}

// NewSnapshot validates and copies positions. A ticker may appear once.
func NewSnapshot(asOf market.Date, positions []Position) (Snapshot, error) {
	seen := make(map[string]bool, len(positions))
	cp := make([]Position, 0, len(positions))
	for _, p := range positions {
		if p.Ticker == "" {
			return Snapshot{}, errs.Validation("position ticker cannot be empty")
		}
		if seen[p.Ticker] {
			return Snapshot{}, errs.Validation("ticker %s appears twice in snapshot", p.Ticker)
		}
		if p.Quantity < 0 {
			return Snapshot{}, errs.Validation("quantity for %s must be >= 0, got %v", p.Ticker, p.Quantity)
		}
		seen[p.Ticker] = true
		p.Currency = market.NormalizeCurrency(p.Currency)
		cp = append(cp, p)
	}
	return Snapshot{asOf: asOf, positions: cp}, nil
}

// AsOf returns the snapshot's day.
func (s Snapshot) AsOf() market.Date { return s.asOf }

// Positions returns a copy of the positions in recorded order.
func (s Snapshot) Positions() []Position { return slices.Clone(s.positions) }

// Len returns the number of positions.
func (s Snapshot) Len() int { return len(s.positions) }

// Position returns the holding for ticker.
func (s Snapshot) Position(ticker string) (Position, bool) {
	for _, p := range s.positions {
		if p.Ticker == ticker {
			return p, true
		}
	}
	return Position{}, false
}

// Quantity returns the units held of ticker, 0 when absent.
func (s Snapshot) Quantity(ticker string) float64 {
	p, _ := s.Position(ticker)
	return p.Quantity
}

// Tickers returns every held ticker, ascending.
func (s Snapshot) Tickers() []string {
	out := make([]string, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p.Ticker)
	}
	slices.Sort(out)
	return out
}

// Trade is a quantity change for one ticker. Positive buys, negative sells.
type Trade struct {
	Ticker   string
	Quantity float64
	Currency string
}

// Apply returns a new snapshot dated asOf with trades applied. Unknown
// tickers are appended in trade order. Selling more than is held is a
// ValidationError.
func (s Snapshot) Apply(asOf market.Date, trades []Trade) (Snapshot, error) {
	next := Snapshot{asOf: asOf, positions: slices.Clone(s.positions)}
	for _, tr := range trades {
		i := slices.IndexFunc(next.positions, func(p Position) bool { return p.Ticker == tr.Ticker })
		if i < 0 {
			if tr.Quantity < 0 {
				return Snapshot{}, errs.Validation("cannot sell %s: not held", tr.Ticker)
			}
			next.positions = append(next.positions, Position{
				Ticker:   tr.Ticker,
				Quantity: tr.Quantity,
				Currency: market.NormalizeCurrency(tr.Currency),
			})
			continue
		}
		q := next.positions[i].Quantity + tr.Quantity
		if q < -quantityEpsilon {
			return Snapshot{}, errs.Validation("cannot sell %v %s: only %v held", -tr.Quantity, tr.Ticker, next.positions[i].Quantity)
		}
		if q < 0 {
			q = 0
		}
		next.positions[i].Quantity = q
	}
	return next, nil
}

const quantityEpsilon = 1e-9
