package backtest

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/rustyeddy/plumbline/errs"
	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/pkg/id"
)

// Contribution is cash paid into the portfolio on a day.
type Contribution struct {
	Date     market.Date `json:"date" yaml:"date"`
	Amount   float64     `json:"amount" yaml:"amount"`
	Currency string      `json:"currency" yaml:"currency"`
}

// Schedule decides which trading days receive contributions.
type Schedule interface {
	// Resolve maps the schedule onto calendar, the ascending trading dates
	// of r, returning contributions keyed by trading date.
	Resolve(r market.Range, calendar []market.Date) (map[market.Date][]Contribution, error)
	// Hash adds the schedule's content to a run digest.
	Hash(d *id.Digest)
	String() string
}

// Monthly pays Amount on the first trading date on or after DayOfMonth of
// every month covered by the calendar. A month whose day falls before the
// start of the range is skipped.
type Monthly struct {
	Amount     float64
	Currency   string
	DayOfMonth int
}

func (m Monthly) Resolve(r market.Range, calendar []market.Date) (map[market.Date][]Contribution, error) {
	if m.Amount < 0 || math.IsNaN(m.Amount) || math.IsInf(m.Amount, 0) {
		return nil, errs.Validation("monthly contribution must be a finite number >= 0, got %v", m.Amount)
	}
	if m.DayOfMonth < 1 || m.DayOfMonth > 28 {
		return nil, errs.Validation("day_of_month must be in 1..28, got %d", m.DayOfMonth)
	}
	out := make(map[market.Date][]Contribution)
	if len(calendar) == 0 || m.Amount == 0 {
		return out, nil
	}
	first, last := calendar[0], calendar[len(calendar)-1]
	if !r.From.IsZero() && r.From.Before(first) {
		first = r.From
	}
	y, mon := first.Year(), first.Month()
	for {
		due := market.NewDate(y, mon, m.DayOfMonth)
		if due.After(last) {
			break
		}
		if !due.Before(first) {
			on, ok := rollForward(calendar, due)
			if ok {
				out[on] = append(out[on], Contribution{Date: on, Amount: m.Amount, Currency: m.Currency})
			}
		}
		mon++
		if mon > time.December {
			mon = time.January
			y++
		}
	}
	return out, nil
}

func (m Monthly) Hash(d *id.Digest) {
	d.Str("schedule", "monthly").
		Float("amount", m.Amount).
		Str("currency", m.Currency).
		Int("day_of_month", int64(m.DayOfMonth))
}

func (m Monthly) String() string {
	if m.Currency == "" {
		return fmt.Sprintf("monthly %.2f on day %d", m.Amount, m.DayOfMonth)
	}
	return fmt.Sprintf("monthly %s on day %d", market.FormatAmount(m.Amount, m.Currency), m.DayOfMonth)
}

// Table is an explicit list of contributions. A date that is not a trading
// day rolls forward to the next one.
type Table []Contribution

func (t Table) Resolve(r market.Range, calendar []market.Date) (map[market.Date][]Contribution, error) {
	out := make(map[market.Date][]Contribution)
	for _, c := range t.sorted() {
		if c.Amount < 0 || math.IsNaN(c.Amount) || math.IsInf(c.Amount, 0) {
			return nil, errs.Validation("contribution on %s must be a finite number >= 0, got %v", c.Date, c.Amount)
		}
		if !r.Contains(c.Date) {
			return nil, errs.Validation("contribution on %s is outside %s", c.Date, r)
		}
		on, ok := rollForward(calendar, c.Date)
		if !ok {
			return nil, errs.Validation("contribution on %s has no trading date on or after it", c.Date)
		}
		c.Date = on
		out[on] = append(out[on], c)
	}
	return out, nil
}

func (t Table) Hash(d *id.Digest) {
	d.Str("schedule", "table")
	for _, c := range t.sorted() {
		d.Str("date", c.Date.String()).Float("amount", c.Amount).Str("currency", c.Currency)
	}
}

func (t Table) String() string { return fmt.Sprintf("table of %d contributions", len(t)) }

// sorted orders by date, then currency, then amount.
func (t Table) sorted() Table {
	out := slices.Clone(t)
	slices.SortStableFunc(out, func(a, b Contribution) int {
		switch {
		case a.Date.Before(b.Date):
			return -1
		case a.Date.After(b.Date):
			return 1
		case a.Currency != b.Currency:
			if a.Currency < b.Currency {
				return -1
			}
			return 1
		case a.Amount < b.Amount:
			return -1
		case a.Amount > b.Amount:
			return 1
		}
		return 0
	})
	return out
}

// rollForward returns the first calendar date on or after d.
func rollForward(calendar []market.Date, d market.Date) (market.Date, bool) {
	i, _ := slices.BinarySearchFunc(calendar, d, func(c, target market.Date) int {
		switch {
		case c.Before(target):
			return -1
		case c.After(target):
			return 1
		}
		return 0
	})
	if i >= len(calendar) {
		return market.Date{}, false
	}
	return calendar[i], true
}
