package importer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rustyeddy/plumbline/errs"
	"github.com/rustyeddy/plumbline/market"
)

// ParsePrices reads a date,ticker,currency,close CSV.
func ParsePrices(r io.Reader) (*market.PriceSeries, error) {
	s := market.NewPriceSeries()
	err := eachRow(r, []string{"date", "ticker", "currency", "close"}, func(n int, get func(string) string) error {
		d, err := market.ParseDate(get("date"))
		if err != nil {
			return errs.Validation("row %d: %v", n, err)
		}
		px, err := positive(get("close"))
		if err != nil {
			return errs.Validation("row %d: close %v", n, err)
		}
		ticker := strings.ToUpper(get("ticker"))
		if ticker == "" {
			return errs.Validation("row %d: ticker cannot be empty", n)
		}
		return s.Add(ticker, get("currency"), d, px)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ParseFX reads a date,pair,rate CSV; pairs are written EUR/USD or EUR_USD.
func ParseFX(r io.Reader) (*market.FXSeries, error) {
	s := market.NewFXSeries()
	err := eachRow(r, []string{"date", "pair", "rate"}, func(n int, get func(string) string) error {
		d, err := market.ParseDate(get("date"))
		if err != nil {
			return errs.Validation("row %d: %v", n, err)
		}
		from, to, ok := market.SplitPair(get("pair"))
		if !ok {
			return errs.Validation("row %d: pair %q is not FROM/TO", n, get("pair"))
		}
		rate, err := positive(get("rate"))
		if err != nil {
			return errs.Validation("row %d: rate %v", n, err)
		}
		return s.Add(from, to, d, rate)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LoadPrices reads a price file.
func LoadPrices(path string) (*market.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prices: %w", err)
	}
	defer f.Close()
	return ParsePrices(f)
}

// LoadFX reads an FX file. An empty path yields an empty series, enough
// for a single-currency portfolio.
func LoadFX(path string) (*market.FXSeries, error) {
	if path == "" {
		return market.NewFXSeries(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fx: %w", err)
	}
	defer f.Close()
	return ParseFX(f)
}

func eachRow(r io.Reader, required []string, fn func(n int, get func(string) string) error) error {
	rows, err := readAll(r)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errs.Validation("CSV is empty")
	}
	cols, err := header(rows[0], required)
	if err != nil {
		return err
	}
	for i, row := range rows[1:] {
		get := func(name string) string {
			j := cols[name]
			if j >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[j])
		}
		if err := fn(i+2, get); err != nil {
			return err
		}
	}
	return nil
}
