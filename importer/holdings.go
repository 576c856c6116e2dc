// Package importer reads holdings and market data files into the core
// types. Every parse failure is an *errs.ValidationError naming the row.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/plumbline/errs"
	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/portfolio"
)

var holdingColumns = []string{"ticker", "qty", "currency", "asset_type"}

// ParseHoldingsCSV reads a header-first CSV with ticker, qty, currency and
// asset_type columns, plus an optional name. Tickers are upper-cased, qty
// must be a positive decimal. The result is sorted by ticker.
func ParseHoldingsCSV(r io.Reader) ([]portfolio.Position, error) {
	rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.Validation("CSV is empty")
	}
	cols, err := header(rows[0], holdingColumns)
	if err != nil {
		return nil, err
	}

	var out []portfolio.Position
	for i, row := range rows[1:] {
		n := i + 2 // header is row 1
		field := func(name string) string {
			j, ok := cols[name]
			if !ok || j >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[j])
		}
		p := portfolio.Position{
			Ticker:    strings.ToUpper(field("ticker")),
			Currency:  market.NormalizeCurrency(field("currency")),
			AssetType: field("asset_type"),
			Name:      field("name"),
		}
		for _, name := range holdingColumns {
			if field(name) == "" {
				return nil, &errs.ValidationError{
					Message: fmt.Sprintf("row %d: %s cannot be empty", n, name),
					Details: strings.Join(row, ","),
				}
			}
		}
		if p.Quantity, err = positive(field("qty")); err != nil {
			return nil, errs.Validation("row %d: qty %v", n, err)
		}
		out = append(out, p)
	}
	sortPositions(out)
	return out, nil
}

// positive parses s as a decimal greater than zero.
func positive(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("must be a valid number, got %q", s)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("must be greater than 0, got %q", s)
	}
	return d.InexactFloat64(), nil
}

// header maps lower-cased column names to their index and checks that
// every required column is present.
func header(row []string, required []string) (map[string]int, error) {
	cols := make(map[string]int, len(row))
	for i, c := range row {
		cols[strings.ToLower(strings.TrimSpace(c))] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		have := make([]string, 0, len(cols))
		for c := range cols {
			have = append(have, c)
		}
		slices.Sort(have)
		return nil, &errs.ValidationError{
			Message: "missing required columns: " + strings.Join(missing, ", "),
			Details: "header has: " + strings.Join(have, ", "),
		}
	}
	return cols, nil
}

// readAll reads every record, tolerating ragged rows and skipping blank
// lines.
func readAll(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, errs.Validation("malformed CSV: %v", err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		rows = append(rows, rec)
	}
}

func sortPositions(ps []portfolio.Position) {
	slices.SortFunc(ps, func(a, b portfolio.Position) int { return strings.Compare(a.Ticker, b.Ticker) })
}
