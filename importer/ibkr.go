package importer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rustyeddy/plumbline/errs"
	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/portfolio"
)

// IBKR Activity Statement section names.
const (
	sectionStatement   = "Statement"
	sectionPositions   = "Open Positions"
	sectionInstruments = "Financial Instrument Information"
)

// Statement is the part of an Interactive Brokers Activity Statement that
// describes current holdings.
type Statement struct {
	Holdings []portfolio.Position
	Period   string
}

var periodLayouts = []string{"January 2 2006", "January 2, 2006", "2006-01-02"}

// PeriodEnd returns the last day of the statement period, e.g. 2026-01-31
// for "January 1 - January 31 2026".
func (st Statement) PeriodEnd() (market.Date, error) {
	p := strings.TrimSpace(st.Period)
	if i := strings.LastIndex(p, " - "); i >= 0 {
		p = strings.TrimSpace(p[i+3:])
	}
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, p); err == nil {
			return market.DateOf(t), nil
		}
	}
	return market.Date{}, errs.Validation("cannot read a date from statement period %q", st.Period)
}

type instrument struct {
	name      string
	assetType string
}

// columns maps lower-cased header names to row indexes.
type columns map[string]int

func (c columns) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Layouts of the current export, used until a section's Header row says
// otherwise.
var (
	positionColumns   = columns{"datadiscriminator": 2, "currency": 4, "symbol": 5, "quantity": 6}
	instrumentColumns = columns{"symbol": 3, "description": 4, "type": 10}
)

func sectionHeader(section string, row []string, required ...string) (columns, error) {
	cols, err := header(row, required)
	if err != nil {
		return nil, fmt.Errorf("%s header: %w", section, err)
	}
	return cols, nil
}

// ParseIBKR reads an Activity Statement export. The file is a stack of
// sections, each row starting with the section name and a row kind
// (Header, Data, Total). Holdings come from the Summary data rows of Open
// Positions and are enriched from Financial Instrument Information.
// Columns are located by the section's Header row.
func ParseIBKR(r io.Reader) (Statement, error) {
	rows, err := readAll(r)
	if err != nil {
		return Statement{}, err
	}
	if len(rows) == 0 {
		return Statement{}, errs.Validation("IBKR Activity Statement is empty")
	}

	sections := make(map[string][][]string)
	for _, row := range rows {
		name := strings.TrimSpace(row[0])
		if name != "" && len(row) > 1 {
			sections[name] = append(sections[name], row)
		}
	}
	positions, ok := sections[sectionPositions]
	if !ok {
		return Statement{}, &errs.ValidationError{
			Message: "no Open Positions section found",
			Details: "an IBKR Activity Statement must contain an 'Open Positions' section",
		}
	}

	instruments := make(map[string]instrument)
	cols := instrumentColumns
	for _, row := range sections[sectionInstruments] {
		if row[1] == "Header" {
			if cols, err = sectionHeader(sectionInstruments, row, "symbol"); err != nil {
				return Statement{}, err
			}
			continue
		}
		if row[1] != "Data" {
			continue
		}
		sym := strings.ToUpper(cols.get(row, "symbol"))
		if sym == "" {
			continue
		}
		in := instrument{name: cols.get(row, "description"), assetType: assetType(cols.get(row, "type"))}
		if in.name == "" {
			in.name = sym
		}
		instruments[sym] = in
	}

	var st Statement
	cols = positionColumns
	for _, row := range positions {
		if row[1] == "Header" {
			if cols, err = sectionHeader(sectionPositions, row, "currency", "symbol", "quantity"); err != nil {
				return Statement{}, err
			}
			continue
		}
		if row[1] != "Data" || cols.get(row, "datadiscriminator") != "Summary" {
			continue
		}
		sym := strings.ToUpper(cols.get(row, "symbol"))
		if sym == "" {
			continue
		}
		qty, err := positive(cols.get(row, "quantity"))
		if err != nil {
			return Statement{}, errs.Validation("invalid quantity for %s: %v", sym, err)
		}
		in, ok := instruments[sym]
		if !ok {
			in = instrument{name: sym, assetType: "equity"}
		}
		st.Holdings = append(st.Holdings, portfolio.Position{
			Ticker:    sym,
			Quantity:  qty,
			Currency:  market.NormalizeCurrency(cols.get(row, "currency")),
			AssetType: in.assetType,
			Name:      in.name,
		})
	}
	if len(st.Holdings) == 0 {
		return Statement{}, errs.Validation("no holdings found in Open Positions")
	}
	sortPositions(st.Holdings)

	for _, row := range sections[sectionStatement] {
		if len(row) >= 4 && row[1] == "Data" && row[2] == "Period" {
			st.Period = strings.TrimSpace(row[3])
			break
		}
	}
	return st, nil
}

func assetType(ibkr string) string {
	if strings.EqualFold(strings.TrimSpace(ibkr), "ETF") {
		return "etf"
	}
	return "equity"
}
