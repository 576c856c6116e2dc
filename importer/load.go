package importer

import (
	"fmt"
	"os"

	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/portfolio"
)

// LoadHoldings reads a holdings file in format "csv" (the default) or
// "ibkr" and returns it as a snapshot dated asOf.
func LoadHoldings(path, format string, asOf market.Date) (portfolio.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return portfolio.Snapshot{}, fmt.Errorf("open holdings: %w", err)
	}
	defer f.Close()

	var positions []portfolio.Position
	switch format {
	case "", "csv":
		positions, err = ParseHoldingsCSV(f)
	case "ibkr":
		var st Statement
		st, err = ParseIBKR(f)
		positions = st.Holdings
	default:
		return portfolio.Snapshot{}, fmt.Errorf("unknown holdings format %q", format)
	}
	if err != nil {
		return portfolio.Snapshot{}, err
	}
	return portfolio.NewSnapshot(asOf, positions)
}

// LoadStatement reads an IBKR Activity Statement and dates the snapshot at
// the end of the statement period.
func LoadStatement(path string) (portfolio.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return portfolio.Snapshot{}, fmt.Errorf("open statement: %w", err)
	}
	defer f.Close()

	st, err := ParseIBKR(f)
	if err != nil {
		return portfolio.Snapshot{}, err
	}
	asOf, err := st.PeriodEnd()
	if err != nil {
		return portfolio.Snapshot{}, err
	}
	return portfolio.NewSnapshot(asOf, st.Holdings)
}
