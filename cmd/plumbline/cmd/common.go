package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rustyeddy/plumbline/config"
	"github.com/rustyeddy/plumbline/importer"
	"github.com/rustyeddy/plumbline/journal"
	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/policy"
	"github.com/rustyeddy/plumbline/portfolio"
)

func loadPolicy(path string) (*policy.Policy, error) {
	if path == "" {
		path = cfg.Policy.File
	}
	p, warnings, err := policy.LoadFile(path)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Warn().Str("code", w.Code).Str("file", path).Msg(w.Message)
	}
	log.Debug().Str("file", path).Str("hash", p.Hash()).Msg("policy loaded")
	return p, nil
}

func loadMarket() (*market.PriceSeries, *market.FXSeries, error) {
	prices, err := importer.LoadPrices(cfg.Data.Prices)
	if err != nil {
		return nil, nil, fmt.Errorf("load prices: %w", err)
	}
	fx, err := importer.LoadFX(cfg.Data.FX)
	if err != nil {
		return nil, nil, fmt.Errorf("load fx: %w", err)
	}
	log.Debug().
		Int("tickers", len(prices.Tickers())).
		Int("pairs", len(fx.Pairs())).
		Msg("market data loaded")
	return prices, fx, nil
}

func openJournal() (*journal.SQLite, error) {
	path := cfg.Journal.DBPath
	if path == "" {
		path = config.Default().Journal.DBPath
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

// holdingsSource says where a command reads holdings from: a file when
// path is set, else a stored snapshot (the latest when id is empty).
type holdingsSource struct {
	path   string
	format string
	id     string
}

func (h holdingsSource) load(ctx context.Context, asOf market.Date) (portfolio.Snapshot, error) {
	if h.path != "" {
		if asOf.IsZero() {
			return portfolio.Snapshot{}, fmt.Errorf("--as-of is required when reading holdings from a file")
		}
		format := h.format
		if format == "" {
			format = cfg.Data.HoldingsFormat
		}
		return importer.LoadHoldings(h.path, format, asOf)
	}

	j, err := openJournal()
	if err != nil {
		return portfolio.Snapshot{}, err
	}
	defer j.Close()

	var rec journal.SnapshotRecord
	if h.id != "" {
		rec, err = j.GetSnapshot(ctx, h.id)
	} else {
		rec, err = j.LatestSnapshot(ctx)
	}
	if err != nil {
		return portfolio.Snapshot{}, err
	}
	log.Debug().Str("snapshot", rec.ID).Stringer("as_of", rec.AsOf()).Msg("using stored snapshot")

	s := rec.Snapshot
	if !asOf.IsZero() && asOf != s.AsOf() {
		// value the stored positions on another day
		return portfolio.NewSnapshot(asOf, s.Positions())
	}
	return s, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
