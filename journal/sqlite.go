package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/plumbline/errs"
	"github.com/rustyeddy/plumbline/market"
	"github.com/rustyeddy/plumbline/pkg/id"
	"github.com/rustyeddy/plumbline/portfolio"
)

// DefaultListLimit bounds list queries when the caller passes 0.
const DefaultListLimit = 100

// SQLite is the durable journal. It also satisfies Journal so a run can
// be streamed into it trade by trade.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the database at path and applies Schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// SnapshotRecord is a stored holdings snapshot.
type SnapshotRecord struct {
	ID       string
	Source   string
	Created  time.Time
	Snapshot portfolio.Snapshot
}

// AsOf returns the day of the stored snapshot.
func (r SnapshotRecord) AsOf() market.Date { return r.Snapshot.AsOf() }

// SaveSnapshot stores s under a fresh ULID and returns the id.
func (j *SQLite) SaveSnapshot(ctx context.Context, s portfolio.Snapshot, source string) (string, error) {
	created := j.now().UTC()
	sid := id.New(created)

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, as_of, source, created)
		VALUES (?, ?, ?, ?)`,
		sid, s.AsOf().String(), source, created,
	); err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}

	for _, p := range s.Positions() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO positions (snapshot_id, ticker, quantity, currency, asset_type, name)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sid, p.Ticker, decimal.NewFromFloat(p.Quantity).String(), p.Currency, p.AssetType, p.Name,
		); err != nil {
			return "", fmt.Errorf("insert position %s: %w", p.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return sid, nil
}

// GetSnapshot loads the snapshot with the given id.
func (j *SQLite) GetSnapshot(ctx context.Context, snapshotID string) (SnapshotRecord, error) {
	var (
		rec  SnapshotRecord
		asOf string
	)
	err := j.db.QueryRowContext(ctx, `
		SELECT id, as_of, source, created
		FROM snapshots
		WHERE id = ?`, snapshotID).Scan(&rec.ID, &asOf, &rec.Source, &rec.Created)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, errs.NotFound("snapshot %s", snapshotID)
	}
	if err != nil {
		return SnapshotRecord{}, err
	}
	return j.loadPositions(ctx, rec, asOf)
}

// LatestSnapshot returns the snapshot with the latest as_of date, the most
// recently stored one winning ties.
func (j *SQLite) LatestSnapshot(ctx context.Context) (SnapshotRecord, error) {
	recs, err := j.ListSnapshots(ctx, 1)
	if err != nil {
		return SnapshotRecord{}, err
	}
	if len(recs) == 0 {
		return SnapshotRecord{}, errs.NotFound("stored snapshots")
	}
	return j.GetSnapshot(ctx, recs[0].ID)
}

// ListSnapshots returns up to limit snapshot headers, newest as_of first.
// Positions are not loaded.
func (j *SQLite) ListSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, as_of, source, created
		FROM snapshots
		ORDER BY as_of DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var (
			rec  SnapshotRecord
			asOf string
		)
		if err := rows.Scan(&rec.ID, &asOf, &rec.Source, &rec.Created); err != nil {
			return nil, err
		}
		d, err := market.ParseDate(asOf)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", rec.ID, err)
		}
		if rec.Snapshot, err = portfolio.NewSnapshot(d, nil); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSnapshot removes the snapshot and its positions.
func (j *SQLite) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE snapshot_id = ?`, snapshotID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, snapshotID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.NotFound("snapshot %s", snapshotID)
	}
	return tx.Commit()
}

func (j *SQLite) loadPositions(ctx context.Context, rec SnapshotRecord, asOf string) (SnapshotRecord, error) {
	d, err := market.ParseDate(asOf)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("snapshot %s: %w", rec.ID, err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT ticker, quantity, currency, asset_type, name
		FROM positions
		WHERE snapshot_id = ?
		ORDER BY ticker ASC`, rec.ID)
	if err != nil {
		return SnapshotRecord{}, err
	}
	defer rows.Close()

	var ps []portfolio.Position
	for rows.Next() {
		var (
			p   portfolio.Position
			qty string
		)
		if err := rows.Scan(&p.Ticker, &qty, &p.Currency, &p.AssetType, &p.Name); err != nil {
			return SnapshotRecord{}, err
		}
		q, err := decimal.NewFromString(qty)
		if err != nil {
			return SnapshotRecord{}, fmt.Errorf("snapshot %s: quantity for %s: %w", rec.ID, p.Ticker, err)
		}
		p.Quantity = q.InexactFloat64()
		ps = append(ps, p)
	}
	if err := rows.Err(); err != nil {
		return SnapshotRecord{}, err
	}

	if rec.Snapshot, err = portfolio.NewSnapshot(d, ps); err != nil {
		return SnapshotRecord{}, err
	}
	return rec, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
