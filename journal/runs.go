package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rustyeddy/plumbline/allocator"
	"github.com/rustyeddy/plumbline/backtest"
	"github.com/rustyeddy/plumbline/errs"
	"github.com/rustyeddy/plumbline/market"
)

// SaveProposal stores plan under its inputs hash. Saving the same inputs
// twice keeps the first record.
func (j *SQLite) SaveProposal(ctx context.Context, plan allocator.BuyPlan) error {
	if plan.InputsHash == "" {
		return errs.Validation("proposal has no inputs hash")
	}
	body, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO proposals
		(inputs_hash, policy_hash, as_of, contribution_base, unallocated_cash, plan, created)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		plan.InputsHash, plan.PolicyHash, plan.AsOf.String(),
		plan.ContributionBase, plan.UnallocatedCash, string(body), j.now().UTC(),
	)
	return err
}

// GetProposal loads the plan stored under inputsHash.
func (j *SQLite) GetProposal(ctx context.Context, inputsHash string) (allocator.BuyPlan, error) {
	var body string
	err := j.db.QueryRowContext(ctx, `SELECT plan FROM proposals WHERE inputs_hash = ?`, inputsHash).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return allocator.BuyPlan{}, errs.NotFound("proposal %s", inputsHash)
	}
	if err != nil {
		return allocator.BuyPlan{}, err
	}
	var plan allocator.BuyPlan
	if err := json.Unmarshal([]byte(body), &plan); err != nil {
		return allocator.BuyPlan{}, fmt.Errorf("decode proposal %s: %w", inputsHash, err)
	}
	return plan, nil
}

// RecordBacktest stores run with its curve and trades in one transaction.
// A run id already present is left untouched.
func (j *SQLite) RecordBacktest(ctx context.Context, run *backtest.Run) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO backtest_runs
		(run_id, policy_hash, start_date, end_date, universe, schedule, curve_hash, summary, trades, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.PolicyHash, run.Range.From.String(), run.Range.To.String(),
		string(run.Universe), run.Schedule, run.CurveHash, string(summary), len(run.Trades), j.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	for _, p := range run.Points {
		if err := insertEquity(ctx, tx, run.ID, p); err != nil {
			return err
		}
	}
	for i, t := range run.Trades {
		if err := insertTrade(ctx, tx, run.ID, i, t); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecordTrade appends t to the trades of runID.
func (j *SQLite) RecordTrade(runID string, t backtest.Trade) error {
	var seq int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE run_id = ?`, runID).Scan(&seq); err != nil {
		return err
	}
	return insertTrade(context.Background(), j.db, runID, seq, t)
}

// RecordEquity stores one point of the curve of runID.
func (j *SQLite) RecordEquity(runID string, p backtest.EquityPoint) error {
	return insertEquity(context.Background(), j.db, runID, p)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEquity(ctx context.Context, x execer, runID string, p backtest.EquityPoint) error {
	_, err := x.ExecContext(ctx, `
		INSERT OR REPLACE INTO equity
		(run_id, date, equity, cash, drawdown, turnover)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, p.Date.String(), p.Equity, p.Cash, p.Drawdown, p.Turnover,
	)
	if err != nil {
		return fmt.Errorf("insert equity %s: %w", p.Date, err)
	}
	return nil
}

func insertTrade(ctx context.Context, x execer, runID string, seq int, t backtest.Trade) error {
	_, err := x.ExecContext(ctx, `
		INSERT INTO trades
		(run_id, seq, date, ticker, side, quantity, price, amount_base, cost, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, t.Date.String(), t.Ticker, string(t.Side), t.Quantity, t.Price, t.AmountBase, t.Cost, t.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert trade %d: %w", seq, err)
	}
	return nil
}

// GetBacktestRun loads the header and summary of a stored run.
func (j *SQLite) GetBacktestRun(ctx context.Context, runID string) (BacktestRun, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT run_id, policy_hash, start_date, end_date, universe, schedule, curve_hash, summary, trades, created
		FROM backtest_runs
		WHERE run_id = ?`, runID)
	btr, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return BacktestRun{}, errs.NotFound("backtest run %s", runID)
	}
	return btr, err
}

// ListBacktestRuns returns up to limit runs, most recently stored first.
func (j *SQLite) ListBacktestRuns(ctx context.Context, limit int) ([]BacktestRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, policy_hash, start_date, end_date, universe, schedule, curve_hash, summary, trades, created
		FROM backtest_runs
		ORDER BY created DESC, run_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BacktestRun
	for rows.Next() {
		btr, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, btr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (BacktestRun, error) {
	var (
		btr            BacktestRun
		start, end     string
		universe, summ string
	)
	if err := s.Scan(&btr.RunID, &btr.PolicyHash, &start, &end, &universe, &btr.Schedule,
		&btr.CurveHash, &summ, &btr.Trades, &btr.Created); err != nil {
		return BacktestRun{}, err
	}
	var err error
	if btr.Start, err = market.ParseDate(start); err != nil {
		return BacktestRun{}, err
	}
	if btr.End, err = market.ParseDate(end); err != nil {
		return BacktestRun{}, err
	}
	btr.Universe = universe
	if err := json.Unmarshal([]byte(summ), &btr.Summary); err != nil {
		return BacktestRun{}, fmt.Errorf("decode summary of %s: %w", btr.RunID, err)
	}
	return btr, nil
}

// ListEquityByRunID returns the equity curve of runID, date ascending.
func (j *SQLite) ListEquityByRunID(ctx context.Context, runID string) ([]backtest.EquityPoint, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, equity, cash, drawdown, turnover
		FROM equity
		WHERE run_id = ?
		ORDER BY date ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backtest.EquityPoint
	for rows.Next() {
		var (
			p backtest.EquityPoint
			d string
		)
		if err := rows.Scan(&d, &p.Equity, &p.Cash, &p.Drawdown, &p.Turnover); err != nil {
			return nil, err
		}
		if p.Date, err = market.ParseDate(d); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTradesByRunID returns the trades of runID in execution order.
func (j *SQLite) ListTradesByRunID(ctx context.Context, runID string) ([]backtest.Trade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT date, ticker, side, quantity, price, amount_base, cost, reason
		FROM trades
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []backtest.Trade
	for rows.Next() {
		var (
			t    backtest.Trade
			d    string
			side string
		)
		if err := rows.Scan(&d, &t.Ticker, &side, &t.Quantity, &t.Price, &t.AmountBase, &t.Cost, &t.Reason); err != nil {
			return nil, err
		}
		if t.Date, err = market.ParseDate(d); err != nil {
			return nil, err
		}
		t.Side = backtest.Side(side)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportBacktestOrg loads a stored run and renders its Org report.
func (j *SQLite) ExportBacktestOrg(ctx context.Context, runID string) (string, error) {
	btr, err := j.GetBacktestRun(ctx, runID)
	if err != nil {
		return "", err
	}
	if btr.Equity, err = j.ListEquityByRunID(ctx, runID); err != nil {
		return "", err
	}
	return btr.Org()
}
