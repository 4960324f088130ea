package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists agent history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the agent writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	zap.L().Info("sqlite recorder opened", zap.String("component", "recorder"), zap.String("path", dbPath))
	return r, nil
}

// Amounts are stored as TEXT to keep decimal precision.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp       INTEGER NOT NULL,
		kind            TEXT NOT NULL,
		input_symbol    TEXT,
		output_symbol   TEXT,
		input_amount    TEXT,
		expected_output TEXT,
		realized_output TEXT,
		fee_paid        TEXT,
		net_usd         TEXT,
		price_impact    TEXT,
		status          TEXT NOT NULL,
		txid            TEXT,
		error           TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(timestamp)`,

	`CREATE TABLE IF NOT EXISTS dispatches (
		id         TEXT PRIMARY KEY,
		timestamp  INTEGER NOT NULL,
		source     TEXT,
		gross      TEXT,
		fee_buffer TEXT,
		net        TEXT,
		outcome    TEXT NOT NULL,
		cleared    INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dispatches_ts ON dispatches(timestamp)`,

	`CREATE TABLE IF NOT EXISTS payout_attempts (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		dispatch_id    TEXT NOT NULL REFERENCES dispatches(id),
		destination_id TEXT NOT NULL,
		address        TEXT,
		amount         TEXT,
		status         TEXT NOT NULL,
		reference      TEXT,
		reason         TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS replenishments (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		outcome   TEXT NOT NULL,
		balance   TEXT,
		threshold TEXT,
		top_up    TEXT,
		source    TEXT,
		quantity  TEXT,
		txid      TEXT,
		error     TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_replenishments_ts ON replenishments(timestamp)`,

	`CREATE TABLE IF NOT EXISTS protocol_runs (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		month     INTEGER NOT NULL,
		reinvest  TEXT,
		take_home TEXT,
		txs       TEXT,
		error     TEXT
	)`,
}

func (r *SQLiteRecorder) migrate() error {
	for _, s := range sqliteSchema {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordTrade(ctx context.Context, evt *TradeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := flattenTrade(evt)
	_, err := r.db.ExecContext(ctx, `INSERT INTO trades
		(timestamp, kind, input_symbol, output_symbol, input_amount, expected_output,
		 realized_output, fee_paid, net_usd, price_impact, status, txid, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ts, t.kind, t.in, t.out, t.inAmount, t.expected,
		t.realized, t.fee, t.net, t.impact, t.status, t.txid, t.errString,
	)
	return err
}

func (r *SQLiteRecorder) RecordPayout(ctx context.Context, evt *PayoutEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := evt.Dispatch
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO dispatches
		(id, timestamp, source, gross, fee_buffer, net, outcome, cleared)
		VALUES (?,?,?,?,?,?,?,?)`,
		d.ID, time.Now().Unix(), evt.Source, d.Gross.String(), d.FeeBuffer.String(),
		d.Net.String(), string(d.Outcome), d.Cleared,
	); err != nil {
		return err
	}
	for _, a := range d.Attempts {
		if _, err := tx.ExecContext(ctx, `INSERT INTO payout_attempts
			(dispatch_id, destination_id, address, amount, status, reference, reason)
			VALUES (?,?,?,?,?,?,?)`,
			d.ID, a.DestinationID, a.Address, a.AmountRequested.String(),
			string(a.Status), a.ExternalReference, a.Reason,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordReplenish(ctx context.Context, evt *ReplenishEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := flattenReplenish(evt)
	_, err := r.db.ExecContext(ctx, `INSERT INTO replenishments
		(timestamp, outcome, balance, threshold, top_up, source, quantity, txid, error)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		row.ts, row.outcome, row.balance, row.threshold, row.topUp,
		row.source, row.quantity, row.txid, row.errString,
	)
	return err
}

func (r *SQLiteRecorder) RecordProtocol(ctx context.Context, evt *ProtocolEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	txs, errString, err := protocolTxs(evt)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO protocol_runs
		(timestamp, month, reinvest, take_home, txs, error)
		VALUES (?,?,?,?,?,?)`,
		time.Now().Unix(), evt.Month, evt.Reinvest, evt.TakeHome, txs, errString,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	zap.L().Info("closing sqlite recorder", zap.String("component", "recorder"))
	return r.db.Close()
}
