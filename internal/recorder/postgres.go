package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresRecorder persists agent history to PostgreSQL through a pgx pool.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder connects, pings and migrates.
func NewPostgresRecorder(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := &PostgresRecorder{pool: pool}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	zap.L().Info("postgres recorder opened", zap.String("component", "recorder"))
	return r, nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id              BIGSERIAL PRIMARY KEY,
		recorded_at     TIMESTAMPTZ NOT NULL,
		kind            TEXT NOT NULL,
		input_symbol    TEXT,
		output_symbol   TEXT,
		input_amount    NUMERIC,
		expected_output NUMERIC,
		realized_output NUMERIC,
		fee_paid        NUMERIC,
		net_usd         NUMERIC,
		price_impact    NUMERIC,
		status          TEXT NOT NULL,
		txid            TEXT,
		error           TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_recorded_at ON trades(recorded_at)`,

	`CREATE TABLE IF NOT EXISTS dispatches (
		id          UUID PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL,
		source      TEXT,
		gross       NUMERIC,
		fee_buffer  NUMERIC,
		net         NUMERIC,
		outcome     TEXT NOT NULL,
		cleared     BOOLEAN NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS payout_attempts (
		id             BIGSERIAL PRIMARY KEY,
		dispatch_id    UUID NOT NULL REFERENCES dispatches(id),
		destination_id TEXT NOT NULL,
		address        TEXT,
		amount         NUMERIC,
		status         TEXT NOT NULL,
		reference      TEXT,
		reason         TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS replenishments (
		id          BIGSERIAL PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL,
		outcome     TEXT NOT NULL,
		balance     NUMERIC,
		threshold   NUMERIC,
		top_up      NUMERIC,
		source      TEXT,
		quantity    NUMERIC,
		txid        TEXT,
		error       TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS protocol_runs (
		id          BIGSERIAL PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL,
		month       INTEGER NOT NULL,
		reinvest    NUMERIC,
		take_home   NUMERIC,
		txs         JSONB,
		error       TEXT
	)`,
}

func (r *PostgresRecorder) migrate(ctx context.Context) error {
	for _, s := range postgresSchema {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// nullable maps empty strings to SQL NULL so numeric columns accept missing values.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *PostgresRecorder) RecordTrade(ctx context.Context, evt *TradeEvent) error {
	t := flattenTrade(evt)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trades (
			recorded_at, kind, input_symbol, output_symbol, input_amount, expected_output,
			realized_output, fee_paid, net_usd, price_impact, status, txid, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		time.Unix(t.ts, 0).UTC(), t.kind, t.in, t.out, nullable(t.inAmount), nullable(t.expected),
		nullable(t.realized), nullable(t.fee), nullable(t.net), nullable(t.impact), t.status, t.txid, t.errString,
	)
	return err
}

func (r *PostgresRecorder) RecordPayout(ctx context.Context, evt *PayoutEvent) error {
	d := evt.Dispatch
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO dispatches (id, recorded_at, source, gross, fee_buffer, net, outcome, cleared)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			d.ID, time.Now().UTC(), evt.Source, d.Gross.String(), d.FeeBuffer.String(),
			d.Net.String(), string(d.Outcome), d.Cleared,
		); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, a := range d.Attempts {
			batch.Queue(`
				INSERT INTO payout_attempts (dispatch_id, destination_id, address, amount, status, reference, reason)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				d.ID, a.DestinationID, a.Address, a.AmountRequested.String(),
				string(a.Status), a.ExternalReference, a.Reason)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *PostgresRecorder) RecordReplenish(ctx context.Context, evt *ReplenishEvent) error {
	row := flattenReplenish(evt)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO replenishments (recorded_at, outcome, balance, threshold, top_up, source, quantity, txid, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		time.Unix(row.ts, 0).UTC(), row.outcome, nullable(row.balance), nullable(row.threshold), nullable(row.topUp),
		row.source, nullable(row.quantity), row.txid, row.errString,
	)
	return err
}

func (r *PostgresRecorder) RecordProtocol(ctx context.Context, evt *ProtocolEvent) error {
	txs, errString, err := protocolTxs(evt)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO protocol_runs (recorded_at, month, reinvest, take_home, txs, error)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		time.Now().UTC(), evt.Month, nullable(evt.Reinvest), nullable(evt.TakeHome), txs, errString,
	)
	return err
}

func (r *PostgresRecorder) Close() error {
	r.pool.Close()
	return nil
}
