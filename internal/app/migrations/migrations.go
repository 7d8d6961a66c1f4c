// Package migrations creates and upgrades the database schema. Statements
// are idempotent and applied in order.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		reference_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount DOUBLE PRECISION NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		method TEXT NOT NULL,
		plan_id TEXT NOT NULL DEFAULT '',
		fee DOUBLE PRECISION NOT NULL DEFAULT 0,
		net_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		rejection_reason TEXT NOT NULL DEFAULT '',
		daily_return DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_return DOUBLE PRECISION NOT NULL DEFAULT 0,
		accrued_days INTEGER NOT NULL DEFAULT 0,
		last_accrued_at TIMESTAMPTZ,
		status_timestamps JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_reference ON transactions (reference_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_kind_status ON transactions (kind, status)`,
	`CREATE TABLE IF NOT EXISTS balances (
		user_id TEXT PRIMARY KEY,
		available DOUBLE PRECISION NOT NULL DEFAULT 0,
		pending DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`ALTER TABLE balances ADD CONSTRAINT balances_non_negative
		CHECK (available >= 0 AND pending >= 0 AND pending <= available)`,
}

// Apply runs every migration statement in order. The constraint statement
// may already exist on re-runs; that error is tolerated.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if isDuplicateObject(err) {
				continue
			}
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

func isDuplicateObject(err error) bool {
	// lib/pq surfaces duplicate_object as SQLSTATE 42710.
	type coder interface{ SQLState() string }
	if c, ok := err.(coder); ok {
		return c.SQLState() == "42710"
	}
	return false
}
