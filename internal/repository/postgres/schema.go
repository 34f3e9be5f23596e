// internal/repository/postgres/schema.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS wallet_records (
		owner_id          TEXT PRIMARY KEY,
		public_address    TEXT NOT NULL,
		balance_units     NUMERIC(30, 10) NOT NULL CHECK (balance_units >= 0),
		strike_price_usd  NUMERIC(20, 4) NOT NULL CHECK (strike_price_usd > 0),
		initial_value_usd NUMERIC(20, 4) NOT NULL,
		display_name      TEXT NOT NULL DEFAULT '',
		active            BOOLEAN NOT NULL DEFAULT TRUE,
		version           BIGINT NOT NULL DEFAULT 1,
		created_at        TIMESTAMPTZ NOT NULL,
		last_updated      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transaction_records (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		type        TEXT NOT NULL,
		units       NUMERIC(30, 10) NOT NULL,
		price_usd   NUMERIC(20, 4) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transaction_records_owner ON transaction_records (owner_id)`,
	`CREATE TABLE IF NOT EXISTS investment_records (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		units      NUMERIC(30, 10) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_investment_records_owner ON investment_records (owner_id)`,
	`CREATE TABLE IF NOT EXISTS watchlist_entries (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_watchlist_entries_owner ON watchlist_entries (owner_id)`,
	`CREATE TABLE IF NOT EXISTS interaction_events (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		action     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interaction_events_owner ON interaction_events (owner_id)`,
}

// EnsureSchema creates the engine's tables if they do not exist yet.
func EnsureSchema(ctx context.Context, database *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := database.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
