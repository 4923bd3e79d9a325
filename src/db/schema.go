package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The UNIQUE constraint on external_id is what makes concurrent ingestion of
// the same account safe; InsertIfAbsent relies on it.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		account_id TEXT NOT NULL,
		booking_ts TIMESTAMPTZ,
		value_ts TIMESTAMPTZ,
		amount NUMERIC(38, 2) NOT NULL DEFAULT 0,
		currency VARCHAR(3),
		remittance_info TEXT,
		creditor_name TEXT,
		debtor_name TEXT,
		bank_transaction_code TEXT,
		proprietary_bank_transaction_code TEXT,
		additional_info TEXT,
		category TEXT NOT NULL DEFAULT 'UNDEFINED' CHECK (category IN ('COST', 'PROFIT', 'UNDEFINED')),
		manually_classified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_account_booking_idx ON transactions (account_id, booking_ts)`,
	`CREATE TABLE IF NOT EXISTS classification_rules (
		id SERIAL PRIMARY KEY,
		kind TEXT NOT NULL CHECK (kind IN ('keyword', 'conditions')),
		keyword TEXT,
		conditions JSONB,
		category TEXT NOT NULL CHECK (category IN ('COST', 'PROFIT')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS classification_rules_keyword_idx
		ON classification_rules (LOWER(keyword)) WHERE kind = 'keyword'`,
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
