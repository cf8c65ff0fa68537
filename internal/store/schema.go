package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements create the wallet tables. Every statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		id          BIGSERIAL PRIMARY KEY,
		first_name  TEXT NOT NULL DEFAULT '',
		last_name   TEXT NOT NULL DEFAULT '',
		sms_number  TEXT NOT NULL DEFAULT '',
		email       TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS contacts_sms_number_idx ON contacts (sms_number)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		id                    BIGSERIAL PRIMARY KEY,
		contact_id            BIGINT NOT NULL UNIQUE REFERENCES contacts (id) ON DELETE CASCADE,
		balance               NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		currency              CHAR(3) NOT NULL DEFAULT 'PHP',
		status                TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
		last_transaction_date TIMESTAMPTZ,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		id               UUID PRIMARY KEY,
		seq              BIGSERIAL,
		wallet_id        BIGINT NOT NULL REFERENCES wallets (id) ON DELETE CASCADE,
		type             TEXT NOT NULL CHECK (type IN ('credit', 'debit')),
		amount           NUMERIC(18,2) NOT NULL CHECK (amount > 0),
		description      TEXT,
		reference        TEXT,
		balance_after    NUMERIC(18,2) NOT NULL,
		transaction_date TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS wallet_transactions_wallet_date_idx ON wallet_transactions (wallet_id, transaction_date DESC, seq DESC)`,
	`CREATE INDEX IF NOT EXISTS wallet_transactions_reference_idx ON wallet_transactions (reference)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	return nil
}
