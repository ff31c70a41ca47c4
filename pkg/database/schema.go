package database

import (
	"context"
	"fmt"
)

// schemaStatements creates the tables used by the transaction feed and the result store.
// Statements are idempotent and run in order.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS insider`,

	`CREATE TABLE IF NOT EXISTS insider.transactions (
		id               BIGSERIAL PRIMARY KEY,
		ticker           TEXT        NOT NULL,
		insider_name     TEXT        NOT NULL,
		insider_title    TEXT,
		transaction_date DATE        NOT NULL,
		filing_date      DATE,
		shares           BIGINT      NOT NULL,
		price_per_share  NUMERIC(18, 6),
		total_value      NUMERIC(20, 2) NOT NULL DEFAULT 0,
		transaction_type TEXT        NOT NULL DEFAULT 'BUY',
		filing_count     INT         NOT NULL DEFAULT 1,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// filing_count: 한 배치 안의 동일 공시 사본 수 (중복 그룹 크기 보존)
	`ALTER TABLE insider.transactions ADD COLUMN IF NOT EXISTS filing_count INT NOT NULL DEFAULT 1`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_ticker_date
		ON insider.transactions (ticker, transaction_date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_created_at
		ON insider.transactions (created_at)`,
	// 같은 공시를 다시 수집해도 중복 저장하지 않음 (정정 공시는 filing_date가 달라 별도 행)
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_transactions_filing
		ON insider.transactions (ticker, insider_name, transaction_date, shares,
			COALESCE(price_per_share, 0), COALESCE(filing_date, DATE '1970-01-01'), total_value, transaction_type)`,

	`CREATE TABLE IF NOT EXISTS insider.conviction_results (
		id                BIGSERIAL PRIMARY KEY,
		run_id            UUID        NOT NULL,
		ticker            TEXT        NOT NULL,
		insider_name      TEXT,
		transaction_date  DATE,
		final_score       DOUBLE PRECISION NOT NULL,
		weighted_score    DOUBLE PRECISION NOT NULL,
		total_multiplier  DOUBLE PRECISION NOT NULL,
		category          TEXT        NOT NULL,
		policy_version    TEXT        NOT NULL,
		insufficient_data BOOLEAN     NOT NULL DEFAULT false,
		payload           JSONB       NOT NULL,
		scored_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conviction_results_ticker
		ON insider.conviction_results (ticker, scored_at DESC)`,
}

// EnsureSchema creates the insider schema and its tables when missing
func (db *DB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i, err)
		}
	}
	return nil
}
