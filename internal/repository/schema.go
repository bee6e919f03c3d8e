package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Column types differ per driver. sqlite keeps money as TEXT so decimals
// round-trip exactly.
var columnTypes = map[string]*strings.Replacer{
	DriverPostgres: strings.NewReplacer("{uuid}", "UUID", "{money}", "NUMERIC", "{ts}", "TIMESTAMPTZ"),
	DriverSQLite:   strings.NewReplacer("{uuid}", "TEXT", "{money}", "TEXT", "{ts}", "TIMESTAMP"),
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS borrowers (
		id {uuid} PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_borrowers_phone ON borrowers (phone)`,

	`CREATE TABLE IF NOT EXISTS users (
		id {uuid} PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_phone ON users (phone)`,

	`CREATE TABLE IF NOT EXISTS loans (
		id {uuid} PRIMARY KEY,
		borrower_id {uuid} NOT NULL REFERENCES borrowers (id),
		assigned_agent_id {uuid},
		mode TEXT NOT NULL,
		principal_amount {money} NOT NULL,
		interest_rate {money},
		initial_interest_deduction {money} NOT NULL,
		amount_paid_to_borrower {money} NOT NULL,
		installment_count INTEGER NOT NULL,
		installment_amount {money} NOT NULL,
		amount_paid_by_borrower {money} NOT NULL,
		imported_paid_amount {money} NOT NULL,
		remaining_amount {money} NOT NULL,
		start_date {ts} NOT NULL,
		status TEXT NOT NULL,
		created_at {ts} NOT NULL,
		updated_at {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_borrower ON loans (borrower_id)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_agent ON loans (assigned_agent_id)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id {uuid} PRIMARY KEY,
		loan_id {uuid} NOT NULL REFERENCES loans (id),
		borrower_id {uuid} NOT NULL REFERENCES borrowers (id),
		agent_id {uuid} NOT NULL,
		amount_paid {money} NOT NULL,
		payment_date {ts} NOT NULL,
		created_at {ts} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments (loan_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_borrower ON payments (borrower_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_date ON payments (payment_date)`,
}

// Migrate creates the tables and indexes if they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	types, ok := columnTypes[db.DriverName()]
	if !ok {
		return fmt.Errorf("unsupported driver %q", db.DriverName())
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, types.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
