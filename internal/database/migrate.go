// internal/database/migrate.go
package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migrate creates the schema and backfills columns added after the first
// release. Every statement is idempotent so the function can run on every
// startup.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rules (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			max_days INTEGER NOT NULL DEFAULT 7,
			renewal_days INTEGER NOT NULL DEFAULT 7,
			max_renewals INTEGER NOT NULL DEFAULT 2,
			max_books_per_user INTEGER NOT NULL DEFAULT 5,
			overdue_reminder_days INTEGER NOT NULL DEFAULT 3
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			id BIGINT PRIMARY KEY,
			code TEXT NOT NULL,
			area TEXT NOT NULL,
			subarea INTEGER NOT NULL DEFAULT 0,
			authors TEXT NOT NULL DEFAULT '',
			edition INTEGER NOT NULL DEFAULT 1,
			language INTEGER NOT NULL DEFAULT 1,
			volume INTEGER NOT NULL DEFAULT 1,
			exemplar INTEGER NOT NULL DEFAULT 1,
			title TEXT NOT NULL,
			subtitle TEXT,
			is_reserved BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			nusp TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'aluno' CHECK (role IN ('admin', 'proaluno', 'aluno')),
			class TEXT NOT NULL DEFAULT '',
			profile_image TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			password_salt TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS loans (
			id UUID PRIMARY KEY,
			book_id BIGINT NOT NULL REFERENCES books (id),
			student_id BIGINT NOT NULL REFERENCES users (id),
			borrowed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			due_date TIMESTAMPTZ NOT NULL,
			returned_at TIMESTAMPTZ,
			renewals INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users (id),
			loan_id UUID REFERENCES loans (id),
			kind TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// One open loan per physical copy. The index, not application logic,
		// is the source of truth for the double-borrow invariant.
		`CREATE UNIQUE INDEX IF NOT EXISTS loans_one_open_per_book
			ON loans (book_id) WHERE returned_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS loans_by_student ON loans (student_id)`,
		`CREATE INDEX IF NOT EXISTS notifications_by_loan ON notifications (loan_id, kind, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Extension/nudge flow columns, added after the initial schema.
	columns := []struct {
		table, column, definition string
	}{
		{"loans", "extended_phase", "BOOLEAN NOT NULL DEFAULT FALSE"},
		{"loans", "extended_started_at", "TIMESTAMPTZ"},
		{"loans", "last_nudged_at", "TIMESTAMPTZ"},
		{"loans", "extension_pending", "BOOLEAN NOT NULL DEFAULT FALSE"},
		{"loans", "extension_requested_at", "TIMESTAMPTZ"},
		{"rules", "extension_window_days", "INTEGER NOT NULL DEFAULT 3"},
		{"rules", "extension_block_multiplier", "INTEGER NOT NULL DEFAULT 3"},
		{"rules", "shortened_due_days_after_nudge", "INTEGER NOT NULL DEFAULT 5"},
		{"rules", "nudge_cooldown_hours", "INTEGER NOT NULL DEFAULT 24"},
		{"rules", "pending_nudge_extension_days", "INTEGER NOT NULL DEFAULT 5"},
	}
	for _, c := range columns {
		if err := addColumnIfMissing(ctx, db, c.table, c.column, c.definition); err != nil {
			return err
		}
	}

	// The rules table holds exactly one row; reads rely on it existing.
	if _, err := db.ExecContext(ctx, `INSERT INTO rules (id) VALUES (1) ON CONFLICT (id) DO NOTHING`); err != nil {
		return fmt.Errorf("migrate: seed rules row: %w", err)
	}

	return nil
}

func addColumnIfMissing(ctx context.Context, db *sqlx.DB, table, column, definition string) error {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_name = $1 AND column_name = $2
		)
	`, table, column).Scan(&exists)
	if err != nil {
		return fmt.Errorf("migrate: inspect %s.%s: %w", table, column, err)
	}
	if exists {
		return nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("migrate: add %s.%s: %w", table, column, err)
	}
	return nil
}
