// Package database builds the landing backend's schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// TableCreator handles the creation of the database schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tables and indexes.
func (tc *TableCreator) CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.ExecContext(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS visits (id TEXT PRIMARY KEY, session_id TEXT NOT NULL, referral_source TEXT NOT NULL, referral_code TEXT, native_language TEXT, landing_path TEXT, user_agent TEXT, created_at TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS checkout_attempts (id TEXT PRIMARY KEY, session_id TEXT NOT NULL, attempt INTEGER NOT NULL, signup_channel TEXT, state TEXT NOT NULL, destination TEXT, message TEXT, duration_ms INTEGER NOT NULL DEFAULT 0, created_at TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS newsletter_subscribers (id TEXT PRIMARY KEY, email TEXT NOT NULL UNIQUE, session_id TEXT, referral_source TEXT, referral_code TEXT, created_at TEXT NOT NULL)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_visits_session_id ON visits(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_referral_source ON visits(referral_source)`,
	`CREATE INDEX IF NOT EXISTS idx_checkout_attempts_session_id ON checkout_attempts(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_checkout_attempts_state ON checkout_attempts(state)`,
}
