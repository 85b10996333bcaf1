// Package db opens the PostgreSQL database, creates the keychain schema and
// purges soft-deleted keychain items.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// item_key and item_value hold JSON-encoded maps. They are BYTEA because
// lib/pq sends []byte parameters as bytea.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    login TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS keychain_items (
    id TEXT NOT NULL,
    user_login TEXT NOT NULL REFERENCES users(login) ON DELETE CASCADE,
    item_class TEXT NOT NULL,
    item_key BYTEA NOT NULL,
    item_value BYTEA NOT NULL,
    access_level TEXT NOT NULL,
    version BIGINT NOT NULL,
    deleted BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (user_login, id)
);

CREATE INDEX IF NOT EXISTS keychain_items_class_idx
    ON keychain_items (user_login, item_class) WHERE deleted = false;
`

// InitPostgres connects to dsn and makes sure the schema exists.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the users and keychain_items tables when they are missing.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
