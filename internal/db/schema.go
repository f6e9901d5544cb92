package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Optional item and log fields are NULL
// when unset; timestamps are fixed-width UTC text so they sort lexically.
const schema = `
CREATE TABLE IF NOT EXISTS departments (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workers (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    department_id TEXT,
    status        TEXT NOT NULL DEFAULT 'active',
    password      TEXT
);

CREATE TABLE IF NOT EXISTS items (
    serial_number     TEXT PRIMARY KEY,
    status            TEXT NOT NULL CHECK (status IN ('available', 'assigned', 'installed', 'damaged', 'lost')),
    worker_id         TEXT,
    delivery_date     TEXT,
    installation_date TEXT,
    meter_number      TEXT,
    operation_type    TEXT,
    notes             TEXT
);

CREATE TABLE IF NOT EXISTS logs (
    id             TEXT PRIMARY KEY,
    serial_number  TEXT NOT NULL,
    worker_id      TEXT NOT NULL,
    status         TEXT NOT NULL,
    timestamp      TEXT NOT NULL,
    meter_number   TEXT,
    operation_type TEXT,
    notes          TEXT
);

CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
