package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureSchemaIdempotent(t *testing.T) {
	database := NewTestDB(t)

	if err := EnsureSchema(database); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}

	for _, table := range []string{"departments", "workers", "items", "logs", "settings", "revoked_tokens"} {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestItemStatusConstraint(t *testing.T) {
	database := NewTestDB(t)

	if _, err := database.Exec(`INSERT INTO items (serial_number, status) VALUES ('1', 'available')`); err != nil {
		t.Fatalf("inserting valid item: %v", err)
	}
	if _, err := database.Exec(`INSERT INTO items (serial_number, status) VALUES ('2', 'removed')`); err == nil {
		t.Error("expected check constraint failure for unknown status")
	}
}

func TestPragmasOnEveryConnection(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "custody.sqlite3"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	conns := make([]*sql.Conn, 3)
	for i := range conns {
		c, err := database.Conn(ctx)
		if err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		defer c.Close()
		conns[i] = c
	}

	for i, c := range conns {
		var fk, timeout int
		if err := c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatalf("conn %d foreign_keys: %v", i, err)
		}
		if err := c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("conn %d busy_timeout: %v", i, err)
		}
		if fk != 1 || timeout != 5000 {
			t.Errorf("conn %d: foreign_keys=%d busy_timeout=%d, want 1 and 5000", i, fk, timeout)
		}
	}
}

func TestDSN(t *testing.T) {
	got := dsn("data/custody.sqlite3")
	if !strings.HasPrefix(got, "data/custody.sqlite3?_pragma=") {
		t.Errorf("dsn = %q", got)
	}
	if n := strings.Count(got, "_pragma="); n != len(connPragmas) {
		t.Errorf("dsn has %d pragmas, want %d", n, len(connPragmas))
	}
}
