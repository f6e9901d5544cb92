package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/erazemk/custody/internal/model"
)

// Backend is the state store contract shared by the SQLite and Postgres
// implementations.
type Backend interface {
	FetchAll(ctx context.Context) (*model.Snapshot, error)
	ReplaceAll(ctx context.Context, snap *model.Snapshot) error
	JWTSecret(ctx context.Context) (string, error)
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	Close() error
}

var (
	_ Backend = (*SQLite)(nil)
	_ Backend = (*Postgres)(nil)
)

// SQLite is the embedded file-backed backend.
type SQLite struct {
	DB *sql.DB
}

// NewSQLite wraps an open database that already has the schema applied.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db}
}

// FetchAll reads the full snapshot.
func (s *SQLite) FetchAll(ctx context.Context) (*model.Snapshot, error) {
	return FetchAll(ctx, s.DB)
}

// ReplaceAll swaps the stored snapshot for snap in one transaction.
func (s *SQLite) ReplaceAll(ctx context.Context, snap *model.Snapshot) error {
	return ReplaceAll(ctx, s.DB, snap)
}

// JWTSecret returns the signing secret, creating it on first use.
func (s *SQLite) JWTSecret(ctx context.Context) (string, error) {
	return GetJWTSecret(ctx, s.DB)
}

// RevokeToken records jti as revoked until expiresAt.
func (s *SQLite) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	return RevokeToken(ctx, s.DB, jti, expiresAt)
}

// IsTokenRevoked reports whether jti was revoked.
func (s *SQLite) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return IsTokenRevoked(ctx, s.DB, jti)
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.DB.Close()
}
