// Package revoke tracks logged-out tokens until they expire.
package revoke

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erazemk/custody/internal/config"
)

// Revoker records revoked token IDs.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// tokenStore is the subset of store.Backend used for revocation.
type tokenStore interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// Store keeps revocations in the state store's revoked_tokens table.
type Store struct {
	backend tokenStore
}

// NewStore wraps a backend.
func NewStore(backend tokenStore) *Store {
	return &Store{backend: backend}
}

// Revoke stores jti in the revoked_tokens table.
func (s *Store) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	return s.backend.RevokeToken(ctx, jti, expiresAt)
}

// IsRevoked looks jti up in the revoked_tokens table.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.backend.IsTokenRevoked(ctx, jti)
}

const blacklistPrefix = "token:blacklist:"

// Redis keeps revocations as keys that expire with the token.
type Redis struct {
	rdb *goredis.Client
}

// NewRedis connects and pings the server.
func NewRedis(cfg config.RedisConfig, log *zap.Logger) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	log.Info("redis connected", zap.String("addr", cfg.Addr))
	return &Redis{rdb: rdb}, nil
}

// NewRedisClient wraps an existing client.
func NewRedisClient(rdb *goredis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Revoke sets a blacklist key that expires with the token.
func (r *Redis) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the blacklist key exists.
func (r *Redis) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return n > 0, nil
}

// Close closes the connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
