package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface implemented by the sqlite and
// postgres drivers. Repositories hang off it so a transaction scoped Store
// can hand out the same repositories bound to the transaction.
type Store interface {
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn inside a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction scoped Store. Nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// RefreshTokens is the revocation store. Only refresh tokens are recorded;
// access tokens live until they expire.
type RefreshTokens interface {
	// RecordRefreshToken inserts the record, replacing any row with the same
	// jti.
	RecordRefreshToken(ctx context.Context, rec domain.RefreshTokenRecord) error

	// GetRefreshToken returns the record for jti, expired or not.
	GetRefreshToken(ctx context.Context, jti string) (domain.RefreshTokenRecord, error)

	// IsRefreshTokenLive reports whether jti is recorded and now is before
	// its expiry.
	IsRefreshTokenLive(ctx context.Context, jti string, now time.Time) (bool, error)

	// RevokeRefreshToken deletes the record. ErrNotFound when absent.
	RevokeRefreshToken(ctx context.Context, jti string) error

	// ListUserRefreshTokens returns the live records of a user, newest first.
	ListUserRefreshTokens(ctx context.Context, userID string, now time.Time) ([]domain.RefreshTokenRecord, error)

	// RevokeUserRefreshTokens deletes every record of a user and returns how
	// many were removed.
	RevokeUserRefreshTokens(ctx context.Context, userID string) (int64, error)

	// DeleteExpiredRefreshTokens purges records whose expiry is at or before
	// now.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}
