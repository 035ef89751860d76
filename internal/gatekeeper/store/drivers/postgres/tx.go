package postgres

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/jackc/pgx/v5"
)

var errNestedTx = errors.New("postgres: nested transactions are not supported")

type txStore struct {
	// ctx is the context the transaction was started with. pgx wants one for
	// Commit and Rollback, the store.Tx interface does not pass one.
	ctx context.Context
	tx  pgx.Tx
	q   *queries
}

func (t *txStore) Commit() error { return t.tx.Commit(t.ctx) }

func (t *txStore) Rollback() error {
	// Use a fresh context so a cancelled request still releases the
	// connection.
	return t.tx.Rollback(context.WithoutCancel(t.ctx))
}

func (t *txStore) Close() error                   { return nil }
func (t *txStore) Ping(ctx context.Context) error { return nil }
func (t *txStore) ApplyMigrations() error         { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, errNestedTx
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return errNestedTx
}

func (t *txStore) RefreshTokens() store.RefreshTokens { return &refreshTokensRepo{q: t.q} }
