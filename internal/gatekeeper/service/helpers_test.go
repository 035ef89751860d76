package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/directory"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://gatekeeper.example.org"

var (
	keysOnce sync.Once
	keys     *jwtx.KeyStore
)

func testKeyStore(t *testing.T) *jwtx.KeyStore {
	t.Helper()
	keysOnce.Do(func() {
		var err error
		keys, err = jwtx.NewEphemeralKeyStore("test-key", 2048)
		if err != nil {
			panic(err)
		}
	})
	return keys
}

var (
	alice = domain.User{
		ID:            "42",
		Username:      "alice",
		ProjectAccess: map[string][]string{"phs000178": {"read", "read-storage"}},
	}
	root = domain.User{ID: "1", Username: "root", IsAdmin: true}
)

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*TokenService, *clock) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	dir, err := directory.NewStatic(alice, root)
	require.NoError(t, err)

	c := &clock{now: time.Unix(1_700_000_000, 0)}
	return &TokenService{
		Keys:         testKeyStore(t),
		Store:        st,
		Directory:    dir,
		Issuer:       testIssuer,
		StoreTimeout: time.Second,
		Now:          c.Now,
	}, c
}

// brokenStore fails or hangs on every refresh token call.
type brokenStore struct {
	store.Store
	err   error
	block bool
}

func (s *brokenStore) RefreshTokens() store.RefreshTokens { return brokenRepo{s} }

func (s *brokenStore) WithTx(_ context.Context, fn func(tx store.Tx) error) error {
	return fn(brokenTx{s})
}

type brokenTx struct{ *brokenStore }

func (brokenTx) Commit() error   { return nil }
func (brokenTx) Rollback() error { return nil }

type brokenRepo struct{ s *brokenStore }

func (r brokenRepo) fail(ctx context.Context) error {
	if r.s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if r.s.err != nil {
		return r.s.err
	}
	return errors.New("database is locked")
}

func (r brokenRepo) RecordRefreshToken(ctx context.Context, _ domain.RefreshTokenRecord) error {
	return r.fail(ctx)
}

func (r brokenRepo) GetRefreshToken(ctx context.Context, _ string) (domain.RefreshTokenRecord, error) {
	return domain.RefreshTokenRecord{}, r.fail(ctx)
}

func (r brokenRepo) IsRefreshTokenLive(ctx context.Context, _ string, _ time.Time) (bool, error) {
	return false, r.fail(ctx)
}

func (r brokenRepo) RevokeRefreshToken(ctx context.Context, _ string) error {
	return r.fail(ctx)
}

func (r brokenRepo) ListUserRefreshTokens(ctx context.Context, _ string, _ time.Time) ([]domain.RefreshTokenRecord, error) {
	return nil, r.fail(ctx)
}

func (r brokenRepo) RevokeUserRefreshTokens(ctx context.Context, _ string) (int64, error) {
	return 0, r.fail(ctx)
}

func (r brokenRepo) DeleteExpiredRefreshTokens(ctx context.Context, _ time.Time) (int64, error) {
	return 0, r.fail(ctx)
}
