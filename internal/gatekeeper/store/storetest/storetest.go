// Package storetest holds the behaviour every store driver must share. Each
// driver's tests call Run with a constructor for a fresh, migrated store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, migrated store. It should register its own
// cleanup with t.
type Factory func(t *testing.T) store.Store

var base = time.Unix(1_700_000_000, 0).UTC()

func record(jti, user string, ttl time.Duration) domain.RefreshTokenRecord {
	return domain.RefreshTokenRecord{
		JTI:       jti,
		UserID:    user,
		ExpiresAt: base.Add(ttl),
		CreatedAt: base,
	}
}

// Run exercises the store.RefreshTokens contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("record and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.RefreshTokens()

		require.NoError(t, repo.RecordRefreshToken(ctx, record("j1", "42", time.Hour)))

		got, err := repo.GetRefreshToken(ctx, "j1")
		require.NoError(t, err)
		require.Equal(t, "j1", got.JTI)
		require.Equal(t, "42", got.UserID)
		require.Equal(t, base.Add(time.Hour).Unix(), got.ExpiresAt.Unix())
		require.Equal(t, base.Unix(), got.CreatedAt.Unix())

		_, err = repo.GetRefreshToken(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("record replaces by jti", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.RefreshTokens()

		require.NoError(t, repo.RecordRefreshToken(ctx, record("j1", "42", time.Hour)))
		require.NoError(t, repo.RecordRefreshToken(ctx, record("j1", "42", 2*time.Hour)))

		got, err := repo.GetRefreshToken(ctx, "j1")
		require.NoError(t, err)
		require.Equal(t, base.Add(2*time.Hour).Unix(), got.ExpiresAt.Unix())
	})

	t.Run("liveness follows expiry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.RefreshTokens()

		require.NoError(t, repo.RecordRefreshToken(ctx, record("j1", "42", time.Hour)))

		live, err := repo.IsRefreshTokenLive(ctx, "j1", base)
		require.NoError(t, err)
		require.True(t, live)

		live, err = repo.IsRefreshTokenLive(ctx, "j1", base.Add(time.Hour-time.Second))
		require.NoError(t, err)
		require.True(t, live)

		live, err = repo.IsRefreshTokenLive(ctx, "j1", base.Add(time.Hour))
		require.NoError(t, err)
		require.False(t, live, "a record is stale once now reaches expires_at")

		live, err = repo.IsRefreshTokenLive(ctx, "nope", base)
		require.NoError(t, err)
		require.False(t, live)
	})

	t.Run("revoke", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.RefreshTokens()

		require.NoError(t, repo.RecordRefreshToken(ctx, record("j1", "42", time.Hour)))
		require.NoError(t, repo.RevokeRefreshToken(ctx, "j1"))
		require.ErrorIs(t, repo.RevokeRefreshToken(ctx, "j1"), store.ErrNotFound)

		live, err := repo.IsRefreshTokenLive(ctx, "j1", base)
		require.NoError(t, err)
		require.False(t, live)
	})

	t.Run("concurrent record, check and revoke", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.RefreshTokens()

		const workers = 32
		errs := make(chan error, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				jti := fmt.Sprintf("j%d", i)
				if err := repo.RecordRefreshToken(ctx, record(jti, "42", time.Hour)); err != nil {
					errs <- fmt.Errorf("record %s: %w", jti, err)
					return
				}
				live, err := repo.IsRefreshTokenLive(ctx, jti, base)
				if err != nil || !live {
					errs <- fmt.Errorf("live %s: %v %w", jti, live, err)
					return
				}
				if err := repo.RevokeRefreshToken(ctx, jti); err != nil {
					errs <- fmt.Errorf("revoke %s: %w", jti, err)
				}
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		recs, err := repo.ListUserRefreshTokens(ctx, "42", base)
		require.NoError(t, err)
		require.Empty(t, recs)
	})

	t.Run("per user listing and revocation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.RefreshTokens()

		older := record("a", "42", time.Hour)
		newer := record("b", "42", time.Hour)
		newer.CreatedAt = base.Add(time.Minute)
		expired := record("c", "42", -time.Minute)

		for _, rec := range []domain.RefreshTokenRecord{older, newer, expired, record("d", "7", time.Hour)} {
			require.NoError(t, repo.RecordRefreshToken(ctx, rec))
		}

		list, err := repo.ListUserRefreshTokens(ctx, "42", base)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "b", list[0].JTI)
		require.Equal(t, "a", list[1].JTI)

		list, err = repo.ListUserRefreshTokens(ctx, "nobody", base)
		require.NoError(t, err)
		require.Empty(t, list)

		n, err := repo.RevokeUserRefreshTokens(ctx, "42")
		require.NoError(t, err)
		require.EqualValues(t, 3, n)

		live, err := repo.IsRefreshTokenLive(ctx, "d", base)
		require.NoError(t, err)
		require.True(t, live, "other users keep their tokens")
	})

	t.Run("delete expired", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.RefreshTokens()

		require.NoError(t, repo.RecordRefreshToken(ctx, record("old", "42", -time.Second)))
		require.NoError(t, repo.RecordRefreshToken(ctx, record("edge", "42", 0)))
		require.NoError(t, repo.RecordRefreshToken(ctx, record("fresh", "42", time.Hour)))

		n, err := repo.DeleteExpiredRefreshTokens(ctx, base)
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		_, err = repo.GetRefreshToken(ctx, "fresh")
		require.NoError(t, err)
	})

	t.Run("transaction commit and rollback", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
			return tx.RefreshTokens().RecordRefreshToken(ctx, record("kept", "42", time.Hour))
		}))

		boom := errors.New("boom")
		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.RefreshTokens().RecordRefreshToken(ctx, record("dropped", "42", time.Hour)); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = s.RefreshTokens().GetRefreshToken(ctx, "kept")
		require.NoError(t, err)
		_, err = s.RefreshTokens().GetRefreshToken(ctx, "dropped")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("explicit tx handle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		tx, err := s.Tx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.RefreshTokens().RecordRefreshToken(ctx, record("j1", "42", time.Hour)))

		_, err = tx.Tx(ctx)
		require.Error(t, err, "nested transactions are refused")

		require.NoError(t, tx.Rollback())

		_, err = s.RefreshTokens().GetRefreshToken(ctx, "j1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ping and migrations are idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Ping(context.Background()))
		require.NoError(t, s.ApplyMigrations())
	})
}
