package service

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// ListUserTokens returns the live refresh token records of userID.
func (s *TokenService) ListUserTokens(ctx context.Context, userID string) ([]domain.RefreshTokenRecord, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	recs, err := s.Store.RefreshTokens().ListUserRefreshTokens(sctx, userID, s.now())
	if err != nil {
		slogx.FromContext(ctx).Error("listing refresh tokens failed", slog.String("sub", userID), slog.Any("err", err))
		return nil, storeErr(err)
	}
	return recs, nil
}

// RevokeUserTokens revokes every refresh token of userID, for example
// after the account was compromised.
func (s *TokenService) RevokeUserTokens(ctx context.Context, userID string) (int64, error) {
	l := slogx.FromContext(ctx)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.Store.RefreshTokens().RevokeUserRefreshTokens(sctx, userID)
	if err != nil {
		l.Error("bulk revocation failed", slog.String("sub", userID), slog.Any("err", err))
		return 0, storeErr(err)
	}

	l.Info("user tokens revoked", slog.String("sub", userID), slog.Int64("count", n))
	return n, nil
}

// Prune deletes records of refresh tokens that have expired. They are
// already ignored by liveness checks, this only reclaims space.
func (s *TokenService) Prune(ctx context.Context) (int64, error) {
	l := slogx.FromContext(ctx).With(slog.String("run_id", idx.New().String()))

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(sctx, s.now())
	if err != nil {
		l.Error("prune failed", slog.Any("err", err))
		return 0, storeErr(err)
	}

	l.Info("prune completed", slog.Int64("deleted", n))
	return n, nil
}
