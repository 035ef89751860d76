package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
)

type refreshTokensRepo struct {
	q *queries
}

// Timestamps are truncated to whole seconds so both drivers agree with the
// token's exp claim.
func (r *refreshTokensRepo) RecordRefreshToken(ctx context.Context, rec domain.RefreshTokenRecord) error {
	return r.q.upsertRefreshToken(ctx, refreshTokenRow{
		JTI:       rec.JTI,
		UserID:    rec.UserID,
		ExpiresAt: rec.ExpiresAt.Truncate(time.Second).UTC(),
		CreatedAt: rec.CreatedAt.Truncate(time.Second).UTC(),
	})
}

func (r *refreshTokensRepo) GetRefreshToken(ctx context.Context, jti string) (domain.RefreshTokenRecord, error) {
	row, err := r.q.getRefreshToken(ctx, jti)
	if err != nil {
		return domain.RefreshTokenRecord{}, mapNotFound(err)
	}
	return mapRefreshToken(row), nil
}

func (r *refreshTokensRepo) IsRefreshTokenLive(ctx context.Context, jti string, now time.Time) (bool, error) {
	return r.q.refreshTokenLive(ctx, jti, now.UTC())
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, jti string) error {
	n, err := r.q.deleteRefreshToken(ctx, jti)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *refreshTokensRepo) ListUserRefreshTokens(
	ctx context.Context,
	userID string,
	now time.Time,
) ([]domain.RefreshTokenRecord, error) {
	rows, err := r.q.listLiveUserRefreshTokens(ctx, userID, now.UTC())
	if err != nil {
		return nil, err
	}
	out := make([]domain.RefreshTokenRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapRefreshToken(row))
	}
	return out, nil
}

func (r *refreshTokensRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	return r.q.deleteUserRefreshTokens(ctx, userID)
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.q.deleteExpiredRefreshTokens(ctx, now.UTC())
}

func mapRefreshToken(row refreshTokenRow) domain.RefreshTokenRecord {
	return domain.RefreshTokenRecord{
		JTI:       row.JTI,
		UserID:    row.UserID,
		ExpiresAt: row.ExpiresAt.UTC(),
		CreatedAt: row.CreatedAt.UTC(),
	}
}
