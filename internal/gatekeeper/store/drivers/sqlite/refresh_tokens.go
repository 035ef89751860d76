package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
)

type refreshTokensRepo struct {
	q *queries
}

func (r *refreshTokensRepo) RecordRefreshToken(ctx context.Context, rec domain.RefreshTokenRecord) error {
	return r.q.upsertRefreshToken(ctx, refreshTokenRow{
		JTI:       rec.JTI,
		UserID:    rec.UserID,
		ExpiresAt: rec.ExpiresAt.Unix(),
		CreatedAt: rec.CreatedAt.Unix(),
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
	n, err := r.q.countLiveRefreshToken(ctx, jti, now.Unix())
	if err != nil {
		return false, err
	}
	return n > 0, nil
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
	rows, err := r.q.listLiveUserRefreshTokens(ctx, userID, now.Unix())
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
	return r.q.deleteExpiredRefreshTokens(ctx, now.Unix())
}

func mapRefreshToken(row refreshTokenRow) domain.RefreshTokenRecord {
	return domain.RefreshTokenRecord{
		JTI:       row.JTI,
		UserID:    row.UserID,
		ExpiresAt: time.Unix(row.ExpiresAt, 0).UTC(),
		CreatedAt: time.Unix(row.CreatedAt, 0).UTC(),
	}
}
