package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db dbtx
}

type refreshTokenRow struct {
	JTI       string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

const upsertRefreshToken = `
INSERT INTO refresh_tokens (jti, user_id, expires_at, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (jti) DO UPDATE SET
    user_id    = EXCLUDED.user_id,
    expires_at = EXCLUDED.expires_at,
    created_at = EXCLUDED.created_at`

func (q *queries) upsertRefreshToken(ctx context.Context, row refreshTokenRow) error {
	_, err := q.db.Exec(ctx, upsertRefreshToken, row.JTI, row.UserID, row.ExpiresAt, row.CreatedAt)
	return err
}

const getRefreshToken = `
SELECT jti, user_id, expires_at, created_at
FROM refresh_tokens
WHERE jti = $1`

func (q *queries) getRefreshToken(ctx context.Context, jti string) (refreshTokenRow, error) {
	var r refreshTokenRow
	err := q.db.QueryRow(ctx, getRefreshToken, jti).Scan(&r.JTI, &r.UserID, &r.ExpiresAt, &r.CreatedAt)
	return r, err
}

const refreshTokenLive = `
SELECT EXISTS (
    SELECT 1 FROM refresh_tokens WHERE jti = $1 AND expires_at > $2
)`

func (q *queries) refreshTokenLive(ctx context.Context, jti string, now time.Time) (bool, error) {
	var live bool
	err := q.db.QueryRow(ctx, refreshTokenLive, jti, now).Scan(&live)
	return live, err
}

const deleteRefreshToken = `DELETE FROM refresh_tokens WHERE jti = $1`

func (q *queries) deleteRefreshToken(ctx context.Context, jti string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteRefreshToken, jti)
	return tag.RowsAffected(), err
}

const listLiveUserRefreshTokens = `
SELECT jti, user_id, expires_at, created_at
FROM refresh_tokens
WHERE user_id = $1 AND expires_at > $2
ORDER BY created_at DESC, jti`

func (q *queries) listLiveUserRefreshTokens(ctx context.Context, userID string, now time.Time) ([]refreshTokenRow, error) {
	rows, err := q.db.Query(ctx, listLiveUserRefreshTokens, userID, now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[refreshTokenRow])
}

const deleteUserRefreshTokens = `DELETE FROM refresh_tokens WHERE user_id = $1`

func (q *queries) deleteUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteUserRefreshTokens, userID)
	return tag.RowsAffected(), err
}

const deleteExpiredRefreshTokens = `DELETE FROM refresh_tokens WHERE expires_at <= $1`

func (q *queries) deleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteExpiredRefreshTokens, now)
	return tag.RowsAffected(), err
}
