package sqlite

import (
	"context"
	"database/sql"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same queries run
// inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

type refreshTokenRow struct {
	JTI       string
	UserID    string
	ExpiresAt int64
	CreatedAt int64
}

const upsertRefreshToken = `
INSERT INTO refresh_tokens (jti, user_id, expires_at, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (jti) DO UPDATE SET
    user_id    = excluded.user_id,
    expires_at = excluded.expires_at,
    created_at = excluded.created_at`

func (q *queries) upsertRefreshToken(ctx context.Context, row refreshTokenRow) error {
	_, err := q.db.ExecContext(ctx, upsertRefreshToken, row.JTI, row.UserID, row.ExpiresAt, row.CreatedAt)
	return err
}

const getRefreshToken = `
SELECT jti, user_id, expires_at, created_at
FROM refresh_tokens
WHERE jti = ?`

func (q *queries) getRefreshToken(ctx context.Context, jti string) (refreshTokenRow, error) {
	var r refreshTokenRow
	err := q.db.QueryRowContext(ctx, getRefreshToken, jti).Scan(&r.JTI, &r.UserID, &r.ExpiresAt, &r.CreatedAt)
	return r, err
}

const countLiveRefreshToken = `
SELECT COUNT(*)
FROM refresh_tokens
WHERE jti = ? AND expires_at > ?`

func (q *queries) countLiveRefreshToken(ctx context.Context, jti string, now int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countLiveRefreshToken, jti, now).Scan(&n)
	return n, err
}

const deleteRefreshToken = `DELETE FROM refresh_tokens WHERE jti = ?`

func (q *queries) deleteRefreshToken(ctx context.Context, jti string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteRefreshToken, jti)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listLiveUserRefreshTokens = `
SELECT jti, user_id, expires_at, created_at
FROM refresh_tokens
WHERE user_id = ? AND expires_at > ?
ORDER BY created_at DESC, jti`

func (q *queries) listLiveUserRefreshTokens(ctx context.Context, userID string, now int64) ([]refreshTokenRow, error) {
	rows, err := q.db.QueryContext(ctx, listLiveUserRefreshTokens, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []refreshTokenRow
	for rows.Next() {
		var r refreshTokenRow
		if err := rows.Scan(&r.JTI, &r.UserID, &r.ExpiresAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const deleteUserRefreshTokens = `DELETE FROM refresh_tokens WHERE user_id = ?`

func (q *queries) deleteUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteUserRefreshTokens, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteExpiredRefreshTokens = `DELETE FROM refresh_tokens WHERE expires_at <= ?`

func (q *queries) deleteExpiredRefreshTokens(ctx context.Context, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredRefreshTokens, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
