package domain

import "time"

// RefreshTokenRecord is the revocation store row for an issued refresh
// token. A refresh token is live while its row exists and has not expired.
type RefreshTokenRecord struct {
	JTI       string
	UserID    string
	ExpiresAt time.Time // mirrors the token's exp claim
	CreatedAt time.Time
}

// Live reports whether the record still admits its token at now.
func (r RefreshTokenRecord) Live(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}
