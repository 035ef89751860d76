package tokensdk

import "time"

// IssueRefreshRequest is the body of POST /v1/tokens/refresh.
type IssueRefreshRequest struct {
	Username string `json:"username"`

	// KID selects the signing key. Empty means the server default.
	KID string `json:"kid,omitempty"`

	// Scope is a comma separated list that becomes the token's audience.
	Scope string `json:"scope,omitempty"`

	// ExpiresIn is the lifetime in seconds. Zero means the server default.
	ExpiresIn int64 `json:"expires_in,omitempty"`
}

// IssueAccessRequest is the body of POST /v1/tokens/access.
type IssueAccessRequest struct {
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	KID          string `json:"kid,omitempty"`

	// Scope defaults to the audience of the refresh token when empty.
	Scope     string `json:"scope,omitempty"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// TokenResponse is returned by both issuance endpoints.
type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
	JTI       string `json:"jti"`
}

// TokenRequest carries a single token, for revoke and introspect.
type TokenRequest struct {
	Token string `json:"token"`
}

// IntrospectionResponse describes a token. Inactive tokens only carry
// Active=false and the Reason code.
type IntrospectionResponse struct {
	Active bool   `json:"active"`
	Reason string `json:"reason,omitempty"`

	Purpose  string   `json:"pur,omitempty"`
	Sub      string   `json:"sub,omitempty"`
	Username string   `json:"username,omitempty"`
	Aud      []string `json:"aud,omitempty"`
	Iss      string   `json:"iss,omitempty"`
	JTI      string   `json:"jti,omitempty"`
	ClientID string   `json:"azp,omitempty"`
	Iat      int64    `json:"iat,omitempty"`
	Exp      int64    `json:"exp,omitempty"`
}

// WhoAmIResponse is the caller's view of its own access token.
type WhoAmIResponse struct {
	Sub      string              `json:"sub"`
	Username string              `json:"username"`
	IsAdmin  bool                `json:"is_admin"`
	Projects map[string][]string `json:"projects"`
	Scopes   []string            `json:"scopes"`
	ClientID string              `json:"client_id,omitempty"`
	JTI      string              `json:"jti"`
	Exp      int64               `json:"exp"`
}

// UserToken is one live refresh token of a user.
type UserToken struct {
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// UserTokensResponse lists a user's live refresh tokens.
type UserTokensResponse struct {
	UserID string      `json:"user_id"`
	Tokens []UserToken `json:"tokens"`
}

// RevokeUserTokensResponse reports how many refresh tokens were revoked.
type RevokeUserTokensResponse struct {
	UserID  string `json:"user_id"`
	Revoked int64  `json:"revoked"`
}

// HealthChecks breaks readiness down per dependency.
type HealthChecks struct {
	Store string `json:"store"`
	Keys  string `json:"keys"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
