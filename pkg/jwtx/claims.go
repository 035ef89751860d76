package jwtx

import (
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default lifetimes applied when a caller does not ask for a specific one.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Purpose distinguishes access tokens from refresh tokens so one can never be
// presented where the other is expected.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
)

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	return p == PurposeAccess || p == PurposeRefresh
}

// ParsePurpose maps a user supplied string onto a Purpose.
func ParsePurpose(s string) (Purpose, error) {
	p := Purpose(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", ErrWrongPurpose
	}
	return p, nil
}

// Subject is the authorization relevant view of a user at issuance time.
type Subject struct {
	ID       string
	Username string
	IsAdmin  bool
	Projects map[string][]string
}

// UserContext is the snapshot of the subject embedded in every token.
type UserContext struct {
	Name     string              `json:"name"`
	IsAdmin  bool                `json:"is_admin"`
	Projects map[string][]string `json:"projects"`
}

// TokenContext wraps the user snapshot under the "context" claim.
type TokenContext struct {
	User UserContext `json:"user"`
}

// Claims is the payload of every token we sign.
type Claims struct {
	jwt.RegisteredClaims

	// Purpose is "access" or "refresh".
	Purpose Purpose `json:"pur"`

	// Context carries the user snapshot taken when the token was built.
	Context TokenContext `json:"context"`

	// ClientID is the authorized party an access token was minted for.
	ClientID string `json:"azp,omitempty"`
}

// NewClaims builds the claim set for a token of the given purpose. The
// project map is copied so later changes to the caller's user value never
// leak into an issued token.
func NewClaims(
	purpose Purpose,
	subject Subject,
	scopes []string,
	issuer string,
	issuedAt time.Time,
	expiresIn time.Duration,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        NewJTI(),
			Subject:   subject.ID,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings(slices.Clone(scopes)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(expiresIn)),
		},
		Purpose: purpose,
		Context: TokenContext{
			User: UserContext{
				Name:     subject.Username,
				IsAdmin:  subject.IsAdmin,
				Projects: copyProjects(subject.Projects),
			},
		},
	}
}

// NewJTI returns a random (v4) UUID for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

// SplitScopes turns a comma separated scope string into the audience list.
// Order is kept, surrounding whitespace is trimmed and empty segments are
// dropped, so "" yields an empty list rather than a single empty scope.
func SplitScopes(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// Scopes returns the audience of the token, which is where scopes live.
func (c *Claims) Scopes() []string {
	return []string(c.Audience)
}

// HasScope reports whether the token was issued for the given scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Audience, scope)
}

// ValidatePurpose checks the "pur" claim. An empty expectation accepts any
// known purpose.
func (c *Claims) ValidatePurpose(expected Purpose) error {
	if !c.Purpose.Valid() {
		return ErrWrongPurpose
	}
	if expected != "" && c.Purpose != expected {
		return ErrWrongPurpose
	}
	return nil
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

func copyProjects(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for project, perms := range in {
		out[project] = slices.Clone(perms)
	}
	return out
}
