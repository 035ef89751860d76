package jwtx

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Verifier validates JWTs signed using RS256 against a KeyStore.
type RS256Verifier struct {
	keys   *KeyStore
	issuer string
	now    func() time.Time
}

// VerifierOption tweaks an RS256Verifier.
type VerifierOption func(*RS256Verifier)

// WithIssuer makes the verifier reject tokens from any other issuer.
func WithIssuer(issuer string) VerifierOption {
	return func(v *RS256Verifier) { v.issuer = issuer }
}

// WithClock replaces time.Now for the temporal checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *RS256Verifier) { v.now = now }
}

// NewVerifierRS256 creates a verifier backed by the public keys of a KeyStore.
func NewVerifierRS256(keys *KeyStore, opts ...VerifierOption) *RS256Verifier {
	v := &RS256Verifier{keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses the token, resolves its kid, checks the signature, enforces
// iat <= now < exp and finally checks issuer and purpose.
func (v *RS256Verifier) Verify(tokenStr string, expected Purpose) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithTimeFunc(v.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	claims, err := v.parse(tokenStr, parserOpts...)
	if err != nil {
		return nil, err
	}
	// WithIssuedAt only checks iat when it is present.
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", ErrMalformed)
	}

	if err := claims.ValidatePurpose(expected); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifySignature runs only the structural and cryptographic checks.
func (v *RS256Verifier) VerifySignature(tokenStr string) (*Claims, error) {
	claims, err := v.parse(tokenStr, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrMalformed)
	}
	return claims, nil
}

func (v *RS256Verifier) parse(tokenStr string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	parser := jwt.NewParser(opts...)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, v.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	return claims, nil
}

func (v *RS256Verifier) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid header", ErrUnknownKID)
	}
	return v.keys.PublicKey(kid)
}
