package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/directory"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// DefaultStoreTimeout bounds every store call when StoreTimeout is unset.
const DefaultStoreTimeout = 5 * time.Second

// RevokeResult says what a revocation did. Revoking a token that has no
// record is not an error, so double revocation is harmless.
type RevokeResult int

const (
	RevokeResultRevoked RevokeResult = iota + 1
	RevokeResultNotFound
)

func (r RevokeResult) String() string {
	switch r {
	case RevokeResultRevoked:
		return "revoked"
	case RevokeResultNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// IssuedToken is a signed token together with the claims it carries.
type IssuedToken struct {
	Token  string
	KID    string
	Claims jwtx.Claims
}

// ExpiresIn is the lifetime of the token in whole seconds.
func (t IssuedToken) ExpiresIn() int64 {
	return t.Claims.ExpiresAt.Unix() - t.Claims.IssuedAt.Unix()
}

type TokenService struct {
	Keys      *jwtx.KeyStore
	Store     store.Store
	Directory directory.Directory
	Issuer    string

	// Zero values fall back to the jwtx defaults.
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	StoreTimeout time.Duration

	// Now replaces time.Now in tests.
	Now func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TokenService) verifier() jwtx.Verifier {
	return jwtx.NewVerifierRS256(s.Keys, jwtx.WithIssuer(s.Issuer), jwtx.WithClock(s.now))
}

func (s *TokenService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// IssueRefreshToken mints a refresh token for user and records it. The
// record is committed before the token is returned; if recording fails no
// token is handed out. scopes is a comma separated list.
func (s *TokenService) IssueRefreshToken(
	ctx context.Context,
	user domain.User,
	kid string,
	expiresIn time.Duration,
	scopes string,
) (string, error) {
	issued, err := s.issueRefresh(ctx, user, kid, expiresIn, jwtx.SplitScopes(scopes))
	if err != nil {
		return "", err
	}
	return issued.Token, nil
}

// IssueRefreshTokenForUsername looks the user up in the directory and
// issues a refresh token for them.
func (s *TokenService) IssueRefreshTokenForUsername(
	ctx context.Context,
	username, kid string,
	expiresIn time.Duration,
	scopes string,
) (IssuedToken, error) {
	user, err := s.Directory.FindUserByUsername(ctx, username)
	if err != nil {
		return IssuedToken{}, err
	}
	return s.issueRefresh(ctx, user, kid, expiresIn, jwtx.SplitScopes(scopes))
}

func (s *TokenService) issueRefresh(
	ctx context.Context,
	user domain.User,
	kid string,
	expiresIn time.Duration,
	scopes []string,
) (IssuedToken, error) {
	l := slogx.FromContext(ctx)

	ttl, err := resolveTTL(expiresIn, s.RefreshTTL, jwtx.DefaultRefreshTokenTTL)
	if err != nil {
		return IssuedToken{}, err
	}

	now := s.now().Truncate(time.Second)
	claims := jwtx.NewClaims(jwtx.PurposeRefresh, subjectOf(user), scopes, s.Issuer, now, ttl)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	var issued IssuedToken
	var signErr error
	err = s.Store.WithTx(sctx, func(tx store.Tx) error {
		if issued, signErr = s.sign(kid, claims); signErr != nil {
			return signErr
		}
		return tx.RefreshTokens().RecordRefreshToken(sctx, domain.RefreshTokenRecord{
			JTI:       claims.ID,
			UserID:    user.ID,
			ExpiresAt: claims.ExpiresAt.Time,
			CreatedAt: now,
		})
	})
	switch {
	case signErr != nil:
		return IssuedToken{}, signErr
	case err != nil:
		l.Error("failed to record refresh token", slog.String("jti", claims.ID), slog.Any("err", err))
		return IssuedToken{}, storeErr(err)
	}

	l.Info("token issued",
		slog.String("jti", claims.ID),
		slog.String("kid", issued.KID),
		slog.String("sub", user.ID),
		slog.String("pur", string(jwtx.PurposeRefresh)),
	)
	return issued, nil
}

// IssueAccessToken exchanges a live refresh token of user for an access
// token. Errors from ValidateRefreshToken are returned unchanged. Access
// tokens are not recorded.
func (s *TokenService) IssueAccessToken(
	ctx context.Context,
	user domain.User,
	kid, refreshToken string,
	expiresIn time.Duration,
	scopes, clientID string,
) (string, error) {
	refresh, err := s.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	if refresh.Subject != user.ID {
		return "", ErrSubjectMismatch
	}

	issued, err := s.issueAccess(ctx, user, kid, expiresIn, jwtx.SplitScopes(scopes), clientID)
	if err != nil {
		return "", err
	}
	return issued.Token, nil
}

// ExchangeRefreshToken is IssueAccessToken for callers that only hold the
// refresh token. The user is looked up from its subject and, when scopes is
// empty, the refresh token's audience is carried over.
func (s *TokenService) ExchangeRefreshToken(
	ctx context.Context,
	refreshToken, clientID, kid string,
	expiresIn time.Duration,
	scopes string,
) (IssuedToken, error) {
	refresh, err := s.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return IssuedToken{}, err
	}

	user, err := s.Directory.FindUserByID(ctx, refresh.Subject)
	if err != nil {
		return IssuedToken{}, err
	}

	requested := jwtx.SplitScopes(scopes)
	if strings.TrimSpace(scopes) == "" {
		requested = refresh.Scopes()
	}
	return s.issueAccess(ctx, user, kid, expiresIn, requested, clientID)
}

func (s *TokenService) issueAccess(
	ctx context.Context,
	user domain.User,
	kid string,
	expiresIn time.Duration,
	scopes []string,
	clientID string,
) (IssuedToken, error) {
	ttl, err := resolveTTL(expiresIn, s.AccessTTL, jwtx.DefaultAccessTokenTTL)
	if err != nil {
		return IssuedToken{}, err
	}

	now := s.now().Truncate(time.Second)
	claims := jwtx.NewClaims(jwtx.PurposeAccess, subjectOf(user), scopes, s.Issuer, now, ttl)
	claims.ClientID = clientID

	issued, err := s.sign(kid, claims)
	if err != nil {
		return IssuedToken{}, err
	}

	slogx.FromContext(ctx).Info("token issued",
		slog.String("jti", claims.ID),
		slog.String("kid", issued.KID),
		slog.String("sub", user.ID),
		slog.String("pur", string(jwtx.PurposeAccess)),
		slog.String("azp", clientID),
	)
	return issued, nil
}

func (s *TokenService) sign(kid string, claims jwtx.Claims) (IssuedToken, error) {
	signer, err := s.Keys.Signer(kid)
	if err != nil {
		return IssuedToken{}, err
	}
	token, err := signer.Sign(claims)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	return IssuedToken{Token: token, KID: signer.KID(), Claims: claims}, nil
}

// ValidateRefreshToken verifies token as a refresh token and checks that
// its record is still live.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, token string) (*jwtx.Claims, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.verifier().Verify(token, jwtx.PurposeRefresh)
	if err != nil {
		l.Debug("refresh token rejected", slog.String("fp", cryptox.FingerprintToken(token)), slog.Any("err", err))
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	live, err := s.Store.RefreshTokens().IsRefreshTokenLive(sctx, claims.ID, s.now())
	if err != nil {
		l.Error("refresh token liveness check failed", slog.String("jti", claims.ID), slog.Any("err", err))
		return nil, storeErr(err)
	}
	if !live {
		l.Debug("refresh token not live", slog.String("jti", claims.ID))
		return nil, ErrUnknownOrRevoked
	}
	return claims, nil
}

// ValidateAccessToken verifies token as an access token.
func (s *TokenService) ValidateAccessToken(ctx context.Context, token string) (*jwtx.Claims, error) {
	claims, err := s.verifier().Verify(token, jwtx.PurposeAccess)
	if err != nil {
		slogx.FromContext(ctx).Debug("access token rejected", slog.String("fp", cryptox.FingerprintToken(token)), slog.Any("err", err))
		return nil, err
	}
	return claims, nil
}

// Revoke deletes the record of token. Only the signature is checked, so
// expired tokens can still be revoked. Access tokens have no record and
// always come back as RevokeResultNotFound.
func (s *TokenService) Revoke(ctx context.Context, token string) (RevokeResult, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.verifier().VerifySignature(token)
	if err != nil {
		l.Debug("revocation rejected", slog.String("fp", cryptox.FingerprintToken(token)), slog.Any("err", err))
		return 0, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	err = s.Store.RefreshTokens().RevokeRefreshToken(sctx, claims.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l.Info("token revocation found no record", slog.String("jti", claims.ID), slog.String("pur", string(claims.Purpose)))
		return RevokeResultNotFound, nil
	case err != nil:
		l.Error("token revocation failed", slog.String("jti", claims.ID), slog.Any("err", err))
		return 0, storeErr(err)
	}

	l.Info("token revoked",
		slog.String("jti", claims.ID),
		slog.String("sub", claims.Subject),
		slog.String("pur", string(claims.Purpose)),
	)
	return RevokeResultRevoked, nil
}

// resolveTTL applies the configured and package defaults to a requested
// lifetime. Lifetimes shorter than a second would collapse exp onto iat.
func resolveTTL(requested, configured, fallback time.Duration) (time.Duration, error) {
	switch {
	case requested < 0:
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidExpiry, requested)
	case requested > 0 && requested < time.Second:
		return 0, fmt.Errorf("%w: %s is shorter than a second", ErrInvalidExpiry, requested)
	case requested > 0:
		return requested.Truncate(time.Second), nil
	case configured > 0:
		return configured, nil
	default:
		return fallback, nil
	}
}

func subjectOf(u domain.User) jwtx.Subject {
	return jwtx.Subject{
		ID:       u.ID,
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
		Projects: u.ProjectAccess,
	}
}

// Introspect verifies a token of either purpose. Refresh tokens must also
// be live.
func (s *TokenService) Introspect(ctx context.Context, token string) (*jwtx.Claims, error) {
	claims, err := s.verifier().Verify(token, "")
	if err != nil {
		slogx.FromContext(ctx).Debug("introspected token rejected", slog.String("fp", cryptox.FingerprintToken(token)), slog.Any("err", err))
		return nil, err
	}
	if claims.Purpose == jwtx.PurposeRefresh {
		return s.ValidateRefreshToken(ctx, token)
	}
	return claims, nil
}
