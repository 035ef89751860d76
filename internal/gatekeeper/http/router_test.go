package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/directory"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/tokensdk"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://gatekeeper.example.org"

var (
	keysOnce sync.Once
	keys     *jwtx.KeyStore
)

func testKeyStore() *jwtx.KeyStore {
	keysOnce.Do(func() {
		var err error
		keys, err = jwtx.NewEphemeralKeyStore("test-key", 2048)
		if err != nil {
			panic(err)
		}
	})
	return keys
}

type harness struct {
	svc    *service.TokenService
	store  *sqlite.Store
	router *Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	dir, err := directory.NewStatic(
		domain.User{ID: "42", Username: "alice", ProjectAccess: map[string][]string{"phs000178": {"read"}}},
		domain.User{ID: "1", Username: "root", IsAdmin: true},
	)
	require.NoError(t, err)

	ks := testKeyStore()
	svc := &service.TokenService{
		Keys:      ks,
		Store:     st,
		Directory: dir,
		Issuer:    testIssuer,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(ks, jwtx.NewVerifierRS256(ks, jwtx.WithIssuer(testIssuer)), "test", st, svc, logger)
	r.ApplyRoutes()

	return &harness{svc: svc, store: st, router: r}
}

// accessToken mints an access token for username without going through
// the rate limited endpoints.
func (h *harness) accessToken(t *testing.T, username string) string {
	t.Helper()
	ctx := context.Background()

	refresh, err := h.svc.IssueRefreshTokenForUsername(ctx, username, "", 0, "")
	require.NoError(t, err)
	access, err := h.svc.ExchangeRefreshToken(ctx, refresh.Token, "test-client", "", 0, "")
	require.NoError(t, err)
	return access.Token
}

func (h *harness) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireAPIError(t *testing.T, rec *httptest.ResponseRecorder, want *tokensdk.APIError) {
	t.Helper()
	require.Equal(t, want.StatusCode, rec.Code, rec.Body.String())
	got := decode[tokensdk.APIError](t, rec)
	require.Equal(t, want.Code, got.Code)
	require.NotEmpty(t, got.Description)
}

func TestTokenFlow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	admin := h.accessToken(t, "root")

	rec := h.do(t, http.MethodPost, "/v1/tokens/refresh", admin, tokensdk.IssueRefreshRequest{
		Username: "alice",
		Scope:    "read,write",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	refresh := decode[tokensdk.TokenResponse](t, rec)
	require.Equal(t, "refresh", refresh.TokenType)
	require.Equal(t, int64(jwtx.DefaultRefreshTokenTTL/time.Second), refresh.ExpiresIn)
	require.NotEmpty(t, refresh.JTI)

	rec = h.do(t, http.MethodPost, "/v1/tokens/access", "", tokensdk.IssueAccessRequest{
		RefreshToken: refresh.Token,
		ClientID:     "cli1",
		ExpiresIn:    3600,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	access := decode[tokensdk.TokenResponse](t, rec)
	require.Equal(t, "access", access.TokenType)
	require.Equal(t, int64(3600), access.ExpiresIn)

	rec = h.do(t, http.MethodPost, "/v1/tokens/introspect", "", tokensdk.TokenRequest{Token: access.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[tokensdk.IntrospectionResponse](t, rec)
	require.True(t, info.Active)
	require.Equal(t, "access", info.Purpose)
	require.Equal(t, "42", info.Sub)
	require.Equal(t, "alice", info.Username)
	require.Equal(t, []string{"read", "write"}, info.Aud)
	require.Equal(t, "cli1", info.ClientID)
	require.Equal(t, testIssuer, info.Iss)

	rec = h.do(t, http.MethodGet, "/v1/whoami", access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[tokensdk.WhoAmIResponse](t, rec)
	require.Equal(t, "alice", me.Username)
	require.False(t, me.IsAdmin)
	require.Equal(t, []string{"read"}, me.Projects["phs000178"])
	require.Equal(t, "cli1", me.ClientID)

	rec = h.do(t, http.MethodPost, "/v1/tokens/revoke", "", tokensdk.TokenRequest{Token: refresh.Token})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/v1/tokens/access", "", tokensdk.IssueAccessRequest{
		RefreshToken: refresh.Token,
		ClientID:     "cli1",
	})
	requireAPIError(t, rec, tokensdk.ErrUnknownOrRevoked)

	// Revoking twice is fine.
	rec = h.do(t, http.MethodPost, "/v1/tokens/revoke", "", tokensdk.TokenRequest{Token: refresh.Token})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/tokens/introspect", "", tokensdk.TokenRequest{Token: refresh.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	info = decode[tokensdk.IntrospectionResponse](t, rec)
	require.False(t, info.Active)
	require.Equal(t, tokensdk.CodeUnknownOrRevoked, info.Reason)
	require.Empty(t, info.Sub)
}

func TestIssueRefreshAuthorization(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	body := tokensdk.IssueRefreshRequest{Username: "alice"}

	t.Run("no token", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/v1/tokens/refresh", "", body)
		requireAPIError(t, rec, tokensdk.ErrMissingToken)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/v1/tokens/refresh", "nonsense", body)
		requireAPIError(t, rec, tokensdk.ErrMalformedToken)
	})

	t.Run("not an admin", func(t *testing.T) {
		rec := h.do(t, http.MethodPost, "/v1/tokens/refresh", h.accessToken(t, "alice"), body)
		requireAPIError(t, rec, tokensdk.ErrInsufficientPrivilege)
	})

	t.Run("refresh token as bearer", func(t *testing.T) {
		refresh, err := h.svc.IssueRefreshTokenForUsername(context.Background(), "root", "", 0, "")
		require.NoError(t, err)

		rec := h.do(t, http.MethodPost, "/v1/tokens/refresh", refresh.Token, body)
		requireAPIError(t, rec, tokensdk.ErrWrongPurpose)
	})
}

func TestIssueRefreshValidation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	admin := h.accessToken(t, "root")

	tests := []struct {
		name string
		body any
		want *tokensdk.APIError
	}{
		{"unknown user", tokensdk.IssueRefreshRequest{Username: "mallory"}, tokensdk.ErrUserNotFound},
		{"missing username", tokensdk.IssueRefreshRequest{}, tokensdk.ErrInvalidRequest},
		{"negative expiry", tokensdk.IssueRefreshRequest{Username: "alice", ExpiresIn: -5}, tokensdk.ErrInvalidRequest},
		{"unknown field", `{"username":"alice","admin":true}`, tokensdk.ErrInvalidRequest},
		{"unknown kid", tokensdk.IssueRefreshRequest{Username: "alice", KID: "nope"}, tokensdk.ErrUnknownKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/v1/tokens/refresh", admin, tt.body)
			requireAPIError(t, rec, tt.want)
		})
	}
}

func TestIssueAccessValidation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	refresh, err := h.svc.IssueRefreshTokenForUsername(context.Background(), "alice", "", 0, "")
	require.NoError(t, err)

	tests := []struct {
		name string
		body any
		want *tokensdk.APIError
	}{
		{"missing refresh token", tokensdk.IssueAccessRequest{ClientID: "cli1"}, tokensdk.ErrInvalidRequest},
		{"missing client", tokensdk.IssueAccessRequest{RefreshToken: refresh.Token}, tokensdk.ErrInvalidRequest},
		{"empty body", "", tokensdk.ErrInvalidRequest},
		{"access token", tokensdk.IssueAccessRequest{RefreshToken: h.accessToken(t, "alice"), ClientID: "cli1"}, tokensdk.ErrWrongPurpose},
		{"garbage", tokensdk.IssueAccessRequest{RefreshToken: "a.b.c", ClientID: "cli1"}, tokensdk.ErrMalformedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/v1/tokens/access", "", tt.body)
			requireAPIError(t, rec, tt.want)
		})
	}
}

func TestRevokeAndIntrospectRejects(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/tokens/revoke", "", tokensdk.TokenRequest{Token: "garbage"})
	requireAPIError(t, rec, tokensdk.ErrMalformedToken)

	rec = h.do(t, http.MethodPost, "/v1/tokens/revoke", "", tokensdk.TokenRequest{})
	requireAPIError(t, rec, tokensdk.ErrInvalidRequest)

	rec = h.do(t, http.MethodPost, "/v1/tokens/introspect", "", tokensdk.TokenRequest{Token: "garbage"})
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[tokensdk.IntrospectionResponse](t, rec)
	require.False(t, info.Active)
	require.Equal(t, tokensdk.CodeMalformedToken, info.Reason)

	// Access tokens have no record but revoking them is not an error.
	rec = h.do(t, http.MethodPost, "/v1/tokens/revoke", "", tokensdk.TokenRequest{Token: h.accessToken(t, "alice")})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUserTokens(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	admin := h.accessToken(t, "root")

	for range 2 {
		_, err := h.svc.IssueRefreshTokenForUsername(ctx, "alice", "", 0, "")
		require.NoError(t, err)
	}

	rec := h.do(t, http.MethodGet, "/v1/users/42/tokens", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[tokensdk.UserTokensResponse](t, rec)
	require.Equal(t, "42", list.UserID)
	require.Len(t, list.Tokens, 2)

	rec = h.do(t, http.MethodGet, "/v1/users/42/tokens", h.accessToken(t, "alice"), nil)
	requireAPIError(t, rec, tokensdk.ErrInsufficientPrivilege)

	rec = h.do(t, http.MethodDelete, "/v1/users/42/tokens", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// The alice access token minted just above added a third refresh token.
	require.Equal(t, int64(3), decode[tokensdk.RevokeUserTokensResponse](t, rec).Revoked)

	rec = h.do(t, http.MethodGet, "/v1/users/42/tokens", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[tokensdk.UserTokensResponse](t, rec).Tokens)
}

func TestSystemEndpoints(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode[tokensdk.HealthResponse](t, rec).Status)

	rec = h.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[tokensdk.HealthResponse](t, rec)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, &tokensdk.HealthChecks{Store: "ok", Keys: "ok"}, ready.Checks)

	rec = h.do(t, http.MethodGet, "/.well-known/jwks.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Len(t, doc.Keys, 1)
	require.Equal(t, "test-key", doc.Keys[0]["kid"])

	rec = h.do(t, http.MethodGet, "/v1/whoami", "", nil)
	requireAPIError(t, rec, tokensdk.ErrMissingToken)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	require.NoError(t, h.store.Close())
	rec = h.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "degraded", decode[tokensdk.HealthResponse](t, rec).Status)
}

func TestNewRouterNeedsTokenService(t *testing.T) {
	t.Parallel()

	ks := testKeyStore()
	require.Panics(t, func() {
		NewRouter(ks, jwtx.NewVerifierRS256(ks), "test", nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	})
}
