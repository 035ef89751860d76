package tokensdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/tokensdk"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorWriteError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	tokensdk.ErrUnknownOrRevoked.WithDescription("jti abc is not live").WriteError(rec)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, map[string]string{
		"error":             "unknown_or_revoked",
		"error_description": "jti abc is not live",
	}, body)
}

func TestAPIErrorIs(t *testing.T) {
	t.Parallel()

	custom := tokensdk.ErrStoreUnavailable.WithDescription("timeout")
	require.ErrorIs(t, custom, tokensdk.ErrStoreUnavailable)
	require.NotErrorIs(t, custom, tokensdk.ErrKeyUnavailable)
	require.Equal(t, "the token store is unavailable", tokensdk.ErrStoreUnavailable.Description)
}

func TestClientRoundTrips(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tokens/refresh", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer admin" {
			tokensdk.ErrMissingToken.WriteError(w)
			return
		}
		var req tokensdk.IssueRefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
			tokensdk.ErrInvalidRequest.WriteError(w)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(tokensdk.TokenResponse{Token: "r.t.s", TokenType: "refresh", ExpiresIn: 60, JTI: "j1"})
	})
	mux.HandleFunc("POST /v1/tokens/revoke", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /v1/users/{id}/tokens", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(tokensdk.UserTokensResponse{UserID: r.PathValue("id")})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := tokensdk.New(srv.URL + "/")
	ctx := context.Background()

	tok, err := c.IssueRefreshToken(ctx, "admin", tokensdk.IssueRefreshRequest{Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, "j1", tok.JTI)

	_, err = c.IssueRefreshToken(ctx, "", tokensdk.IssueRefreshRequest{Username: "alice"})
	require.ErrorIs(t, err, tokensdk.ErrMissingToken)

	_, err = c.IssueRefreshToken(ctx, "admin", tokensdk.IssueRefreshRequest{})
	var apiErr *tokensdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, tokensdk.CodeInvalidRequest, apiErr.Code)

	require.NoError(t, c.Revoke(ctx, "r.t.s"))

	list, err := c.ListUserTokens(ctx, "admin", "42")
	require.NoError(t, err)
	require.Equal(t, "42", list.UserID)

	_, err = c.GetReadiness(ctx)
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	require.Equal(t, tokensdk.CodeServerError, apiErr.Code)
}
