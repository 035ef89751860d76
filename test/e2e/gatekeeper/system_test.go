package gatekeeper_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/tokensdk"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g := setupGatekeeper(t, nil)

	live, err := g.client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.NotEmpty(t, live.Version)

	ready, err := g.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Store)
	require.Equal(t, "ok", ready.Checks.Keys)
}

func TestJWKSVerifiesIssuedTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g := setupGatekeeper(t, nil)
	admin := g.adminToken(t)

	set, err := g.client.GetJWKS(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	key, ok := set.LookupKeyID(testKID)
	require.True(t, ok)
	require.Equal(t, "RSA", key.KeyType().String())
	_, isPrivate := key.(jwk.RSAPrivateKey)
	require.False(t, isPrivate, "only public keys may be published")

	// Anyone holding the JWKS can verify tokens offline.
	parsed, err := jwt.Parse([]byte(admin), jwt.WithKeySet(set), jwt.WithIssuer(testIssuer))
	require.NoError(t, err)
	require.Equal(t, "1", parsed.Subject())
}

func TestSwaggerUI(t *testing.T) {
	t.Parallel()

	g := setupGatekeeper(t, nil)

	resp, err := http.Get(g.baseURL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimitedMinting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	g := setupGatekeeper(t, map[string]string{
		"RATELIMIT_STRICT_REQUESTS": "2",
		"RATELIMIT_STRICT_BURST":    "2",
	})
	admin := g.adminToken(t)

	for range 2 {
		g.issueRefresh(t, admin, "alice", "")
	}

	_, err := g.client.IssueRefreshToken(ctx, admin, tokensdk.IssueRefreshRequest{Username: "alice"})
	requireAPIError(t, err, tokensdk.ErrRateLimited)
}
