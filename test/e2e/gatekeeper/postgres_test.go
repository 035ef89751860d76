package gatekeeper_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/tokensdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/network"
)

// setupPostgres starts a database reachable as "db" on a fresh network.
func setupPostgres(t *testing.T) *testcontainers.DockerNetwork {
	t.Helper()
	ctx := context.Background()

	nw, err := network.New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nw.Remove(context.Background()) })

	db, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("gatekeeper"),
		tcpostgres.WithUsername("gatekeeper"),
		tcpostgres.WithPassword("gatekeeper"),
		tcpostgres.BasicWaitStrategies(),
		network.WithNetwork([]string{"db"}, nw),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Terminate(context.Background()) })

	return nw
}

func TestPostgresStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	nw := setupPostgres(t)
	g := setupGatekeeper(t, map[string]string{
		"GATEKEEPER_STORE_DRIVER": "postgres",
		"GATEKEEPER_DATABASE_URL": "postgres://gatekeeper:gatekeeper@db:5432/gatekeeper?sslmode=disable",
	}, network.WithNetwork([]string{"gatekeeper"}, nw))

	ready, err := g.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks.Store)

	admin := g.adminToken(t)
	refresh := g.issueRefresh(t, admin, "alice", "read")

	_, err = g.client.IssueAccessToken(ctx, tokensdk.IssueAccessRequest{RefreshToken: refresh.Token, ClientID: "cli1"})
	require.NoError(t, err)

	list, err := g.client.ListUserTokens(ctx, admin, "42")
	require.NoError(t, err)
	require.Len(t, list.Tokens, 1)

	require.NoError(t, g.client.Revoke(ctx, refresh.Token))
	_, err = g.client.IssueAccessToken(ctx, tokensdk.IssueAccessRequest{RefreshToken: refresh.Token, ClientID: "cli1"})
	requireAPIError(t, err, tokensdk.ErrUnknownOrRevoked)

	require.Equal(t, "deleted 0 expired refresh token records", g.tokenCLI(t, "prune"))
}
