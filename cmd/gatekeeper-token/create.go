package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/app"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

// helperRefreshTTL bounds the refresh token create mints on the way to an
// access token. It is revoked straight away.
const helperRefreshTTL = 5 * time.Minute

func runCreate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		tokenType string
		username  string
		scopes    string
		kid       string
		expiresIn time.Duration
		clientID  string
	)

	cfg := app.LoadConfig()
	fs := newFlagSet("create", stderr)
	fs.StringVar(&tokenType, "type", "access", "token type: access or refresh")
	fs.StringVar(&username, "username", "", "directory user to mint for (required)")
	fs.StringVar(&scopes, "scopes", "", "comma separated scopes, becomes the token audience")
	fs.StringVar(&kid, "kid", "", "signing key (default: the key file default)")
	fs.DurationVar(&expiresIn, "expires-in", 0, "token lifetime (default: the configured TTL)")
	fs.StringVar(&clientID, "client-id", "gatekeeper-token", "azp recorded in access tokens")

	e, err := parseEnvFlags(ctx, fs, &cfg, true, args, stderr)
	if err != nil || e == nil {
		return err
	}
	defer e.Close()

	if username == "" {
		return errors.New("--username is required")
	}
	purpose, err := jwtx.ParsePurpose(tokenType)
	if err != nil {
		return fmt.Errorf("--type: %w", err)
	}

	if purpose == jwtx.PurposeRefresh {
		refresh, err := e.svc.IssueRefreshTokenForUsername(ctx, username, kid, expiresIn, scopes)
		if err != nil {
			return fmt.Errorf("issuing refresh token: %w", err)
		}
		fmt.Fprintln(stdout, refresh.Token)
		return nil
	}

	// Access tokens are minted the way a client would get one: issue a
	// refresh token, exchange it, then revoke it again.
	refresh, err := e.svc.IssueRefreshTokenForUsername(ctx, username, kid, helperRefreshTTL, scopes)
	if err != nil {
		return fmt.Errorf("issuing helper refresh token: %w", err)
	}
	access, err := e.svc.ExchangeRefreshToken(ctx, refresh.Token, clientID, kid, expiresIn, scopes)
	if _, revokeErr := e.svc.Revoke(ctx, refresh.Token); revokeErr != nil {
		e.logger.Warn("failed to revoke helper refresh token", "jti", refresh.Claims.ID, "err", revokeErr)
	}
	if err != nil {
		return fmt.Errorf("issuing access token: %w", err)
	}

	fmt.Fprintln(stdout, access.Token)
	return nil
}
