package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/app"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

func runRevoke(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var token string

	cfg := app.LoadConfig()
	fs := newFlagSet("revoke", stderr)
	fs.StringVar(&token, "token", "", "token to revoke (required)")

	e, err := parseEnvFlags(ctx, fs, &cfg, true, args, stderr)
	if err != nil || e == nil {
		return err
	}
	defer e.Close()

	if token == "" {
		return errors.New("--token is required")
	}

	res, err := e.svc.Revoke(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, res)
	return nil
}

func runValidate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var token, purpose string

	cfg := app.LoadConfig()
	fs := newFlagSet("validate", stderr)
	fs.StringVar(&token, "token", "", "token to verify (required)")
	fs.StringVar(&purpose, "purpose", "", "expected purpose: access or refresh (default: either)")

	e, err := parseEnvFlags(ctx, fs, &cfg, true, args, stderr)
	if err != nil || e == nil {
		return err
	}
	defer e.Close()

	if token == "" {
		return errors.New("--token is required")
	}

	var claims *jwtx.Claims
	switch purpose {
	case "":
		claims, err = e.svc.Introspect(ctx, token)
	default:
		var p jwtx.Purpose
		if p, err = jwtx.ParsePurpose(purpose); err != nil {
			return fmt.Errorf("--purpose: %w", err)
		}
		if p == jwtx.PurposeRefresh {
			claims, err = e.svc.ValidateRefreshToken(ctx, token)
		} else {
			claims, err = e.svc.ValidateAccessToken(ctx, token)
		}
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(claims)
}

func runPrune(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := app.LoadConfig()
	fs := newFlagSet("prune", stderr)

	e, err := parseEnvFlags(ctx, fs, &cfg, false, args, stderr)
	if err != nil || e == nil {
		return err
	}
	defer e.Close()

	n, err := e.svc.Prune(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "deleted %d expired refresh token records\n", n)
	return nil
}
