// Command gatekeeper-token mints, inspects and revokes tokens directly
// against the gatekeeper store and key file, without going through the HTTP
// API. It is how the first admin access token is created.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/app"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stderr)
		return errors.New("subcommand required")
	}

	subcommand, rest := args[0], args[1:]
	switch subcommand {
	case "create":
		return runCreate(ctx, rest, stdout, stderr)
	case "revoke":
		return runRevoke(ctx, rest, stdout, stderr)
	case "validate":
		return runValidate(ctx, rest, stdout, stderr)
	case "prune":
		return runPrune(ctx, rest, stdout, stderr)
	case "keygen":
		return runKeygen(rest, stdout, stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: gatekeeper-token <subcommand> [flags]

Subcommands:
  create     Mint an access or refresh token for a directory user
  revoke     Revoke a refresh token
  validate   Verify a token and print its claims
  prune      Delete expired refresh token records
  keygen     Generate an RSA keypair and print its key file entry

Store, key file and user directory come from the same GATEKEEPER_*
environment as the server and can be overridden with flags.
Run 'gatekeeper-token <subcommand> --help' for subcommand flags.
`)
}

// newFlagSet returns a flag set for subcommand whose errors are returned
// rather than printed and exited on.
func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("gatekeeper-token "+name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// env holds what the store-backed subcommands need.
type env struct {
	cfg    app.Config
	logger *slog.Logger
	svc    *service.TokenService
	store  store.Store
}

// addEnvFlags binds the flags that override the environment config.
func addEnvFlags(fs *pflag.FlagSet, cfg *app.Config) {
	fs.StringVar(&cfg.KeysFile, "keys-file", cfg.KeysFile, "key file (GATEKEEPER_KEYS_FILE)")
	fs.StringVar(&cfg.UsersFile, "users-file", cfg.UsersFile, "user directory file (GATEKEEPER_USERS_FILE)")
	fs.StringVar(&cfg.StoreDriver, "store-driver", cfg.StoreDriver, "sqlite or postgres (GATEKEEPER_STORE_DRIVER)")
	fs.StringVar(&cfg.DatabaseFile, "database-file", cfg.DatabaseFile, "sqlite database (GATEKEEPER_DATABASE_FILE)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "postgres connection string (GATEKEEPER_DATABASE_URL)")
	fs.StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "token issuer (GATEKEEPER_ISSUER)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (LOG_LEVEL)")
}

// errNoKeysFile is returned by commands that sign or verify when no key file
// is configured. A key generated per run would never match the server's.
var errNoKeysFile = errors.New("a key file is required: set --keys-file or GATEKEEPER_KEYS_FILE")

// openEnv opens the store and directory. withKeys also loads the key file,
// which must then be configured.
func openEnv(ctx context.Context, cfg app.Config, withKeys bool, stderr io.Writer) (*env, error) {
	logger := slogx.New(slogx.Config{
		Service: "gatekeeper-token",
		Version: app.BuildVersion,
		Level:   cfg.LogLevel,
		Format:  "text",
		Output:  stderr,
	})

	var keys *jwtx.KeyStore
	if withKeys {
		if cfg.KeysFile == "" {
			return nil, errNoKeysFile
		}
		var err error
		if keys, err = app.LoadKeys(cfg, logger); err != nil {
			return nil, err
		}
	}
	dir, err := app.LoadDirectory(cfg, logger)
	if err != nil {
		return nil, err
	}
	st, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		svc:    app.NewTokenService(cfg, keys, st, dir),
		store:  st,
	}, nil
}

func (e *env) Close() error { return e.store.Close() }

// parseEnvFlags parses args into fs with the environment config bound and
// opens the store. A nil env with a nil error means help was printed.
func parseEnvFlags(ctx context.Context, fs *pflag.FlagSet, cfg *app.Config, withKeys bool, args []string, stderr io.Writer) (*env, error) {
	addEnvFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, nil
		}
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return openEnv(ctx, *cfg, withKeys, stderr)
}
