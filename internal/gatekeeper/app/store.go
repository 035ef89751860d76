package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/directory"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/postgres"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

// OpenStore connects the configured revocation store and applies its
// migrations.
func OpenStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)

	switch cfg.StoreDriver {
	case DriverSQLite, "":
		st, err = sqlite.NewStore(sqlite.FileDSN(cfg.DatabaseFile))
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("GATEKEEPER_DATABASE_URL is required for the %s driver", DriverPostgres)
		}
		st, err = postgres.NewStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	logger.Info("database migrations applied successfully", "driver", cfg.StoreDriver)
	return st, nil
}

// LoadDirectory reads the user directory file.
func LoadDirectory(cfg Config, logger *slog.Logger) (*directory.Static, error) {
	dir, err := directory.LoadFile(cfg.UsersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load users file: %w", err)
	}
	if dir.Len() == 0 {
		logger.Warn("user directory is empty, no tokens can be issued", "file", cfg.UsersFile)
	}
	return dir, nil
}

// NewTokenService wires a TokenService from its collaborators and cfg.
func NewTokenService(cfg Config, keys *jwtx.KeyStore, st store.Store, dir directory.Directory) *service.TokenService {
	return &service.TokenService{
		Keys:         keys,
		Store:        st,
		Directory:    dir,
		Issuer:       cfg.Issuer,
		AccessTTL:    cfg.AccessTTL,
		RefreshTTL:   cfg.RefreshTTL,
		StoreTimeout: cfg.StoreTimeout,
	}
}
