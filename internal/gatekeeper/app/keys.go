package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

// LoadKeys builds the KeyStore shared by the service, the router and the
// CLI.
//
// With GATEKEEPER_KEYS_FILE set the keypairs listed there are loaded. Keys
// whose material cannot be read are logged and left unusable, the rest keep
// working. Without a key file a single RSA key is generated in memory, so
// every token becomes unverifiable once the process exits.
func LoadKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyStore, error) {
	if cfg.KeysFile == "" {
		ks, err := jwtx.NewEphemeralKeyStore(cfg.EphemeralKID, cfg.RSABits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
		}
		logger.Warn("no key file configured, generated an ephemeral signing key",
			"kid", cfg.EphemeralKID,
			"bits", cfg.RSABits,
		)
		return ks, nil
	}

	ks, err := jwtx.LoadKeyStoreFile(cfg.KeysFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load key file: %w", err)
	}

	for kid, loadErr := range ks.LoadErrors() {
		logger.Error("keypair unavailable", "kid", kid, "err", loadErr)
	}
	logger.Info("signing keys loaded",
		"file", cfg.KeysFile,
		"kids", ks.KIDs(),
		"default_kid", ks.DefaultKID(),
		"ready", ks.Ready(),
	)

	return ks, nil
}
