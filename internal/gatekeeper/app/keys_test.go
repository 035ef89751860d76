package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeKeyFile(t *testing.T, dir string) string {
	t.Helper()

	pem, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "key-01"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "key-01", "jwt_private_key.pem"), pem, 0o600))

	path := filepath.Join(dir, "keys.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_kid: key-01
keypairs:
  - kid: key-01
    private_key: key-01/jwt_private_key.pem
  - kid: key-00
    private_key: key-00/jwt_private_key.pem
`), 0o600))
	return path
}

func TestLoadKeysFromFile(t *testing.T) {
	t.Parallel()

	cfg := Config{KeysFile: writeKeyFile(t, t.TempDir())}
	ks, err := LoadKeys(cfg, discardLogger())
	require.NoError(t, err)
	require.Equal(t, "key-01", ks.DefaultKID())
	require.True(t, ks.Ready())
	require.Contains(t, ks.LoadErrors(), "key-00")
}

func TestLoadKeysEphemeral(t *testing.T) {
	t.Parallel()

	ks, err := LoadKeys(Config{EphemeralKID: "ephemeral-7", RSABits: 2048}, discardLogger())
	require.NoError(t, err)
	require.Equal(t, []string{"ephemeral-7"}, ks.KIDs())
	require.True(t, ks.Ready())
}

func TestLoadKeysErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadKeys(Config{KeysFile: filepath.Join(t.TempDir(), "absent.yaml")}, discardLogger())
	require.Error(t, err)

	_, err = LoadKeys(Config{EphemeralKID: "weak", RSABits: 512}, discardLogger())
	require.Error(t, err)
}
