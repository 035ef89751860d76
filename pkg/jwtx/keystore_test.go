package jwtx_test

import (
	"crypto/rsa"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func pemPKCS1(key *rsa.PrivateKey) []byte {
	return cryptox.EncodeRSAPrivateKeyPEM(key)
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestNewKeyStoreDefaults(t *testing.T) {
	t.Parallel()

	a, b := testKeys(t)

	t.Run("single key becomes default", func(t *testing.T) {
		ks, err := jwtx.NewKeyStore("", jwtx.Keypair{KID: "only", Private: a})
		require.NoError(t, err)
		require.Equal(t, "only", ks.DefaultKID())
		require.True(t, ks.Ready())
	})

	t.Run("several keys need an explicit default", func(t *testing.T) {
		_, err := jwtx.NewKeyStore("", jwtx.Keypair{KID: "k1", Private: a}, jwtx.Keypair{KID: "k2", Private: b})
		require.ErrorIs(t, err, jwtx.ErrAmbiguousDefault)
	})

	t.Run("default must be configured", func(t *testing.T) {
		_, err := jwtx.NewKeyStore("k3", jwtx.Keypair{KID: "k1", Private: a})
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("duplicate kid", func(t *testing.T) {
		_, err := jwtx.NewKeyStore("k1", jwtx.Keypair{KID: "k1", Private: a}, jwtx.Keypair{KID: "k1", Private: b})
		require.ErrorIs(t, err, jwtx.ErrDuplicateKID)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := jwtx.NewKeyStore("")
		require.ErrorIs(t, err, jwtx.ErrNoKeypairs)
	})
}

func TestKeyStoreResolve(t *testing.T) {
	t.Parallel()

	a, b := testKeys(t)
	ks, err := jwtx.NewKeyStore("k2",
		jwtx.Keypair{KID: "k1", Public: &a.PublicKey},
		jwtx.Keypair{KID: "k2", Private: b},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"k1", "k2"}, ks.KIDs())

	pair, err := ks.Resolve("")
	require.NoError(t, err)
	require.Equal(t, "k2", pair.KID)

	_, err = ks.Resolve("k1")
	require.ErrorIs(t, err, jwtx.ErrKeyUnavailable)

	_, err = ks.Resolve("nope")
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)

	// Verify-only keys still verify.
	pub, err := ks.PublicKey("k1")
	require.NoError(t, err)
	require.True(t, a.PublicKey.Equal(pub))
}

func TestEphemeralKeyStore(t *testing.T) {
	t.Parallel()

	ks, err := jwtx.NewEphemeralKeyStore("ephemeral-0", 2048)
	require.NoError(t, err)
	require.Equal(t, "ephemeral-0", ks.DefaultKID())

	signer, err := ks.Signer("")
	require.NoError(t, err)
	require.Equal(t, "ephemeral-0", signer.KID())

	_, err = jwtx.NewEphemeralKeyStore("weak", 1024)
	require.Error(t, err)
}

func TestLoadKeyStoreFile(t *testing.T) {
	t.Parallel()

	a, b := testKeys(t)
	dir := t.TempDir()

	pubA, err := cryptox.EncodeRSAPublicKeyPEM(&a.PublicKey)
	require.NoError(t, err)
	writeFile(t, dir, "key-01/jwt_public_key.pem", pubA)
	writeFile(t, dir, "key-02/jwt_private_key.pem", pemPKCS1(b))
	writeFile(t, dir, "key-03/jwt_private_key.pem", []byte("not a pem"))

	writeFile(t, dir, "keys.yaml", []byte(`
default_kid: key-02
keypairs:
  - kid: key-01
    public_key: key-01/jwt_public_key.pem
  - kid: key-02
    private_key: key-02/jwt_private_key.pem
  - kid: key-03
    private_key: key-03/jwt_private_key.pem
  - kid: key-04
    private_key: missing/jwt_private_key.pem
`))

	ks, err := jwtx.LoadKeyStoreFile(filepath.Join(dir, "keys.yaml"))
	require.NoError(t, err)
	require.Equal(t, "key-02", ks.DefaultKID())
	require.Equal(t, []string{"key-01", "key-02", "key-03", "key-04"}, ks.KIDs())
	require.True(t, ks.Ready())

	loadErrs := ks.LoadErrors()
	require.Len(t, loadErrs, 2)
	require.Contains(t, loadErrs, "key-03")
	require.Contains(t, loadErrs, "key-04")

	_, err = ks.Signer("key-03")
	require.ErrorIs(t, err, jwtx.ErrKeyUnavailable)

	_, err = ks.PublicKey("key-04")
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)

	// A token from the retired key still verifies after rotation.
	old, err := jwtx.NewSignerRS256("key-01", pemPKCS1(a))
	require.NoError(t, err)
	token, err := old.Sign(jwtx.NewClaims(jwtx.PurposeAccess, alice(), nil, exampleIssuer, time.Now(), time.Hour))
	require.NoError(t, err)

	_, err = jwtx.NewVerifierRS256(ks).Verify(token, jwtx.PurposeAccess)
	require.NoError(t, err)
}

func TestLoadKeyStoreFileDefaultBroken(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "keys.yaml", []byte(`
keypairs:
  - kid: only
    private_key: nowhere.pem
`))

	ks, err := jwtx.LoadKeyStoreFile(filepath.Join(dir, "keys.yaml"))
	require.NoError(t, err)
	require.False(t, ks.Ready())

	_, err = ks.Signer("")
	require.ErrorIs(t, err, jwtx.ErrKeyUnavailable)
}

func TestParseKeyFileMismatch(t *testing.T) {
	t.Parallel()

	a, b := testKeys(t)
	dir := t.TempDir()

	pubB, err := cryptox.EncodeRSAPublicKeyPEM(&b.PublicKey)
	require.NoError(t, err)
	writeFile(t, dir, "priv.pem", pemPKCS1(a))
	writeFile(t, dir, "pub.pem", pubB)

	ks, err := jwtx.ParseKeyFile([]byte(`
keypairs:
  - kid: k1
    private_key: priv.pem
    public_key: pub.pem
`), dir)
	require.NoError(t, err)
	require.Contains(t, ks.LoadErrors(), "k1")
}

func TestParseKeyFileErrors(t *testing.T) {
	t.Parallel()

	_, err := jwtx.ParseKeyFile([]byte("keypairs: ["), "")
	require.Error(t, err)

	_, err = jwtx.ParseKeyFile([]byte("keypairs: []"), "")
	require.ErrorIs(t, err, jwtx.ErrNoKeypairs)

	_, err = jwtx.ParseKeyFile([]byte(`
keypairs:
  - kid: a
    private_key: a.pem
  - kid: a
    private_key: b.pem
`), "")
	require.ErrorIs(t, err, jwtx.ErrDuplicateKID)

	_, err = jwtx.LoadKeyStoreFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
