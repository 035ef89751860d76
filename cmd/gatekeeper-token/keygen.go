package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	privateKeyFile = "jwt_private_key.pem"
	publicKeyFile  = "jwt_public_key.pem"
)

// runKeygen writes <out-dir>/<kid>/jwt_{private,public}_key.pem and prints
// the key file entry for them.
func runKeygen(args []string, stdout, stderr io.Writer) error {
	var (
		kid    string
		outDir string
		bits   int
	)

	fs := newFlagSet("keygen", stderr)
	fs.StringVar(&kid, "kid", "", "key id (required)")
	fs.StringVar(&outDir, "out-dir", ".", "directory the key directory is created in")
	fs.IntVar(&bits, "bits", 2048, "RSA modulus size")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if kid == "" {
		return errors.New("--kid is required")
	}
	if kid != filepath.Base(kid) || kid == "." || kid == ".." {
		return fmt.Errorf("--kid %q must not contain path separators", kid)
	}

	key, err := cryptox.GenerateRSAPrivateKey(bits)
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}
	pub, err := cryptox.EncodeRSAPublicKeyPEM(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("encoding public key: %w", err)
	}

	dir := filepath.Join(outDir, kid)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	privPath := filepath.Join(dir, privateKeyFile)
	if _, err := os.Stat(privPath); err == nil {
		return fmt.Errorf("%s already exists", privPath)
	}
	if err := os.WriteFile(privPath, cryptox.EncodeRSAPrivateKeyPEM(key), 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), pub, 0o644); err != nil {
		return err
	}

	snippet, err := yaml.Marshal(jwtx.KeyFile{
		DefaultKID: kid,
		Keypairs: []jwtx.KeyFileEntry{{
			KID:        kid,
			PublicKey:  filepath.ToSlash(filepath.Join(kid, publicKeyFile)),
			PrivateKey: filepath.ToSlash(filepath.Join(kid, privateKeyFile)),
		}},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stderr, "wrote %s and %s\n", privateKeyFile, publicKeyFile)
	_, err = stdout.Write(snippet)
	return err
}
