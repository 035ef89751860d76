package jwtx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// KeyFile is the on-disk description of the keypairs a service may use.
//
//	default_kid: key-02
//	keypairs:
//	  - kid: key-01
//	    public_key: key-01/jwt_public_key.pem
//	  - kid: key-02
//	    private_key: key-02/jwt_private_key.pem
//
// Relative paths are resolved against the directory holding the file.
type KeyFile struct {
	DefaultKID string         `yaml:"default_kid"`
	Keypairs   []KeyFileEntry `yaml:"keypairs"`
}

// KeyFileEntry points at the PEM files for one kid. Either path may be
// omitted: without a private key the entry only verifies, without a public
// key it is derived from the private one.
type KeyFileEntry struct {
	KID        string `yaml:"kid"`
	PublicKey  string `yaml:"public_key,omitempty"`
	PrivateKey string `yaml:"private_key,omitempty"`
}

// LoadKeyStoreFile reads a key file and loads every keypair it lists. Only a
// missing or unparsable key file, or an inconsistent list of kids, is fatal.
// Unreadable PEM files are recorded against their kid.
func LoadKeyStoreFile(path string) (*KeyStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jwtx: read key file: %w", err)
	}
	return ParseKeyFile(data, filepath.Dir(path))
}

// ParseKeyFile is LoadKeyStoreFile for an in-memory document.
func ParseKeyFile(data []byte, baseDir string) (*KeyStore, error) {
	var kf KeyFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("jwtx: parse key file: %w", err)
	}

	b := newKeyStoreBuilder()
	for _, e := range kf.Keypairs {
		pair, loadErr := loadKeyFileEntry(e, baseDir)
		if err := b.add(pair, loadErr); err != nil {
			return nil, err
		}
	}
	return b.build(kf.DefaultKID)
}

func loadKeyFileEntry(e KeyFileEntry, baseDir string) (Keypair, error) {
	pair := Keypair{KID: e.KID}

	if e.PrivateKey == "" && e.PublicKey == "" {
		return pair, errors.New("no public_key or private_key path")
	}

	if e.PrivateKey != "" {
		pemBytes, err := os.ReadFile(resolvePath(baseDir, e.PrivateKey))
		if err != nil {
			return pair, fmt.Errorf("read private key: %w", err)
		}
		priv, err := ParseRSAPrivateKeyPEM(pemBytes)
		if err != nil {
			return pair, err
		}
		pair.Private = priv
		pair.Public = &priv.PublicKey
	}

	if e.PublicKey != "" {
		pemBytes, err := os.ReadFile(resolvePath(baseDir, e.PublicKey))
		if err != nil {
			return pair, fmt.Errorf("read public key: %w", err)
		}
		pub, err := ParseRSAPublicKeyPEM(pemBytes)
		if err != nil {
			return pair, err
		}
		if pair.Private != nil && !pair.Private.PublicKey.Equal(pub) {
			return pair, errors.New("public key does not match private key")
		}
		pair.Public = pub
	}

	return pair, nil
}

func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}
