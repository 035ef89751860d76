package jwtx

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"slices"

	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
)

var (
	ErrNoKeypairs       = errors.New("jwtx: no keypairs configured")
	ErrDuplicateKID     = errors.New("jwtx: duplicate kid")
	ErrAmbiguousDefault = errors.New("jwtx: default_kid is required when more than one keypair is configured")
)

// Keypair is a signing key and its public half. Private is nil for keys that
// are only kept around to verify tokens issued before a rotation.
type Keypair struct {
	KID     string
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// Signer returns an RS256 signer for the keypair.
func (k Keypair) Signer() (Signer, error) {
	if k.Private == nil {
		return nil, fmt.Errorf("%w: kid %q has no private key", ErrKeyUnavailable, k.KID)
	}
	return newRS256Signer(k.KID, k.Private), nil
}

// keyEntry keeps the load error next to the key so a broken key is reported
// when somebody asks for it rather than when the store is built.
type keyEntry struct {
	pair Keypair
	err  error
}

// KeyStore resolves a kid to its keypair. It is built once at startup and is
// read-only afterwards, so it is shared between goroutines without locking.
type KeyStore struct {
	defaultKID string
	order      []string
	entries    map[string]keyEntry
}

// NewKeyStore builds a KeyStore from already loaded keypairs. When defaultKID
// is empty and exactly one keypair is given that keypair becomes the default.
func NewKeyStore(defaultKID string, pairs ...Keypair) (*KeyStore, error) {
	b := newKeyStoreBuilder()
	for _, p := range pairs {
		if p.Public == nil && p.Private != nil {
			p.Public = &p.Private.PublicKey
		}
		var err error
		if p.Public == nil {
			err = errors.New("no key material")
		}
		if addErr := b.add(p, err); addErr != nil {
			return nil, addErr
		}
	}
	return b.build(defaultKID)
}

// NewEphemeralKeyStore generates a single in-memory keypair. Tokens signed
// with it stop verifying once the process exits.
func NewEphemeralKeyStore(kid string, bits int) (*KeyStore, error) {
	key, err := cryptox.GenerateRSAPrivateKey(bits)
	if err != nil {
		return nil, err
	}
	return NewKeyStore(kid, Keypair{KID: kid, Private: key, Public: &key.PublicKey})
}

// Resolve returns the keypair used for signing. An empty kid selects the
// default keypair.
func (ks *KeyStore) Resolve(kid string) (Keypair, error) {
	if kid == "" {
		kid = ks.defaultKID
	}

	entry, ok := ks.entries[kid]
	if !ok {
		return Keypair{}, fmt.Errorf("%w %q", ErrUnknownKID, kid)
	}
	if entry.err != nil {
		return Keypair{}, fmt.Errorf("%w: kid %q: %w", ErrKeyUnavailable, kid, entry.err)
	}
	if entry.pair.Private == nil {
		return Keypair{}, fmt.Errorf("%w: kid %q is verify-only", ErrKeyUnavailable, kid)
	}
	return entry.pair, nil
}

// Signer resolves kid and returns a signer for it.
func (ks *KeyStore) Signer(kid string) (Signer, error) {
	pair, err := ks.Resolve(kid)
	if err != nil {
		return nil, err
	}
	return pair.Signer()
}

// PublicKey returns the verification key for kid. Any failure, including a
// key that failed to load, is reported as ErrUnknownKID.
func (ks *KeyStore) PublicKey(kid string) (*rsa.PublicKey, error) {
	entry, ok := ks.entries[kid]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
	}
	if entry.err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrUnknownKID, kid, entry.err)
	}
	return entry.pair.Public, nil
}

// DefaultKID is the kid used when a caller does not pick one.
func (ks *KeyStore) DefaultKID() string { return ks.defaultKID }

// KIDs lists every configured kid in configuration order, including keys
// that failed to load.
func (ks *KeyStore) KIDs() []string { return slices.Clone(ks.order) }

// LoadErrors returns the per-key load failures keyed by kid.
func (ks *KeyStore) LoadErrors() map[string]error {
	out := map[string]error{}
	for kid, e := range ks.entries {
		if e.err != nil {
			out[kid] = e.err
		}
	}
	return out
}

// Ready reports whether the default key can sign.
func (ks *KeyStore) Ready() bool {
	_, err := ks.Resolve("")
	return err == nil
}

type keyStoreBuilder struct {
	order   []string
	entries map[string]keyEntry
}

func newKeyStoreBuilder() *keyStoreBuilder {
	return &keyStoreBuilder{entries: map[string]keyEntry{}}
}

func (b *keyStoreBuilder) add(p Keypair, loadErr error) error {
	if p.KID == "" {
		return errors.New("jwtx: keypair without kid")
	}
	if _, dup := b.entries[p.KID]; dup {
		return fmt.Errorf("%w %q", ErrDuplicateKID, p.KID)
	}
	b.order = append(b.order, p.KID)
	b.entries[p.KID] = keyEntry{pair: p, err: loadErr}
	return nil
}

func (b *keyStoreBuilder) build(defaultKID string) (*KeyStore, error) {
	switch {
	case len(b.order) == 0:
		return nil, ErrNoKeypairs
	case defaultKID == "" && len(b.order) > 1:
		return nil, ErrAmbiguousDefault
	case defaultKID == "":
		defaultKID = b.order[0]
	}

	if _, ok := b.entries[defaultKID]; !ok {
		return nil, fmt.Errorf("%w: default_kid %q is not configured", ErrUnknownKID, defaultKID)
	}

	return &KeyStore{
		defaultKID: defaultKID,
		order:      b.order,
		entries:    b.entries,
	}, nil
}
