package jwtx

import (
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// JWKSet returns the public half of every loadable key as a JWK set, in
// configuration order. Keys that failed to load are left out.
func (ks *KeyStore) JWKSet() (jwk.Set, error) {
	set := jwk.NewSet()
	for _, kid := range ks.order {
		entry := ks.entries[kid]
		if entry.err != nil || entry.pair.Public == nil {
			continue
		}

		key, err := jwk.FromRaw(entry.pair.Public)
		if err != nil {
			return nil, fmt.Errorf("jwtx: jwk for %q: %w", kid, err)
		}
		if err := key.Set(jwk.KeyIDKey, kid); err != nil {
			return nil, err
		}
		if err := key.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
			return nil, err
		}
		if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
			return nil, err
		}
		if err := set.AddKey(key); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// JWKS renders JWKSet as the JSON document served at
// /.well-known/jwks.json.
func (ks *KeyStore) JWKS() ([]byte, error) {
	set, err := ks.JWKSet()
	if err != nil {
		return nil, err
	}
	return json.Marshal(set)
}
