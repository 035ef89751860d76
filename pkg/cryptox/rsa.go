package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// MinRSABits is the smallest modulus we are willing to sign tokens with.
const MinRSABits = 2048

// GenerateRSAPrivateKey generates a new RSA key with the given modulus size.
func GenerateRSAPrivateKey(bits int) (*rsa.PrivateKey, error) {
	if bits < MinRSABits {
		return nil, fmt.Errorf("cryptox: RSA key size must be at least %d bits", MinRSABits)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate RSA key: %w", err)
	}
	return key, nil
}

// GenerateRSAKey generates a new RSA private key and returns it PEM encoded
// in PKCS1 form.
func GenerateRSAKey(bits int) ([]byte, error) {
	key, err := GenerateRSAPrivateKey(bits)
	if err != nil {
		return nil, err
	}
	return EncodeRSAPrivateKeyPEM(key), nil
}

// EncodeRSAPrivateKeyPEM encodes a private key as a PKCS1 "RSA PRIVATE KEY".
func EncodeRSAPrivateKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// EncodeRSAPublicKeyPEM encodes a public key as a PKIX "PUBLIC KEY", the
// form openssl emits for `rsa -pubout`.
func EncodeRSAPublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
