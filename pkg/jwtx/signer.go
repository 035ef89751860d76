package jwtx

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	Validate() error
}

// NewSignerRS256 creates an RS256 signer from PEM bytes.
func NewSignerRS256(kid string, pemKey []byte) (Signer, error) {
	key, err := ParseRSAPrivateKeyPEM(pemKey)
	if err != nil {
		return nil, err
	}
	return newRS256Signer(kid, key), nil
}
