package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/aussiebroadwan/gatekeeper/pkg/tokensdk"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify tokens. Keys that failed to load are left out.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	map[string]any	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := keys.JWKS()
		if err != nil {
			slogx.FromContext(r.Context()).Error("failed to build JWKS", "err", err)
			tokensdk.ErrServerError.WriteError(w)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)
	}
}
