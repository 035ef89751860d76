package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// AuthFailure renders a rejected request. err is nil when no bearer token
// was sent at all.
type AuthFailure func(w http.ResponseWriter, r *http.Request, err error)

// AuthnMiddleware accepts only requests carrying a valid access token and
// puts its claims into the request context. fail may be nil, in which case a
// bare RFC 6750 challenge is written.
func AuthnMiddleware(v jwtx.Verifier, fail AuthFailure) Middleware {
	if fail == nil {
		fail = func(w http.ResponseWriter, _ *http.Request, _ error) {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				writeBearerChallenge(w, "")
				fail(w, r, nil)
				return
			}

			claims, err := v.Verify(raw, jwtx.PurposeAccess)
			if err != nil {
				slogx.FromContext(r.Context()).Debug("bearer token rejected", "err", err)
				writeBearerChallenge(w, "invalid_token")
				fail(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeBearerChallenge(w http.ResponseWriter, code string) {
	v := `Bearer realm="gatekeeper"`
	if code != "" {
		v += `, error="` + code + `"`
	}
	w.Header().Set("WWW-Authenticate", v)
}
