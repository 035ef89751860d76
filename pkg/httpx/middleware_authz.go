package httpx

import (
	"net/http"
)

// RequireAdmin lets through only callers whose access token carries
// context.user.is_admin. It must run after AuthnMiddleware.
func RequireAdmin(deny func(w http.ResponseWriter, r *http.Request)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !claims.Context.User.IsAdmin {
				w.Header().Set("WWW-Authenticate", `Bearer realm="gatekeeper", error="insufficient_scope"`)
				if deny != nil {
					deny(w, r)
					return
				}
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
