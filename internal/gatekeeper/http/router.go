package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"

	_ "github.com/aussiebroadwan/gatekeeper/api/gatekeeper" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyStore
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store        store.Store
	tokenService *service.TokenService
}

// NewRouter panics when tokenService is nil, as every token route needs it.
func NewRouter(
	keys *jwtx.KeyStore,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	tokenService *service.TokenService,
	logger *slog.Logger,
) *Router {
	if tokenService == nil {
		panic("http: NewRouter called with a nil TokenService")
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		tokenService: tokenService,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Gatekeeper Token Service API
//	@version		0.1.0
//	@description	Issues, validates and revokes RS256 signed access and refresh tokens.
//	@description
//	@description				Tokens can be verified offline with the keys published at /.well-known/jwks.json.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/gatekeeper
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(r.verifier, authFailure)
}

func (r *Router) registerTokens() {
	// Minting refresh tokens is an admin operation.
	refreshHandler := &IssueRefreshHandler{TokenService: r.tokenService}
	r.Mux.Handle("POST /v1/tokens/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
			r.authn(),
			httpx.RequireAdmin(denyNonAdmin),
		),
	)

	accessHandler := &IssueAccessHandler{TokenService: r.tokenService}
	r.Mux.Handle("POST /v1/tokens/access",
		httpx.Chain(accessHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	revokeHandler := &RevokeHandler{TokenService: r.tokenService}
	r.Mux.Handle("POST /v1/tokens/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	introspectHandler := &IntrospectHandler{TokenService: r.tokenService}
	r.Mux.Handle("POST /v1/tokens/introspect",
		httpx.Chain(introspectHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /v1/whoami",
		httpx.Chain(WhoAmIHandler(),
			r.authn(),
			httpx.RateLimitBySubject(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UserTokensHandler{TokenService: r.tokenService}

	list := httpx.Chain(http.HandlerFunc(h.HandleList),
		r.authn(),
		httpx.RequireAdmin(denyNonAdmin),
		httpx.RateLimitBySubject(httpx.ModerateLimit),
	)
	revoke := httpx.Chain(http.HandlerFunc(h.HandleRevokeAll),
		r.authn(),
		httpx.RequireAdmin(denyNonAdmin),
		httpx.RateLimitBySubject(httpx.ModerateLimit),
	)

	r.Mux.Handle("GET /v1/users/{user_id}/tokens", list)
	r.Mux.Handle("DELETE /v1/users/{user_id}/tokens", revoke)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
