package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/tokensdk"
)

// WhoAmIHandler godoc
//
//	@Summary		Describe the caller
//	@Description	Returns the user snapshot and scopes carried by the caller's access token.
//	@Tags			Tokens
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	tokensdk.WhoAmIResponse
//	@Failure		401	{object}	tokensdk.APIError
//	@Router			/v1/whoami [get].
func WhoAmIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.ClaimsFromContext(r.Context())
		if !ok {
			tokensdk.ErrMissingToken.WriteError(w)
			return
		}

		user := claims.Context.User
		projects := user.Projects
		if projects == nil {
			projects = map[string][]string{}
		}
		scopes := claims.Scopes()
		if scopes == nil {
			scopes = []string{}
		}

		httpx.WriteJSON(w, http.StatusOK, tokensdk.WhoAmIResponse{
			Sub:      claims.Subject,
			Username: user.Name,
			IsAdmin:  user.IsAdmin,
			Projects: projects,
			Scopes:   scopes,
			ClientID: claims.ClientID,
			JTI:      claims.ID,
			Exp:      claims.ExpiresAt.Unix(),
		})
	}
}
