package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/tokensdk"
)

// UserTokensHandler serves the admin view of a user's refresh tokens.
type UserTokensHandler struct {
	TokenService *service.TokenService
}

// HandleList godoc
//
//	@Summary		List a user's refresh tokens
//	@Description	Lists the live refresh tokens recorded for a user, newest first. Requires an admin access token.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Param			user_id	path		string	true	"User ID"
//	@Success		200		{object}	tokensdk.UserTokensResponse
//	@Failure		401		{object}	tokensdk.APIError
//	@Failure		403		{object}	tokensdk.APIError
//	@Failure		503		{object}	tokensdk.APIError
//	@Router			/v1/users/{user_id}/tokens [get].
func (h *UserTokensHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	recs, err := h.TokenService.ListUserTokens(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := tokensdk.UserTokensResponse{UserID: userID, Tokens: make([]tokensdk.UserToken, 0, len(recs))}
	for _, rec := range recs {
		resp.Tokens = append(resp.Tokens, tokensdk.UserToken{
			JTI:       rec.JTI,
			ExpiresAt: rec.ExpiresAt.UTC(),
			CreatedAt: rec.CreatedAt.UTC(),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleRevokeAll godoc
//
//	@Summary		Revoke all of a user's refresh tokens
//	@Description	Deletes every refresh token record of a user. Access tokens already issued stay valid until they expire.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Param			user_id	path		string	true	"User ID"
//	@Success		200		{object}	tokensdk.RevokeUserTokensResponse
//	@Failure		401		{object}	tokensdk.APIError
//	@Failure		403		{object}	tokensdk.APIError
//	@Failure		503		{object}	tokensdk.APIError
//	@Router			/v1/users/{user_id}/tokens [delete].
func (h *UserTokensHandler) HandleRevokeAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	n, err := h.TokenService.RevokeUserTokens(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokensdk.RevokeUserTokensResponse{UserID: userID, Revoked: n})
}

func pathUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("user_id"))
	if id == "" {
		tokensdk.ErrInvalidRequest.WithDescription("user_id is required").WriteError(w)
		return "", false
	}
	return id, true
}
