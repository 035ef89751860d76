package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/tokensdk"
)

// IssueRefreshHandler serves POST /v1/tokens/refresh.
type IssueRefreshHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Issue a refresh token
//	@Description	Mints and records a refresh token for a directory user. Requires an admin access token.
//	@Tags			Tokens
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		tokensdk.IssueRefreshRequest	true	"Refresh token request"
//	@Success		201		{object}	tokensdk.TokenResponse
//	@Failure		400		{object}	tokensdk.APIError
//	@Failure		401		{object}	tokensdk.APIError
//	@Failure		403		{object}	tokensdk.APIError
//	@Failure		404		{object}	tokensdk.APIError
//	@Failure		503		{object}	tokensdk.APIError
//	@Router			/v1/tokens/refresh [post].
func (h *IssueRefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req tokensdk.IssueRefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		tokensdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		tokensdk.ErrInvalidRequest.WithDescription("username is required").WriteError(w)
		return
	}
	if req.ExpiresIn < 0 {
		tokensdk.ErrInvalidRequest.WithDescription("expires_in must not be negative").WriteError(w)
		return
	}

	issued, err := h.TokenService.IssueRefreshTokenForUsername(r.Context(),
		req.Username, req.KID, time.Duration(req.ExpiresIn)*time.Second, req.Scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, tokenResponse(issued))
}

// IssueAccessHandler serves POST /v1/tokens/access.
type IssueAccessHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Exchange a refresh token for an access token
//	@Description	Validates the refresh token against the revocation store and mints an access token for the same user.
//	@Description	The access token's audience defaults to the refresh token's audience when no scope is given.
//	@Tags			Tokens
//	@Accept			json
//	@Produce		json
//	@Param			request	body		tokensdk.IssueAccessRequest	true	"Access token request"
//	@Success		201		{object}	tokensdk.TokenResponse
//	@Failure		400		{object}	tokensdk.APIError
//	@Failure		401		{object}	tokensdk.APIError
//	@Failure		404		{object}	tokensdk.APIError
//	@Failure		503		{object}	tokensdk.APIError
//	@Router			/v1/tokens/access [post].
func (h *IssueAccessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req tokensdk.IssueAccessRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		tokensdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}

	switch {
	case req.RefreshToken == "":
		tokensdk.ErrInvalidRequest.WithDescription("refresh_token is required").WriteError(w)
		return
	case strings.TrimSpace(req.ClientID) == "":
		tokensdk.ErrInvalidRequest.WithDescription("client_id is required").WriteError(w)
		return
	case req.ExpiresIn < 0:
		tokensdk.ErrInvalidRequest.WithDescription("expires_in must not be negative").WriteError(w)
		return
	}

	issued, err := h.TokenService.ExchangeRefreshToken(r.Context(),
		req.RefreshToken, req.ClientID, req.KID, time.Duration(req.ExpiresIn)*time.Second, req.Scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, tokenResponse(issued))
}

func tokenResponse(t service.IssuedToken) tokensdk.TokenResponse {
	return tokensdk.TokenResponse{
		Token:     t.Token,
		TokenType: string(t.Claims.Purpose),
		ExpiresIn: t.ExpiresIn(),
		JTI:       t.Claims.ID,
	}
}

// RevokeHandler serves POST /v1/tokens/revoke. Revoking a token that has
// no record, an access token say, still succeeds.
type RevokeHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Revoke a token
//	@Description	Deletes the record of a refresh token so it can no longer be exchanged. Only the signature is checked, expired tokens can be revoked.
//	@Description	Responds 204 whether or not a record existed.
//	@Tags			Tokens
//	@Accept			json
//	@Produce		json
//	@Param			request	body	tokensdk.TokenRequest	true	"Token to revoke"
//	@Success		204		"Token revoked (or had no record)"
//	@Failure		400		{object}	tokensdk.APIError
//	@Failure		401		{object}	tokensdk.APIError
//	@Failure		503		{object}	tokensdk.APIError
//	@Router			/v1/tokens/revoke [post].
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req tokensdk.TokenRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		tokensdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}
	if req.Token == "" {
		tokensdk.ErrInvalidRequest.WithDescription("token is required").WriteError(w)
		return
	}

	if _, err := h.TokenService.Revoke(r.Context(), req.Token); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// IntrospectHandler serves POST /v1/tokens/introspect.
type IntrospectHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Introspect a token
//	@Description	Reports whether a token is currently usable and, if so, what it carries.
//	@Description	Invalid tokens yield active=false and a reason code rather than an error.
//	@Tags			Tokens
//	@Accept			json
//	@Produce		json
//	@Param			request	body		tokensdk.TokenRequest	true	"Token to introspect"
//	@Success		200		{object}	tokensdk.IntrospectionResponse
//	@Failure		400		{object}	tokensdk.APIError
//	@Failure		503		{object}	tokensdk.APIError
//	@Router			/v1/tokens/introspect [post].
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req tokensdk.TokenRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		tokensdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return
	}
	if req.Token == "" {
		tokensdk.ErrInvalidRequest.WithDescription("token is required").WriteError(w)
		return
	}

	claims, err := h.TokenService.Introspect(r.Context(), req.Token)
	if err != nil {
		e := apiError(err)
		// An outage says nothing about the token.
		if e.StatusCode >= http.StatusInternalServerError {
			writeError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, tokensdk.IntrospectionResponse{Active: false, Reason: e.Code})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokensdk.IntrospectionResponse{
		Active:   true,
		Purpose:  string(claims.Purpose),
		Sub:      claims.Subject,
		Username: claims.Context.User.Name,
		Aud:      claims.Scopes(),
		Iss:      claims.Issuer,
		JTI:      claims.ID,
		ClientID: claims.ClientID,
		Iat:      claims.IssuedAt.Unix(),
		Exp:      claims.ExpiresAt.Unix(),
	})
}
