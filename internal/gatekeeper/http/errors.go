package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/directory"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/aussiebroadwan/gatekeeper/pkg/tokensdk"
)

// apiError maps a service or verification error to its wire form.
// Unrecognised errors become server_error.
func apiError(err error) *tokensdk.APIError {
	switch {
	case errors.Is(err, service.ErrStoreUnavailable):
		return tokensdk.ErrStoreUnavailable
	case errors.Is(err, jwtx.ErrKeyUnavailable):
		return tokensdk.ErrKeyUnavailable
	case errors.Is(err, jwtx.ErrMalformed):
		return tokensdk.ErrMalformedToken
	case errors.Is(err, jwtx.ErrUnknownKID):
		return tokensdk.ErrUnknownKey
	case errors.Is(err, jwtx.ErrInvalidSig):
		return tokensdk.ErrInvalidSignature
	case errors.Is(err, jwtx.ErrExpired), errors.Is(err, jwtx.ErrNotYetValid):
		return tokensdk.ErrTokenExpired
	case errors.Is(err, jwtx.ErrIssuer):
		return tokensdk.ErrInvalidIssuer
	case errors.Is(err, jwtx.ErrWrongPurpose):
		return tokensdk.ErrWrongPurpose
	case errors.Is(err, service.ErrUnknownOrRevoked):
		return tokensdk.ErrUnknownOrRevoked
	case errors.Is(err, service.ErrSubjectMismatch):
		return tokensdk.ErrSubjectMismatch
	case errors.Is(err, directory.ErrUserNotFound):
		return tokensdk.ErrUserNotFound
	case errors.Is(err, service.ErrInvalidExpiry):
		return tokensdk.ErrInvalidRequest.WithDescription(err.Error())
	default:
		return tokensdk.ErrServerError
	}
}

// writeError logs server side failures and renders err.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apiError(err)
	if e.StatusCode >= http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", slog.String("code", e.Code), slog.Any("err", err))
	}
	e.WriteError(w)
}

func authFailure(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		tokensdk.ErrMissingToken.WriteError(w)
		return
	}
	writeError(w, r, err)
}

func denyNonAdmin(w http.ResponseWriter, _ *http.Request) {
	tokensdk.ErrInsufficientPrivilege.WriteError(w)
}
