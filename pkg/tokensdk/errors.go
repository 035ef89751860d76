package tokensdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// Error codes carried in the "error" field of a failed response.
const (
	CodeMalformedToken        = "malformed_token"
	CodeUnknownKey            = "unknown_key"
	CodeInvalidSignature      = "invalid_signature"
	CodeTokenExpired          = "token_expired"
	CodeInvalidIssuer         = "invalid_issuer"
	CodeWrongPurpose          = "wrong_purpose"
	CodeUnknownOrRevoked      = "unknown_or_revoked"
	CodeSubjectMismatch       = "subject_mismatch"
	CodeMissingToken          = "missing_token"
	CodeKeyUnavailable        = "key_unavailable"
	CodeStoreUnavailable      = "store_unavailable"
	CodeUserNotFound          = "user_not_found"
	CodeInvalidRequest        = "invalid_request"
	CodeInsufficientPrivilege = "insufficient_privilege"
	CodeRateLimited           = "rate_limited"
	CodeServerError           = "server_error"
)

// APIError is the error body returned by every Gatekeeper endpoint. The
// server writes it with WriteError and the client hands it back from failed
// calls, so errors.Is works against the values below on both sides.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on Code only, so a response with a more specific description
// still compares equal to the predefined error.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WithDescription returns a copy of e carrying desc.
func (e *APIError) WithDescription(desc string) *APIError {
	cp := *e
	cp.Description = desc
	return &cp
}

// WriteError renders e as JSON with its status code.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

func newAPIError(status int, code, desc string) *APIError {
	return &APIError{StatusCode: status, Code: code, Description: desc}
}

var (
	ErrMalformedToken   = newAPIError(http.StatusUnauthorized, CodeMalformedToken, "the token is not a well formed JWT")
	ErrUnknownKey       = newAPIError(http.StatusUnauthorized, CodeUnknownKey, "the token was signed with an unknown key")
	ErrInvalidSignature = newAPIError(http.StatusUnauthorized, CodeInvalidSignature, "the token signature does not verify")
	ErrTokenExpired     = newAPIError(http.StatusUnauthorized, CodeTokenExpired, "the token is expired or not yet valid")
	ErrInvalidIssuer    = newAPIError(http.StatusUnauthorized, CodeInvalidIssuer, "the token was issued by someone else")
	ErrWrongPurpose     = newAPIError(http.StatusUnauthorized, CodeWrongPurpose, "the token purpose does not fit this request")
	ErrUnknownOrRevoked = newAPIError(http.StatusUnauthorized, CodeUnknownOrRevoked, "the refresh token is unknown or revoked")
	ErrSubjectMismatch  = newAPIError(http.StatusUnauthorized, CodeSubjectMismatch, "the refresh token belongs to another user")
	ErrMissingToken     = newAPIError(http.StatusUnauthorized, CodeMissingToken, "a bearer access token is required")

	ErrKeyUnavailable   = newAPIError(http.StatusServiceUnavailable, CodeKeyUnavailable, "the signing key is unavailable")
	ErrStoreUnavailable = newAPIError(http.StatusServiceUnavailable, CodeStoreUnavailable, "the token store is unavailable")

	ErrUserNotFound          = newAPIError(http.StatusNotFound, CodeUserNotFound, "no such user")
	ErrInvalidRequest        = newAPIError(http.StatusBadRequest, CodeInvalidRequest, "the request is malformed or missing required fields")
	ErrInsufficientPrivilege = newAPIError(http.StatusForbidden, CodeInsufficientPrivilege, "an admin access token is required")
	ErrRateLimited           = newAPIError(http.StatusTooManyRequests, CodeRateLimited, "too many requests, retry later")
	ErrServerError           = newAPIError(http.StatusInternalServerError, CodeServerError, "internal server error")
)

// parseErrorResponse turns a non-2xx response into an *APIError, falling
// back to a generic one when the body is not ours (a proxy page, say).
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        CodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
