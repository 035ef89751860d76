package tokensdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// Client talks to a Gatekeeper server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// IssueRefreshToken mints a refresh token for req.Username. adminToken must
// be an access token of an admin user.
func (c *Client) IssueRefreshToken(ctx context.Context, adminToken string, req IssueRefreshRequest) (*TokenResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/tokens/refresh", adminToken, req)
	if err != nil {
		return nil, err
	}
	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// IssueAccessToken exchanges a refresh token for an access token.
func (c *Client) IssueAccessToken(ctx context.Context, req IssueAccessRequest) (*TokenResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/tokens/access", "", req)
	if err != nil {
		return nil, err
	}
	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Revoke revokes a refresh token. Revoking an unknown or already revoked
// token succeeds.
func (c *Client) Revoke(ctx context.Context, token string) error {
	resp, err := c.do(ctx, http.MethodPost, "/v1/tokens/revoke", "", TokenRequest{Token: token})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Introspect reports whether token is currently valid.
func (c *Client) Introspect(ctx context.Context, token string) (*IntrospectionResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/tokens/introspect", "", TokenRequest{Token: token})
	if err != nil {
		return nil, err
	}
	var out IntrospectionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// WhoAmI describes the owner of accessToken.
func (c *Client) WhoAmI(ctx context.Context, accessToken string) (*WhoAmIResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/whoami", accessToken, nil)
	if err != nil {
		return nil, err
	}
	var out WhoAmIResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListUserTokens lists the live refresh tokens of userID.
func (c *Client) ListUserTokens(ctx context.Context, adminToken, userID string) (*UserTokensResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, userTokensPath(userID), adminToken, nil)
	if err != nil {
		return nil, err
	}
	var out UserTokensResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeUserTokens revokes every refresh token of userID.
func (c *Client) RevokeUserTokens(ctx context.Context, adminToken, userID string) (*RevokeUserTokensResponse, error) {
	resp, err := c.do(ctx, http.MethodDelete, userTokensPath(userID), adminToken, nil)
	if err != nil {
		return nil, err
	}
	var out RevokeUserTokensResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLiveness calls /livez.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness calls /readyz. A degraded server answers 503, which is
// returned as an *APIError.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	var out HealthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJWKS fetches the server's public keys.
func (c *Client) GetJWKS(ctx context.Context) (jwk.Set, error) {
	resp, err := c.do(ctx, http.MethodGet, "/.well-known/jwks.json", "", nil)
	if err != nil {
		return nil, err
	}
	body, err := readBody(resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return jwk.Parse(body)
}

func userTokensPath(userID string) string {
	return "/v1/users/" + url.PathEscape(userID) + "/tokens"
}
