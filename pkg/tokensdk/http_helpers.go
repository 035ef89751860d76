package tokensdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// do sends a request with an optional JSON body and bearer token.
func (c *Client) do(ctx context.Context, method, path, bearer string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("tokensdk: encode request: %w", err)
		}
		r = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("tokensdk: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tokensdk: send request: %w", err)
	}
	return resp, nil
}

// readBody drains and closes the body, returning an *APIError when the
// status is not the expected one.
func readBody(resp *http.Response, expected int) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tokensdk: read response: %w", err)
	}
	if resp.StatusCode != expected {
		if apiErr := parseErrorResponse(resp, body); apiErr != nil {
			return nil, apiErr
		}
		return nil, fmt.Errorf("tokensdk: unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

func decodeJSON(resp *http.Response, target any, expected int) error {
	body, err := readBody(resp, expected)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("tokensdk: decode response: %w", err)
	}
	return nil
}

func checkStatusNoContent(resp *http.Response) error {
	_, err := readBody(resp, http.StatusNoContent)
	return err
}
