/*
Package tokensdk is a client for the Gatekeeper token service.

	c := tokensdk.New("https://gatekeeper.example.org")

	refresh, err := c.IssueRefreshToken(ctx, adminToken, tokensdk.IssueRefreshRequest{
		Username: "alice",
		Scope:    "read,write",
	})

	access, err := c.IssueAccessToken(ctx, tokensdk.IssueAccessRequest{
		RefreshToken: refresh.Token,
		ClientID:     "cli1",
	})

	err = c.Revoke(ctx, refresh.Token)

Failed calls return an *APIError. Compare it against the predefined values
with errors.Is:

	if errors.Is(err, tokensdk.ErrUnknownOrRevoked) {
		// ask the user to log in again
	}

The same APIError values are what the server writes, so the package is
shared by both ends of the wire.
*/
package tokensdk
