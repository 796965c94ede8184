package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	tokenExchangeGrant = "urn:ietf:params:oauth:grant-type:token-exchange"
	idTokenType        = "urn:ietf:params:oauth:token-type:id_token"
	offlineAccessToken = "urn:shopify:params:oauth:token-type:offline-access-token"
	maxTokenResponse   = 64 << 10
)

// TokenExchange trades a POS/App Bridge session token for an offline access
// token.
type TokenExchange struct {
	APIKey    string
	APISecret string
}

// AccessToken is the token-exchange response.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

// ExchangeToken performs the exchange for shop using sessionToken.
func (c *Client) ExchangeToken(ctx context.Context, app TokenExchange, shop, sessionToken string) (*AccessToken, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":            app.APIKey,
		"client_secret":        app.APISecret,
		"grant_type":           tokenExchangeGrant,
		"subject_token":        sessionToken,
		"subject_token_type":   idTokenType,
		"requested_token_type": offlineAccessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token request: %w", err)
	}

	endpoint := c.shopURL(shop) + "/admin/oauth/access_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(shopHeader, shop)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var tok AccessToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token exchange for %s returned no access token", shop)
	}
	return &tok, nil
}
