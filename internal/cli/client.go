package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harrylevesque/orderscan/internal/auth"
	"github.com/harrylevesque/orderscan/internal/config"
)

const mintedTokenTTL = 5 * time.Minute

// apiError mirrors the server's error body.
type apiError struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	TraceID string `json:"trace_id"`
}

// apiClient issues authenticated requests to the orderscan server.
type apiClient struct {
	base   string
	token  string
	user   string
	pass   string
	http   *http.Client
	logger *OutputFormatter
}

func newAPIClient(opts *RootOptions, out *OutputFormatter) (*apiClient, error) {
	token, err := sessionToken(opts)
	if err != nil {
		return nil, err
	}
	return &apiClient{
		base:   opts.Server,
		token:  token,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: out,
	}, nil
}

// sessionToken returns --token, or mints one with the app credentials from
// the environment.
func sessionToken(opts *RootOptions) (string, error) {
	if opts.Token != "" {
		return opts.Token, nil
	}
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "no --token given and app credentials could not be loaded", err)
	}
	shop := config.NormalizeShop(opts.Shop)
	if shop == "" {
		shop = cfg.ShopDomain
	}
	if shop == "" {
		return "", NewExitError(ExitCommandError, "--shop is required to mint a session token")
	}
	tok, err := auth.NewVerifier(cfg.APIKey, cfg.APISecret).Sign(shop, mintedTokenTTL)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "mint session token", err)
	}
	return tok, nil
}

// do sends body as JSON and returns the raw response body and headers. Non-2xx
// responses become an ExitError with the server's message.
func (c *apiClient) do(method, path string, body interface{}) ([]byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	} else if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.VerboseLog("%s %s", method, req.URL)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "read response", err)
	}
	c.logger.VerboseLog("-> %d (trace %s)", resp.StatusCode, resp.Header.Get("X-Trace-ID"))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		if json.Unmarshal(data, &ae) == nil && ae.Error != "" {
			return data, resp.Header, NewExitError(ExitFailure, fmt.Sprintf("server: %s (%d)", ae.Error, ae.Code))
		}
		return data, resp.Header, NewExitError(ExitFailure, fmt.Sprintf("server returned %s", resp.Status))
	}
	return data, resp.Header, nil
}

// doJSON is do with the response decoded into out.
func (c *apiClient) doJSON(method, path string, body, out interface{}) error {
	data, _, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return WrapExitError(ExitCommandError, "decode response", err)
	}
	return nil
}
