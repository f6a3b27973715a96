// Package oauthkit trades self-signed service-account assertions for
// short-lived OAuth2 bearer tokens and caches them per credential.
package oauthkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// jwtBearerGrantType is the RFC 7523 grant for self-signed assertions.
const jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

var (
	// ErrExchangeFailed reports a transport-level failure reaching the
	// token endpoint. Retryable by the caller with backoff.
	ErrExchangeFailed = errors.New("oauthkit: token exchange failed")
	// ErrInvalidTokenResponse reports a non-2xx status or a response body
	// that is not a token (malformed JSON, missing access_token).
	ErrInvalidTokenResponse = errors.New("oauthkit: invalid token response")
)

// Exchanger performs the network exchange of a signed assertion for an
// access token. It holds no state beyond the endpoint and HTTP client.
type Exchanger struct {
	endpoint string
	client   *http.Client
}

// NewExchanger builds an Exchanger for the given token endpoint. A nil
// client gets a default with a 30s timeout; pass your own client to
// control timeouts and transport.
func NewExchanger(endpoint string, client *http.Client) *Exchanger {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Exchanger{endpoint: endpoint, client: client}
}

// Exchange POSTs the assertion as a jwt-bearer grant and returns the
// access token string. The assertion is single-use from the caller's
// perspective; it is never logged or retained here.
func (e *Exchanger) Exchange(ctx context.Context, assertion string) (string, error) {
	form := url.Values{
		"grant_type": {jwtBearerGrantType},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %s", ErrInvalidTokenResponse, resp.Status)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTokenResponse, err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: missing access_token", ErrInvalidTokenResponse)
	}
	return body.AccessToken, nil
}
