package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultLoginURL is the Microsoft identity platform endpoint.
const DefaultLoginURL = "https://login.microsoftonline.com"

// tokenSkew is how long before expiry a cached token is discarded.
const tokenSkew = 5 * time.Minute

// TokenProvider supplies Authorization header values for Graph
// requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenSource mints application tokens with the client-credentials
// grant and caches them until shortly before expiry. Safe for
// concurrent use.
type TokenSource struct {
	tenantID     string
	clientID     string
	clientSecret string
	loginURL     string
	httpc        *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// TokenOption adjusts a TokenSource under construction.
type TokenOption func(*TokenSource)

// WithLoginURL points the source at a different identity endpoint,
// usually a test server.
func WithLoginURL(u string) TokenOption {
	return func(ts *TokenSource) { ts.loginURL = strings.TrimRight(u, "/") }
}

// WithTokenHTTPClient replaces the default HTTP client.
func WithTokenHTTPClient(hc *http.Client) TokenOption {
	return func(ts *TokenSource) { ts.httpc = hc }
}

// NewTokenSource returns a source for one application registration.
func NewTokenSource(tenantID, clientID, clientSecret string, opts ...TokenOption) *TokenSource {
	ts := &TokenSource{
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		loginURL:     DefaultLoginURL,
		httpc:        &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Token returns an Authorization header value, fetching a fresh token
// when the cached one is within five minutes of expiry.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expires.Add(-tokenSkew)) {
		return ts.token, nil
	}

	form := url.Values{
		"client_id":     {ts.clientID},
		"client_secret": {ts.clientSecret},
		"grant_type":    {"client_credentials"},
		"scope":         {"https://graph.microsoft.com/.default"},
	}
	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", ts.loginURL, ts.tenantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("token endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload struct {
		TokenType   string `json:"token_type"`
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	ts.token = payload.TokenType + " " + payload.AccessToken
	ts.expires = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return ts.token, nil
}
