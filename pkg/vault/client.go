package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Client talks to the Passwordstate HTTP API. Construct with
// NewClient; the zero value is not usable.
type Client struct {
	baseURL string
	apiKey  string
	reason  string
	httpc   *http.Client
	logger  *slog.Logger
}

// ClientOption adjusts a Client under construction.
type ClientOption func(*Client)

// WithBaseURL points the client at a different passwords endpoint,
// usually a test server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithReason sets the audit reason attached to every request.
func WithReason(reason string) ClientOption {
	return func(c *Client) { c.reason = reason }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpc = hc }
}

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a client authenticated by a Passwordstate API key.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		reason:  defaultReason,
		httpc:   &http.Client{Timeout: requestTimeout},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches every entry in a password list. An empty list reports
// ErrMissingCredentials.
func (c *Client) List(ctx context.Context, listID int) ([]Credential, error) {
	c.logger.Debug("fetching password list", slog.Int("list_id", listID))

	var entries []entry
	url := fmt.Sprintf("%s/%d?QueryAll", c.baseURL, listID)
	if err := c.do(ctx, http.MethodGet, url, nil, &entries, http.StatusOK); err != nil {
		return nil, fmt.Errorf("list %d: %w", listID, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("list %d is empty: %w", listID, ErrMissingCredentials)
	}

	creds := make([]Credential, 0, len(entries))
	for i := range entries {
		creds = append(creds, entries[i].credential())
	}
	return creds, nil
}

// Get fetches a single entry by password ID.
func (c *Client) Get(ctx context.Context, passwordID int) (*Credential, error) {
	c.logger.Debug("fetching password entry", slog.Int("password_id", passwordID))

	// The API wraps single entries in a one-element array.
	var entries []entry
	url := c.baseURL + "/" + strconv.Itoa(passwordID)
	if err := c.do(ctx, http.MethodGet, url, nil, &entries, http.StatusOK); err != nil {
		return nil, fmt.Errorf("password %d: %w", passwordID, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("password %d: %w", passwordID, ErrMissingCredentials)
	}

	cred := entries[0].credential()
	return &cred, nil
}

// Create publishes a new entry. The body carries the raw API fields,
// including PasswordListID and the GenericFieldN slots.
func (c *Client) Create(ctx context.Context, fields map[string]any) error {
	user, _ := fields["UserName"].(string)
	c.logger.Debug("creating password entry", slog.String("username", user))

	if err := c.do(ctx, http.MethodPost, c.baseURL, fields, nil, http.StatusCreated); err != nil {
		return fmt.Errorf("create entry for %q: %w", user, err)
	}
	return nil
}

// Update rewrites an existing entry in the given list. The entry is
// located by exact username match, and the credential's display-named
// fields are translated back to their GenericFieldN slots before the
// write. One-time passwords are never written back.
func (c *Client) Update(ctx context.Context, listID int, cred *Credential) error {
	c.logger.Debug("updating password entry",
		slog.Int("list_id", listID), slog.String("username", cred.UserName))

	var entries []entry
	url := fmt.Sprintf("%s/%d?QueryAll", c.baseURL, listID)
	if err := c.do(ctx, http.MethodGet, url, nil, &entries, http.StatusOK); err != nil {
		return fmt.Errorf("list %d: %w", listID, err)
	}

	var match *entry
	for i := range entries {
		if entries[i].UserName == cred.UserName {
			match = &entries[i]
			break
		}
	}
	if match == nil {
		return fmt.Errorf("no entry for %q in list %d: %w", cred.UserName, listID, ErrMissingCredentials)
	}

	body := map[string]any{
		"PasswordID": cred.PasswordID,
		"UserName":   cred.UserName,
		"Password":   cred.Password,
	}
	if cred.URL != "" {
		body["URL"] = cred.URL
	}
	slots := match.fieldSlots()
	for name, value := range cred.Fields {
		if slot, ok := slots[name]; ok {
			body[slot] = value
		}
	}

	if err := c.do(ctx, http.MethodPut, c.baseURL, body, nil, http.StatusOK); err != nil {
		return fmt.Errorf("update entry for %q: %w", cred.UserName, err)
	}
	return nil
}

// do issues one API request, decoding a JSON response into out when
// out is non-nil.
func (c *Client) do(ctx context.Context, method, url string, body, out any, wantStatus int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("APIKey", c.apiKey)
	req.Header.Set("Reason", c.reason)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("vault request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("vault returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
