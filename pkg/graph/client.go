package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound reports a subscription that neither Graph nor the local
// store knows about.
var ErrNotFound = errors.New("subscription not found")

// APIError is a non-2xx answer from Graph, carrying the service's
// error code when one was returned.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph returned %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("graph returned %d %s", e.Status, http.StatusText(e.Status))
}

// Is maps 404 answers onto ErrNotFound so callers can test with
// errors.Is without inspecting status codes.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Client calls the subscriptions API. Construct with NewClient.
type Client struct {
	baseURL string
	tokens  TokenProvider
	httpc   *http.Client
	logger  *slog.Logger
}

// ClientOption adjusts a Client under construction.
type ClientOption func(*Client)

// WithBaseURL points the client at a different Graph endpoint,
// usually a test server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
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

// NewClient returns a client that authenticates every request through
// the given token provider.
func NewClient(tokens TokenProvider, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		tokens:  tokens,
		httpc:   &http.Client{Timeout: requestTimeout},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscriptions lists every active subscription for the application,
// following @odata.nextLink until the listing is complete.
func (c *Client) Subscriptions(ctx context.Context) ([]Subscription, error) {
	var subs []Subscription
	next := c.baseURL + "/subscriptions"
	for next != "" {
		var page struct {
			Value    []Subscription `json:"value"`
			NextLink string         `json:"@odata.nextLink"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("list subscriptions: %w", err)
		}
		subs = append(subs, page.Value...)
		next = page.NextLink
	}
	c.logger.Debug("listed subscriptions", slog.Int("count", len(subs)))
	return subs, nil
}

// CreateRequest describes a subscription to create. Class selects the
// maximum lifetime when Expiration is zero, and ClientState defaults
// to a fresh UUID so every subscription carries a verifiable secret.
type CreateRequest struct {
	Resource        string
	Class           string
	ChangeType      string
	NotificationURL string
	ClientState     string
	Expiration      time.Time
}

// Create registers a new subscription and returns it as Graph stored
// it.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Subscription, error) {
	if req.Resource == "" {
		return nil, fmt.Errorf("create subscription: resource is required")
	}
	if req.ChangeType == "" {
		return nil, fmt.Errorf("create subscription: change type is required")
	}
	if req.NotificationURL == "" {
		return nil, fmt.Errorf("create subscription: notification URL is required")
	}
	if req.ClientState == "" {
		req.ClientState = uuid.NewString()
	}
	if req.Expiration.IsZero() {
		req.Expiration = Expiration(req.Class, time.Now())
	}

	payload := map[string]string{
		"changeType":         req.ChangeType,
		"clientState":        req.ClientState,
		"resource":           req.Resource,
		"notificationUrl":    req.NotificationURL,
		"expirationDateTime": FormatTime(req.Expiration),
	}

	var sub Subscription
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/subscriptions", payload, &sub); err != nil {
		return nil, fmt.Errorf("create subscription for %s: %w", req.Resource, err)
	}
	c.logger.Info("created subscription",
		slog.String("id", sub.ID),
		slog.String("resource", req.Resource),
		slog.Time("expires", req.Expiration))
	return &sub, nil
}

// Renew pushes a subscription's expiration out to the maximum its
// resource class allows and returns the new expiration.
func (c *Client) Renew(ctx context.Context, id, class string) (time.Time, error) {
	expiration := Expiration(class, time.Now())
	payload := map[string]string{"expirationDateTime": FormatTime(expiration)}

	url := c.baseURL + "/subscriptions/" + id
	if err := c.do(ctx, http.MethodPatch, url, payload, nil); err != nil {
		return time.Time{}, fmt.Errorf("renew subscription %s: %w", id, err)
	}
	c.logger.Info("renewed subscription",
		slog.String("id", id),
		slog.Time("expires", expiration))
	return expiration, nil
}

// UpdateNotificationURL points an existing subscription at a new
// notification endpoint.
func (c *Client) UpdateNotificationURL(ctx context.Context, id, notificationURL string) error {
	payload := map[string]string{"notificationUrl": notificationURL}

	url := c.baseURL + "/subscriptions/" + id
	if err := c.do(ctx, http.MethodPatch, url, payload, nil); err != nil {
		return fmt.Errorf("update subscription %s: %w", id, err)
	}
	c.logger.Info("updated notification url", slog.String("id", id))
	return nil
}

// Reauthorize asks Graph to re-run the notification endpoint
// validation handshake for a subscription.
func (c *Client) Reauthorize(ctx context.Context, id string) error {
	url := c.baseURL + "/subscriptions/" + id + "/reauthorize"
	if err := c.do(ctx, http.MethodPost, url, nil, nil); err != nil {
		return fmt.Errorf("reauthorize subscription %s: %w", id, err)
	}
	c.logger.Info("reauthorized subscription", slog.String("id", id))
	return nil
}

// Delete removes a subscription.
func (c *Client) Delete(ctx context.Context, id string) error {
	url := c.baseURL + "/subscriptions/" + id
	if err := c.do(ctx, http.MethodDelete, url, nil, nil); err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	c.logger.Info("deleted subscription", slog.String("id", id))
	return nil
}

// do issues one authenticated request and decodes a JSON answer into
// out when out is non-nil.
func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
