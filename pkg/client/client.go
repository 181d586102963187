// Package client is a Go SDK for the DevSnippet API.
//
// Client wraps the REST routes one call each. Session layers the signed-in
// state on top of a Client and is the only place that state changes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"devsnippet/internal/media"
	"devsnippet/internal/models"
	"devsnippet/internal/notifications"
	"devsnippet/internal/service"

	"github.com/cenkalti/backoff/v4"
)

// Wire types shared with the server.
type (
	User                 = models.User
	Post                 = models.Post
	PublicProfile        = models.PublicProfile
	UserDetail           = models.UserDetail
	Dashboard            = models.Dashboard
	Role                 = models.Role
	Asset                = media.Asset
	AuthResult           = service.AuthResult
	RegisterInput        = service.RegisterInput
	LoginInput           = service.LoginInput
	UpdateProfileInput   = service.UpdateProfileInput
	CreatePostInput      = service.CreatePostInput
	UpdatePostInput      = service.UpdatePostInput
	AdminUpdateUserInput = service.AdminUpdateUserInput
	FeedEvent            = notifications.PostEvent
)

const defaultRetryElapsed = 15 * time.Second

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetryMaxElapsed bounds how long a GET is retried. Zero disables retries.
func WithRetryMaxElapsed(d time.Duration) Option {
	return func(c *Client) { c.retryMaxElapsed = d }
}

// Client calls the REST API. It is safe for concurrent use.
type Client struct {
	baseURL         string
	http            *http.Client
	retryMaxElapsed time.Duration

	mu    sync.RWMutex
	token string
}

// New returns a client for the server at baseURL, e.g. "http://localhost:8375".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            &http.Client{Timeout: 30 * time.Second},
		retryMaxElapsed: defaultRetryElapsed,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/api" + path
}

// get retries transport failures and 5xx responses with exponential backoff.
func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.retryMaxElapsed <= 0 {
		return c.once(ctx, http.MethodGet, path, nil, "", out)
	}

	operation := func() error {
		err := c.once(ctx, http.MethodGet, path, nil, "", out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = c.retryMaxElapsed
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// send issues a mutation exactly once.
func (c *Client) send(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	return c.once(ctx, method, path, body, contentType, out)
}

func (c *Client) once(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func pageQuery(limit, offset int) string {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprint(offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
