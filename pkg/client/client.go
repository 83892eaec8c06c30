// Package client provides a Go SDK for the pabellón backend HTTP API.
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
	"time"

	"github.com/ankittk/pabellon/pkg/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrUnauthenticated is returned before any request is sent when no credential is available.
	ErrUnauthenticated = errors.New("unauthenticated: no session token")
	// ErrSessionExpired marks a credential the backend rejected (401/403) or that expired locally.
	ErrSessionExpired = errors.New("session expired")
)

// TokenSource supplies the bearer credential for each call.
// Invalidate is called when the backend rejects the credential.
type TokenSource interface {
	Token() (string, error)
	Invalidate()
}

// StaticToken is a TokenSource with a fixed token. Empty means unauthenticated.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", ErrUnauthenticated
	}
	return string(t), nil
}

func (StaticToken) Invalidate() {}

// APIError is a non-2xx response. Message carries the server detail when present.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Err     error // ErrSessionExpired for 401/403
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("api %s %s: status %d", e.Method, e.Path, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

var defaultHTTPClient = InstrumentedHTTPClient(30 * time.Second)

// InstrumentedHTTPClient returns an http.Client whose transport records
// otel spans and metrics for every backend call.
func InstrumentedHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
}

// Client calls the pabellón API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:8000"; no trailing slash
	Tokens     TokenSource  // required for every call except Login
	HTTPClient *http.Client // optional; nil uses an otelhttp-instrumented client
}

// New returns a client for the given base URL.
func New(baseURL string, tokens TokenSource) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Tokens: tokens}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return defaultHTTPClient
}

func (c *Client) token() (string, error) {
	if c.Tokens == nil {
		return "", ErrUnauthenticated
	}
	tok, err := c.Tokens.Token()
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", ErrUnauthenticated
	}
	return tok, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("X-Request-ID", uuid.NewString())
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.decode(resp, method, path, out)
}

func (c *Client) decode(resp *http.Response, method, path string, out any) error {
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode, Message: errorMessage(resp.Body)}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			if c.Tokens != nil {
				c.Tokens.Invalidate()
			}
			apiErr.Err = ErrSessionExpired
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// errorMessage extracts the FastAPI "detail" (string or validation list) or an "error" field.
func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if body.Error != "" {
		return body.Error
	}
	if len(body.Detail) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(body.Detail, &s) == nil {
		return s
	}
	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if json.Unmarshal(body.Detail, &items) == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if len(it.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(body.Detail)
}

// Health calls GET / on the backend (public root endpoint).
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	return c.decode(resp, http.MethodGet, "/", nil)
}

// loginMessages are the backend's custom login status codes.
var loginMessages = map[int]string{
	451: "user not found",
	452: "invalid credentials",
	453: "user not allowed: only platform administrators may sign in",
	455: "user inactive: contact the platform administrator",
}

// Login exchanges username/password for a bearer token (POST /token, form encoded).
func (c *Client) Login(ctx context.Context, username, password string) (*models.Token, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Request-ID", uuid.NewString())
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	var out models.Token
	if err := c.decode(resp, http.MethodPost, "/token", &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if msg, ok := loginMessages[apiErr.Status]; ok {
				apiErr.Message = msg
			}
			apiErr.Err = nil
		}
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, errors.New("login: empty access token")
	}
	return &out, nil
}

// Dashboard returns GET /dashboard/resumen.
func (c *Client) Dashboard(ctx context.Context) (*models.DashboardResumen, error) {
	var out models.DashboardResumen
	err := c.doJSON(ctx, http.MethodGet, "/dashboard/resumen", nil, &out)
	return &out, err
}
