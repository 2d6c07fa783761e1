// Package client wraps the MotionLab REST API. Every call returns a Response envelope;
// failures of any kind come back as Response{Success: false, Message: ...}.
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

	"github.com/motionlab/backend/internal/validate"
)

const (
	// DefaultBaseURL is the local development backend.
	DefaultBaseURL = "http://127.0.0.1:5000"

	maxResponseBytes = 8 << 20
)

// Response is the uniform envelope returned by the backend.
type Response[T any] struct {
	Success bool            `json:"success"`
	Data    T               `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Errors  validate.Errors `json:"errors,omitempty"`
	// Status is the HTTP status code, or 0 when no response was received.
	Status int `json:"-"`
}

// Failed builds an unsuccessful response carrying message.
func Failed[T any](message string) Response[T] {
	return Response[T]{Success: false, Message: message}
}

// TokenSource supplies the bearer token attached to authenticated calls.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token() string { return string(s) }

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes the API client configuration.
type Config struct {
	BaseURL    string
	HTTPClient HTTPDoer
	Tokens     TokenSource
}

// Client issues one HTTP call per method against the configured backend.
type Client struct {
	baseURL *url.URL
	http    HTTPDoer
	tokens  TokenSource
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("client: base url %q must be http or https", base)
	}
	doer := cfg.HTTPClient
	if doer == nil {
		// No client-side timeout: uploads wait for extraction. Callers bound calls with ctx.
		doer = &http.Client{}
	}
	return &Client{baseURL: baseURL, http: doer, tokens: cfg.Tokens}, nil
}

// WithTokens returns a copy of the client using tokens for authentication.
func (c *Client) WithTokens(tokens TokenSource) *Client {
	clone := *c
	clone.tokens = tokens
	return &clone
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// AssetURL resolves a relative asset path returned by the API against the base URL.
// Absolute URLs, such as presigned object store links, are returned unchanged.
func (c *Client) AssetURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	ref, err := url.Parse(path)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	base := *c.baseURL
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(&url.URL{Path: strings.TrimPrefix(ref.Path, "/"), RawQuery: ref.RawQuery}).String()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// call sends an optional JSON body and decodes the envelope.
func call[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) Response[T] {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return Failed[T](fmt.Sprintf("encode request: %v", err))
		}
		reader = bytes.NewReader(buf)
	}

	req, err := c.newRequest(ctx, method, path, query, reader)
	if err != nil {
		return Failed[T](fmt.Sprintf("build request: %v", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return send[T](c, req)
}

func send[T any](c *Client, req *http.Request) Response[T] {
	resp, err := c.http.Do(req)
	if err != nil {
		return Failed[T](transportMessage(err))
	}
	defer resp.Body.Close()
	return decode[T](resp)
}

func decode[T any](resp *http.Response) Response[T] {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		out := Failed[T](fmt.Sprintf("read response: %v", err))
		out.Status = resp.StatusCode
		return out
	}

	var out Response[T]
	if err := json.Unmarshal(raw, &out); err != nil {
		out = Failed[T](fmt.Sprintf("unexpected response from server (%d %s)", resp.StatusCode, http.StatusText(resp.StatusCode)))
		out.Status = resp.StatusCode
		return out
	}
	out.Status = resp.StatusCode
	if resp.StatusCode >= http.StatusBadRequest {
		out.Success = false
		if out.Message == "" {
			out.Message = http.StatusText(resp.StatusCode)
		}
	}
	return out
}

func transportMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "request canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	}
	return fmt.Sprintf("network error: %v", err)
}
