// Package api is the request layer for the rAPId API.
//
// Every call fetches a fresh bearer token from the auth package and maps
// non-success statuses onto the rapiderr taxonomy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/no10ds/rapid-sdk-go/auth"
	"github.com/no10ds/rapid-sdk-go/frame"
)

// Client talks to one rAPId instance. It holds no mutable state between
// calls and may be reused sequentially.
type Client struct {
	auth       *auth.Authenticator
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// WithHTTPClient sets the HTTP client for token and API requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout. It applies to a copy of the
// client given with WithHTTPClient, whatever the option order.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSleep replaces the pause between job status polls.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

// WithClock replaces the time source used for upload file names.
func WithClock(fn func() time.Time) Option {
	return func(o *options) { o.now = fn }
}

// New validates cfg against the token endpoint and returns a Client.
func New(ctx context.Context, cfg auth.Config, opts ...Option) (*Client, error) {
	o := options{
		httpClient: &http.Client{Timeout: auth.DefaultTimeout},
		logger:     slog.Default(),
		sleep:      sleepContext,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout > 0 {
		hc := *o.httpClient
		hc.Timeout = o.timeout
		o.httpClient = &hc
	}

	authenticator, err := auth.NewAuthenticator(ctx, cfg,
		auth.WithHTTPClient(o.httpClient),
		auth.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		auth:       authenticator,
		baseURL:    authenticator.URL(),
		httpClient: o.httpClient,
		logger:     o.logger.With("component", "api"),
		sleep:      o.sleep,
		now:        o.now,
	}, nil
}

// BaseURL returns the base URL of the instance.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response is a raw API response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.StatusCode)
	}

	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// Data returns the body decoded as generic JSON, or the raw text when the
// body is not JSON. Empty bodies yield nil.
func (r *Response) Data() any {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return string(r.Body)
	}

	return v
}

// Do makes an authenticated request with an optional JSON body. Only
// transport failures are returned as errors; callers inspect StatusCode.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(ctx, req)
}

// Get makes an authenticated GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post makes an authenticated POST request.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put makes an authenticated PUT request.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// postFrame uploads f as a CSV file in a multipart form.
func (c *Client) postFrame(ctx context.Context, path string, f *frame.Frame) (*Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", c.uploadFileName())
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if err := f.WriteCSV(part); err != nil {
		return nil, fmt.Errorf("failed to encode dataframe: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.send(ctx, req)
}

func (c *Client) uploadFileName() string {
	return fmt.Sprintf("rapid-sdk-%d.csv", c.now().Unix())
}

func (c *Client) send(ctx context.Context, req *http.Request) (*Response, error) {
	header, err := c.auth.Header(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
