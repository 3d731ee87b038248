// Package httpclient is the HTTP-shaped consumer of the verdict core:
// every request settles into a tri-state result carrying a fully-read
// response envelope, and session state from Set-Cookie headers flows
// through a per-client store.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/verdictlabs/verdict"
	"github.com/verdictlabs/verdict/metrics"
)

// OpKind is the operation discriminator used on HTTP results.
const OpKind = "http"

// Config holds HTTP client configuration.
type Config struct {
	BaseURL string            `yaml:"base_url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// Client issues HTTP requests that settle into classified results.
// State (session store, connection pool) is instance-scoped; create
// one Client per logical peer and Close it when its scope ends.
type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	session    *SessionStore

	closeOnce sync.Once
}

// New creates a Client. The zero Timeout leaves per-request deadlines
// entirely to verdict.Options.
func New(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: cfg.Headers,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		session: NewSessionStore(),
	}
}

// Session exposes the per-client session store.
func (c *Client) Session() *SessionStore {
	return c.session
}

// Close releases idle pooled connections. Idempotent: calls after the
// first are no-ops.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.httpClient.CloseIdleConnections()
	})
	return nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts verdict.Options) (*verdict.Result[*Response], error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts)
}

// Post issues a POST request with the given body.
func (c *Client) Post(ctx context.Context, path string, body []byte, opts verdict.Options) (*verdict.Result[*Response], error) {
	return c.Do(ctx, http.MethodPost, path, body, opts)
}

// Put issues a PUT request with the given body.
func (c *Client) Put(ctx context.Context, path string, body []byte, opts verdict.Options) (*verdict.Result[*Response], error) {
	return c.Do(ctx, http.MethodPut, path, body, opts)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts verdict.Options) (*verdict.Result[*Response], error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts)
}

// GetJSON issues a GET request and decodes the body into v before
// settlement, so decode failures classify as protocol-tier
// decode-error results rather than surfacing after the fact.
func (c *Client) GetJSON(
	ctx context.Context,
	path string,
	v any,
	opts verdict.Options,
) (*verdict.Result[*Response], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (*Response, error) {
			resp, err := c.roundTrip(ctx, http.MethodGet, path, nil)
			if err != nil {
				return nil, err
			}
			if err := resp.JSON(v); err != nil {
				return nil, err
			}
			return resp, nil
		})

	res, verr := verdict.Settle(OpKind, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// Do issues one request and settles it. The session store is read
// before the request goes out and merged (last write wins) from the
// Set-Cookie headers of any received response, including
// unsuccessful-but-processed ones. Responses with status >= 400 settle
// as processed failures whose classified error keeps the envelope
// reachable via its cause.
func (c *Client) Do(
	ctx context.Context,
	method, path string,
	body []byte,
	opts verdict.Options,
) (*verdict.Result[*Response], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (*Response, error) {
			return c.roundTrip(ctx, method, path, body)
		})

	res, verr := verdict.Settle(OpKind, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}
	if cookie := c.session.cookieHeader(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	// The backend answered: capture session state regardless of status.
	c.session.merge(parseSetCookies(resp.Header))

	envelope := newResponse(resp, raw)
	if resp.StatusCode >= 400 {
		return nil, &StatusError{
			Code:     resp.StatusCode,
			Status:   resp.Status,
			Envelope: envelope,
		}
	}
	return envelope, nil
}

func (c *Client) url(path string) string {
	if c.baseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}
