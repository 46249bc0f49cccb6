package apisvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/trezcool/masomo-portal/core"
)

const (
	HeaderRequestID = "X-Request-ID"
	defaultTimeout  = 15 * time.Second
)

// TokenSource supplies the current bearer token; the session store implements it.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource for a fixed token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

type (
	// Client is the single configured HTTP client of the school REST backend.
	// It attaches the bearer token to every request and passes error payloads through.
	Client struct {
		baseURL string
		http    *http.Client
		tokens  TokenSource
		misconf error // set when baseURL can never be reached
	}

	Option func(*options)

	options struct {
		timeout   time.Duration
		transport http.RoundTripper
		wrappers  []func(http.RoundTripper) http.RoundTripper
	}
)

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTransport replaces the base transport (tests).
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithRoundTripper wraps the transport, e.g. with metrics instrumentation.
func WithRoundTripper(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(o *options) { o.wrappers = append(o.wrappers, wrap) }
}

func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	o := options{timeout: defaultTimeout, transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	var transport http.RoundTripper = otelhttp.NewTransport(o.transport)
	for _, wrap := range o.wrappers {
		transport = wrap(transport)
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: o.timeout, Transport: transport},
		tokens:  tokens,
		misconf: checkBaseURL(baseURL),
	}
}

// checkBaseURL rejects base URLs that are not absolute http(s) URLs.
// Every request through such a client fails, so the error asks the app to shut down.
func checkBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return nil
	}
	return core.NewShutdownError(fmt.Sprintf("api base URL %q is not an absolute http(s) URL", baseURL))
}

// WithToken returns a copy of the client bound to a fixed token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.tokens = StaticToken(token)
	return &cp
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if c.misconf != nil {
		return errors.Wrapf(c.misconf, "%s %s", method, path)
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encoding %s %s body", method, path)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return errors.Wrapf(err, "building %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Method: method, Path: path, Message: "failed to reach server", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Method: method, Path: path, Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newResponseError(method, path, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err = json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decoding %s %s response", method, path)
	}
	return nil
}

func pathf(format string, ids ...string) string {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = url.PathEscape(id)
	}
	return fmt.Sprintf(format, args...)
}
