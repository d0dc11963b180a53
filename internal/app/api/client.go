/*
Package api is the single choke point for calls to the LocalMart REST API.

Every request is built by Client.Do: it resolves the path against the configured
origin, attaches "Authorization: Bearer <token>" when the credential store holds a
token and the path is not auth-exempt, encodes JSON or multipart bodies, and turns
every failure into an *errs.CustomError. A 401 on a request that carried a token
fires the registered unauthorized hooks, which is how the session learns that it
has expired.

The typed endpoint wrappers (auth, products, categories, sellers, chat) live in
their own files and all go through Do.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/logx"
	"localmart/internal/pkg/randx"

	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds a request when Config.Timeout is zero.
	DefaultTimeout = 30 * time.Second

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 10 << 20 // 10 MB

	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-Id"
)

// authExempt lists the paths that must be called without a credential.
var authExempt = map[string]bool{
	"/auth/login/":    true,
	"/auth/register/": true,
}

// TokenSource provides the access token to present. An empty token means anonymous.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Config holds the parameters of a Client.
type Config struct {
	// BaseURL is the API origin including any path prefix, e.g. http://localhost:8080/api.
	BaseURL string

	// HTTPClient defaults to a new http.Client.
	HTTPClient *http.Client

	// Tokens is read on every request. Nil means every request is anonymous.
	Tokens TokenSource

	// Timeout bounds each request. Zero selects DefaultTimeout; negative disables it.
	Timeout time.Duration
}

// Client issues LocalMart API requests. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
	timeout    time.Duration
	logger     zerolog.Logger

	mu      sync.RWMutex
	hooks   []unauthorizedHook
	hookSeq int
}

type unauthorizedHook struct {
	id int
	fn func(token string)
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: invalid base url %q: %w", cfg.BaseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be an absolute http(s) url", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		tokens:     cfg.Tokens,
		timeout:    timeout,
		logger:     logx.Component("api"),
	}, nil
}

// BaseURL returns the configured origin.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Token returns the token the next authenticated request would carry.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.AccessToken(ctx)
}

// OnUnauthorized registers fn to be called with the rejected token whenever a request
// that carried a token receives 401. The returned function unregisters it.
func (c *Client) OnUnauthorized(fn func(token string)) (remove func()) {
	c.mu.Lock()
	id := c.hookSeq
	c.hookSeq++
	c.hooks = append(c.hooks, unauthorizedHook{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.hooks = slices.DeleteFunc(c.hooks, func(h unauthorizedHook) bool { return h.id == id })
		c.mu.Unlock()
	}
}

func (c *Client) fireUnauthorized(token string) {
	c.mu.RLock()
	hooks := slices.Clone(c.hooks)
	c.mu.RUnlock()

	for _, h := range hooks {
		h.fn(token)
	}
}

// Request describes one API call.
type Request struct {
	Method string

	// Path is relative to the base URL and keeps its trailing slash, e.g. /products/.
	Path  string
	Query url.Values

	// Body is encoded as JSON. Ignored when Multipart is set.
	Body any

	// Multipart is sent as multipart/form-data.
	Multipart *Multipart
}

// RequiresAuth reports whether the request should present the access token.
func (r Request) RequiresAuth() bool {
	return !authExempt[r.Path]
}

// Validator is implemented by response types that check required fields.
type Validator interface {
	Validate() error
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// PostMultipart issues a POST with a multipart/form-data body.
func (c *Client) PostMultipart(ctx context.Context, path string, form *Multipart, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Multipart: form}, out)
}

// PatchMultipart issues a PATCH with a multipart/form-data body.
func (c *Client) PatchMultipart(ctx context.Context, path string, form *Multipart, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Multipart: form}, out)
}

// Do issues r and decodes a successful JSON response into out (which may be nil).
// Failures are *errs.CustomError, except that a cancelled ctx returns ctx.Err().
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	parent := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, contentType, err := encodeBody(r)
	if err != nil {
		return errs.Wrap(errs.ErrInvalidParams, err)
	}

	target := c.resolve(r.Path, r.Query)
	requestID := randx.RequestID()
	logger := c.logger.With().
		Str("request_id", requestID).
		Str("method", r.Method).
		Str("path", r.Path).
		Logger()

	httpReq, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return errs.Wrap(errs.ErrInvalidParams, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	var token string
	if r.RequiresAuth() {
		token, err = c.Token(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read access token")
			return errs.Wrap(errs.ErrUnknown, err)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		if parent.Err() != nil {
			return parent.Err()
		}
		logger.Warn().Err(err).Dur("latency", time.Since(start)).Msg("Request failed in transport")
		return errs.Wrap(errs.ErrNetwork, err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		if parent.Err() != nil {
			return parent.Err()
		}
		logger.Warn().Err(err).Int("status", res.StatusCode).Msg("Failed to read response body")
		return errs.Wrap(errs.ErrNetwork, err)
	}

	logger.Debug().
		Int("status", res.StatusCode).
		Dur("latency", time.Since(start)).
		Bool("authenticated", token != "").
		Msg("Request completed")

	if res.StatusCode < 200 || res.StatusCode > 299 {
		customErr := errs.FromResponse(res.StatusCode, errorMessage(payload))
		if res.StatusCode == http.StatusUnauthorized && token != "" {
			logger.Info().Msg("Access token rejected")
			c.fireUnauthorized(token)
		}
		return customErr
	}

	return decodeResponse(payload, out)
}

func (c *Client) resolve(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func encodeBody(r Request) (io.Reader, string, error) {
	if r.Multipart != nil {
		return r.Multipart.encode()
	}
	if r.Body == nil {
		return nil, "", nil
	}
	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, "", fmt.Errorf("encode request body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

func decodeResponse(payload []byte, out any) error {
	if out == nil {
		return nil
	}

	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return errs.Wrap(errs.ErrInvalidResponse, err)
		}
	}

	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return errs.Wrap(errs.ErrInvalidResponse, err)
		}
	}
	return nil
}

// errorMessage extracts the server's message from an error body: the "error", "detail"
// or "message" field, else the first field-level validation message. It returns ""
// when the body is not a JSON object it understands.
func errorMessage(payload []byte) string {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}

	for _, key := range []string{"error", "detail", "message"} {
		if raw, ok := body[key]; ok {
			if msg := stringOrFirst(raw); msg != "" {
				return msg
			}
		}
	}

	if raw, ok := body["non_field_errors"]; ok {
		if msg := stringOrFirst(raw); msg != "" {
			return msg
		}
	}

	for _, field := range slices.Sorted(maps.Keys(body)) {
		if msg := stringOrFirst(body[field]); msg != "" {
			return field + ": " + msg
		}
	}
	return ""
}

func stringOrFirst(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

// IsCanceled reports whether err is a context cancellation or deadline error.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
