// Package backend is the gateway's authenticated JSON-over-HTTP client for
// the clinic backend. It injects credentials and request ids, refreshes an
// expired token once, and classifies every failure into a Kind so callers
// can decide between falling back, aborting, or escalating.
package backend

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

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wolfman30/clinic-gateway/pkg/logging"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "clinic-gateway/0.1"
	maxResponseBytes = 4 << 20
)

// ErrResponseTooLarge means the backend answered with more than the client
// is willing to buffer.
var ErrResponseTooLarge = fmt.Errorf("response exceeds %d bytes", maxResponseBytes)

// Requester is the subset of Client the domain packages depend on.
type Requester interface {
	Do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error)
}

// Config controls how the backend client behaves.
type Config struct {
	BaseURL    string
	Tokens     TokenSource
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	UserAgent  string
}

// Client wraps the clinic backend REST API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *logging.Logger
	userAgent  string
}

var _ Requester = (*Client)(nil)

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend: BaseURL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid BaseURL: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    baseURL,
		tokens:     cfg.Tokens,
		httpClient: httpClient,
		logger:     logger.Component("backend"),
		userAgent:  userAgent,
	}, nil
}

// Get issues a GET and returns the raw response body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Do performs one logical call. A 401 is retried once after refreshing the
// token when the client owns a Refresher; every other failure is returned as
// a classified *Error on the first attempt.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("backend: marshal %s %s body: %w", method, path, err)
		}
	}

	token, owned, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.invoke(ctx, method, path, query, body, token)
	if err == nil || !owned || KindOf(err) != KindUnauthorized {
		return data, err
	}

	refresher, ok := c.tokens.(Refresher)
	if !ok {
		return nil, err
	}
	c.logger.Info("backend token rejected, refreshing", "method", method, "path", path)
	token, refreshErr := refresher.Refresh(ctx)
	if refreshErr != nil {
		return nil, fmt.Errorf("backend: refresh token: %w", refreshErr)
	}
	return c.invoke(ctx, method, path, query, body, token)
}

// token resolves the bearer token; owned reports whether it came from the
// client's own TokenSource and may therefore be refreshed.
func (c *Client) token(ctx context.Context) (string, bool, error) {
	if token, ok := CallerToken(ctx); ok {
		return token, false, nil
	}
	if c.tokens == nil {
		return "", false, nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", false, fmt.Errorf("backend: obtain token: %w", err)
	}
	return token, true, nil
}

func (c *Client) invoke(ctx context.Context, method, path string, query url.Values, body []byte, token string) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path, query), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID(ctx))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		c.logger.Warn("backend request failed", "method", method, "path", path, "error", err)
		return nil, &Error{Kind: KindTransport, Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Method: method, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(data) > maxResponseBytes {
		c.logger.Warn("backend response too large", "method", method, "path", path, "limit", maxResponseBytes)
		return nil, &Error{Kind: KindTransport, Method: method, Path: path, Status: resp.StatusCode, Err: ErrResponseTooLarge}
	}

	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, classifyStatus(method, path, resp.StatusCode, resp.Header, data)
}

func (c *Client) buildURL(path string, query url.Values) string {
	full := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		full = full + "?" + query.Encode()
	}
	return full
}

type ctxRequestIDKey struct{}

// WithRequestID propagates an inbound request id to outbound backend calls.
func WithRequestID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxRequestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxRequestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
