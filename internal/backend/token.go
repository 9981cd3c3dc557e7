package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinic-gateway/internal/envelope"
)

// TokenSource supplies the bearer token for backend calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Refresher is a TokenSource that can replace a token the backend rejected.
type Refresher interface {
	TokenSource
	Refresh(ctx context.Context) (string, error)
}

// StaticToken always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

type ctxTokenKey struct{}

// WithToken scopes a caller-supplied bearer token to ctx. It takes precedence
// over the client's TokenSource and is never refreshed by the client.
func WithToken(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxTokenKey{}, token)
}

// CallerToken returns the token set by WithToken, if any.
func CallerToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(ctxTokenKey{}).(string)
	return token, ok && token != ""
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// Verification is the backend's job; the gateway only needs to know when to
// refresh. Opaque tokens report ok=false.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// RefreshingTokenSourceConfig configures a RefreshingTokenSource. Tokens are
// refreshed Leeway before their exp claim.
type RefreshingTokenSourceConfig struct {
	RefreshURL   string
	AccessToken  string
	RefreshToken string
	HTTPClient   *http.Client
	Leeway       time.Duration
	Now          func() time.Time
}

// RefreshingTokenSource exchanges a refresh token at the backend's
// refresh-token endpoint when the access token is expired or rejected.
type RefreshingTokenSource struct {
	refreshURL string
	httpClient *http.Client
	leeway     time.Duration
	now        func() time.Time

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewRefreshingTokenSource validates cfg and builds the source.
func NewRefreshingTokenSource(cfg RefreshingTokenSourceConfig) (*RefreshingTokenSource, error) {
	if strings.TrimSpace(cfg.RefreshURL) == "" {
		return nil, errors.New("backend: refresh url is required")
	}
	if strings.TrimSpace(cfg.RefreshToken) == "" {
		return nil, errors.New("backend: refresh token is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = 30 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RefreshingTokenSource{
		refreshURL:   strings.TrimSpace(cfg.RefreshURL),
		httpClient:   httpClient,
		leeway:       leeway,
		now:          now,
		accessToken:  strings.TrimSpace(cfg.AccessToken),
		refreshToken: strings.TrimSpace(cfg.RefreshToken),
	}, nil
}

// Token returns the current access token, refreshing first when it is
// missing or its exp claim is within the leeway.
func (s *RefreshingTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	token := s.accessToken
	s.mu.Unlock()

	if token != "" {
		exp, ok := TokenExpiry(token)
		if !ok || s.now().Add(s.leeway).Before(exp) {
			return token, nil
		}
	}
	return s.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new token pair.
func (s *RefreshingTokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := json.Marshal(map[string]string{"refreshToken": s.refreshToken})
	if err != nil {
		return "", fmt.Errorf("backend: marshal refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.refreshURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("backend: create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransport, Method: http.MethodPost, Path: s.refreshURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("backend: read refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := classifyStatus(http.MethodPost, s.refreshURL, resp.StatusCode, resp.Header, data)
		apiErr.Kind = KindUnauthorized
		return "", apiErr
	}

	var pair struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	raw := data
	if inner := envelope.Field(data, "data"); len(inner) > 0 && inner[0] == '{' {
		raw = inner
	}
	if err := json.Unmarshal(raw, &pair); err != nil || strings.TrimSpace(pair.Token) == "" {
		return "", errors.New("backend: refresh response carried no token")
	}

	s.accessToken = pair.Token
	if strings.TrimSpace(pair.RefreshToken) != "" {
		s.refreshToken = pair.RefreshToken
	}
	return s.accessToken, nil
}
