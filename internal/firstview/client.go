package firstview

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

	goerrors "github.com/goliatone/go-errors"

	"firstview-tracker/internal/transport"
)

const DefaultBaseURL = "https://firstviewbackend.com/api/"

const (
	ErrorUnauthorized    = "FIRSTVIEW_UNAUTHORIZED"
	ErrorUpstreamFailure = "FIRSTVIEW_UPSTREAM_FAILURE"
	ErrorMalformedBody   = "FIRSTVIEW_MALFORMED_BODY"
)

// AuthClient talks to the unauthenticated sign-in and token exchange endpoints.
// It is never wrapped with bearer auth, so a token refresh cannot recurse into itself.
type AuthClient struct {
	baseURL *url.URL
	http    *http.Client
}

// TrackingClient talks to the authenticated endpoints through a middleware chain.
type TrackingClient struct {
	baseURL *url.URL
	http    *http.Client
}

func NewAuthClient(baseURL string, timeout time.Duration) (*AuthClient, error) {
	u, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	return &AuthClient{baseURL: u, http: &http.Client{Timeout: timeout}}, nil
}

// NewTrackingClient builds the authenticated client. mws are applied in the given order
// on top of base (http.DefaultTransport when nil).
func NewTrackingClient(baseURL string, timeout time.Duration, base http.RoundTripper, mws ...transport.Middleware) (*TrackingClient, error) {
	u, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	return &TrackingClient{
		baseURL: u,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport.Chain(base, mws...),
		},
	}, nil
}

func (c *AuthClient) SignIn(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := doJSON(ctx, c.http, http.MethodPost, c.baseURL, "v1/sign-in", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *AuthClient) ExchangeToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := doJSON(ctx, c.http, http.MethodPost, c.baseURL, "v1/get-token", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *TrackingClient) GetEstimatedArrivals(ctx context.Context) (*EtaResponse, error) {
	var out EtaResponse
	if err := doJSON(ctx, c.http, http.MethodGet, c.baseURL, "v1/eta", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *TrackingClient) GetNotifications(ctx context.Context) (*NotificationResponse, error) {
	var out NotificationResponse
	if err := doJSON(ctx, c.http, http.MethodGet, c.baseURL, "v1/notifications", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func parseBase(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host required", raw)
	}
	return u, nil
}

func doJSON(ctx context.Context, client *http.Client, method string, base *url.URL, path string, body, out any) error {
	target := base.ResolveReference(&url.URL{Path: path})

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, fmt.Sprintf("%s %s failed", method, path)).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorUpstreamFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return statusError(method, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, fmt.Sprintf("decode %s response", path)).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorMalformedBody)
	}
	return nil
}

func statusError(method, path string, status int) error {
	msg := fmt.Sprintf("%s %s: status %d", method, path, status)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return goerrors.New(msg, goerrors.CategoryAuth).
			WithCode(status).
			WithTextCode(ErrorUnauthorized)
	}
	return goerrors.New(msg, goerrors.CategoryExternal).
		WithCode(status).
		WithTextCode(ErrorUpstreamFailure)
}
