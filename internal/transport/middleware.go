package transport

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Middleware wraps a RoundTripper with one request-transform step.
type Middleware func(next http.RoundTripper) http.RoundTripper

// RoundTripFunc adapts a function to http.RoundTripper.
type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Chain composes mws over base. The first middleware sees the request first.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		rt = mws[i](rt)
	}
	return rt
}

// CredentialSource yields the bearer credential to attach, if any.
type CredentialSource interface {
	EnsureValidAccessCredential(ctx context.Context) (string, bool)
}

// BearerAuth attaches "Authorization: Bearer <token>" when src yields a credential.
// Without one the request goes out unauthenticated and the backend decides.
func BearerAuth(src CredentialSource) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			if src == nil {
				return next.RoundTrip(r)
			}
			token, ok := src.EnsureValidAccessCredential(r.Context())
			if !ok || token == "" {
				return next.RoundTrip(r)
			}
			r = r.Clone(r.Context())
			r.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(r)
		})
	}
}

// Logging prints request and response lines when enabled. It never touches bodies.
func Logging(enabled bool) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		if !enabled {
			return next
		}
		return RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			log.Printf("http request %s %s", r.Method, r.URL.Redacted())
			resp, err := next.RoundTrip(r)
			if err != nil {
				log.Printf("http error %s %s: %v", r.Method, r.URL.Redacted(), err)
				return resp, err
			}
			log.Printf("http response %d %s (%s)", resp.StatusCode, r.URL.Redacted(), time.Since(start).Round(time.Millisecond))
			return resp, err
		})
	}
}
