package auth

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"firstview-tracker/internal/credstore"
	"firstview-tracker/internal/firstview"
)

// Exchanger mints a fresh access credential from the refresh credential.
type Exchanger interface {
	ExchangeToken(ctx context.Context, req firstview.TokenRequest) (*firstview.TokenResponse, error)
}

// ManagerMetrics receives refresh outcomes: "ok", "skipped", "stale" or "error".
type ManagerMetrics interface {
	TokenRefreshInc(result string)
}

// Manager keeps the short-lived access credential usable. It is safe for concurrent use.
type Manager struct {
	store     credstore.Store
	exchanger Exchanger
	metrics   ManagerMetrics
	now       func() time.Time

	group singleflight.Group
}

type ManagerOption func(*Manager)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithMetrics(mm ManagerMetrics) ManagerOption {
	return func(m *Manager) { m.metrics = mm }
}

func NewManager(store credstore.Store, exchanger Exchanger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		exchanger: exchanger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureValidAccessCredential returns a non-expired access credential, refreshing it at
// most once when the stored one is absent, undecodable or past its exp. ok is false when
// no usable credential could be produced; the caller proceeds without one.
func (m *Manager) EnsureValidAccessCredential(ctx context.Context) (string, bool) {
	token, err := credstore.GetString(ctx, m.store, credstore.KeyAccessCredential)
	if err != nil {
		log.Printf("read access credential: %v", err)
	}
	if !Expired(token, m.now()) {
		return token, true
	}

	// Callers racing on the same expired credential share a single exchange. A caller that
	// arrives after a flight has completed finds the stored credential already replaced.
	v, _, _ := m.group.Do("refresh", func() (any, error) {
		current, err := credstore.GetString(ctx, m.store, credstore.KeyAccessCredential)
		if err != nil {
			log.Printf("read access credential: %v", err)
		}
		if !Expired(current, m.now()) {
			return current, nil
		}
		return m.refresh(ctx), nil
	})
	token, _ = v.(string)
	return token, token != ""
}

func (m *Manager) refresh(ctx context.Context) string {
	refresh, err := credstore.GetString(ctx, m.store, credstore.KeyRefreshCredential)
	if err != nil {
		log.Printf("read refresh credential: %v", err)
	}
	account, err := credstore.GetString(ctx, m.store, credstore.KeyAccountIdentifier)
	if err != nil {
		log.Printf("read account identifier: %v", err)
	}
	if refresh == "" || account == "" {
		m.observe("skipped")
		return ""
	}

	resp, err := m.exchanger.ExchangeToken(ctx, firstview.TokenRequest{Email: account, LoginToken: refresh})
	if err != nil {
		log.Printf("failed to refresh token: %v", err)
		m.observe("error")
		return ""
	}
	if resp == nil || resp.AuthToken == "" {
		msg := ""
		if resp != nil {
			msg = resp.Message
		}
		log.Printf("failed to refresh token: empty auth_token (message=%q)", msg)
		m.observe("error")
		return ""
	}

	// A sign-in or sign-out during the exchange makes the minted credential stale.
	if !m.sameSession(ctx, account, refresh) {
		log.Printf("discarding refreshed token: session changed during exchange")
		m.observe("stale")
		return ""
	}
	if err := m.store.Set(ctx, credstore.KeyAccessCredential, resp.AuthToken); err != nil {
		log.Printf("persist access credential: %v", err)
	}
	m.observe("ok")
	return resp.AuthToken
}

func (m *Manager) sameSession(ctx context.Context, account, refresh string) bool {
	currentRefresh, err := credstore.GetString(ctx, m.store, credstore.KeyRefreshCredential)
	if err != nil {
		log.Printf("read refresh credential: %v", err)
		return false
	}
	currentAccount, err := credstore.GetString(ctx, m.store, credstore.KeyAccountIdentifier)
	if err != nil {
		log.Printf("read account identifier: %v", err)
		return false
	}
	return currentRefresh == refresh && currentAccount == account
}

func (m *Manager) observe(result string) {
	if m.metrics != nil {
		m.metrics.TokenRefreshInc(result)
	}
}
