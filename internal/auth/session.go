package auth

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"firstview-tracker/internal/credstore"
	"firstview-tracker/internal/firstview"
)

const (
	ErrorSignInFailed   = "SIGN_IN_FAILED"
	ErrorSignInRejected = "SIGN_IN_BAD_INPUT"
)

// SignInBackend performs the unauthenticated sign-in call.
type SignInBackend interface {
	SignIn(ctx context.Context, req firstview.LoginRequest) (*firstview.LoginResponse, error)
}

type SessionConfig struct {
	DeviceName string
	DeviceUID  string
}

// Session owns the signed-in account. It is created once at start-up, restored from the
// store, and cleared (not destroyed) on sign-out.
type Session struct {
	store   credstore.Store
	backend SignInBackend
	cfg     SessionConfig

	mu       sync.RWMutex
	account  string
	signedIn bool
}

func NewSession(store credstore.Store, backend SignInBackend, cfg SessionConfig) *Session {
	if cfg.DeviceName == "" {
		cfg.DeviceName = "android"
	}
	return &Session{store: store, backend: backend, cfg: cfg}
}

// Restore loads the persisted account. A stored refresh credential means signed in.
func (s *Session) Restore(ctx context.Context) error {
	refresh, err := credstore.GetString(ctx, s.store, credstore.KeyRefreshCredential)
	if err != nil {
		return fmt.Errorf("restore refresh credential: %w", err)
	}
	account, err := credstore.GetString(ctx, s.store, credstore.KeyAccountIdentifier)
	if err != nil {
		return fmt.Errorf("restore account identifier: %w", err)
	}
	s.mu.Lock()
	s.account = account
	s.signedIn = refresh != ""
	s.mu.Unlock()
	return nil
}

// SignIn exchanges account and password for a refresh credential. Nothing is persisted
// unless the backend returns a login token.
func (s *Session) SignIn(ctx context.Context, account, password string) error {
	account = strings.TrimSpace(account)
	if account == "" || password == "" {
		return goerrors.New("account and password are required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(ErrorSignInRejected)
	}

	deviceUID, err := s.deviceUID(ctx)
	if err != nil {
		return err
	}
	resp, err := s.backend.SignIn(ctx, firstview.LoginRequest{
		EmailOrPhone: account,
		Password:     password,
		RememberMe:   true,
		DeviceName:   s.cfg.DeviceName,
		DeviceUID:    deviceUID,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "Login failed. Please try again later.").
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorSignInFailed)
	}
	if resp == nil || resp.LoginToken == "" {
		msg := "Login failed. Please check your email and password."
		if resp != nil && strings.TrimSpace(resp.Message) != "" {
			msg = resp.Message
		}
		return goerrors.New(msg, goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(ErrorSignInFailed)
	}

	// The refresh credential is written last: its presence implies a complete session.
	if err := s.store.Set(ctx, credstore.KeyAccountIdentifier, account); err != nil {
		return fmt.Errorf("persist account identifier: %w", err)
	}
	if err := s.store.Set(ctx, credstore.KeyRefreshCredential, resp.LoginToken); err != nil {
		if rmErr := s.store.Remove(ctx, credstore.KeyAccountIdentifier); rmErr != nil {
			log.Printf("roll back account identifier: %v", rmErr)
		}
		return fmt.Errorf("persist refresh credential: %w", err)
	}
	// A credential minted for a previous account must not be reused.
	if err := s.store.Remove(ctx, credstore.KeyAccessCredential); err != nil {
		log.Printf("clear stale access credential: %v", err)
	}

	s.mu.Lock()
	s.account = account
	s.signedIn = true
	s.mu.Unlock()
	log.Printf("signed in as %s", account)
	return nil
}

// SignOut clears every credential. Store errors are reported after all keys were attempted.
func (s *Session) SignOut(ctx context.Context) error {
	var firstErr error
	for _, key := range []string{credstore.KeyRefreshCredential, credstore.KeyAccessCredential, credstore.KeyAccountIdentifier} {
		if err := s.store.Remove(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.mu.Lock()
	s.account = ""
	s.signedIn = false
	s.mu.Unlock()
	return firstErr
}

func (s *Session) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signedIn
}

func (s *Session) Account() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

func (s *Session) deviceUID(ctx context.Context) (string, error) {
	if s.cfg.DeviceUID != "" {
		return s.cfg.DeviceUID, nil
	}
	id, err := credstore.GetString(ctx, s.store, credstore.KeyDeviceUID)
	if err != nil {
		return "", fmt.Errorf("read device uid: %w", err)
	}
	if id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := s.store.Set(ctx, credstore.KeyDeviceUID, id); err != nil {
		return "", fmt.Errorf("persist device uid: %w", err)
	}
	return id, nil
}
