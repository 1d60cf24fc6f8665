package credstore

import (
	"context"
	"sync"
)

// Keys under which the session is persisted.
const (
	KeyRefreshCredential = "login_token"
	KeyAccessCredential  = "auth_token"
	KeyAccountIdentifier = "email"
	KeyDeviceUID         = "device_uid"
)

// Store is a durable string key-value store. Each call is atomic for its single key;
// there are no multi-key transactions.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Memory keeps values for the lifetime of the process.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

// GetString returns the stored value or "" when absent or unreadable.
func GetString(ctx context.Context, s Store, key string) (string, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return "", err
	}
	return v, nil
}
