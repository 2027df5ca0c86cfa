// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the blog client.
package testutil

import (
	"errors"
	"sync"

	"blog-client/internal/domain"
)

var ErrMockStore = errors.New("mock: store failure")

// MockTokenStore implements domain.TokenStore for testing
type MockTokenStore struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	GetFunc    func(key string) (string, error)
	SetFunc    func(key, value string) error
	DeleteFunc func(keys ...string) error

	Tokens map[string]string
}

func NewMockTokenStore() *MockTokenStore {
	return &MockTokenStore{
		Tokens: make(map[string]string),
	}
}

func (m *MockTokenStore) Get(key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if v, ok := m.Tokens[key]; ok {
		return v, nil
	}
	return "", domain.ErrTokenNotFound
}

func (m *MockTokenStore) Set(key, value string) error {
	if m.SetFunc != nil {
		return m.SetFunc(key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Tokens == nil {
		m.Tokens = make(map[string]string)
	}
	m.Tokens[key] = value
	return nil
}

func (m *MockTokenStore) Delete(keys ...string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(keys...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.Tokens, k)
	}
	return nil
}

// StaticToken is a fixed access token source
type StaticToken string

func (s StaticToken) AccessToken() string {
	return string(s)
}
