package domain

import (
	"errors"
)

// Keys under which tokens are persisted between runs
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrNotAuthenticated = errors.New("authentication failed")
	ErrNoRefreshToken   = errors.New("no refresh token")
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// Session is a point-in-time copy of the authentication state.
// Authenticated is true only when User came from a successful profile fetch.
type Session struct {
	User          *UserProfile `json:"user"`
	AccessToken   string       `json:"-"`
	RefreshToken  string       `json:"-"`
	Authenticated bool         `json:"authenticated"`
	Loading       bool         `json:"loading"`
}

// TokenStore persists tokens by key. Get returns ErrTokenNotFound for
// missing keys.
type TokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(keys ...string) error
}
