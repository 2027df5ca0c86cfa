// Package session owns the client's authentication state: the current user,
// the access/refresh token pair and the token refresh protocol.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"blog-client/internal/api"
	"blog-client/internal/domain"
	"blog-client/internal/observability"

	"golang.org/x/sync/singleflight"
)

const refreshFlightKey = "refresh"

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Manager holds the session state. It is safe for concurrent use.
type Manager struct {
	client *api.Client
	store  domain.TokenStore

	mu            sync.RWMutex
	user          *domain.UserProfile
	accessToken   string
	refreshToken  string
	authenticated bool
	loading       bool
	// generation advances on every Logout so in-flight refreshes can tell
	// their result is stale
	generation uint64

	refreshGroup singleflight.Group
}

// NewManager hydrates tokens from store and installs itself as the client's
// authenticator. Loading stays true until Init completes.
func NewManager(client *api.Client, store domain.TokenStore) *Manager {
	m := &Manager{
		client:  client,
		store:   store,
		loading: true,
	}

	m.accessToken = m.storedToken(domain.AccessTokenKey)
	m.refreshToken = m.storedToken(domain.RefreshTokenKey)

	client.SetAuthenticator(m)
	return m
}

// Init validates a persisted access token by fetching the profile
func (m *Manager) Init(ctx context.Context) {
	if token := m.storedToken(domain.AccessTokenKey); token != "" {
		_ = m.FetchUserProfile(ctx, token)
	}

	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
}

// Login obtains a token pair, persists it and loads the profile. On failure
// the previous session is left untouched.
func (m *Manager) Login(ctx context.Context, username, password string) domain.Result[*domain.UserProfile] {
	var tokens tokenPair
	_, err := m.client.Send(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   "/token/",
		JSON:   map[string]string{"username": username, "password": password},
		Public: true,
	}, &tokens)
	if err != nil {
		observability.FromContext(ctx).Warn("login failed",
			slog.String("username", username),
			slog.Int("status", api.StatusCode(err)))
		return domain.Fail[*domain.UserProfile](api.DetailOr(err, "Login failed"))
	}
	if tokens.Access == "" || tokens.Refresh == "" {
		return domain.Fail[*domain.UserProfile]("Login failed")
	}

	if err := m.persist(tokens.Access, tokens.Refresh); err != nil {
		observability.FromContext(ctx).Error("failed to persist tokens", slog.String("error", err.Error()))
		return domain.Fail[*domain.UserProfile]("Login failed")
	}

	m.mu.Lock()
	m.accessToken = tokens.Access
	m.refreshToken = tokens.Refresh
	m.mu.Unlock()

	if err := m.FetchUserProfile(ctx, tokens.Access); err != nil {
		return domain.Fail[*domain.UserProfile](api.DetailOr(err, "Login failed"))
	}

	observability.FromContext(observability.WithUsername(ctx, username)).Info("logged in")
	return domain.OK(m.User())
}

// Register creates an account and logs straight into it on 201
func (m *Manager) Register(ctx context.Context, email, username, password string) domain.Result[*domain.UserProfile] {
	status, err := m.client.Send(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   "/register/",
		JSON: map[string]string{
			"email":    email,
			"username": username,
			"password": password,
		},
		Public: true,
	}, nil)
	if err != nil {
		msg := api.FirstFieldError(err)
		if msg == "" {
			msg = "Registration failed"
		}
		return domain.Fail[*domain.UserProfile](msg)
	}

	if status != http.StatusCreated {
		return domain.OK[*domain.UserProfile](nil)
	}
	return m.Login(ctx, username, password)
}

// Logout forgets both tokens and all session fields. Safe to call repeatedly.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.generation++
	if err := m.store.Delete(domain.AccessTokenKey, domain.RefreshTokenKey); err != nil {
		observability.Warn("failed to clear persisted tokens", slog.String("error", err.Error()))
	}
	wasAuthenticated := m.authenticated || m.accessToken != ""
	m.user = nil
	m.accessToken = ""
	m.refreshToken = ""
	m.authenticated = false
	m.mu.Unlock()

	if wasAuthenticated {
		observability.SessionLogoutsTotal.Inc()
		observability.Info("session cleared")
	}
}

// FetchUserProfile loads the profile with token. Any failure is treated as
// an invalid session and logs out.
func (m *Manager) FetchUserProfile(ctx context.Context, token string) error {
	var user domain.UserProfile
	_, err := m.client.Send(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   "/profile/",
		Token:  token,
	}, &user)
	if err != nil {
		observability.FromContext(ctx).Warn("failed to fetch user profile", slog.String("error", err.Error()))
		m.Logout()
		return fmt.Errorf("fetch profile: %w", err)
	}

	m.mu.Lock()
	m.user = &user
	m.authenticated = true
	m.mu.Unlock()
	return nil
}

// RefetchProfile reloads the profile when an access token is present
func (m *Manager) RefetchProfile(ctx context.Context) error {
	token := m.AccessToken()
	if token == "" {
		return domain.ErrNotAuthenticated
	}
	return m.FetchUserProfile(ctx, token)
}

// UpdateProfile sends a multipart profile update and replaces the user
func (m *Manager) UpdateProfile(ctx context.Context, form *api.Form) domain.Result[*domain.UserProfile] {
	var user domain.UserProfile
	_, err := m.client.Send(ctx, &api.Request{
		Method: http.MethodPut,
		Path:   "/profile/",
		Form:   form,
		Token:  m.AccessToken(),
	}, &user)
	if err != nil {
		msg := api.FirstFieldError(err)
		if msg == "" {
			msg = "Profile update failed"
		}
		observability.FromContext(ctx).Warn("profile update failed", slog.String("error", err.Error()))
		return domain.Fail[*domain.UserProfile](msg)
	}

	m.mu.Lock()
	m.user = &user
	m.mu.Unlock()

	return domain.OK(&user)
}

// RefreshAccessToken exchanges the persisted refresh token for a new access
// token. Any failure ends the session. Concurrent callers share one request.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, bool) {
	return m.refreshShared(ctx, "")
}

// Reauthenticate implements api.Authenticator. If another caller already
// replaced staleToken, the current token is returned without a new refresh.
func (m *Manager) Reauthenticate(ctx context.Context, staleToken string) (string, bool) {
	return m.refreshShared(ctx, staleToken)
}

func (m *Manager) refreshShared(ctx context.Context, staleToken string) (string, bool) {
	v, err, _ := m.refreshGroup.Do(refreshFlightKey, func() (any, error) {
		if staleToken != "" {
			if current := m.AccessToken(); current != "" && current != staleToken {
				return current, nil
			}
		}
		// A waiter giving up must not cancel the refresh the others depend on
		return m.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", false
	}
	return v.(string), true
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	generation := m.generation
	m.mu.RUnlock()

	refreshToken := m.storedToken(domain.RefreshTokenKey)
	if refreshToken == "" {
		observability.TokenRefreshTotal.WithLabelValues("no_token").Inc()
		m.Logout()
		return "", domain.ErrNoRefreshToken
	}

	var tokens tokenPair
	_, err := m.client.Send(ctx, &api.Request{
		Method: http.MethodPost,
		Path:   "/token/refresh/",
		JSON:   map[string]string{"refresh": refreshToken},
		Public: true,
	}, &tokens)
	if err == nil && tokens.Access == "" {
		err = errors.New("empty access token in refresh response")
	}
	if err != nil {
		observability.TokenRefreshTotal.WithLabelValues("failure").Inc()
		observability.FromContext(ctx).Warn("token refresh failed", slog.String("error", err.Error()))
		m.Logout()
		return "", fmt.Errorf("%w: %v", domain.ErrRefreshFailed, err)
	}

	// Servers that rotate refresh tokens send a new one alongside
	newRefresh := refreshToken
	if tokens.Refresh != "" {
		newRefresh = tokens.Refresh
	}
	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		observability.TokenRefreshTotal.WithLabelValues("discarded").Inc()
		observability.FromContext(ctx).Info("discarding refreshed token after logout")
		return "", fmt.Errorf("%w: logged out during refresh", domain.ErrRefreshFailed)
	}
	if err := m.persist(tokens.Access, newRefresh); err != nil {
		m.mu.Unlock()
		observability.TokenRefreshTotal.WithLabelValues("failure").Inc()
		observability.FromContext(ctx).Error("failed to persist refreshed token", slog.String("error", err.Error()))
		m.Logout()
		return "", fmt.Errorf("%w: %v", domain.ErrRefreshFailed, err)
	}
	m.accessToken = tokens.Access
	m.refreshToken = newRefresh
	m.mu.Unlock()

	observability.TokenRefreshTotal.WithLabelValues("success").Inc()
	observability.FromContext(ctx).Info("access token refreshed")
	return tokens.Access, nil
}

func (m *Manager) persist(access, refresh string) error {
	if err := m.store.Set(domain.AccessTokenKey, access); err != nil {
		return err
	}
	return m.store.Set(domain.RefreshTokenKey, refresh)
}

func (m *Manager) storedToken(key string) string {
	token, err := m.store.Get(key)
	if err != nil {
		if !errors.Is(err, domain.ErrTokenNotFound) {
			observability.Warn("failed to read persisted token",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
		return ""
	}
	return token
}

// AccessToken implements api.Authenticator
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authenticated
}

// User returns a copy of the current user, or nil
func (m *Manager) User() *domain.UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Snapshot returns a copy of the whole session state
func (m *Manager) Snapshot() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := domain.Session{
		AccessToken:   m.accessToken,
		RefreshToken:  m.refreshToken,
		Authenticated: m.authenticated,
		Loading:       m.loading,
	}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	return s
}
