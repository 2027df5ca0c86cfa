package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"blog-client/internal/domain"
	"blog-client/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestAuthService(t *testing.T) (*AuthService, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewAuthService(memory.NewAccountRepository(), AuthConfig{
		AccessTTL:  5 * time.Minute,
		RefreshTTL: time.Hour,
		HashCost:   bcrypt.MinCost,
		Now:        clock.Now,
	})
	return svc, clock
}

func fieldErrors(t *testing.T, err error) *FieldErrors {
	t.Helper()
	var fe *FieldErrors
	require.True(t, errors.As(err, &fe), "expected *FieldErrors, got %v", err)
	return fe
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("stores hashed password", func(t *testing.T) {
		svc, _ := newTestAuthService(t)

		account, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
		require.NoError(t, err)
		assert.NotEqual(t, "password123", account.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("password123")))
	})

	tests := []struct {
		name     string
		username string
		email    string
		password string
		fields   []string
	}{
		{"blank everything", "", "", "", []string{"username", "email", "password"}},
		{"bad username", "al ice", "alice@example.com", "password123", []string{"username"}},
		{"bad email", "alice", "not-an-email", "password123", []string{"email"}},
		{"short password", "alice", "alice@example.com", "short", []string{"password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestAuthService(t)

			_, err := svc.Register(ctx, tt.username, tt.email, tt.password)
			fe := fieldErrors(t, err)
			for _, f := range tt.fields {
				assert.NotEmpty(t, fe.Get(f), "missing error for %s", f)
			}
		})
	}

	t.Run("duplicates", func(t *testing.T) {
		svc, _ := newTestAuthService(t)
		_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
		require.NoError(t, err)

		_, err = svc.Register(ctx, "alice", "other@example.com", "password123")
		assert.Equal(t, []string{"A user with that username already exists."}, fieldErrors(t, err).Get("username"))

		_, err = svc.Register(ctx, "bob", "ALICE@example.com", "password123")
		assert.NotEmpty(t, fieldErrors(t, err).Get("email"))
	})
}

func TestAuthService_LoginAndTokens(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestAuthService(t)
	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	pair, err := svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEqual(t, pair.Access, pair.Refresh)

	username, err := svc.VerifyAccessToken(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	_, err = svc.VerifyAccessToken(ctx, pair.Refresh)
	assert.ErrorIs(t, err, domain.ErrInvalidToken, "refresh token is not an access token")

	clock.now = clock.now.Add(6 * time.Minute)
	_, err = svc.VerifyAccessToken(ctx, pair.Access)
	assert.ErrorIs(t, err, domain.ErrInvalidToken, "access token expired")

	access, err := svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	username, err = svc.VerifyAccessToken(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	_, err = svc.Refresh(ctx, access)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	clock.now = clock.now.Add(2 * time.Hour)
	_, err = svc.Refresh(ctx, pair.Refresh)
	assert.ErrorIs(t, err, domain.ErrInvalidToken, "refresh token expired")
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuthService(t)
	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "bob", "bob@example.com", "password123")
	require.NoError(t, err)

	first, bio := "Alice", "hello"
	account, err := svc.UpdateProfile(ctx, "alice", ProfileUpdate{FirstName: &first, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Alice", account.FirstName)
	assert.Equal(t, "alice@example.com", account.Email, "unset fields are kept")

	stored, err := svc.Account(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.UserProfile().Profile.Bio)

	taken := "bob@example.com"
	_, err = svc.UpdateProfile(ctx, "alice", ProfileUpdate{Email: &taken})
	assert.NotEmpty(t, fieldErrors(t, err).Get("email"))

	_, err = svc.UpdateProfile(ctx, "carol", ProfileUpdate{})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAuthService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuthService(t)
	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.RequestPasswordReset(ctx, "nobody@example.com")
	assert.NotEmpty(t, fieldErrors(t, err).Get("email"))

	token, err := svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)

	err = svc.ConfirmPasswordReset(ctx, token, "newpassword1", "different1")
	assert.ErrorIs(t, err, domain.ErrPasswordMismatch)

	err = svc.ConfirmPasswordReset(ctx, token, "short", "short")
	assert.NotEmpty(t, fieldErrors(t, err).Get("password"))

	err = svc.ConfirmPasswordReset(ctx, "bogus", "newpassword1", "newpassword1")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "newpassword1", "newpassword1"))

	_, err = svc.Login(ctx, "alice", "password123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "alice", "newpassword1")
	assert.NoError(t, err)

	err = svc.ConfirmPasswordReset(ctx, token, "another123", "another123")
	assert.ErrorIs(t, err, domain.ErrInvalidToken, "reset tokens are single use")
}

func TestFieldErrors_MarshalJSON(t *testing.T) {
	fe := &FieldErrors{}
	fe.Add("username", "taken")
	fe.Add("email", "invalid")
	fe.Add("username", "too long")

	data, err := json.Marshal(fe)
	require.NoError(t, err)
	assert.Equal(t, `{"username":["taken","too long"],"email":["invalid"]}`, string(data))
	assert.Nil(t, (&FieldErrors{}).Err())
	assert.Contains(t, fe.Error(), "username: taken too long")
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  Go 1.22: what's new?  ", "go-1-22-what-s-new"},
		{"!!!", "post"},
		{"Ünïcode only", "n-code-only"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.title))
		})
	}
}
