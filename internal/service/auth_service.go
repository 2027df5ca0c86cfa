package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"blog-client/internal/domain"
	"blog-client/internal/observability"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
	kindReset   = "reset"

	resetTokenTTL = time.Hour
)

// TokenPair is what the token endpoint returns
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// AuthConfig tunes token lifetimes and hashing
type AuthConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost
	HashCost int
	// Now overrides the clock in tests
	Now func() time.Time
}

type issuedToken struct {
	username  string
	kind      string
	expiresAt time.Time
}

// AuthService owns accounts and the opaque tokens issued for them
type AuthService struct {
	accounts domain.AccountRepository
	cfg      AuthConfig

	mu     sync.Mutex
	tokens map[string]issuedToken
}

func NewAuthService(accounts domain.AccountRepository, cfg AuthConfig) *AuthService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 5 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 24 * time.Hour
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AuthService{
		accounts: accounts,
		cfg:      cfg,
		tokens:   make(map[string]issuedToken),
	}
}

// Register validates and stores a new account. Validation problems are
// returned as *FieldErrors.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.Account, error) {
	errs := &FieldErrors{}
	switch {
	case username == "":
		errs.Add("username", "This field may not be blank.")
	case len(username) > 150 || !usernameRegex.MatchString(username):
		errs.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	switch {
	case email == "":
		errs.Add("email", "This field may not be blank.")
	case !emailRegex.MatchString(email) || len(email) > 255:
		errs.Add("email", "Enter a valid email address.")
	}
	validatePassword(errs, "password", password)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.HashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	switch err := s.accounts.Create(ctx, account); {
	case errors.Is(err, domain.ErrUsernameExists):
		return nil, Fields("username", "A user with that username already exists.")
	case errors.Is(err, domain.ErrEmailExists):
		return nil, Fields("email", "user with this email already exists.")
	case err != nil:
		return nil, err
	}

	observability.FromContext(ctx).Info("account registered", slog.String("username", username))
	return account, nil
}

func validatePassword(errs *FieldErrors, field, password string) {
	switch {
	case password == "":
		errs.Add(field, "This field may not be blank.")
	case len(password) < 8:
		errs.Add(field, "This password is too short. It must contain at least 8 characters.")
	case len(password) > 128:
		errs.Add(field, "Ensure this field has no more than 128 characters.")
	}
}

// Login checks credentials and issues a fresh token pair
func (s *AuthService) Login(ctx context.Context, username, password string) (TokenPair, error) {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return TokenPair{}, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, domain.ErrInvalidCredentials
	}

	return TokenPair{
		Access:  s.issue(account.Username, kindAccess, s.cfg.AccessTTL),
		Refresh: s.issue(account.Username, kindRefresh, s.cfg.RefreshTTL),
	}, nil
}

// Refresh exchanges a refresh token for a new access token
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	username, err := s.lookup(refreshToken, kindRefresh)
	if err != nil {
		return "", err
	}
	return s.issue(username, kindAccess, s.cfg.AccessTTL), nil
}

// VerifyAccessToken returns the username an unexpired access token belongs to
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	return s.lookup(token, kindAccess)
}

func (s *AuthService) Account(ctx context.Context, username string) (*domain.Account, error) {
	return s.accounts.GetByUsername(ctx, username)
}

// ProfileUpdate carries the editable profile fields. Nil fields are kept.
type ProfileUpdate struct {
	Email          *string
	FirstName      *string
	LastName       *string
	Bio            *string
	ProfilePicture *string
}

func (s *AuthService) UpdateProfile(ctx context.Context, username string, u ProfileUpdate) (*domain.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if u.Email != nil {
		if !emailRegex.MatchString(*u.Email) {
			return nil, Fields("email", "Enter a valid email address.")
		}
		account.Email = *u.Email
	}
	assign(&account.FirstName, u.FirstName)
	assign(&account.LastName, u.LastName)
	assign(&account.Bio, u.Bio)
	assign(&account.ProfilePicture, u.ProfilePicture)

	switch err := s.accounts.Update(ctx, account); {
	case errors.Is(err, domain.ErrEmailExists):
		return nil, Fields("email", "user with this email already exists.")
	case err != nil:
		return nil, err
	}
	return account, nil
}

func assign(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// RequestPasswordReset issues a reset token for the account with email. The
// dev API has no mailer, so the token is written to the log.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if !emailRegex.MatchString(email) {
		return "", Fields("email", "Enter a valid email address.")
	}
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", Fields("email", "No user is associated with this email address.")
	}
	if err != nil {
		return "", err
	}

	token := s.issue(account.Username, kindReset, resetTokenTTL)
	observability.FromContext(ctx).Info("password reset requested",
		slog.String("username", account.Username),
		slog.String("reset_token", token))
	return token, nil
}

// ConfirmPasswordReset sets a new password. The reset token is single use.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, password, confirm string) error {
	errs := &FieldErrors{}
	validatePassword(errs, "password", password)
	if err := errs.Err(); err != nil {
		return err
	}
	if password != confirm {
		return domain.ErrPasswordMismatch
	}

	username, err := s.lookup(token, kindReset)
	if err != nil {
		return err
	}
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.HashCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	account.PasswordHash = string(hash)
	if err := s.accounts.Update(ctx, account); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	return nil
}

func (s *AuthService) issue(username, kind string, ttl time.Duration) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Now()
	for t, it := range s.tokens {
		if now.After(it.expiresAt) {
			delete(s.tokens, t)
		}
	}
	s.tokens[token] = issuedToken{username: username, kind: kind, expiresAt: now.Add(ttl)}
	return token
}

func (s *AuthService) lookup(token, kind string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.tokens[token]
	if !ok || it.kind != kind || s.cfg.Now().After(it.expiresAt) {
		return "", domain.ErrInvalidToken
	}
	return it.username, nil
}
