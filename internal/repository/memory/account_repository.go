// Package memory holds in-process repositories for the dev API.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"blog-client/internal/domain"
)

// AccountRepository implements domain.AccountRepository in memory
type AccountRepository struct {
	mu       sync.RWMutex
	nextID   int
	accounts map[string]*domain.Account // keyed by username
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]*domain.Account)}
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.Username]; exists {
		return domain.ErrUsernameExists
	}
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return domain.ErrEmailExists
		}
	}

	r.nextID++
	account.ID = r.nextID
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	stored := *account
	r.accounts[account.Username] = &stored
	return nil
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.accounts[username]; ok {
		c := *a
		return &c, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			c := *a
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// Update replaces the stored account with the same username
func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.Username]; !ok {
		return domain.ErrUserNotFound
	}
	for _, a := range r.accounts {
		if a.Username != account.Username && strings.EqualFold(a.Email, account.Email) {
			return domain.ErrEmailExists
		}
	}

	stored := *account
	r.accounts[account.Username] = &stored
	return nil
}
