package postgres

import (
	"context"
	"database/sql"
	"errors"

	"blog-client/internal/domain"
)

const (
	accountColumns = `id, username, email, password_hash, first_name, last_name, bio, profile_picture, created_at`

	createAccountQuery = `INSERT INTO accounts (username, email, password_hash, first_name, last_name, bio, profile_picture)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`

	accountByUsernameQuery = `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`

	accountByEmailQuery = `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`

	updateAccountQuery = `UPDATE accounts
SET email = $2, password_hash = $3, first_name = $4, last_name = $5, bio = $6, profile_picture = $7
WHERE username = $1`
)

// AccountRepository implements domain.AccountRepository for PostgreSQL
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	err := r.db.QueryRowContext(ctx, createAccountQuery,
		a.Username, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.Bio, a.ProfilePicture,
	).Scan(&a.ID, &a.CreatedAt)
	return translate(err)
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, accountByUsernameQuery, username))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, accountByEmailQuery, email))
}

func (r *AccountRepository) Update(ctx context.Context, a *domain.Account) error {
	res, err := r.db.ExecContext(ctx, updateAccountQuery,
		a.Username, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.Bio, a.ProfilePicture,
	)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *AccountRepository) scanOne(row *sql.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&a.FirstName,
		&a.LastName,
		&a.Bio,
		&a.ProfilePicture,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
