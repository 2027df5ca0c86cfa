package postgres

import (
	"errors"

	"blog-client/internal/domain"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"

	constraintUsername = "accounts_username_key"
	constraintEmail    = "accounts_email_key"
	constraintSlug     = "posts_slug_key"
	constraintCategory = "posts_category_id_fkey"
)

// IsUniqueViolation reports whether err is a unique violation, optionally
// restricted to one constraint
func IsUniqueViolation(err error, constraint string) bool {
	return isPQError(err, pqUniqueViolation, constraint)
}

func isPQError(err error, code, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if string(pqErr.Code) != code {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// translate maps constraint violations onto domain errors
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case IsUniqueViolation(err, constraintUsername):
		return domain.ErrUsernameExists
	case IsUniqueViolation(err, constraintEmail):
		return domain.ErrEmailExists
	case IsUniqueViolation(err, constraintSlug):
		return domain.ErrSlugExists
	case isPQError(err, pqForeignKeyViolation, constraintCategory):
		return domain.ErrCategoryNotFound
	default:
		return err
	}
}
