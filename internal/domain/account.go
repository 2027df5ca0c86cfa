package domain

import (
	"context"
	"errors"
	"time"
)

// Errors raised by the dev API's service and repository layers
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrPostNotFound       = errors.New("post not found")
	ErrSlugExists         = errors.New("slug already exists")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrForbidden          = errors.New("not the author of this post")
)

// Account is a registered user as stored by the dev API
type Account struct {
	ID             int
	Username       string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Bio            string
	ProfilePicture string
	CreatedAt      time.Time
}

// UserProfile renders the account the way the profile endpoint returns it
func (a *Account) UserProfile() UserProfile {
	return UserProfile{
		Username:  a.Username,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Profile: Profile{
			Bio:            a.Bio,
			ProfilePicture: a.ProfilePicture,
		},
	}
}

type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, account *Account) error
}

type PostRepository interface {
	Create(ctx context.Context, post *Post) error
	GetBySlug(ctx context.Context, slug string) (*Post, error)
	// List returns a newest-first page and the total number of posts
	List(ctx context.Context, offset, limit int) ([]Post, int, error)
	Update(ctx context.Context, post *Post) error
	Delete(ctx context.Context, slug string) error
	IncrementViews(ctx context.Context, slug string) (*Post, error)
}

type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id int) (*Category, error)
}
