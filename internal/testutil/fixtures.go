package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"blog-client/internal/domain"
)

// Counter for generating unique IDs
var idCounter atomic.Int64

func nextID() int {
	return int(idCounter.Add(1))
}

// PostOptions allows customizing post fixture creation
type PostOptions struct {
	ID          int
	Slug        string
	Title       string
	Description string
	Image       *string
	Category    domain.Category
	Author      domain.Author
	CreatedAt   time.Time
	Views       int
}

// NewTestPost creates a test post with sensible defaults.
// The slug is derived from the title unless set explicitly.
func NewTestPost(opts ...func(*PostOptions)) domain.Post {
	id := nextID()
	o := &PostOptions{
		ID:          id,
		Title:       fmt.Sprintf("Test Post %d", id),
		Description: "Lorem ipsum dolor sit amet.",
		Category:    domain.Category{ID: 1, Title: "General"},
		Author:      domain.Author{ID: 1, Username: "alice"},
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.Slug == "" {
		o.Slug = strings.ReplaceAll(strings.ToLower(o.Title), " ", "-")
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	return domain.Post{
		ID:          o.ID,
		Slug:        o.Slug,
		Title:       o.Title,
		Description: o.Description,
		Image:       o.Image,
		Category:    o.Category,
		User:        o.Author,
		CreatedAt:   o.CreatedAt,
		Views:       o.Views,
	}
}

// WithSlug sets the post slug
func WithSlug(slug string) func(*PostOptions) {
	return func(o *PostOptions) {
		o.Slug = slug
	}
}

func WithTitle(title string) func(*PostOptions) {
	return func(o *PostOptions) {
		o.Title = title
	}
}

func WithAuthor(username string) func(*PostOptions) {
	return func(o *PostOptions) {
		o.Author = domain.Author{Username: username}
	}
}

func WithCategory(id int, title string) func(*PostOptions) {
	return func(o *PostOptions) {
		o.Category = domain.Category{ID: id, Title: title}
	}
}

// WithImage sets the image URL
func WithImage(url string) func(*PostOptions) {
	return func(o *PostOptions) {
		o.Image = &url
	}
}

// NewTestPosts creates count posts, newest first
func NewTestPosts(count int) []domain.Post {
	now := time.Now().UTC().Truncate(time.Second)
	posts := make([]domain.Post, count)
	for i := 0; i < count; i++ {
		posts[i] = NewTestPost(func(o *PostOptions) {
			o.CreatedAt = now.Add(-time.Duration(i) * time.Minute)
		})
	}
	return posts
}

// NewTestProfile creates a user profile for username
func NewTestProfile(username string) domain.UserProfile {
	return domain.UserProfile{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		Profile: domain.Profile{
			Bio: "Writes about Go.",
		},
	}
}

// ResetIDCounter resets the ID counter (useful for deterministic tests)
func ResetIDCounter() {
	idCounter.Store(0)
}
