// Package post keeps the client-side view of blog posts and categories and
// performs CRUD against the API.
package post

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"blog-client/internal/api"
	"blog-client/internal/domain"
	"blog-client/internal/observability"
)

// authFailed is returned without a network call when no access token is held
const authFailed = "Authentication failed"

// TokenSource reports the current access token. *session.Manager satisfies it.
type TokenSource interface {
	AccessToken() string
}

type Store struct {
	client *api.Client
	tokens TokenSource

	mu         sync.RWMutex
	posts      []domain.Post
	current    *domain.Post
	categories []domain.Category
	inflight   int
	err        string
}

func NewStore(client *api.Client, tokens TokenSource) *Store {
	return &Store{
		client: client,
		tokens: tokens,
	}
}

// FetchPosts replaces the list with the first page of posts
func (s *Store) FetchPosts(ctx context.Context) domain.Result[[]domain.Post] {
	if !s.hasToken() {
		return domain.Fail[[]domain.Post](authFailed)
	}
	s.begin()
	defer s.end()

	var page domain.PostList
	if _, err := s.client.Send(ctx, &api.Request{Method: http.MethodGet, Path: "/post-list/"}, &page); err != nil {
		return domain.Fail[[]domain.Post](s.fail(ctx, "fetch posts", err, "failed to fetch posts"))
	}

	if page.Results == nil {
		page.Results = []domain.Post{}
	}

	s.mu.Lock()
	s.posts = page.Results
	s.mu.Unlock()

	return domain.OK(s.Posts())
}

// FetchPostByID loads a single post by slug and makes it the current post
func (s *Store) FetchPostByID(ctx context.Context, slug string) domain.Result[*domain.Post] {
	if !s.hasToken() {
		return domain.Fail[*domain.Post](authFailed)
	}
	s.begin()
	defer s.end()

	var p domain.Post
	if _, err := s.client.Send(ctx, &api.Request{Method: http.MethodGet, Path: postPath("post-detail", slug)}, &p); err != nil {
		return domain.Fail[*domain.Post](s.fail(ctx, "fetch post", err, "failed to fetch post"))
	}

	s.mu.Lock()
	s.current = &p
	s.mu.Unlock()

	return domain.OK(clonePost(&p))
}

// FetchCategories works without a session. The request is always sent
// without a bearer token, even while logged in, so an expired access token
// can never turn this public lookup into a refresh.
func (s *Store) FetchCategories(ctx context.Context) domain.Result[[]domain.Category] {
	s.begin()
	defer s.end()

	var categories []domain.Category
	_, err := s.client.Send(ctx, &api.Request{Method: http.MethodGet, Path: "/categories/", Public: true}, &categories)
	if err != nil {
		return domain.Fail[[]domain.Category](s.fail(ctx, "fetch categories", err, "failed to fetch categories"))
	}

	if categories == nil {
		categories = []domain.Category{}
	}

	s.mu.Lock()
	s.categories = categories
	s.mu.Unlock()

	return domain.OK(s.Categories())
}

// CreatePost uploads form and prepends the created post
func (s *Store) CreatePost(ctx context.Context, form *api.Form) domain.Result[*domain.Post] {
	if !s.hasToken() {
		return domain.Fail[*domain.Post](authFailed)
	}
	s.begin()
	defer s.end()

	var p domain.Post
	if _, err := s.client.Send(ctx, &api.Request{Method: http.MethodPost, Path: "/post-create/", Form: form}, &p); err != nil {
		return domain.Fail[*domain.Post](s.fail(ctx, "create post", err, "Failed to create post"))
	}

	s.mu.Lock()
	s.posts = append([]domain.Post{p}, s.posts...)
	s.mu.Unlock()

	observability.FromContext(ctx).Info("post created", slog.String("slug", p.Slug))
	return domain.OK(clonePost(&p))
}

// UpdatePost replaces the post with matching slug in the list and as current
func (s *Store) UpdatePost(ctx context.Context, slug string, form *api.Form) domain.Result[*domain.Post] {
	if !s.hasToken() {
		return domain.Fail[*domain.Post](authFailed)
	}
	s.begin()
	defer s.end()

	var p domain.Post
	if _, err := s.client.Send(ctx, &api.Request{Method: http.MethodPut, Path: postPath("post-update", slug), Form: form}, &p); err != nil {
		return domain.Fail[*domain.Post](s.fail(ctx, "update post", err, "Failed to update post"))
	}

	s.mu.Lock()
	for i := range s.posts {
		if s.posts[i].Slug == slug {
			s.posts[i] = p
		}
	}
	s.current = &p
	s.mu.Unlock()

	return domain.OK(clonePost(&p))
}

// DeletePost removes the post from the list only when the API answers 204
func (s *Store) DeletePost(ctx context.Context, slug string) domain.Result[struct{}] {
	if !s.hasToken() {
		return domain.Fail[struct{}](authFailed)
	}
	s.begin()
	defer s.end()

	status, err := s.client.Send(ctx, &api.Request{Method: http.MethodDelete, Path: postPath("post-delete", slug)}, nil)
	if err == nil && status != http.StatusNoContent {
		err = fmt.Errorf("%w: %d", domain.ErrUnexpectedStatus, status)
	}
	if err != nil {
		return domain.Fail[struct{}](s.fail(ctx, "delete post", err, "Failed to delete post"))
	}

	s.mu.Lock()
	kept := s.posts[:0]
	for _, p := range s.posts {
		if p.Slug != slug {
			kept = append(kept, p)
		}
	}
	s.posts = kept
	s.mu.Unlock()

	observability.FromContext(ctx).Info("post deleted", slog.String("slug", slug))
	return domain.Result[struct{}]{Success: true, Message: "Post deleted successfully"}
}

// Posts returns a copy of the loaded list
func (s *Store) Posts() []domain.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Post, len(s.posts))
	copy(out, s.posts)
	return out
}

func (s *Store) CurrentPost() *domain.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePost(s.current)
}

func (s *Store) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

// Loading reports whether any operation is in flight
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Err is the message recorded by the most recent failed operation
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) hasToken() bool {
	return s.tokens != nil && s.tokens.AccessToken() != ""
}

func (s *Store) begin() {
	s.mu.Lock()
	s.inflight++
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) end() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}

// fail records and returns the message for a failed operation
func (s *Store) fail(ctx context.Context, op string, err error, fallback string) string {
	msg := api.DetailOr(err, fallback)

	observability.FromContext(ctx).Warn("post operation failed",
		slog.String("op", op),
		slog.Int("status", api.StatusCode(err)),
		slog.String("error", err.Error()))

	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
	return msg
}

func postPath(prefix, slug string) string {
	return "/" + prefix + "/" + url.PathEscape(slug) + "/"
}

func clonePost(p *domain.Post) *domain.Post {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
