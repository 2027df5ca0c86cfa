package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"blog-client/internal/domain"
	"blog-client/internal/observability"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	maxTitleLength  = 200
)

// BlogService implements post and category operations for the dev API
type BlogService struct {
	posts      domain.PostRepository
	categories domain.CategoryRepository
}

func NewBlogService(posts domain.PostRepository, categories domain.CategoryRepository) *BlogService {
	return &BlogService{posts: posts, categories: categories}
}

// ListPosts returns one newest-first page. Pages are 1-based.
func (s *BlogService) ListPosts(ctx context.Context, page, pageSize int) ([]domain.Post, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return s.posts.List(ctx, (page-1)*pageSize, pageSize)
}

// GetPost returns a post and counts the view
func (s *BlogService) GetPost(ctx context.Context, slug string) (*domain.Post, error) {
	return s.posts.IncrementViews(ctx, slug)
}

func (s *BlogService) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.categories.List(ctx)
}

// NewPost is the input for CreatePost
type NewPost struct {
	Title       string
	Description string
	CategoryID  int
	Image       *string
}

func (s *BlogService) CreatePost(ctx context.Context, author *domain.Account, in NewPost) (*domain.Post, error) {
	errs := &FieldErrors{}
	title := strings.TrimSpace(in.Title)
	validateTitle(errs, title)
	category, err := s.category(ctx, errs, in.CategoryID)
	if err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	post := &domain.Post{
		Title:       title,
		Description: in.Description,
		Image:       in.Image,
		Category:    *category,
		User:        domain.Author{ID: author.ID, Username: author.Username},
	}

	// A concurrent create can take the slug between the lookup and the
	// insert, in which case the next free suffix is tried.
	base := Slugify(title)
	for n := 1; ; {
		slug, next, err := s.freeSlug(ctx, base, n)
		if err != nil {
			return nil, err
		}
		post.Slug = slug
		err = s.posts.Create(ctx, post)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrSlugExists) {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		n = next + 1
	}

	observability.FromContext(ctx).Info("post created",
		slog.String("slug", post.Slug),
		slog.String("author", author.Username))
	return post, nil
}

// PostUpdate carries the fields to change. Nil fields are kept; the slug
// never changes.
type PostUpdate struct {
	Title       *string
	Description *string
	CategoryID  *int
	Image       *string
}

func (s *BlogService) UpdatePost(ctx context.Context, username, slug string, u PostUpdate) (*domain.Post, error) {
	post, err := s.owned(ctx, username, slug)
	if err != nil {
		return nil, err
	}

	errs := &FieldErrors{}
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		validateTitle(errs, title)
		post.Title = title
	}
	if u.CategoryID != nil {
		category, err := s.category(ctx, errs, *u.CategoryID)
		if err != nil {
			return nil, err
		}
		if category != nil {
			post.Category = *category
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	if u.Description != nil {
		post.Description = *u.Description
	}
	if u.Image != nil {
		post.Image = u.Image
	}

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return post, nil
}

func (s *BlogService) DeletePost(ctx context.Context, username, slug string) error {
	if _, err := s.owned(ctx, username, slug); err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, slug); err != nil {
		return err
	}
	observability.FromContext(ctx).Info("post deleted", slog.String("slug", slug))
	return nil
}

func (s *BlogService) owned(ctx context.Context, username, slug string) (*domain.Post, error) {
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if post.User.Username != username {
		return nil, domain.ErrForbidden
	}
	return post, nil
}

// category resolves id, recording a field error when it is missing or
// unknown. Only repository failures are returned as errors.
func (s *BlogService) category(ctx context.Context, errs *FieldErrors, id int) (*domain.Category, error) {
	if id == 0 {
		errs.Add("category", "This field is required.")
		return nil, nil
	}
	c, err := s.categories.GetByID(ctx, id)
	if errors.Is(err, domain.ErrCategoryNotFound) {
		errs.Add("category", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func validateTitle(errs *FieldErrors, title string) {
	switch {
	case title == "":
		errs.Add("title", "This field may not be blank.")
	case len(title) > maxTitleLength:
		errs.Add("title", fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLength))
	}
}

// freeSlug returns the first unused slug starting at suffix n, where n == 1
// is the bare base, along with the suffix it settled on.
func (s *BlogService) freeSlug(ctx context.Context, base string, n int) (string, int, error) {
	for ; ; n++ {
		slug := slugWithSuffix(base, n)
		_, err := s.posts.GetBySlug(ctx, slug)
		if errors.Is(err, domain.ErrPostNotFound) {
			return slug, n, nil
		}
		if err != nil {
			return "", 0, err
		}
	}
}

func slugWithSuffix(base string, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}
