package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"blog-client/internal/domain"
	"blog-client/internal/observability"
)

// PostRepository implements domain.PostRepository in memory
type PostRepository struct {
	mu     sync.RWMutex
	nextID int
	posts  map[string]*domain.Post // keyed by slug
}

func NewPostRepository() *PostRepository {
	return &PostRepository{posts: make(map[string]*domain.Post)}
}

// Create assigns the id and creation time. A taken slug is rejected with
// domain.ErrSlugExists.
func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.posts[post.Slug]; taken {
		return domain.ErrSlugExists
	}

	r.nextID++
	post.ID = r.nextID
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	stored := *post
	r.posts[post.Slug] = &stored
	observability.DevAPIPostsStored.Set(float64(len(r.posts)))
	return nil
}

func (r *PostRepository) GetBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.posts[slug]; ok {
		c := *p
		return &c, nil
	}
	return nil, domain.ErrPostNotFound
}

func (r *PostRepository) List(ctx context.Context, offset, limit int) ([]domain.Post, int, error) {
	r.mu.RLock()
	all := make([]domain.Post, 0, len(r.posts))
	for _, p := range r.posts {
		all = append(all, *p)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []domain.Post{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *PostRepository) Update(ctx context.Context, post *domain.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[post.Slug]; !ok {
		return domain.ErrPostNotFound
	}
	stored := *post
	r.posts[post.Slug] = &stored
	return nil
}

func (r *PostRepository) Delete(ctx context.Context, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[slug]; !ok {
		return domain.ErrPostNotFound
	}
	delete(r.posts, slug)
	observability.DevAPIPostsStored.Set(float64(len(r.posts)))
	return nil
}

// IncrementViews bumps the view counter and returns the updated post
func (r *PostRepository) IncrementViews(ctx context.Context, slug string) (*domain.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[slug]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	p.Views++
	c := *p
	return &c, nil
}
