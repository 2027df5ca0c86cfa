package memory

import (
	"context"
	"sort"
	"sync"

	"blog-client/internal/domain"
)

// DefaultCategories seed a fresh dev API
var DefaultCategories = []domain.Category{
	{ID: 1, Title: "General"},
	{ID: 2, Title: "Programming"},
	{ID: 3, Title: "Travel"},
	{ID: 4, Title: "Food"},
}

// CategoryRepository is a fixed set of categories
type CategoryRepository struct {
	mu         sync.RWMutex
	categories map[int]domain.Category
}

func NewCategoryRepository(categories []domain.Category) *CategoryRepository {
	r := &CategoryRepository{categories: make(map[int]domain.Category, len(categories))}
	for _, c := range categories {
		r.categories[c.ID] = c
	}
	return r
}

func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int) (*domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.categories[id]; ok {
		return &c, nil
	}
	return nil, domain.ErrCategoryNotFound
}
