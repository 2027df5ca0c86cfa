package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"blog-client/internal/domain"
)

const (
	postSelect = `SELECT p.id, p.slug, p.title, p.description, p.image, c.id, c.title, a.id, a.username, p.created_at, p.views
FROM posts p
JOIN categories c ON c.id = p.category_id
JOIN accounts a ON a.id = p.author_id`

	createPostQuery = `INSERT INTO posts (slug, title, description, image, category_id, author_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`

	postBySlugQuery = postSelect + ` WHERE p.slug = $1`

	listPostsQuery = postSelect + ` ORDER BY p.created_at DESC, p.id DESC LIMIT $1 OFFSET $2`

	countPostsQuery = `SELECT count(*) FROM posts`

	updatePostQuery = `UPDATE posts SET title = $2, description = $3, image = $4, category_id = $5 WHERE slug = $1`

	deletePostQuery = `DELETE FROM posts WHERE slug = $1`

	incrementViewsQuery = `UPDATE posts SET views = views + 1 WHERE slug = $1`
)

var listTxOptions = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// PostRepository implements domain.PostRepository for PostgreSQL
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, p *domain.Post) error {
	err := r.db.QueryRowContext(ctx, createPostQuery,
		p.Slug, p.Title, p.Description, p.Image, p.Category.ID, p.User.ID,
	).Scan(&p.ID, &p.CreatedAt)
	return translate(err)
}

func (r *PostRepository) GetBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, postBySlugQuery, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPostNotFound
	}
	return p, err
}

// List reads the count and the page from one snapshot so next/previous
// links agree with the returned rows.
func (r *PostRepository) List(ctx context.Context, offset, limit int) ([]domain.Post, int, error) {
	var (
		total int
		posts = []domain.Post{}
	)
	err := inTx(ctx, r.db, listTxOptions, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, countPostsQuery).Scan(&total); err != nil {
			return fmt.Errorf("failed to count posts: %w", err)
		}

		rows, err := tx.QueryContext(ctx, listPostsQuery, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanPost(rows)
			if err != nil {
				return err
			}
			posts = append(posts, *p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *PostRepository) Update(ctx context.Context, p *domain.Post) error {
	res, err := r.db.ExecContext(ctx, updatePostQuery, p.Slug, p.Title, p.Description, p.Image, p.Category.ID)
	if err != nil {
		return translate(err)
	}
	return requireRow(res, domain.ErrPostNotFound)
}

func (r *PostRepository) Delete(ctx context.Context, slug string) error {
	res, err := r.db.ExecContext(ctx, deletePostQuery, slug)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrPostNotFound)
}

// IncrementViews bumps the counter and reads the post back in the same
// transaction, so the returned count includes this view.
func (r *PostRepository) IncrementViews(ctx context.Context, slug string) (*domain.Post, error) {
	var post *domain.Post
	err := inTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, incrementViewsQuery, slug)
		if err != nil {
			return err
		}
		if err := requireRow(res, domain.ErrPostNotFound); err != nil {
			return err
		}
		post, err = scanPost(tx.QueryRowContext(ctx, postBySlugQuery, slug))
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(s scanner) (*domain.Post, error) {
	p := &domain.Post{}
	var image sql.NullString
	err := s.Scan(
		&p.ID,
		&p.Slug,
		&p.Title,
		&p.Description,
		&image,
		&p.Category.ID,
		&p.Category.Title,
		&p.User.ID,
		&p.User.Username,
		&p.CreatedAt,
		&p.Views,
	)
	if err != nil {
		return nil, err
	}
	if image.Valid {
		p.Image = &image.String
	}
	return p, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
