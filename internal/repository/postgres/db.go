// Package postgres stores dev API accounts and posts in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"blog-client/internal/domain"

	_ "github.com/lib/pq"
)

// Open creates a connection pool and verifies it with a ping
func Open(ctx context.Context, dbURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id SERIAL PRIMARY KEY,
	username VARCHAR(150) NOT NULL CONSTRAINT accounts_username_key UNIQUE,
	email VARCHAR(255) NOT NULL CONSTRAINT accounts_email_key UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	first_name VARCHAR(150) NOT NULL DEFAULT '',
	last_name VARCHAR(150) NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT '',
	profile_picture TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY,
	title VARCHAR(100) NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
	id SERIAL PRIMARY KEY,
	slug VARCHAR(255) NOT NULL CONSTRAINT posts_slug_key UNIQUE,
	title VARCHAR(255) NOT NULL,
	description TEXT NOT NULL,
	image TEXT,
	category_id INTEGER NOT NULL CONSTRAINT posts_category_id_fkey REFERENCES categories(id),
	author_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	views INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at DESC, id DESC);
`

const seedCategoryQuery = `INSERT INTO categories (id, title) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`

// Migrate creates the schema and seeds categories in one transaction
func Migrate(ctx context.Context, db *sql.DB, categories []domain.Category) error {
	return inTx(ctx, db, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		for _, c := range categories {
			if _, err := tx.ExecContext(ctx, seedCategoryQuery, c.ID, c.Title); err != nil {
				return fmt.Errorf("failed to seed category %d: %w", c.ID, err)
			}
		}
		return nil
	})
}

// inTx runs fn in a transaction and commits when it returns nil. A failed
// rollback is joined onto fn's error rather than replacing it.
func inTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
