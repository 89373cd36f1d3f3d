// Package postgres is the Record Store backed by PostgreSQL. Change events come
// from a trigger that calls pg_notify on a per-owner channel.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrSnakeDoc/marks/internal/store"
)

//go:embed migrations/001_init_bookmarks.sql
var schemaSQL string

type Storage struct {
	db *pgxpool.Pool
}

// New opens a connection pool and checks it with a ping.
func New(ctx context.Context, dbURL string) (*Storage, error) {
	const op = "store.postgres.New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// Migrate creates the bookmarks table and its notify trigger. It is idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	const op = "store.postgres.Migrate"

	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool.
func (s *Storage) Close() error {
	s.db.Close()
	return nil
}

var _ store.RecordStore = (*Storage)(nil)
