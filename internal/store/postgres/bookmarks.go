package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Query returns a window of the owner's bookmarks.
// Order is fixed: created_at DESC, seq DESC.
func (s *Storage) Query(ctx context.Context, ownerID, search string, offset, limit int) ([]domain.Bookmark, error) {
	const op = "store.postgres.Query"

	if limit <= 0 {
		return []domain.Bookmark{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id::text, user_id, title, url, created_at
		FROM bookmarks
		WHERE user_id = $1
		  AND ($2 = '' OR title ILIKE $2 ESCAPE '\' OR url ILIKE $2 ESCAPE '\')
		ORDER BY created_at DESC, seq DESC
		OFFSET $3 LIMIT $4
	`

	rows, err := s.db.Query(ctx, query, ownerID, likePattern(search), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]domain.Bookmark, 0, limit)
	for rows.Next() {
		var b domain.Bookmark
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Title, &b.URL, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}

	return out, nil
}

// Count returns the number of the owner's bookmarks matching search.
func (s *Storage) Count(ctx context.Context, ownerID, search string) (int, error) {
	const op = "store.postgres.Count"

	query := `
		SELECT count(*)
		FROM bookmarks
		WHERE user_id = $1
		  AND ($2 = '' OR title ILIKE $2 ESCAPE '\' OR url ILIKE $2 ESCAPE '\')
	`

	var n int
	if err := s.db.QueryRow(ctx, query, ownerID, likePattern(search)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// Insert stores a new bookmark. id and created_at are assigned by the database.
func (s *Storage) Insert(ctx context.Context, ownerID string, in domain.Input) (domain.Bookmark, error) {
	const op = "store.postgres.Insert"

	query := `
		INSERT INTO bookmarks (user_id, title, url)
		VALUES ($1, $2, $3)
		RETURNING id::text, created_at
	`

	b := domain.Bookmark{OwnerID: ownerID, Title: in.Title, URL: in.URL}
	if err := s.db.QueryRow(ctx, query, ownerID, in.Title, in.URL).Scan(&b.ID, &b.CreatedAt); err != nil {
		return domain.Bookmark{}, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// Update rewrites title and url of the row matching id and owner.
// A malformed id can match nothing and reports zero rows.
func (s *Storage) Update(ctx context.Context, id, ownerID string, in domain.Input) (int64, error) {
	const op = "store.postgres.Update"

	uid, err := uuid.Parse(id)
	if err != nil {
		return 0, nil
	}

	query := `
		UPDATE bookmarks
		SET title = $1, url = $2
		WHERE id = $3 AND user_id = $4
	`

	tag, err := s.db.Exec(ctx, query, in.Title, in.URL, uid, ownerID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes the row matching id and owner.
func (s *Storage) Delete(ctx context.Context, id, ownerID string) (int64, error) {
	const op = "store.postgres.Delete"

	uid, err := uuid.Parse(id)
	if err != nil {
		return 0, nil
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM bookmarks WHERE id = $1 AND user_id = $2`, uid, ownerID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns a search term into a substring ILIKE pattern.
// An empty term stays empty and disables the filter.
func likePattern(search string) string {
	search = strings.TrimSpace(search)
	if search == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(search) + "%"
}
