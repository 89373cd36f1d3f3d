package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Query returns a window of the owner's bookmarks, newest first.
// Without a search term the window is read straight from the owner index.
func (s *Store) Query(ctx context.Context, ownerID, search string, offset, limit int) ([]domain.Bookmark, error) {
	if limit <= 0 {
		return []domain.Bookmark{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	if search == "" {
		ids, err := s.client.ZRevRange(ctx, OwnerIndexKey(ownerID), int64(offset), int64(offset+limit-1)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read owner index: %w", err)
		}
		return s.load(ctx, ownerID, ids)
	}

	matched, err := s.matching(ctx, ownerID, search)
	if err != nil {
		return nil, err
	}
	if offset >= len(matched) {
		return []domain.Bookmark{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// Count returns the number of the owner's bookmarks matching search.
func (s *Store) Count(ctx context.Context, ownerID, search string) (int, error) {
	if search == "" {
		n, err := s.client.ZCard(ctx, OwnerIndexKey(ownerID)).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to count bookmarks: %w", err)
		}
		return int(n), nil
	}

	matched, err := s.matching(ctx, ownerID, search)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// matching loads every bookmark of the owner in index order and filters by search.
func (s *Store) matching(ctx context.Context, ownerID, search string) ([]domain.Bookmark, error) {
	ids, err := s.client.ZRevRange(ctx, OwnerIndexKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read owner index: %w", err)
	}
	all, err := s.load(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}

	matched := make([]domain.Bookmark, 0, len(all))
	for _, b := range all {
		if domain.MatchesSearch(b, search) {
			matched = append(matched, b)
		}
	}
	return matched, nil
}

// load fetches records by id, keeping order. Missing or foreign records are skipped.
func (s *Store) load(ctx context.Context, ownerID string, ids []string) ([]domain.Bookmark, error) {
	if len(ids) == 0 {
		return []domain.Bookmark{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BookmarkKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	bookmarks := make([]domain.Bookmark, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Skip bookmarks that were deleted between the index read and MGET
			continue
		}
		var r row
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bookmark: %w", err)
		}
		if r.OwnerID != ownerID {
			continue
		}
		bookmarks = append(bookmarks, r.bookmark())
	}
	return bookmarks, nil
}

// Insert stores a new bookmark, indexes it and publishes the insert event in one MULTI/EXEC.
func (s *Store) Insert(ctx context.Context, ownerID string, in domain.Input) (domain.Bookmark, error) {
	seq, createdAt, err := s.allocate(ctx)
	if err != nil {
		return domain.Bookmark{}, err
	}

	b := domain.Bookmark{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     in.Title,
		URL:       in.URL,
		CreatedAt: createdAt,
	}

	data, err := json.Marshal(toRow(b))
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to marshal bookmark: %w", err)
	}
	event, err := encodeEvent(domain.ChangeEvent{Type: domain.EventInsert, OwnerID: ownerID, Row: b, At: b.CreatedAt})
	if err != nil {
		return domain.Bookmark{}, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, BookmarkKey(b.ID), data, 0)
		pipe.ZAdd(ctx, OwnerIndexKey(ownerID), redis.Z{Score: float64(seq), Member: b.ID})
		pipe.Publish(ctx, FeedChannel(ownerID), event)
		return nil
	})
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("failed to save bookmark: %w", err)
	}
	return b, nil
}

// allocate reads the next sequence and the server clock in one MULTI/EXEC, so
// created_at follows the sequence order whatever the clocks of the app instances.
func (s *Store) allocate(ctx context.Context) (int64, time.Time, error) {
	var (
		incr *redis.IntCmd
		now  *redis.TimeCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, KeySeq)
		now = pipe.Time(ctx)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	return incr.Val(), now.Val().UTC(), nil
}

// Update rewrites title and url when the record exists and belongs to ownerID.
func (s *Store) Update(ctx context.Context, id, ownerID string, in domain.Input) (int64, error) {
	key := BookmarkKey(id)
	var affected int64

	txf := func(tx *redis.Tx) error {
		affected = 0
		current, found, err := getRow(ctx, tx, key)
		if err != nil || !found || current.OwnerID != ownerID {
			return err
		}

		current.Title = in.Title
		current.URL = in.URL
		data, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("failed to marshal bookmark: %w", err)
		}
		event, err := encodeEvent(domain.ChangeEvent{
			Type: domain.EventUpdate, OwnerID: ownerID, Row: current.bookmark(), At: s.now().UTC(),
		})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Publish(ctx, FeedChannel(ownerID), event)
			return nil
		})
		if err == nil {
			affected = 1
		}
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		return 0, fmt.Errorf("failed to update bookmark: %w", err)
	}
	return affected, nil
}

// Delete removes the record and its index entry when it belongs to ownerID.
func (s *Store) Delete(ctx context.Context, id, ownerID string) (int64, error) {
	key := BookmarkKey(id)
	var affected int64

	txf := func(tx *redis.Tx) error {
		affected = 0
		current, found, err := getRow(ctx, tx, key)
		if err != nil || !found || current.OwnerID != ownerID {
			return err
		}

		event, err := encodeEvent(domain.ChangeEvent{
			Type: domain.EventDelete, OwnerID: ownerID, Row: domain.Bookmark{ID: id}, At: s.now().UTC(),
		})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, OwnerIndexKey(ownerID), id)
			pipe.Publish(ctx, FeedChannel(ownerID), event)
			return nil
		})
		if err == nil {
			affected = 1
		}
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		return 0, fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return affected, nil
}

// watch runs txf under WATCH, retrying when another client touched key first.
func (s *Store) watch(ctx context.Context, txf func(*redis.Tx) error, key string) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func getRow(ctx context.Context, tx *redis.Tx, key string) (row, bool, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return row{}, false, nil
		}
		return row{}, false, fmt.Errorf("failed to get bookmark: %w", err)
	}

	var r row
	if err := json.Unmarshal(data, &r); err != nil {
		return row{}, false, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	return r, true, nil
}
