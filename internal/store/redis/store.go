package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// maxTxRetries bounds optimistic transaction retries on concurrent writes to the same key
const maxTxRetries = 3

// Store is a Record Store backed by Redis. Records are JSON strings, each owner
// has a sorted set index and a Pub/Sub channel for change events.
type Store struct {
	client *redis.Client
	now    func() time.Time
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		now:    time.Now,
	}
}

var _ store.RecordStore = (*Store)(nil)

// row is the persisted form. Unlike domain.Bookmark it keeps the owner.
type row struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

func toRow(b domain.Bookmark) row {
	return row{ID: b.ID, OwnerID: b.OwnerID, Title: b.Title, URL: b.URL, CreatedAt: b.CreatedAt}
}

func (r row) bookmark() domain.Bookmark {
	return domain.Bookmark{ID: r.ID, OwnerID: r.OwnerID, Title: r.Title, URL: r.URL, CreatedAt: r.CreatedAt}
}

func encodeEvent(ev domain.ChangeEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change event: %w", err)
	}
	return data, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
