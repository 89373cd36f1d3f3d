package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// FeedChannel is the LISTEN channel the notify trigger publishes to for an owner.
func FeedChannel(ownerID string) string {
	return "bookmarks:" + ownerID
}

// Subscribe takes a dedicated connection out of the pool and LISTENs on the
// owner's channel. The connection never goes back to the pool.
func (s *Storage) Subscribe(ctx context.Context, ownerID string, onEvent func(domain.ChangeEvent)) (store.Subscription, error) {
	const op = "store.postgres.Subscribe"

	pooled, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: acquire: %w", op, err)
	}
	conn := pooled.Hijack()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{FeedChannel(ownerID)}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("%s: listen: %w", op, err)
	}

	waitCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := store.NewHandle(cancel)

	go func() {
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = conn.Close(closeCtx)
			closeCancel()
		}()

		for {
			n, err := conn.WaitForNotification(waitCtx)
			if err != nil {
				if waitCtx.Err() == nil {
					h.Fail(err)
				}
				return
			}

			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
				continue
			}
			ev.Row.OwnerID = ev.OwnerID
			onEvent(ev)
		}
	}()

	return h, nil
}
