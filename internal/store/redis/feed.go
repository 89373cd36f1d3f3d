package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// Subscribe listens on the owner's Pub/Sub channel. It returns once Redis confirmed
// the subscription. A broken connection ends the subscription with its error;
// the caller is expected to subscribe again.
func (s *Store) Subscribe(ctx context.Context, ownerID string, onEvent func(domain.ChangeEvent)) (store.Subscription, error) {
	pubsub := s.client.Subscribe(ctx, FeedChannel(ownerID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", FeedChannel(ownerID), err)
	}

	recvCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := store.NewHandle(func() {
		cancel()
		_ = pubsub.Close()
	})

	go func() {
		for {
			msg, err := pubsub.Receive(recvCtx)
			if err != nil {
				if recvCtx.Err() == nil {
					h.Fail(err)
				}
				return
			}

			m, ok := msg.(*redis.Message)
			if !ok {
				continue
			}
			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				continue
			}
			ev.Row.OwnerID = ev.OwnerID
			onEvent(ev)
		}
	}()

	return h, nil
}
