// Package mutation applies create, update and delete requests to the Record Store
// and invalidates the owner's cached reads after every successful write.
package mutation

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/notify"
	"github.com/MrSnakeDoc/marks/internal/store"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpImport = "import"
)

var messages = map[string]struct{ ok, fail string }{
	OpCreate: {"Bookmark created successfully!", "Failed to create bookmark"},
	OpUpdate: {"Bookmark updated successfully!", "Failed to update bookmark"},
	OpDelete: {"Bookmark deleted successfully!", "Failed to delete bookmark"},
	OpImport: {"Bookmarks imported successfully!", "Failed to import bookmarks"},
}

// Invalidator is the part of the query cache a coordinator needs.
type Invalidator interface {
	Invalidate(ownerID string)
}

// Notifier receives the user-facing outcome of every mutation.
type Notifier interface {
	Notify(ctx context.Context, ownerID string, n notify.Notification)
}

type Options struct {
	// StrictOwnership turns an update or delete that matched no row into a NotFoundError.
	// When false such calls succeed silently.
	StrictOwnership bool
}

type Coordinator struct {
	writer   store.Writer
	cache    Invalidator
	notifier Notifier
	log      logger.Logger
	strict   bool
}

func New(writer store.Writer, cache Invalidator, notifier Notifier, log logger.Logger, opts Options) *Coordinator {
	return &Coordinator{
		writer:   writer,
		cache:    cache,
		notifier: notifier,
		log:      log,
		strict:   opts.StrictOwnership,
	}
}

// Create validates in, inserts it for ownerID and invalidates the owner's reads.
func (c *Coordinator) Create(ctx context.Context, ownerID string, in domain.Input) (domain.Bookmark, error) {
	if ownerID == "" {
		return domain.Bookmark{}, domain.ErrNoOwner
	}
	in, err := in.Validate()
	if err != nil {
		return domain.Bookmark{}, err
	}

	b, err := c.writer.Insert(ctx, ownerID, in)
	if err != nil {
		return domain.Bookmark{}, c.fail(ctx, ownerID, OpCreate, "", err)
	}

	c.succeed(ctx, ownerID, OpCreate, b.ID)
	return b, nil
}

// Update rewrites the bookmark id of ownerID.
func (c *Coordinator) Update(ctx context.Context, ownerID, id string, in domain.Input) error {
	if ownerID == "" {
		return domain.ErrNoOwner
	}
	in, err := in.Validate()
	if err != nil {
		return err
	}

	n, err := c.writer.Update(ctx, id, ownerID, in)
	if err != nil {
		return c.fail(ctx, ownerID, OpUpdate, id, err)
	}
	if n == 0 && c.strict {
		return c.reject(ctx, ownerID, OpUpdate, id)
	}

	c.succeed(ctx, ownerID, OpUpdate, id)
	return nil
}

// Delete removes the bookmark id of ownerID.
func (c *Coordinator) Delete(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return domain.ErrNoOwner
	}

	n, err := c.writer.Delete(ctx, id, ownerID)
	if err != nil {
		return c.fail(ctx, ownerID, OpDelete, id, err)
	}
	if n == 0 && c.strict {
		return c.reject(ctx, ownerID, OpDelete, id)
	}

	c.succeed(ctx, ownerID, OpDelete, id)
	return nil
}

// CreateMany validates every input before writing any of them. On a store
// failure the rows inserted so far are kept and returned with the error.
func (c *Coordinator) CreateMany(ctx context.Context, ownerID string, inputs []domain.Input) ([]domain.Bookmark, error) {
	if ownerID == "" {
		return nil, domain.ErrNoOwner
	}

	valid := make([]domain.Input, 0, len(inputs))
	for i, in := range inputs {
		v, err := in.Validate()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		valid = append(valid, v)
	}

	created := make([]domain.Bookmark, 0, len(valid))
	for _, in := range valid {
		b, err := c.writer.Insert(ctx, ownerID, in)
		if err != nil {
			if len(created) > 0 {
				c.cache.Invalidate(ownerID)
			}
			return created, c.fail(ctx, ownerID, OpImport, "", err)
		}
		created = append(created, b)
	}

	c.succeed(ctx, ownerID, OpImport, "")
	return created, nil
}

func (c *Coordinator) succeed(ctx context.Context, ownerID, op, id string) {
	c.cache.Invalidate(ownerID)
	c.notifier.Notify(ctx, ownerID, notify.Notification{
		Level:      notify.LevelSuccess,
		Op:         op,
		Message:    messages[op].ok,
		BookmarkID: id,
	})
}

func (c *Coordinator) fail(ctx context.Context, ownerID, op, id string, err error) error {
	c.log.Error("store write failed",
		logger.String("op", op),
		logger.String("owner", ownerID),
		logger.String("bookmark_id", id),
		logger.Error(err))

	c.notifier.Notify(ctx, ownerID, notify.Notification{
		Level:      notify.LevelError,
		Op:         op,
		Message:    messages[op].fail,
		BookmarkID: id,
	})
	return &domain.StoreError{Op: op, Err: err}
}

func (c *Coordinator) reject(ctx context.Context, ownerID, op, id string) error {
	c.notifier.Notify(ctx, ownerID, notify.Notification{
		Level:      notify.LevelError,
		Op:         op,
		Message:    messages[op].fail,
		BookmarkID: id,
	})
	return &domain.NotFoundError{ID: id}
}

// FailureMessage is the user-facing text shown when op fails.
func FailureMessage(op string) string {
	if m, ok := messages[op]; ok {
		return m.fail
	}
	return "Failed to save bookmark"
}
