package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("bookmark not found")
	// ErrNoOwner is returned when an operation is attempted without an authenticated owner.
	ErrNoOwner = errors.New("owner id is required")
)

// ValidationError identifies the offending input field. It never reaches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StoreError wraps a failed Record Store call made by a mutation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NotFoundError reports an update or delete that matched no row for the owner.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("bookmark not found: %s", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// FetchError wraps a failed read issued by the query cache.
type FetchError struct {
	Query Query
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch bookmarks for owner %s (page %d): %v", e.Query.OwnerID, e.Query.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SubscriptionError reports a change feed that failed to establish or dropped.
type SubscriptionError struct {
	OwnerID string
	Err     error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("change feed for owner %s: %v", e.OwnerID, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
