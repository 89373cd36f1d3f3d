package domain

import "time"

// Bookmark is a single saved link owned by exactly one user.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the store-generated identifier (UUID).
	ID string `json:"id"`

	// OwnerID is the authenticated user that owns the record.
	// It is never serialized back to clients.
	OwnerID string `json:"-"`

	// ─────────────────────────────
	// Mutable fields
	// ─────────────────────────────

	// Title is a free-text label. The store accepts an empty title,
	// the create/edit path requires 1-100 characters.
	Title string `json:"title"`

	// URL is an absolute http(s) URL.
	URL string `json:"url"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is assigned by the store and is the only sort key (newest first).
	CreatedAt time.Time `json:"created_at"`
}

// Input carries the user-editable fields of a bookmark.
type Input struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
