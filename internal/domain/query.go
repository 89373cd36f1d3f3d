package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

const (
	// DefaultPageSize matches the dashboard grid (3x3).
	DefaultPageSize = 9
	// MaxPageSize caps a single window.
	MaxPageSize = 100
)

// Query is the read parameter tuple. It is also the query cache key once normalized.
type Query struct {
	OwnerID  string
	Search   string
	Page     int
	PageSize int
}

// Normalize trims the search term and clamps page and page size.
func (q Query) Normalize() Query {
	q.Search = strings.TrimSpace(q.Search)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Offset is the index of the first row of the page window.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PageSize
}

func (q Query) String() string {
	return fmt.Sprintf("%s|%q|%d|%d", q.OwnerID, q.Search, q.Page, q.PageSize)
}

// MatchesSearch reports whether b matches the case-insensitive substring
// predicate on title OR url. An empty (trimmed) term matches everything.
func MatchesSearch(b Bookmark, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	// A Caser is stateful, so each call gets its own.
	fold := cases.Fold()
	needle := fold.String(term)
	return strings.Contains(fold.String(b.Title), needle) ||
		strings.Contains(fold.String(b.URL), needle)
}
