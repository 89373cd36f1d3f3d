// Package pagination tracks the current page of a dashboard view.
package pagination

import (
	"sync"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Controller holds page, page size and the last known total count.
// It is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	page     int
	pageSize int
	total    int
}

// New starts on page 1. A non-positive pageSize uses domain.DefaultPageSize.
func New(pageSize int) *Controller {
	if pageSize < 1 {
		pageSize = domain.DefaultPageSize
	}
	return &Controller{page: 1, pageSize: pageSize}
}

func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

func (c *Controller) PageSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageSize
}

func (c *Controller) TotalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// TotalPages is ceil(total / pageSize). Zero when there is nothing to show.
func (c *Controller) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPagesLocked()
}

func (c *Controller) totalPagesLocked() int {
	return (c.total + c.pageSize - 1) / c.pageSize
}

// SetTotalCount records the latest total. A page past the new last page
// moves back to the last page, or to page 1 when nothing is left.
func (c *Controller) SetTotalCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n < 0 {
		n = 0
	}
	c.total = n
	last := c.totalPagesLocked()
	if last < 1 {
		last = 1
	}
	if c.page > last {
		c.page = last
	}
}

// GoToPage moves to n when 1 <= n <= TotalPages and reports whether it moved.
func (c *Controller) GoToPage(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n < 1 || n > c.totalPagesLocked() {
		return false
	}
	c.page = n
	return true
}

func (c *Controller) Next() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.page >= c.totalPagesLocked() {
		return false
	}
	c.page++
	return true
}

func (c *Controller) Prev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.page <= 1 {
		return false
	}
	c.page--
	return true
}

func (c *Controller) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page < c.totalPagesLocked()
}

func (c *Controller) HasPrev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page > 1
}

// Reset goes back to page 1, e.g. when the search term changed.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = 1
}

// ChangeLimit sets a new page size and goes back to page 1.
func (c *Controller) ChangeLimit(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if size < 1 {
		size = domain.DefaultPageSize
	}
	if size > domain.MaxPageSize {
		size = domain.MaxPageSize
	}
	c.pageSize = size
	c.page = 1
}
