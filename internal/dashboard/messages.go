package dashboard

import (
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/notify"
)

// Command types sent by the tab.
const (
	CommandSearch  = "search"
	CommandPage    = "page"
	CommandNext    = "next"
	CommandPrev    = "prev"
	CommandLimit   = "limit"
	CommandRefresh = "refresh"
)

// Message types sent to the tab.
const (
	MessageHello    = "hello"
	MessageSnapshot = "snapshot"
	MessageChange   = "change"
	MessageToast    = "toast"
)

type Command struct {
	Type   string `json:"type"`
	Search string `json:"search,omitempty"`
	Page   int    `json:"page,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Snapshot is the view state of a tab, as returned by GET /api/bookmarks.
type Snapshot struct {
	Rows       []domain.Bookmark `json:"rows"`
	TotalCount int               `json:"total_count"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
	HasNext    bool              `json:"has_next"`
	HasPrev    bool              `json:"has_prev"`
	Search     string            `json:"search"`
	Error      string            `json:"error,omitempty"`
	Retryable  bool              `json:"retryable,omitempty"`
}

type Change struct {
	Type domain.EventType `json:"type"`
	ID   string           `json:"id,omitempty"`
}

type Message struct {
	Type string `json:"type"`
	// Tab is sent once, in hello. Mutations carrying it in notify.TabHeader
	// are toasted in this tab only.
	Tab      string               `json:"tab,omitempty"`
	Snapshot *Snapshot            `json:"snapshot,omitempty"`
	Change   *Change              `json:"change,omitempty"`
	Toast    *notify.Notification `json:"toast,omitempty"`
}
