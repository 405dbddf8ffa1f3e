package interfaces

import (
	"time"

	"logdesk/internal/access"
	"logdesk/internal/query"
	"logdesk/internal/types"
)

// DeskService defines the interface the presentation layers drive
type DeskService interface {
	// SelectRole sets the operator role
	SelectRole(role access.Role) error

	// Logout clears the role, the selection and the query state
	Logout()

	// Session describes the current role, selection and capabilities
	Session() SessionInfo

	// Query applies the request to the query state and returns the visible window
	Query(req QueryRequest) (TableView, error)

	// Detail selects a record for the detail view and returns it
	Detail(id string) (types.LogRecord, error)

	// UpdateStatus selects a record and sets its resolution status
	UpdateStatus(id string, resolved bool) (types.LogRecord, error)

	// Subscribe creates a subscription for status changes
	Subscribe() <-chan StatusChange

	// Unsubscribe removes a subscription
	Unsubscribe(subscription <-chan StatusChange)

	// GetStats returns service statistics
	GetStats() ServiceStats
}

// QueryRequest carries optional changes to the query state. Nil fields leave
// the corresponding state untouched; a page outside the valid range is clamped.
type QueryRequest struct {
	Text      *string
	Date      *types.Date
	ClearDate bool
	Page      *int
}

// PageRequest returns a QueryRequest that only moves to page n
func PageRequest(n int) QueryRequest {
	return QueryRequest{Page: &n}
}

// TableView is the log table as the current role may see it
type TableView struct {
	query.Page
	Role        access.Role `json:"role"`
	FilterText  string      `json:"filter_text"`
	DateFilter  string      `json:"date_filter,omitempty"`
	CanFilter   bool        `json:"can_filter"`
	ShowActions bool        `json:"show_actions"`
}

// SessionInfo describes the session for the rendering layer
type SessionInfo struct {
	Role         access.Role                `json:"role"`
	RoleLabel    string                     `json:"role_label"`
	SelectedID   string                     `json:"selected_id,omitempty"`
	Capabilities map[access.Capability]bool `json:"capabilities"`
}

// StatusChange is published whenever a record's resolution status changes
type StatusChange struct {
	ID       string      `json:"id"`
	Resolved bool        `json:"resolved"`
	Role     access.Role `json:"role"`
	At       time.Time   `json:"at"`
}

// ServiceStats represents statistics about the desk service
type ServiceStats struct {
	CollectionSize    int   `json:"collection_size"`
	Queries           int64 `json:"queries"`
	PermissionDenials int64 `json:"permission_denials"`
	StatusUpdates     int64 `json:"status_updates"`
	ActiveSubscribers int   `json:"active_subscribers"`
}
