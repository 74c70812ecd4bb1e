package domain

import (
	"strings"
	"time"
)

// ============================================================
// Notifications
// ============================================================

// Notification is one entry of the tenant's notification feed.
type Notification struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // info, success, warning, error, message
	Category    string    `json:"category,omitempty"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Read        bool      `json:"read"`
	Important   bool      `json:"important"`
	Archived    bool      `json:"archived"`
	ActionLabel string    `json:"action_label,omitempty"`
	ActionURL   string    `json:"action_url,omitempty"`
}

// NotificationFilter selects a view of the feed.
type NotificationFilter string

const (
	FilterAll       NotificationFilter = "all"
	FilterUnread    NotificationFilter = "unread"
	FilterImportant NotificationFilter = "important"
	FilterArchived  NotificationFilter = "archived"
)

// ParseNotificationFilter maps a query value to a filter; empty means all.
func ParseNotificationFilter(s string) (NotificationFilter, bool) {
	switch f := NotificationFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, true
	case FilterAll, FilterUnread, FilterImportant, FilterArchived:
		return f, true
	}
	return "", false
}

// Match reports whether n is shown under f. Archived notifications only
// appear in the archived view.
func (f NotificationFilter) Match(n Notification) bool {
	switch f {
	case FilterUnread:
		return !n.Read && !n.Archived
	case FilterImportant:
		return n.Important && !n.Archived
	case FilterArchived:
		return n.Archived
	default:
		return !n.Archived
	}
}

// UnreadCount counts unread, non-archived notifications.
func UnreadCount(items []Notification) int {
	n := 0
	for _, item := range items {
		if !item.Read && !item.Archived {
			n++
		}
	}
	return n
}

// NotificationFeed is returned by GET /v1/notifications.
type NotificationFeed struct {
	Filter      NotificationFilter `json:"filter"`
	UnreadCount int                `json:"unread_count"`
	Items       []Notification     `json:"items"`
}
