package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

// ListNotifications fetches the tenant's notification feed.
func (c *Backend) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	var items []domain.Notification
	if err := c.do(ctx, "ListNotifications", http.MethodGet, "/notifications", nil, &items); err != nil {
		return nil, c.wrapError("notifications", "", err)
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return items, nil
}

// MarkNotificationRead marks one notification read.
func (c *Backend) MarkNotificationRead(ctx context.Context, id string) error {
	return c.notificationCommand(ctx, "MarkNotificationRead", id, "read")
}

// MarkAllNotificationsRead marks the whole feed read.
func (c *Backend) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.do(ctx, "MarkAllNotificationsRead", http.MethodPost, "/notifications/read-all", nil, nil); err != nil {
		return c.wrapError("notifications", "", err)
	}
	return nil
}

// ToggleNotificationImportant flips the important flag.
func (c *Backend) ToggleNotificationImportant(ctx context.Context, id string) error {
	return c.notificationCommand(ctx, "ToggleNotificationImportant", id, "important")
}

// ArchiveNotification archives one notification.
func (c *Backend) ArchiveNotification(ctx context.Context, id string) error {
	return c.notificationCommand(ctx, "ArchiveNotification", id, "archive")
}

// DeleteNotification removes one notification.
func (c *Backend) DeleteNotification(ctx context.Context, id string) error {
	return c.notificationCommand(ctx, "DeleteNotification", id, "delete")
}

func (c *Backend) notificationCommand(ctx context.Context, op, id, action string) error {
	path := "/notifications/" + url.PathEscape(id) + "/" + action
	if err := c.do(ctx, op, http.MethodPost, path, nil, nil); err != nil {
		return c.wrapError("notification", id, err)
	}
	return nil
}
