// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

// DealFetcher loads deals from the backend.
type DealFetcher interface {
	GetPipeline(ctx context.Context) (domain.PipelineSnapshot, error)
	GetDeal(ctx context.Context, dealID string) (*domain.Deal, error)
}

// DealTransitioner asks the backend to move a deal to another stage.
type DealTransitioner interface {
	TransitionDeal(ctx context.Context, dealID string, req *domain.TransitionRequest) (*domain.Deal, error)
}

// DealBackend is the full deals API.
type DealBackend interface {
	DealFetcher
	DealTransitioner
}

// InvoiceFetcher loads invoices with their outstanding balances.
type InvoiceFetcher interface {
	ListInvoices(ctx context.Context, perPage int) ([]domain.Invoice, error)
}

// NotificationBackend is the notifications API.
type NotificationBackend interface {
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	ToggleNotificationImportant(ctx context.Context, id string) error
	ArchiveNotification(ctx context.Context, id string) error
	DeleteNotification(ctx context.Context, id string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	DeletePrefix(prefix string)
}
