package service

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/observability"
	"github.com/boddenberg/dealdesk-bfa/internal/optimistic"
	"github.com/boddenberg/dealdesk-bfa/internal/port"
)

type feed = []domain.Notification

func cloneFeed(f feed) feed {
	return slices.Clone(f)
}

// NotificationService keeps each tenant's notification feed and applies
// commands optimistically, rolling them back when the backend fails.
type NotificationService struct {
	backend       port.NotificationBackend
	defaultTenant string
	metrics       *observability.Metrics
	logger        *zap.Logger
	feeds         *tenantState[*optimistic.Store[feed]]
}

// NewNotificationService creates the notification service.
func NewNotificationService(backend port.NotificationBackend, defaultTenant string, metrics *observability.Metrics, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		backend:       backend,
		defaultTenant: defaultTenant,
		metrics:       metrics,
		logger:        logger,
		feeds:         newTenantState[*optimistic.Store[feed]](tenantStateTTL, metrics.ForgetTenant),
	}
}

// Close releases the per-tenant feeds.
func (s *NotificationService) Close() {
	s.feeds.stop()
}

// ActiveTenants returns how many tenants currently hold a feed.
func (s *NotificationService) ActiveTenants() int {
	return s.feeds.count()
}

// Feed reloads the feed and returns the entries matching filter.
func (s *NotificationService) Feed(ctx context.Context, filter domain.NotificationFilter) (*domain.NotificationFeed, error) {
	ctx, span := tracer.Start(ctx, "NotificationService.Feed")
	defer span.End()
	span.SetAttributes(attribute.String("notification.filter", string(filter)))

	st, err := s.refresh(ctx, tenantOf(ctx, s.defaultTenant))
	if err != nil {
		return nil, err
	}
	return view(st.Get(), filter), nil
}

func view(items feed, filter domain.NotificationFilter) *domain.NotificationFeed {
	out := &domain.NotificationFeed{
		Filter:      filter,
		UnreadCount: domain.UnreadCount(items),
		Items:       []domain.Notification{},
	}
	for _, n := range items {
		if filter.Match(n) {
			out.Items = append(out.Items, n)
		}
	}
	return out
}

// refresh reloads the tenant's feed. A tenant is only registered once the
// backend has returned a feed for it.
func (s *NotificationService) refresh(ctx context.Context, tenant string) (*optimistic.Store[feed], error) {
	st, ok := s.feeds.get(tenant)
	if !ok {
		st = optimistic.NewStore(feed{}, cloneFeed)
	}
	err := st.Refresh(ctx, func(ctx context.Context) (feed, error) {
		return s.backend.ListNotifications(ctx)
	})
	if err != nil {
		s.logger.Error("failed to fetch notifications", zap.String("tenant", tenant), zap.Error(err))
		return nil, fmt.Errorf("notifications fetch: %w", err)
	}
	s.feeds.keep(tenant, st)
	s.metrics.SetUnread(tenant, domain.UnreadCount(st.Get()))
	return st, nil
}

// Poll refreshes the configured tenant's feed. It is run by the scheduler
// with the service's own credentials, so other tenants are only refreshed
// by their own requests.
func (s *NotificationService) Poll(ctx context.Context) {
	tenant := tenantOf(context.Background(), s.defaultTenant)
	if _, err := s.refresh(ctx, tenant); err != nil {
		s.logger.Warn("notification poll failed", zap.String("tenant", tenant), zap.Error(err))
	}
}

// MarkRead marks one notification read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	var was bool
	return s.execute(ctx, "mark_read", id, optimistic.Command[feed]{
		Apply: func(f feed) feed {
			return update(f, id, func(n *domain.Notification) { was, n.Read = n.Read, true })
		},
		Send: func(ctx context.Context) error { return s.backend.MarkNotificationRead(ctx, id) },
		Rollback: func(f feed) feed {
			return update(f, id, func(n *domain.Notification) { n.Read = was })
		},
	})
}

// ToggleImportant flips the important flag of one notification.
func (s *NotificationService) ToggleImportant(ctx context.Context, id string) error {
	var was bool
	return s.execute(ctx, "toggle_important", id, optimistic.Command[feed]{
		Apply: func(f feed) feed {
			return update(f, id, func(n *domain.Notification) { was, n.Important = n.Important, !n.Important })
		},
		Send: func(ctx context.Context) error { return s.backend.ToggleNotificationImportant(ctx, id) },
		Rollback: func(f feed) feed {
			return update(f, id, func(n *domain.Notification) { n.Important = was })
		},
	})
}

// Archive moves one notification to the archived view.
func (s *NotificationService) Archive(ctx context.Context, id string) error {
	var was bool
	return s.execute(ctx, "archive", id, optimistic.Command[feed]{
		Apply: func(f feed) feed {
			return update(f, id, func(n *domain.Notification) { was, n.Archived = n.Archived, true })
		},
		Send: func(ctx context.Context) error { return s.backend.ArchiveNotification(ctx, id) },
		Rollback: func(f feed) feed {
			return update(f, id, func(n *domain.Notification) { n.Archived = was })
		},
	})
}

// Delete removes one notification.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	var (
		removed domain.Notification
		at      = -1
	)
	return s.execute(ctx, "delete", id, optimistic.Command[feed]{
		Apply: func(f feed) feed {
			at = slices.IndexFunc(f, func(n domain.Notification) bool { return n.ID == id })
			if at < 0 {
				return f
			}
			removed = f[at]
			return slices.Delete(f, at, at+1)
		},
		Send: func(ctx context.Context) error { return s.backend.DeleteNotification(ctx, id) },
		Rollback: func(f feed) feed {
			if at < 0 || slices.ContainsFunc(f, func(n domain.Notification) bool { return n.ID == id }) {
				return f
			}
			return slices.Insert(f, min(at, len(f)), removed)
		},
	})
}

// MarkAllRead marks every notification read.
func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "NotificationService.MarkAllRead")
	defer span.End()

	tenant := tenantOf(ctx, s.defaultTenant)
	st, ok := s.feeds.get(tenant)
	if !ok {
		var err error
		if st, err = s.refresh(ctx, tenant); err != nil {
			return err
		}
	}
	var changed []string
	err := st.Execute(ctx, optimistic.Command[feed]{
		Name: "mark_all_read",
		Apply: func(f feed) feed {
			changed = changed[:0]
			for i := range f {
				if !f[i].Read {
					f[i].Read = true
					changed = append(changed, f[i].ID)
				}
			}
			return f
		},
		Send: s.backend.MarkAllNotificationsRead,
		Rollback: func(f feed) feed {
			for i := range f {
				if slices.Contains(changed, f[i].ID) {
					f[i].Read = false
				}
			}
			return f
		},
	})
	s.finish(tenant, st, "mark_all_read", "", err)
	return err
}

// execute runs an optimistic command against one notification, loading
// the feed first if it does not hold that notification yet.
func (s *NotificationService) execute(ctx context.Context, name, id string, cmd optimistic.Command[feed]) error {
	ctx, span := tracer.Start(ctx, "NotificationService."+name)
	defer span.End()
	span.SetAttributes(attribute.String("notification.id", id))

	tenant := tenantOf(ctx, s.defaultTenant)
	st, ok := s.feeds.get(tenant)
	if !ok || !contains(st.Get(), id) {
		var err error
		if st, err = s.refresh(ctx, tenant); err != nil {
			return err
		}
		if !contains(st.Get(), id) {
			return &domain.ErrNotFound{Resource: "notification", ID: id}
		}
	}

	cmd.Name = name
	err := st.Execute(ctx, cmd)
	s.finish(tenant, st, name, id, err)
	return err
}

func (s *NotificationService) finish(tenant string, st *optimistic.Store[feed], name, id string, err error) {
	s.metrics.IncrNotificationCommand(name, err == nil)
	s.metrics.SetUnread(tenant, domain.UnreadCount(st.Get()))
	if err != nil {
		s.logger.Warn("notification command rolled back",
			zap.String("tenant", tenant),
			zap.String("command", name),
			zap.String("notification_id", id),
			zap.Error(err),
		)
	}
}

func contains(f feed, id string) bool {
	return slices.ContainsFunc(f, func(n domain.Notification) bool { return n.ID == id })
}

func update(f feed, id string, fn func(*domain.Notification)) feed {
	for i := range f {
		if f[i].ID == id {
			fn(&f[i])
		}
	}
	return f
}
