package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/service"
)

// ============================================================
// Notifications
// ============================================================

func listNotificationsHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/notifications")
		defer span.End()

		filter, ok := domain.ParseNotificationFilter(r.URL.Query().Get("filter"))
		if !ok {
			writeError(w, http.StatusBadRequest, "validation_error", "filter must be one of all, unread, important, archived")
			return
		}

		feed, err := svc.Feed(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, feed)
	}
}

func markAllNotificationsReadHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/notifications/read-all")
		defer span.End()

		if err := svc.MarkAllRead(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func markNotificationReadHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return notificationCommandHandler(svc.MarkRead, "POST /v1/notifications/{notificationId}/read", logger)
}

func toggleNotificationImportantHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return notificationCommandHandler(svc.ToggleImportant, "POST /v1/notifications/{notificationId}/important", logger)
}

func archiveNotificationHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return notificationCommandHandler(svc.Archive, "POST /v1/notifications/{notificationId}/archive", logger)
}

func deleteNotificationHandler(svc *service.NotificationService, logger *zap.Logger) http.HandlerFunc {
	return notificationCommandHandler(svc.Delete, "DELETE /v1/notifications/{notificationId}", logger)
}

func notificationCommandHandler(cmd func(context.Context, string) error, route string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), route)
		defer span.End()

		id := chi.URLParam(r, "notificationId")
		span.SetAttributes(attribute.String("notification.id", id))

		if err := cmd(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
