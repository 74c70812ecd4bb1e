package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/config"
	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/observability"
	"github.com/boddenberg/dealdesk-bfa/internal/service"
)

var tracer = otel.Tracer("handler")

// BackendHealth exposes the backend client's circuit breaker.
type BackendHealth interface {
	BreakerState() gobreaker.State
}

// Deps are the services behind the /v1 routes. A nil service makes its
// routes answer 503.
type Deps struct {
	Pipeline      *service.PipelineService
	Collections   *service.CollectionsService
	Notifications *service.NotificationService
	Dashboard     *service.DashboardService
	Session       *service.SessionVerifier
	Backend       BackendHealth
	Presentation  *config.Presentation
	DefaultTenant string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	if deps.Presentation == nil {
		deps.Presentation = config.DefaultPresentation()
	}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Backend))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(deps.Session, deps.DefaultTenant, logger))

		// Pipeline
		r.Group(func(r chi.Router) {
			if deps.Pipeline == nil {
				r.Use(unavailable("pipeline"))
			}
			r.Get("/pipeline", boardHandler(deps.Pipeline, deps.Presentation, logger))
			r.Post("/pipeline/moves", moveHandler(deps.Pipeline, logger))
			r.Get("/deals/{dealId}", getDealHandler(deps.Pipeline, logger))
			r.Post("/deals/{dealId}/transition", transitionHandler(deps.Pipeline, logger))
			r.Post("/deals/{dealId}/won", markWonHandler(deps.Pipeline, logger))
			r.Post("/deals/{dealId}/lost", markLostHandler(deps.Pipeline, logger))
		})
		r.Get("/metrics/pipeline", pipelineMetricsHandler(metrics))

		// Collections
		r.Group(func(r chi.Router) {
			if deps.Collections == nil {
				r.Use(unavailable("collections"))
			}
			r.Get("/collections/aging", agingHandler(deps.Collections, deps.Presentation, logger))
		})

		// Dashboard
		r.Group(func(r chi.Router) {
			if deps.Dashboard == nil {
				r.Use(unavailable("dashboard"))
			}
			r.Get("/dashboard", dashboardHandler(deps.Dashboard, logger))
		})

		// Notifications
		r.Group(func(r chi.Router) {
			if deps.Notifications == nil {
				r.Use(unavailable("notifications"))
			}
			r.Get("/notifications", listNotificationsHandler(deps.Notifications, logger))
			r.Post("/notifications/read-all", markAllNotificationsReadHandler(deps.Notifications, logger))
			r.Post("/notifications/{notificationId}/read", markNotificationReadHandler(deps.Notifications, logger))
			r.Post("/notifications/{notificationId}/important", toggleNotificationImportantHandler(deps.Notifications, logger))
			r.Post("/notifications/{notificationId}/archive", archiveNotificationHandler(deps.Notifications, logger))
			r.Delete("/notifications/{notificationId}", deleteNotificationHandler(deps.Notifications, logger))
		})
	})

	return r
}

func unavailable(name string) func(http.Handler) http.Handler {
	return func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusServiceUnavailable, "service_unavailable", name+" service unavailable: backend not configured")
		})
	}
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(backend BackendHealth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "dealdesk-bfa", Status: "healthy", LastChecked: now},
		}

		if backend != nil {
			state := backend.BreakerState()
			status := "healthy"
			switch state {
			case gobreaker.StateOpen:
				status = "unhealthy"
			case gobreaker.StateHalfOpen:
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "backend", Status: status, State: state.String(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func pipelineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.PipelineSnapshot())
	}
}
