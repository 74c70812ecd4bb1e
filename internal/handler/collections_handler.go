package handler

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/config"
	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/service"
)

// ============================================================
// Collections & dashboard
// ============================================================

// agingResponse carries the report and, when the invoices could not be
// loaded, the error next to the empty report.
type agingResponse struct {
	*domain.AgingReport
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func agingHandler(svc *service.CollectionsService, pres *config.Presentation, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/collections/aging")
		defer span.End()

		var asOf domain.Date
		if v := r.URL.Query().Get("as_of"); v != "" {
			d, err := domain.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation_error", "as_of must be YYYY-MM-DD")
				return
			}
			asOf = d
		}
		span.SetAttributes(attribute.String("tenant", TenantFromContext(r)))

		report, err := svc.Aging(ctx, asOf)
		labelBuckets(report, pres)
		if err != nil {
			status, code, retryable := describeError(err)
			logger.Error("aging report degraded", zap.String("code", code), zap.Error(err))
			writeJSON(w, status, agingResponse{AgingReport: report, Error: err.Error(), Code: code, Retryable: retryable})
			return
		}
		writeJSON(w, http.StatusOK, agingResponse{AgingReport: report})
	}
}

func labelBuckets(report *domain.AgingReport, pres *config.Presentation) {
	if report == nil {
		return
	}
	report.Buckets.Days1To30.Label = pres.BucketLabel(domain.Bucket1To30)
	report.Buckets.Days31To60.Label = pres.BucketLabel(domain.Bucket31To60)
	report.Buckets.Days60Plus.Label = pres.BucketLabel(domain.Bucket60Plus)
}

func dashboardHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		summary, err := svc.Summary(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}
