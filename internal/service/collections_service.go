package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/aging"
	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/observability"
	"github.com/boddenberg/dealdesk-bfa/internal/port"
)

// CollectionsService builds the invoice aging report.
type CollectionsService struct {
	invoices      port.InvoiceFetcher
	pageSize      int
	defaultTenant string
	now           func() time.Time
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// NewCollectionsService creates the collections service.
func NewCollectionsService(
	invoices port.InvoiceFetcher,
	pageSize int,
	defaultTenant string,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CollectionsService {
	return &CollectionsService{
		invoices:      invoices,
		pageSize:      pageSize,
		defaultTenant: defaultTenant,
		now:           time.Now,
		metrics:       metrics,
		logger:        logger,
	}
}

// WithClock overrides the time source used when no as-of date is given.
func (s *CollectionsService) WithClock(now func() time.Time) *CollectionsService {
	s.now = now
	return s
}

// Aging returns the aging report as of asOf (today when zero). When the
// invoices cannot be loaded the report is still returned, empty, together
// with the error.
func (s *CollectionsService) Aging(ctx context.Context, asOf domain.Date) (*domain.AgingReport, error) {
	ctx, span := tracer.Start(ctx, "CollectionsService.Aging")
	defer span.End()

	if asOf.IsZero() {
		asOf = domain.DateOf(s.now())
	}
	span.SetAttributes(attribute.String("aging.as_of", asOf.String()))

	tenant := tenantOf(ctx, s.defaultTenant)
	invoices, err := s.invoices.ListInvoices(ctx, s.pageSize)
	if err != nil {
		s.logger.Error("failed to fetch invoices", zap.String("tenant", tenant), zap.Error(err))
		report := aging.Report(nil, asOf)
		return &report, fmt.Errorf("invoices fetch: %w", err)
	}

	report := aging.Report(invoices, asOf)
	s.metrics.SetOutstanding(tenant, &report)
	s.logger.Debug("aging report built",
		zap.String("tenant", tenant),
		zap.Int("invoices", len(invoices)),
		zap.Int("overdue", len(report.Overdue)),
	)
	return &report, nil
}

// Summary returns the collections totals for the dashboard.
func (s *CollectionsService) Summary(ctx context.Context) (*domain.CollectionsSummary, error) {
	report, err := s.Aging(ctx, domain.Date{})
	if err != nil {
		return nil, err
	}
	out := &domain.CollectionsSummary{
		TotalOutstanding: report.TotalOutstanding,
		Overdue:          report.Buckets.Total(),
		ByBucket:         make(map[domain.Bucket]domain.Money, len(domain.OverdueBuckets)),
	}
	for _, b := range report.Buckets.All() {
		out.ByBucket[b.Bucket] = b.Total
	}
	return out, nil
}
