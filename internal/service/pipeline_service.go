package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/observability"
	"github.com/boddenberg/dealdesk-bfa/internal/pipeline"
	"github.com/boddenberg/dealdesk-bfa/internal/port"
)

var tracer = otel.Tracer("service")

// PipelineService serves the kanban board and deal stage changes. Each
// tenant gets its own board once the backend has served it a pipeline.
type PipelineService struct {
	deals         port.DealBackend
	machine       *pipeline.Machine
	cache         port.Cache[*domain.Deal]
	defaultTenant string
	metrics       *observability.Metrics
	logger        *zap.Logger
	boards        *tenantState[*pipeline.Board]
}

// NewPipelineService creates the pipeline service with all dependencies injected.
func NewPipelineService(
	deals port.DealBackend,
	machine *pipeline.Machine,
	cache port.Cache[*domain.Deal],
	defaultTenant string,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PipelineService {
	return &PipelineService{
		deals:         deals,
		machine:       machine,
		cache:         cache,
		defaultTenant: defaultTenant,
		metrics:       metrics,
		logger:        logger,
		boards:        newTenantState[*pipeline.Board](tenantStateTTL, nil),
	}
}

// Close releases the per-tenant boards.
func (s *PipelineService) Close() {
	s.boards.stop()
}

// ActiveTenants returns how many tenants currently hold a board.
func (s *PipelineService) ActiveTenants() int {
	return s.boards.count()
}

// load refreshes the tenant's board from the backend, registering it only
// when the backend answered.
func (s *PipelineService) load(ctx context.Context, tenant string) (*pipeline.Board, error) {
	b, ok := s.boards.get(tenant)
	if !ok {
		b = pipeline.NewBoard(s.machine)
	}
	if err := b.Refresh(ctx, s.deals); err != nil {
		return nil, err
	}
	s.boards.keep(tenant, b)
	return b, nil
}

// Board reloads the tenant's board from the backend and returns it.
func (s *PipelineService) Board(ctx context.Context) (pipeline.Columns, error) {
	ctx, span := tracer.Start(ctx, "PipelineService.Board")
	defer span.End()

	tenant := tenantOf(ctx, s.defaultTenant)
	b, err := s.load(ctx, tenant)
	if err != nil {
		s.logger.Error("failed to load pipeline", zap.String("tenant", tenant), zap.Error(err))
		return nil, fmt.Errorf("pipeline fetch: %w", err)
	}
	return b.Snapshot(), nil
}

// GetDeal returns a deal, served from cache when fresh.
func (s *PipelineService) GetDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	ctx, span := tracer.Start(ctx, "PipelineService.GetDeal")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", dealID))

	key := s.cacheKey(ctx, dealID)
	if d, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("deal")
		return d.Clone(), nil
	}
	s.metrics.IncrCacheMiss("deal")

	d, err := s.deals.GetDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("deal fetch: %w", err)
	}
	s.cache.Set(key, d.Clone())
	return d, nil
}

// Move handles a drag-and-drop onto an open column.
func (s *PipelineService) Move(ctx context.Context, dealID string, target domain.Stage) (*domain.MoveResult, error) {
	ctx, span := tracer.Start(ctx, "PipelineService.Move")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", dealID), attribute.String("deal.target", string(target)))

	var result *domain.MoveResult
	err := s.onBoard(ctx, dealID, func(b *pipeline.Board) error {
		var err error
		result, err = b.Drop(ctx, dealID, target)
		return err
	})
	if err != nil {
		s.recordFailure(ctx, dealID, target, err)
		return nil, err
	}

	if !result.Moved {
		s.metrics.IncrTransition(target, observability.ResultNoop)
		return result, nil
	}
	s.recordSuccess(ctx, result.Deal)
	return result, nil
}

// Transition moves a deal to any stage after the backend confirms it.
func (s *PipelineService) Transition(ctx context.Context, dealID string, target domain.Stage, opts domain.TransitionOptions) (*domain.Deal, error) {
	ctx, span := tracer.Start(ctx, "PipelineService.Transition")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", dealID), attribute.String("deal.target", string(target)))

	var (
		deal *domain.Deal
		noop bool
	)
	err := s.onBoard(ctx, dealID, func(b *pipeline.Board) error {
		current, ok := b.Find(dealID)
		if !ok {
			return &domain.ErrNotFound{Resource: "deal", ID: dealID}
		}
		noop = current.Stage == target
		var err error
		deal, err = b.Transition(ctx, dealID, target, opts)
		return err
	})
	if err != nil {
		s.recordFailure(ctx, dealID, target, err)
		return nil, err
	}

	if noop {
		s.metrics.IncrTransition(target, observability.ResultNoop)
		return deal, nil
	}
	s.recordSuccess(ctx, deal)
	return deal, nil
}

// MarkWon closes a deal as won.
func (s *PipelineService) MarkWon(ctx context.Context, dealID string, opts domain.TransitionOptions) (*domain.Deal, error) {
	return s.Transition(ctx, dealID, domain.StageWon, opts)
}

// MarkLost closes a deal as lost; opts.Reason is required.
func (s *PipelineService) MarkLost(ctx context.Context, dealID string, opts domain.TransitionOptions) (*domain.Deal, error) {
	return s.Transition(ctx, dealID, domain.StageLost, opts)
}

// Summary aggregates the current pipeline for the dashboard.
func (s *PipelineService) Summary(ctx context.Context) (*domain.PipelineSummary, error) {
	ctx, span := tracer.Start(ctx, "PipelineService.Summary")
	defer span.End()

	snap, err := s.deals.GetPipeline(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline fetch: %w", err)
	}
	tenant := tenantOf(ctx, s.defaultTenant)
	b, ok := s.boards.get(tenant)
	if !ok {
		b = pipeline.NewBoard(s.machine)
	}
	b.Load(snap)
	s.boards.keep(tenant, b)
	return pipeline.Summarize(snap), nil
}

// onBoard runs fn against the tenant's board, loading the board once from
// the backend if the deal is not on it yet.
func (s *PipelineService) onBoard(ctx context.Context, dealID string, fn func(*pipeline.Board) error) error {
	tenant := tenantOf(ctx, s.defaultTenant)
	b, ok := s.boards.get(tenant)
	if ok {
		_, ok = b.Find(dealID)
	}
	if !ok {
		var err error
		if b, err = s.load(ctx, tenant); err != nil {
			return fmt.Errorf("pipeline fetch: %w", err)
		}
	}
	return fn(b)
}

func (s *PipelineService) recordSuccess(ctx context.Context, deal *domain.Deal) {
	s.metrics.IncrTransition(deal.Stage, observability.ResultOK)
	s.cache.DeletePrefix(s.dealPrefix(ctx, deal.ID))
	s.logger.Info("deal transitioned",
		zap.String("tenant", tenantOf(ctx, s.defaultTenant)),
		zap.String("deal_id", deal.ID),
		zap.String("stage", string(deal.Stage)),
	)
}

func (s *PipelineService) recordFailure(ctx context.Context, dealID string, target domain.Stage, err error) {
	var (
		invalid    *domain.ErrInvalidTransition
		validation *domain.ErrValidation
		notFound   *domain.ErrNotFound
		rejected   *domain.ErrTransitionRejected
	)
	result := observability.ResultFailed
	switch {
	case errors.As(err, &invalid), errors.As(err, &validation), errors.As(err, &notFound):
		result = observability.ResultInvalid
	case errors.As(err, &rejected):
		result = observability.ResultRejected
	}
	s.metrics.IncrTransition(target, result)

	s.logger.Warn("deal transition failed",
		zap.String("tenant", tenantOf(ctx, s.defaultTenant)),
		zap.String("deal_id", dealID),
		zap.String("target", string(target)),
		zap.String("result", result),
		zap.Error(err),
	)
}

// Cached deals are keyed by tenant, deal and caller, so a hit is only
// served to a token the backend already accepted for that deal.
func (s *PipelineService) cacheKey(ctx context.Context, dealID string) string {
	return s.dealPrefix(ctx, dealID) + callerKey(ctx)
}

func (s *PipelineService) dealPrefix(ctx context.Context, dealID string) string {
	return tenantOf(ctx, s.defaultTenant) + ":deal:" + dealID + ":"
}
