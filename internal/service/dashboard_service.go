package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

// DashboardService combines the pipeline and collections summaries.
type DashboardService struct {
	pipeline    *PipelineService
	collections *CollectionsService
	logger      *zap.Logger
}

// NewDashboardService creates the dashboard service.
func NewDashboardService(pipeline *PipelineService, collections *CollectionsService, logger *zap.Logger) *DashboardService {
	return &DashboardService{pipeline: pipeline, collections: collections, logger: logger}
}

// Summary fetches both sections concurrently. A failing section is left
// empty and reported in Errors; the other one is still returned.
func (s *DashboardService) Summary(ctx context.Context) (*domain.DashboardSummary, error) {
	ctx, span := tracer.Start(ctx, "DashboardService.Summary")
	defer span.End()

	var (
		out = &domain.DashboardSummary{
			Pipeline:    domain.PipelineSummary{DealsByStage: map[domain.Stage]int{}},
			Collections: domain.CollectionsSummary{ByBucket: map[domain.Bucket]domain.Money{}},
		}
		mu sync.Mutex
	)
	fail := func(section string, err error) {
		s.logger.Warn("dashboard section failed", zap.String("section", section), zap.Error(err))
		mu.Lock()
		out.Errors = append(out.Errors, section+": "+err.Error())
		mu.Unlock()
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.pipeline.Summary(gCtx)
		if err != nil {
			fail("pipeline", err)
			return nil
		}
		out.Pipeline = *p
		return nil
	})

	g.Go(func() error {
		c, err := s.collections.Summary(gCtx)
		if err != nil {
			fail("collections", err)
			return nil
		}
		out.Collections = *c
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
