package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/config"
	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/cache"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/client"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/observability"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/resilience"
	"github.com/boddenberg/dealdesk-bfa/internal/pipeline"
	"github.com/boddenberg/dealdesk-bfa/internal/service"
)

// app is the wired object graph shared by the server and the CLI commands.
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	metrics      *observability.Metrics
	presentation *config.Presentation
	backend      *client.Backend
	dealCache    *cache.InMemory[*domain.Deal]

	pipeline      *service.PipelineService
	collections   *service.CollectionsService
	notifications *service.NotificationService
	dashboard     *service.DashboardService
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	presentation, err := config.LoadPresentation(cfg.PresentationFile)
	if err != nil {
		return nil, err
	}

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	dealCache := cache.New[*domain.Deal](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	backend := client.NewBackend(
		httpClient,
		cfg.BackendAPIURL,
		client.Credentials{Token: cfg.BackendToken, TenantID: cfg.TenantID},
		resilienceCfg,
		metrics,
		logger,
	)

	// --- Services ---
	pipelineSvc := service.NewPipelineService(backend, pipeline.NewMachine(backend), dealCache, cfg.TenantID, metrics, logger)
	collectionsSvc := service.NewCollectionsService(backend, cfg.InvoicePageSize, cfg.TenantID, metrics, logger)
	notificationSvc := service.NewNotificationService(backend, cfg.TenantID, metrics, logger)

	return &app{
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
		presentation:  presentation,
		backend:       backend,
		dealCache:     dealCache,
		pipeline:      pipelineSvc,
		collections:   collectionsSvc,
		notifications: notificationSvc,
		dashboard:     service.NewDashboardService(pipelineSvc, collectionsSvc, logger),
	}, nil
}

func (a *app) close() {
	a.pipeline.Close()
	a.notifications.Close()
	a.dealCache.Stop()
	_ = a.logger.Sync()
}
