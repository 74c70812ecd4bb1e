package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/config"
	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/pipeline"
	"github.com/boddenberg/dealdesk-bfa/internal/service"
)

// ============================================================
// Pipeline: board, deals, transitions
// ============================================================

func boardHandler(svc *service.PipelineService, pres *config.Presentation, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/pipeline")
		defer span.End()

		cols, err := svc.Board(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, pipeline.BuildView(cols, pres.StageLabel))
	}
}

func getDealHandler(svc *service.PipelineService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/deals/{dealId}")
		defer span.End()

		dealID := chi.URLParam(r, "dealId")
		span.SetAttributes(attribute.String("deal.id", dealID))

		deal, err := svc.GetDeal(ctx, dealID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, deal)
	}
}

func moveHandler(svc *service.PipelineService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/pipeline/moves")
		defer span.End()

		var req domain.MoveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
			return
		}
		if req.DealID == "" || req.ToStage == "" {
			writeError(w, http.StatusBadRequest, "validation_error", "deal_id and to_stage are required")
			return
		}
		span.SetAttributes(attribute.String("deal.id", req.DealID), attribute.String("deal.target", req.ToStage))

		target, _ := domain.ParseStage(req.ToStage)
		result, err := svc.Move(ctx, req.DealID, target)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func transitionHandler(svc *service.PipelineService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/deals/{dealId}/transition")
		defer span.End()

		dealID := chi.URLParam(r, "dealId")
		var req domain.TransitionAPIRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
			return
		}
		if req.Stage == "" {
			writeError(w, http.StatusBadRequest, "validation_error", "stage is required")
			return
		}
		span.SetAttributes(attribute.String("deal.id", dealID), attribute.String("deal.target", req.Stage))

		opts, err := transitionOptions(req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		target, _ := domain.ParseStage(req.Stage)
		deal, err := svc.Transition(ctx, dealID, target, opts)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, deal)
	}
}

func markWonHandler(svc *service.PipelineService, logger *zap.Logger) http.HandlerFunc {
	return closeHandler(svc.MarkWon, "POST /v1/deals/{dealId}/won", logger)
}

func markLostHandler(svc *service.PipelineService, logger *zap.Logger) http.HandlerFunc {
	return closeHandler(svc.MarkLost, "POST /v1/deals/{dealId}/lost", logger)
}

type closeFunc func(ctx context.Context, dealID string, opts domain.TransitionOptions) (*domain.Deal, error)

func closeHandler(closeDeal closeFunc, route string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), route)
		defer span.End()

		dealID := chi.URLParam(r, "dealId")
		span.SetAttributes(attribute.String("deal.id", dealID))

		var req domain.TransitionAPIRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
			return
		}
		opts, err := transitionOptions(req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		deal, err := closeDeal(ctx, dealID, opts)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, deal)
	}
}
