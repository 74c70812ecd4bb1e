package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads an optional JSON body; an empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// transitionOptions converts the API body into domain options.
func transitionOptions(req domain.TransitionAPIRequest) (domain.TransitionOptions, error) {
	opts := domain.TransitionOptions{
		Reason:     req.Reason,
		CloseValue: req.CloseValue,
		Notes:      req.Notes,
	}
	if req.ClosedAt != "" {
		t, err := time.Parse(time.RFC3339, req.ClosedAt)
		if err != nil {
			d, derr := domain.ParseDate(req.ClosedAt)
			if derr != nil {
				return opts, &domain.ErrValidation{Field: "closed_at", Message: "must be YYYY-MM-DD or RFC 3339"}
			}
			t = d.Time()
		}
		opts.ClosedAt = &t
	}
	return opts, nil
}

// describeError maps domain errors to an HTTP status, a machine-readable
// code and whether the caller may retry.
func describeError(err error) (status int, code string, retryable bool) {
	var (
		notFound     *domain.ErrNotFound
		circuitOpen  *domain.ErrCircuitOpen
		validation   *domain.ErrValidation
		invalid      *domain.ErrInvalidTransition
		rejected     *domain.ErrTransitionRejected
		external     *domain.ErrExternalService
		unauthorized *domain.ErrUnauthorized
	)

	switch {
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, "invalid_transition", false
	case errors.As(err, &validation):
		return http.StatusBadRequest, "validation_error", false
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found", false
	case errors.As(err, &rejected):
		return http.StatusConflict, "transition_rejected", false
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized, "unauthorized", false
	case errors.As(err, &circuitOpen):
		return http.StatusServiceUnavailable, "circuit_open", true
	case errors.As(err, &external):
		return http.StatusBadGateway, "backend_unavailable", true
	}
	return http.StatusInternalServerError, "internal_error", false
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, code, retryable := describeError(err)
	msg := err.Error()

	switch {
	case status == http.StatusInternalServerError:
		logger.Error("unhandled error", zap.Error(err))
		msg = "internal server error"
	case status >= 500:
		logger.Error("backend failure", zap.String("code", code), zap.Error(err))
	case status == http.StatusUnauthorized || status == http.StatusConflict:
		logger.Warn(code, zap.String("error", msg))
	default:
		logger.Debug(code, zap.String("error", msg))
	}

	writeJSON(w, status, errorResponse{Error: msg, Code: code, Retryable: retryable})
}
