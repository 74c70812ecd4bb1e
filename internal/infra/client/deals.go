package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

// dealWire is the backend deal payload. Numbers may arrive as strings
// ("6000.00") and dates as plain days or full timestamps.
type dealWire struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Value           domain.Money        `json:"value"`
	Probability     json.RawMessage     `json:"probability"`
	Stage           string              `json:"stage"`
	Customer        *domain.CustomerRef `json:"customer"`
	Contact         *domain.ContactRef  `json:"contact"`
	ExpectedCloseAt string              `json:"expected_close_at"`
	ClosedAt        string              `json:"closed_at"`
	UpdatedAt       string              `json:"updated_at"`
	Notes           string              `json:"notes"`
	LossReason      string              `json:"loss_reason"`
}

func (w *dealWire) toDomain() domain.Deal {
	d := domain.Deal{
		ID:              w.ID,
		Name:            w.Name,
		Value:           w.Value,
		Probability:     parseProbability(w.Probability),
		Stage:           domain.Stage(strings.ToLower(strings.TrimSpace(w.Stage))),
		Contact:         w.Contact,
		ExpectedCloseAt: parseTime(w.ExpectedCloseAt),
		ClosedAt:        parseTime(w.ClosedAt),
		UpdatedAt:       parseTime(w.UpdatedAt),
		Notes:           w.Notes,
		LossReason:      w.LossReason,
	}
	if w.Customer != nil {
		d.Customer = *w.Customer
	}
	return d
}

func parseProbability(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	p, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return domain.ClampProbability(int(p.Round(0).IntPart()))
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t
	}
	d, err := domain.ParseDate(s)
	if err != nil || d.IsZero() {
		return nil
	}
	t := d.Time()
	return &t
}

// GetPipeline fetches every deal grouped by stage.
func (c *Backend) GetPipeline(ctx context.Context) (domain.PipelineSnapshot, error) {
	var raw map[string][]dealWire
	if err := c.do(ctx, "GetPipeline", http.MethodGet, "/deals/pipeline", nil, &raw); err != nil {
		return nil, c.wrapError("pipeline", "", err)
	}

	snap := make(domain.PipelineSnapshot, len(raw))
	for key, deals := range raw {
		stage, ok := domain.ParseStage(key)
		if !ok {
			c.logger.Warn("backend: unknown pipeline stage", zap.String("stage", key), zap.Int("deals", len(deals)))
			continue
		}
		for i := range deals {
			d := deals[i].toDomain()
			d.Stage = stage
			snap[stage] = append(snap[stage], d)
		}
	}
	return snap, nil
}

// GetDeal fetches a single deal.
func (c *Backend) GetDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	var w dealWire
	path := "/deals/" + url.PathEscape(dealID)
	if err := c.do(ctx, "GetDeal", http.MethodGet, path, nil, &w); err != nil {
		return nil, c.wrapError("deal", dealID, err)
	}
	d := w.toDomain()
	return &d, nil
}

// TransitionDeal posts a stage change. A 4xx other than 404 means the
// backend declined it.
func (c *Backend) TransitionDeal(ctx context.Context, dealID string, req *domain.TransitionRequest) (*domain.Deal, error) {
	var w dealWire
	path := fmt.Sprintf("/deals/%s/transition", url.PathEscape(dealID))
	err := c.do(ctx, "TransitionDeal", http.MethodPost, path, req, &w)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.clientError() && se.Status != http.StatusNotFound &&
			se.Status != http.StatusUnauthorized && se.Status != http.StatusForbidden {
			c.metrics.IncrBackendError("deal")
			return nil, &domain.ErrTransitionRejected{DealID: dealID, To: req.Stage, Status: se.Status, Message: se.Message}
		}
		return nil, c.wrapError("deal", dealID, err)
	}
	if w.ID == "" {
		return nil, nil
	}
	d := w.toDomain()
	return &d, nil
}
