// Package pipeline implements the deal stage machine and the kanban board
// built on top of it.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/port"
)

// happyPath is the ordered progress sequence. Lost is not on it.
var happyPath = []domain.Stage{
	domain.StageHook,
	domain.StageEngagement,
	domain.StageSales,
	domain.StageRetention,
	domain.StageWon,
}

// ProgressIndex returns the position of stage on the happy path, used for
// progress bars. ok is false for lost and unknown stages.
func ProgressIndex(stage domain.Stage) (idx int, ok bool) {
	for i, s := range happyPath {
		if s == stage {
			return i, true
		}
	}
	return -1, false
}

// Machine validates stage transitions and applies them once the backend
// has acknowledged them.
type Machine struct {
	backend port.DealTransitioner
	now     func() time.Time
}

// NewMachine creates a Machine that notifies backend of every transition.
func NewMachine(backend port.DealTransitioner) *Machine {
	return &Machine{backend: backend, now: time.Now}
}

// WithClock overrides the time source used for close timestamps.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// Validate checks a transition without side effects.
func (m *Machine) Validate(deal *domain.Deal, target domain.Stage, opts domain.TransitionOptions) error {
	if deal == nil {
		return &domain.ErrValidation{Field: "deal", Message: "is required"}
	}
	if !target.Valid() {
		return &domain.ErrInvalidTransition{DealID: deal.ID, From: deal.Stage, To: target, Reason: "unknown target stage"}
	}
	if deal.Stage.IsTerminal() {
		return &domain.ErrInvalidTransition{DealID: deal.ID, From: deal.Stage, To: target, Reason: "deal is already closed"}
	}
	if target == domain.StageLost && strings.TrimSpace(opts.Reason) == "" {
		return &domain.ErrValidation{Field: "reason", Message: "a loss reason is required when marking a deal lost"}
	}
	if opts.CloseValue != nil && *opts.CloseValue < 0 {
		return &domain.ErrValidation{Field: "close_value", Message: "must not be negative"}
	}
	return nil
}

// Transition moves deal to target. The backend is called first and the
// returned deal reflects the change only after it acknowledged; deal itself
// is never modified. Moving a deal to the stage it is already in is a no-op
// that does not reach the backend.
func (m *Machine) Transition(ctx context.Context, deal *domain.Deal, target domain.Stage, opts domain.TransitionOptions) (*domain.Deal, error) {
	if err := m.Validate(deal, target, opts); err != nil {
		return nil, err
	}
	if target == deal.Stage {
		return deal.Clone(), nil
	}

	acked, err := m.backend.TransitionDeal(ctx, deal.ID, NewTransitionRequest(target, opts))
	if err != nil {
		return nil, fmt.Errorf("transition deal %s to %s: %w", deal.ID, target, err)
	}

	next := m.apply(deal, target, opts)
	if acked != nil {
		if acked.UpdatedAt != nil {
			next.UpdatedAt = acked.UpdatedAt
		}
		if target.IsTerminal() && acked.ClosedAt != nil {
			next.ClosedAt = acked.ClosedAt
		}
	}
	return next, nil
}

// NewTransitionRequest builds the backend request body for a transition.
func NewTransitionRequest(target domain.Stage, opts domain.TransitionOptions) *domain.TransitionRequest {
	req := &domain.TransitionRequest{Stage: target, Notes: strings.TrimSpace(opts.Notes)}
	switch target {
	case domain.StageLost:
		req.LossReason = strings.TrimSpace(opts.Reason)
		req.ClosedAt = opts.ClosedAt
	case domain.StageWon:
		req.Value = opts.CloseValue
		req.ClosedAt = opts.ClosedAt
	}
	return req
}

// apply computes the deal after a successful transition. Moves between open
// stages keep the probability the deal already had.
func (m *Machine) apply(deal *domain.Deal, target domain.Stage, opts domain.TransitionOptions) *domain.Deal {
	next := deal.Clone()
	next.Stage = target
	if notes := strings.TrimSpace(opts.Notes); notes != "" {
		next.Notes = notes
	}

	switch target {
	case domain.StageWon:
		next.Probability = 100
		if opts.CloseValue != nil {
			next.Value = *opts.CloseValue
		}
	case domain.StageLost:
		next.Probability = 0
		next.LossReason = strings.TrimSpace(opts.Reason)
	default:
		return next
	}

	closedAt := m.now()
	if opts.ClosedAt != nil {
		closedAt = *opts.ClosedAt
	}
	next.ClosedAt = &closedAt
	return next
}
