package domain

import (
	"strings"
	"time"
)

// ============================================================
// Deals / Pipeline
// ============================================================

// Stage is one step of the deal lifecycle.
type Stage string

const (
	StageHook       Stage = "hook"
	StageEngagement Stage = "engagement"
	StageSales      Stage = "sales"
	StageRetention  Stage = "retention"
	StageWon        Stage = "won"
	StageLost       Stage = "lost"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageHook, StageEngagement, StageSales, StageRetention, StageWon, StageLost}

// OpenStages are the kanban columns a deal can be dragged between.
var OpenStages = []Stage{StageHook, StageEngagement, StageSales, StageRetention}

// ParseStage normalizes s and reports whether it names a known stage.
func ParseStage(s string) (Stage, bool) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	return st, st.Valid()
}

func (s Stage) Valid() bool {
	switch s {
	case StageHook, StageEngagement, StageSales, StageRetention, StageWon, StageLost:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s Stage) IsTerminal() bool {
	return s == StageWon || s == StageLost
}

// CustomerRef is the account a deal or invoice belongs to.
type CustomerRef struct {
	ID           string `json:"id,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
}

// ContactRef is the person at the customer the deal is worked with.
type ContactRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Deal is a sales opportunity as fetched from the backend.
type Deal struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Value           Money       `json:"value"`
	Probability     int         `json:"probability"` // 0-100
	Stage           Stage       `json:"stage"`
	Customer        CustomerRef `json:"customer"`
	Contact         *ContactRef `json:"contact,omitempty"`
	ExpectedCloseAt *time.Time  `json:"expected_close_at,omitempty"`
	ClosedAt        *time.Time  `json:"closed_at,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	LossReason      string      `json:"loss_reason,omitempty"`
	UpdatedAt       *time.Time  `json:"updated_at,omitempty"`
}

// Clone returns a deep copy so callers can derive a new deal without
// touching the original.
func (d *Deal) Clone() *Deal {
	if d == nil {
		return nil
	}
	c := *d
	if d.Contact != nil {
		contact := *d.Contact
		c.Contact = &contact
	}
	c.ExpectedCloseAt = cloneTime(d.ExpectedCloseAt)
	c.ClosedAt = cloneTime(d.ClosedAt)
	c.UpdatedAt = cloneTime(d.UpdatedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ClampProbability forces p into [0, 100].
func ClampProbability(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// TransitionOptions carries the optional data of a stage change.
// Reason is required when the target is lost; the close fields are only
// meaningful for won/lost.
type TransitionOptions struct {
	Reason     string
	CloseValue *Money
	ClosedAt   *time.Time
	Notes      string
}

// TransitionRequest is the body of POST /deals/{id}/transition.
type TransitionRequest struct {
	Stage      Stage      `json:"stage"`
	LossReason string     `json:"loss_reason,omitempty"`
	Value      *Money     `json:"value,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// PipelineSnapshot is the full board as returned by GET /deals/pipeline.
type PipelineSnapshot map[Stage][]Deal

// Count returns the number of deals across all stages.
func (p PipelineSnapshot) Count() int {
	n := 0
	for _, deals := range p {
		n += len(deals)
	}
	return n
}
