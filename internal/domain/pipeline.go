package domain

// ============================================================
// Pipeline API Response types
// ============================================================

// BoardDeal is a deal as placed on the kanban board.
type BoardDeal struct {
	Deal
	// ProgressIndex is nil for lost deals, which are off the happy path.
	ProgressIndex *int `json:"progress_index"`
}

// BoardColumn is one stage column of the board.
type BoardColumn struct {
	Stage Stage       `json:"stage"`
	Label string      `json:"label"`
	Count int         `json:"count"`
	Total Money       `json:"total"`
	Deals []BoardDeal `json:"deals"`
}

// BoardView is returned by GET /v1/pipeline.
type BoardView struct {
	Columns []BoardColumn `json:"columns"`
}

// MoveRequest is the body for POST /v1/pipeline/moves.
type MoveRequest struct {
	DealID  string `json:"deal_id"`
	ToStage string `json:"to_stage"`
}

// MoveResult reports the outcome of a drag-and-drop.
type MoveResult struct {
	Moved bool  `json:"moved"`
	Deal  *Deal `json:"deal"`
}

// TransitionAPIRequest is the body for POST /v1/deals/{dealId}/transition
// and for the won/lost shortcuts.
type TransitionAPIRequest struct {
	Stage      string `json:"stage,omitempty"`
	Reason     string `json:"reason,omitempty"`
	CloseValue *Money `json:"close_value,omitempty"`
	ClosedAt   string `json:"closed_at,omitempty"` // YYYY-MM-DD or RFC 3339
	Notes      string `json:"notes,omitempty"`
}

// PipelineSummary aggregates the open pipeline for the dashboard.
type PipelineSummary struct {
	DealsByStage  map[Stage]int `json:"deals_by_stage"`
	OpenValue     Money         `json:"open_value"`
	WeightedValue Money         `json:"weighted_value"`
	WonValue      Money         `json:"won_value"`
}
