package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/optimistic"
	"github.com/boddenberg/dealdesk-bfa/internal/port"
)

// Columns is the kanban board state: the deals of each stage in display
// order.
type Columns map[domain.Stage][]domain.Deal

// ColumnsFromSnapshot builds a board with one column per stage. Deals listed
// under an unknown key are placed by their own stage field; deals with no
// usable stage are dropped from the board.
func ColumnsFromSnapshot(snap domain.PipelineSnapshot) Columns {
	cols := make(Columns, len(domain.Stages))
	for _, s := range domain.Stages {
		cols[s] = []domain.Deal{}
	}
	for _, s := range domain.Stages {
		for _, d := range snap[s] {
			d.Stage = s
			cols[s] = append(cols[s], *d.Clone())
		}
	}
	for key, deals := range snap {
		if key.Valid() {
			continue
		}
		for _, d := range deals {
			if d.Stage.Valid() {
				cols[d.Stage] = append(cols[d.Stage], *d.Clone())
			}
		}
	}
	return cols
}

// Clone deep-copies the board.
func (c Columns) Clone() Columns {
	out := make(Columns, len(c))
	for stage, deals := range c {
		cp := make([]domain.Deal, len(deals))
		for i := range deals {
			cp[i] = *deals[i].Clone()
		}
		out[stage] = cp
	}
	return out
}

// Locate returns the column and position of a deal.
func (c Columns) Locate(dealID string) (domain.Stage, int, bool) {
	for stage, deals := range c {
		for i := range deals {
			if deals[i].ID == dealID {
				return stage, i, true
			}
		}
	}
	return "", -1, false
}

// Count returns the number of deals on the board.
func (c Columns) Count() int {
	n := 0
	for _, deals := range c {
		n += len(deals)
	}
	return n
}

func (c Columns) remove(dealID string) (domain.Deal, bool) {
	stage, idx, ok := c.Locate(dealID)
	if !ok {
		return domain.Deal{}, false
	}
	deals := c[stage]
	d := deals[idx]
	c[stage] = append(deals[:idx:idx], deals[idx+1:]...)
	return d, true
}

func (c Columns) insert(stage domain.Stage, idx int, d domain.Deal) {
	deals := c[stage]
	if idx < 0 || idx > len(deals) {
		idx = len(deals)
	}
	next := make([]domain.Deal, 0, len(deals)+1)
	next = append(next, deals[:idx]...)
	next = append(next, d)
	next = append(next, deals[idx:]...)
	c[stage] = next
}

// Board is a tenant's kanban board. Drags are applied optimistically and
// rolled back if the backend does not confirm them.
type Board struct {
	machine *Machine
	store   *optimistic.Store[Columns]
}

// NewBoard creates an empty board.
func NewBoard(machine *Machine) *Board {
	return &Board{
		machine: machine,
		store:   optimistic.NewStore(ColumnsFromSnapshot(nil), Columns.Clone),
	}
}

// Load replaces the board with snap.
func (b *Board) Load(snap domain.PipelineSnapshot) {
	b.store.Replace(ColumnsFromSnapshot(snap))
}

// Refresh reloads the board from the backend.
func (b *Board) Refresh(ctx context.Context, fetcher port.DealFetcher) error {
	return b.store.Refresh(ctx, func(ctx context.Context) (Columns, error) {
		snap, err := fetcher.GetPipeline(ctx)
		if err != nil {
			return nil, err
		}
		return ColumnsFromSnapshot(snap), nil
	})
}

// Snapshot returns a copy of the current board.
func (b *Board) Snapshot() Columns {
	return b.store.Get()
}

// Find returns a copy of the deal with the given id.
func (b *Board) Find(dealID string) (*domain.Deal, bool) {
	cols := b.store.Get()
	stage, idx, ok := cols.Locate(dealID)
	if !ok {
		return nil, false
	}
	return &cols[stage][idx], true
}

// Drop handles a deal dragged onto the target column. Only open columns are
// drop targets; won and lost are reached through Transition. Dropping a deal
// onto its own column returns Moved=false without calling the backend.
func (b *Board) Drop(ctx context.Context, dealID string, target domain.Stage) (*domain.MoveResult, error) {
	deal, ok := b.Find(dealID)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "deal", ID: dealID}
	}
	if deal.Stage == target {
		return &domain.MoveResult{Moved: false, Deal: deal}, nil
	}
	if !target.Valid() {
		return nil, &domain.ErrInvalidTransition{DealID: dealID, From: deal.Stage, To: target, Reason: "unknown target stage"}
	}
	if target.IsTerminal() {
		return nil, &domain.ErrInvalidTransition{DealID: dealID, From: deal.Stage, To: target, Reason: "won and lost cannot be reached by dragging"}
	}
	if err := b.machine.Validate(deal, target, domain.TransitionOptions{}); err != nil {
		return nil, err
	}

	// located is false when a reload dropped the deal before the tentative
	// move could be applied.
	from, fromIdx, located := deal.Stage, -1, false
	var result *domain.Deal
	err := b.store.Execute(ctx, optimistic.Command[Columns]{
		Name: "move-" + uuid.NewString(),
		Apply: func(c Columns) Columns {
			stage, idx, ok := c.Locate(dealID)
			if !ok {
				return c
			}
			from, fromIdx, located = stage, idx, true
			d, _ := c.remove(dealID)
			d.Stage = target
			c.insert(target, -1, d)
			return c
		},
		Send: func(ctx context.Context) error {
			var err error
			result, err = b.machine.Transition(ctx, deal, target, domain.TransitionOptions{})
			return err
		},
		Commit: func(c Columns) Columns {
			stage, idx, ok := c.Locate(dealID)
			if !ok {
				c.insert(target, -1, *result)
				return c
			}
			c[stage][idx] = *result
			return c
		},
		Rollback: func(c Columns) Columns {
			if !located {
				return c
			}
			current, ok := c.remove(dealID)
			if !ok {
				return c
			}
			current.Stage = from
			c.insert(from, fromIdx, current)
			return c
		},
	})
	if err != nil {
		return nil, err
	}
	return &domain.MoveResult{Moved: true, Deal: result.Clone()}, nil
}

// Transition moves a deal to any stage once the backend has confirmed it,
// with no tentative board change. It backs the explicit mark won/lost actions.
func (b *Board) Transition(ctx context.Context, dealID string, target domain.Stage, opts domain.TransitionOptions) (*domain.Deal, error) {
	deal, ok := b.Find(dealID)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "deal", ID: dealID}
	}

	var result *domain.Deal
	err := b.store.Execute(ctx, optimistic.Command[Columns]{
		Name: "transition-" + uuid.NewString(),
		Send: func(ctx context.Context) error {
			var err error
			result, err = b.machine.Transition(ctx, deal, target, opts)
			return err
		},
		Commit: func(c Columns) Columns {
			if stage, idx, ok := c.Locate(dealID); ok && stage == result.Stage {
				c[stage][idx] = *result
				return c
			}
			c.remove(dealID)
			c.insert(result.Stage, -1, *result)
			return c
		},
	})
	if err != nil {
		return nil, err
	}
	return result.Clone(), nil
}

// MarkWon closes a deal as won.
func (b *Board) MarkWon(ctx context.Context, dealID string, opts domain.TransitionOptions) (*domain.Deal, error) {
	return b.Transition(ctx, dealID, domain.StageWon, opts)
}

// MarkLost closes a deal as lost. opts.Reason is required.
func (b *Board) MarkLost(ctx context.Context, dealID string, opts domain.TransitionOptions) (*domain.Deal, error) {
	return b.Transition(ctx, dealID, domain.StageLost, opts)
}
