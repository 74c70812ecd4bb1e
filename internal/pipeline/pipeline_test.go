package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/pipeline"
)

// fakeBackend records transition calls and can be told to fail or to block.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []domain.TransitionRequest
	err      error
	ack      *domain.Deal
	snapshot domain.PipelineSnapshot
	release  chan struct{}
	entered  chan struct{}
}

func (f *fakeBackend) TransitionDeal(ctx context.Context, id string, req *domain.TransitionRequest) (*domain.Deal, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *req)
	release, entered := f.release, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.ack, nil
}

func (f *fakeBackend) GetPipeline(ctx context.Context) (domain.PipelineSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func (f *fakeBackend) GetDeal(ctx context.Context, id string) (*domain.Deal, error) {
	for _, deals := range f.snapshot {
		for _, d := range deals {
			if d.ID == id {
				return d.Clone(), nil
			}
		}
	}
	return nil, &domain.ErrNotFound{Resource: "deal", ID: id}
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var fixedNow = time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC)

func newMachine(b *fakeBackend) *pipeline.Machine {
	return pipeline.NewMachine(b).WithClock(func() time.Time { return fixedNow })
}

// ============================================================
// Machine
// ============================================================

func TestProgressIndex(t *testing.T) {
	for want, stage := range []domain.Stage{domain.StageHook, domain.StageEngagement, domain.StageSales, domain.StageRetention, domain.StageWon} {
		idx, ok := pipeline.ProgressIndex(stage)
		assert.True(t, ok)
		assert.Equal(t, want, idx)
	}
	_, ok := pipeline.ProgressIndex(domain.StageLost)
	assert.False(t, ok)
}

func TestTransition_IntermediateKeepsProbability(t *testing.T) {
	b := &fakeBackend{}
	deal := &domain.Deal{ID: "d1", Stage: domain.StageSales, Probability: 70}

	got, err := newMachine(b).Transition(context.Background(), deal, domain.StageRetention, domain.TransitionOptions{})

	require.NoError(t, err)
	assert.Equal(t, domain.StageRetention, got.Stage)
	assert.Equal(t, 70, got.Probability)
	assert.Nil(t, got.ClosedAt)
	require.Len(t, b.calls, 1)
	assert.Equal(t, domain.TransitionRequest{Stage: domain.StageRetention}, b.calls[0])
	assert.Equal(t, domain.StageSales, deal.Stage, "input deal must not be modified")
}

func TestTransition_Won(t *testing.T) {
	b := &fakeBackend{}
	value := domain.Money(480000)
	deal := &domain.Deal{ID: "d1", Stage: domain.StageRetention, Probability: 40, Value: 450000}

	got, err := newMachine(b).Transition(context.Background(), deal, domain.StageWon, domain.TransitionOptions{CloseValue: &value})

	require.NoError(t, err)
	assert.Equal(t, domain.StageWon, got.Stage)
	assert.Equal(t, 100, got.Probability)
	assert.Equal(t, value, got.Value)
	require.NotNil(t, got.ClosedAt)
	assert.Equal(t, fixedNow, *got.ClosedAt)
	assert.Equal(t, &value, b.calls[0].Value)
}

func TestTransition_LostRecordsReason(t *testing.T) {
	b := &fakeBackend{}
	deal := &domain.Deal{ID: "d1", Stage: domain.StageEngagement, Probability: 30}

	got, err := newMachine(b).Transition(context.Background(), deal, domain.StageLost, domain.TransitionOptions{Reason: " Budget "})

	require.NoError(t, err)
	assert.Equal(t, domain.StageLost, got.Stage)
	assert.Equal(t, 0, got.Probability)
	assert.Equal(t, "Budget", got.LossReason)
	assert.Equal(t, "Budget", b.calls[0].LossReason)
}

func TestTransition_LostRequiresReason(t *testing.T) {
	b := &fakeBackend{}
	deal := &domain.Deal{ID: "d1", Stage: domain.StageSales}

	_, err := newMachine(b).Transition(context.Background(), deal, domain.StageLost, domain.TransitionOptions{Reason: "  "})

	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reason", verr.Field)
	assert.Zero(t, b.callCount())
}

func TestTransition_TerminalSourceIsInvalid(t *testing.T) {
	for _, stage := range []domain.Stage{domain.StageWon, domain.StageLost} {
		b := &fakeBackend{}
		deal := &domain.Deal{ID: "d1", Stage: stage, Probability: 100}
		before := *deal

		got, err := newMachine(b).Transition(context.Background(), deal, domain.StageSales, domain.TransitionOptions{})

		var terr *domain.ErrInvalidTransition
		require.ErrorAs(t, err, &terr)
		assert.Nil(t, got)
		assert.Equal(t, before, *deal)
		assert.Zero(t, b.callCount())
	}
}

func TestTransition_UnknownTarget(t *testing.T) {
	b := &fakeBackend{}
	_, err := newMachine(b).Transition(context.Background(), &domain.Deal{ID: "d1", Stage: domain.StageHook}, "negotiation", domain.TransitionOptions{})

	var terr *domain.ErrInvalidTransition
	assert.ErrorAs(t, err, &terr)
	assert.Zero(t, b.callCount())
}

func TestTransition_SameStageIsNoop(t *testing.T) {
	b := &fakeBackend{}
	deal := &domain.Deal{ID: "d1", Stage: domain.StageSales, Probability: 55}

	got, err := newMachine(b).Transition(context.Background(), deal, domain.StageSales, domain.TransitionOptions{})

	require.NoError(t, err)
	assert.Equal(t, *deal, *got)
	assert.Zero(t, b.callCount())
}

func TestTransition_BackendFailureLeavesDeal(t *testing.T) {
	backendErr := &domain.ErrTransitionRejected{DealID: "d1", To: domain.StageWon, Status: 409}
	b := &fakeBackend{err: backendErr}
	deal := &domain.Deal{ID: "d1", Stage: domain.StageRetention, Probability: 80}

	got, err := newMachine(b).Transition(context.Background(), deal, domain.StageWon, domain.TransitionOptions{})

	assert.Nil(t, got)
	assert.ErrorIs(t, err, backendErr)
	assert.Equal(t, domain.StageRetention, deal.Stage)
	assert.Equal(t, 80, deal.Probability)
}

func TestTransition_MergesAckTimestamps(t *testing.T) {
	updated := fixedNow.Add(time.Minute)
	closed := fixedNow.Add(-time.Hour)
	b := &fakeBackend{ack: &domain.Deal{ID: "d1", UpdatedAt: &updated, ClosedAt: &closed}}

	got, err := newMachine(b).Transition(context.Background(), &domain.Deal{ID: "d1", Stage: domain.StageSales}, domain.StageWon, domain.TransitionOptions{})

	require.NoError(t, err)
	assert.Equal(t, updated, *got.UpdatedAt)
	assert.Equal(t, closed, *got.ClosedAt)
}

// ============================================================
// Board
// ============================================================

func seededBoard(b *fakeBackend) *pipeline.Board {
	board := pipeline.NewBoard(newMachine(b))
	board.Load(domain.PipelineSnapshot{
		domain.StageHook: {{ID: "h1", Stage: domain.StageHook, Value: 100000}},
		domain.StageSales: {
			{ID: "s1", Stage: domain.StageSales, Probability: 70, Value: 600000},
			{ID: "s2", Stage: domain.StageSales, Probability: 50, Value: 200000},
			{ID: "s3", Stage: domain.StageSales, Probability: 20, Value: 50000},
		},
		domain.StageLost: {{ID: "l1", Stage: domain.StageLost, LossReason: "Budget"}},
	})
	return board
}

func ids(deals []domain.Deal) []string {
	out := make([]string, 0, len(deals))
	for _, d := range deals {
		out = append(out, d.ID)
	}
	return out
}

func TestDrop_SalesToRetention(t *testing.T) {
	b := &fakeBackend{}
	board := seededBoard(b)

	res, err := board.Drop(context.Background(), "s1", domain.StageRetention)

	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Equal(t, domain.StageRetention, res.Deal.Stage)
	assert.Equal(t, 70, res.Deal.Probability)
	require.Len(t, b.calls, 1)
	assert.Equal(t, domain.TransitionRequest{Stage: domain.StageRetention}, b.calls[0])

	snap := board.Snapshot()
	assert.Equal(t, []string{"s2", "s3"}, ids(snap[domain.StageSales]))
	assert.Equal(t, []string{"s1"}, ids(snap[domain.StageRetention]))
}

func TestDrop_SameColumnIsNoop(t *testing.T) {
	b := &fakeBackend{}
	board := seededBoard(b)
	before := board.Snapshot()

	res, err := board.Drop(context.Background(), "s2", domain.StageSales)

	require.NoError(t, err)
	assert.False(t, res.Moved)
	assert.Zero(t, b.callCount())
	assert.Equal(t, before, board.Snapshot())
}

func TestDrop_RollbackRestoresPosition(t *testing.T) {
	b := &fakeBackend{err: errors.New("connection reset")}
	board := seededBoard(b)
	before := board.Snapshot()

	_, err := board.Drop(context.Background(), "s2", domain.StageEngagement)

	require.Error(t, err)
	assert.Equal(t, 1, b.callCount())
	assert.Equal(t, before, board.Snapshot())
}

func TestDrop_TentativeMoveVisibleWhileInFlight(t *testing.T) {
	b := &fakeBackend{err: errors.New("boom"), release: make(chan struct{}), entered: make(chan struct{})}
	board := seededBoard(b)

	done := make(chan error, 1)
	go func() {
		_, err := board.Drop(context.Background(), "s1", domain.StageHook)
		done <- err
	}()

	<-b.entered
	assert.Equal(t, []string{"h1", "s1"}, ids(board.Snapshot()[domain.StageHook]))
	close(b.release)

	require.Error(t, <-done)
	assert.Equal(t, []string{"h1"}, ids(board.Snapshot()[domain.StageHook]))
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids(board.Snapshot()[domain.StageSales]))
}

func TestDrop_RollbackDoesNotRestoreRemovedDeal(t *testing.T) {
	b := &fakeBackend{err: errors.New("boom"), release: make(chan struct{}), entered: make(chan struct{})}
	board := seededBoard(b)

	done := make(chan error, 1)
	go func() {
		_, err := board.Drop(context.Background(), "s1", domain.StageHook)
		done <- err
	}()

	<-b.entered
	// the deal was deleted elsewhere and a reload lands while the move is in flight
	board.Load(domain.PipelineSnapshot{
		domain.StageSales: {{ID: "s2", Stage: domain.StageSales, Probability: 50, Value: 200000}},
	})
	close(b.release)

	require.Error(t, <-done)
	_, ok := board.Find("s1")
	assert.False(t, ok)
	assert.Equal(t, 1, board.Snapshot().Count())
}

func TestDrop_ToTerminalColumnIsRejected(t *testing.T) {
	b := &fakeBackend{}
	board := seededBoard(b)

	for _, target := range []domain.Stage{domain.StageWon, domain.StageLost} {
		_, err := board.Drop(context.Background(), "s1", target)
		var terr *domain.ErrInvalidTransition
		assert.ErrorAs(t, err, &terr)
	}
	assert.Zero(t, b.callCount())
}

func TestDrop_UnknownDeal(t *testing.T) {
	board := seededBoard(&fakeBackend{})
	_, err := board.Drop(context.Background(), "nope", domain.StageHook)

	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestMarkLostThenDrag(t *testing.T) {
	b := &fakeBackend{}
	board := seededBoard(b)

	lost, err := board.MarkLost(context.Background(), "s3", domain.TransitionOptions{Reason: "Budget"})
	require.NoError(t, err)
	assert.Equal(t, domain.StageLost, lost.Stage)
	assert.Equal(t, 0, lost.Probability)
	assert.Equal(t, "Budget", lost.LossReason)
	assert.Equal(t, []string{"l1", "s3"}, ids(board.Snapshot()[domain.StageLost]))
	require.Equal(t, 1, b.callCount())

	_, err = board.Drop(context.Background(), "s3", domain.StageEngagement)
	var terr *domain.ErrInvalidTransition
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, b.callCount())
}

func TestMarkWon_FailureLeavesBoard(t *testing.T) {
	b := &fakeBackend{err: &domain.ErrExternalService{Service: "deals", Status: 502}}
	board := seededBoard(b)
	before := board.Snapshot()

	_, err := board.MarkWon(context.Background(), "s1", domain.TransitionOptions{})

	require.Error(t, err)
	assert.Equal(t, before, board.Snapshot())
}

func TestBoardRefresh(t *testing.T) {
	b := &fakeBackend{snapshot: domain.PipelineSnapshot{
		domain.StageEngagement: {{ID: "e1", Stage: domain.StageEngagement}},
		"mystery":              {{ID: "x1", Stage: domain.StageHook}, {ID: "x2"}},
	}}
	board := seededBoard(b)

	require.NoError(t, board.Refresh(context.Background(), b))

	snap := board.Snapshot()
	assert.Equal(t, 2, snap.Count())
	assert.Equal(t, []string{"x1"}, ids(snap[domain.StageHook]))
	_, ok := board.Find("s1")
	assert.False(t, ok)
}

// ============================================================
// View
// ============================================================

func TestBuildView(t *testing.T) {
	board := seededBoard(&fakeBackend{})

	view := pipeline.BuildView(board.Snapshot(), func(s domain.Stage) string { return "col:" + string(s) })

	require.Len(t, view.Columns, len(domain.Stages))
	sales := view.Columns[2]
	assert.Equal(t, domain.StageSales, sales.Stage)
	assert.Equal(t, "col:sales", sales.Label)
	assert.Equal(t, 3, sales.Count)
	assert.Equal(t, domain.Money(850000), sales.Total)
	require.NotNil(t, sales.Deals[0].ProgressIndex)
	assert.Equal(t, 2, *sales.Deals[0].ProgressIndex)

	lost := view.Columns[5]
	assert.Nil(t, lost.Deals[0].ProgressIndex)
}

func TestSummarize(t *testing.T) {
	sum := pipeline.Summarize(domain.PipelineSnapshot{
		domain.StageSales: {{Value: 600000, Probability: 70}, {Value: 33333, Probability: 50}},
		domain.StageWon:   {{Value: 100000, Probability: 100}},
		domain.StageLost:  {{Value: 999999}},
	})

	assert.Equal(t, domain.Money(633333), sum.OpenValue)
	assert.Equal(t, domain.Money(436667), sum.WeightedValue)
	assert.Equal(t, domain.Money(100000), sum.WonValue)
	assert.Equal(t, 2, sum.DealsByStage[domain.StageSales])
	assert.Equal(t, 0, sum.DealsByStage[domain.StageHook])
}
