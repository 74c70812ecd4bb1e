package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/cache"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/client"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/observability"
	"github.com/boddenberg/dealdesk-bfa/internal/pipeline"
	"github.com/boddenberg/dealdesk-bfa/internal/service"
)

func newPipelineService(t *testing.T, deals *mockDeals) (*service.PipelineService, *observability.Metrics) {
	t.Helper()
	c := cache.New[*domain.Deal](time.Minute)
	t.Cleanup(c.Stop)
	metrics := observability.NewMetrics()
	svc := service.NewPipelineService(deals, pipeline.NewMachine(deals), c, "", metrics, zap.NewNop())
	t.Cleanup(svc.Close)
	return svc, metrics
}

func TestPipelineService_Board(t *testing.T) {
	deals := &mockDeals{snapshot: salesSnapshot()}
	svc, _ := newPipelineService(t, deals)

	cols, err := svc.Board(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, cols.Count())
	assert.Len(t, cols[domain.StageSales], 1)
}

func TestPipelineService_BoardFetchError(t *testing.T) {
	deals := &mockDeals{pipelineErr: &domain.ErrExternalService{Service: "deals", Status: 503}}
	svc, _ := newPipelineService(t, deals)

	_, err := svc.Board(context.Background())

	var ext *domain.ErrExternalService
	assert.ErrorAs(t, err, &ext)
}

func TestPipelineService_MoveLoadsBoardOnce(t *testing.T) {
	deals := &mockDeals{snapshot: salesSnapshot()}
	svc, metrics := newPipelineService(t, deals)

	res, err := svc.Move(context.Background(), "s1", domain.StageRetention)
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Equal(t, 70, res.Deal.Probability)

	res, err = svc.Move(context.Background(), "s1", domain.StageRetention)
	require.NoError(t, err)
	assert.False(t, res.Moved)

	assert.Equal(t, 1, deals.pipelineCalls)
	require.Len(t, deals.transitions, 1)
	assert.Equal(t, domain.StageRetention, deals.transitions[0].Stage)

	snap := metrics.PipelineSnapshot()
	assert.Equal(t, int64(1), snap.TransitionsByStage[domain.StageRetention])
	assert.Equal(t, int64(1), snap.NoopDrops)
}

func TestPipelineService_TenantsHaveSeparateBoards(t *testing.T) {
	deals := &mockDeals{snapshot: salesSnapshot()}
	svc, _ := newPipelineService(t, deals)

	acme := client.WithCredentials(context.Background(), client.Credentials{TenantID: "acme"})
	globex := client.WithCredentials(context.Background(), client.Credentials{TenantID: "globex"})

	_, err := svc.Move(acme, "s1", domain.StageRetention)
	require.NoError(t, err)

	deals.snapshot = domain.PipelineSnapshot{}
	cols, err := svc.Board(globex)
	require.NoError(t, err)
	assert.Zero(t, cols.Count())

	_, err = svc.Move(acme, "h1", domain.StageEngagement)
	require.NoError(t, err, "acme board still holds h1")
}

func TestPipelineService_MoveFailureCountsRejected(t *testing.T) {
	deals := &mockDeals{
		snapshot:      salesSnapshot(),
		transitionErr: &domain.ErrTransitionRejected{DealID: "s1", To: domain.StageRetention, Status: 409},
	}
	svc, metrics := newPipelineService(t, deals)

	_, err := svc.Move(context.Background(), "s1", domain.StageRetention)

	var rejected *domain.ErrTransitionRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, int64(1), metrics.PipelineSnapshot().Rejected)

	cols, err := svc.Board(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StageSales, cols[domain.StageSales][0].Stage)
}

func TestPipelineService_UnknownDeal(t *testing.T) {
	deals := &mockDeals{snapshot: salesSnapshot()}
	svc, _ := newPipelineService(t, deals)

	_, err := svc.Transition(context.Background(), "missing", domain.StageWon, domain.TransitionOptions{})

	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
	assert.Empty(t, deals.transitions)
}

func TestPipelineService_MarkWonAndLost(t *testing.T) {
	deals := &mockDeals{snapshot: salesSnapshot()}
	svc, _ := newPipelineService(t, deals)

	won, err := svc.MarkWon(context.Background(), "s1", domain.TransitionOptions{})
	require.NoError(t, err)
	assert.Equal(t, 100, won.Probability)

	_, err = svc.MarkLost(context.Background(), "h1", domain.TransitionOptions{})
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)

	lost, err := svc.MarkLost(context.Background(), "h1", domain.TransitionOptions{Reason: "Budget"})
	require.NoError(t, err)
	assert.Equal(t, "Budget", lost.LossReason)
	assert.Equal(t, 0, lost.Probability)

	_, err = svc.Move(context.Background(), "h1", domain.StageEngagement)
	var terr *domain.ErrInvalidTransition
	require.ErrorAs(t, err, &terr)
	assert.Len(t, deals.transitions, 2)
}

func TestPipelineService_GetDealIsCached(t *testing.T) {
	deals := &mockDeals{snapshot: salesSnapshot()}
	svc, metrics := newPipelineService(t, deals)

	first, err := svc.GetDeal(context.Background(), "s1")
	require.NoError(t, err)
	first.Name = "mutated"

	second, err := svc.GetDeal(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Renewal", second.Name)
	assert.Equal(t, 1, deals.getCalls)
	assert.InDelta(t, 0.5, metrics.PipelineSnapshot().CacheHitRate, 0.001)

	_, err = svc.MarkWon(context.Background(), "s1", domain.TransitionOptions{})
	require.NoError(t, err)
	_, err = svc.GetDeal(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, deals.getCalls, "transition invalidates the cached deal")
}

func TestPipelineService_GetDealCacheIsPerCaller(t *testing.T) {
	deals := &mockDeals{snapshot: salesSnapshot()}
	svc, _ := newPipelineService(t, deals)

	bob := client.WithCredentials(context.Background(), client.Credentials{Token: "bob-token", TenantID: "globex"})
	alice := client.WithCredentials(context.Background(), client.Credentials{Token: "alice-token", TenantID: "globex"})

	_, err := svc.GetDeal(bob, "s1")
	require.NoError(t, err)
	_, err = svc.GetDeal(alice, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, deals.getCalls, "another token must reach the backend")

	_, err = svc.GetDeal(bob, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, deals.getCalls)

	_, err = svc.MarkWon(alice, "s1", domain.TransitionOptions{})
	require.NoError(t, err)
	_, err = svc.GetDeal(bob, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, deals.getCalls, "a transition invalidates every caller's copy")
}

func TestPipelineService_FailedLoadRegistersNoBoard(t *testing.T) {
	deals := &mockDeals{pipelineErr: errors.New("unauthorized tenant")}
	svc, _ := newPipelineService(t, deals)
	ghost := client.WithCredentials(context.Background(), client.Credentials{TenantID: "ghost"})

	_, err := svc.Board(ghost)
	require.Error(t, err)
	_, err = svc.Move(ghost, "s1", domain.StageRetention)
	require.Error(t, err)
	assert.Zero(t, svc.ActiveTenants())

	deals.pipelineErr = nil
	deals.snapshot = salesSnapshot()
	_, err = svc.Board(ghost)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.ActiveTenants())
}

func TestPipelineService_Summary(t *testing.T) {
	deals := &mockDeals{snapshot: salesSnapshot()}
	svc, _ := newPipelineService(t, deals)

	sum, err := svc.Summary(context.Background())

	require.NoError(t, err)
	assert.Equal(t, domain.Money(700000), sum.OpenValue)
	assert.Equal(t, domain.Money(430000), sum.WeightedValue)
	assert.Equal(t, domain.Money(250000), sum.WonValue)
}

func TestPipelineService_SummaryError(t *testing.T) {
	deals := &mockDeals{pipelineErr: errors.New("down")}
	svc, _ := newPipelineService(t, deals)

	_, err := svc.Summary(context.Background())
	assert.Error(t, err)
}
