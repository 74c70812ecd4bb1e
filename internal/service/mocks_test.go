package service_test

import (
	"context"
	"sync"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

// --- Mocks ---

type mockDeals struct {
	mu            sync.Mutex
	snapshot      domain.PipelineSnapshot
	pipelineErr   error
	transitionErr error
	pipelineCalls int
	getCalls      int
	transitions   []domain.TransitionRequest
}

func (m *mockDeals) GetPipeline(_ context.Context) (domain.PipelineSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipelineCalls++
	if m.pipelineErr != nil {
		return nil, m.pipelineErr
	}
	return m.snapshot, nil
}

func (m *mockDeals) GetDeal(_ context.Context, id string) (*domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	for _, deals := range m.snapshot {
		for _, d := range deals {
			if d.ID == id {
				return d.Clone(), nil
			}
		}
	}
	return nil, &domain.ErrNotFound{Resource: "deal", ID: id}
}

func (m *mockDeals) TransitionDeal(_ context.Context, _ string, req *domain.TransitionRequest) (*domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, *req)
	if m.transitionErr != nil {
		return nil, m.transitionErr
	}
	return nil, nil
}

type mockInvoices struct {
	invoices []domain.Invoice
	err      error
	perPage  int
}

func (m *mockInvoices) ListInvoices(_ context.Context, perPage int) ([]domain.Invoice, error) {
	m.perPage = perPage
	return m.invoices, m.err
}

type mockNotifications struct {
	mu      sync.Mutex
	items   []domain.Notification
	listErr error
	cmdErr  error
	calls   []string
}

func (m *mockNotifications) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.cmdErr
}

func (m *mockNotifications) ListNotifications(_ context.Context) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Notification, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *mockNotifications) MarkNotificationRead(_ context.Context, id string) error {
	return m.record("read:" + id)
}

func (m *mockNotifications) MarkAllNotificationsRead(_ context.Context) error {
	return m.record("read-all")
}

func (m *mockNotifications) ToggleNotificationImportant(_ context.Context, id string) error {
	return m.record("important:" + id)
}

func (m *mockNotifications) ArchiveNotification(_ context.Context, id string) error {
	return m.record("archive:" + id)
}

func (m *mockNotifications) DeleteNotification(_ context.Context, id string) error {
	return m.record("delete:" + id)
}

func salesSnapshot() domain.PipelineSnapshot {
	return domain.PipelineSnapshot{
		domain.StageHook:  {{ID: "h1", Name: "Trial", Stage: domain.StageHook, Value: 100000, Probability: 10}},
		domain.StageSales: {{ID: "s1", Name: "Renewal", Stage: domain.StageSales, Value: 600000, Probability: 70}},
		domain.StageWon:   {{ID: "w1", Name: "Closed", Stage: domain.StageWon, Value: 250000, Probability: 100}},
	}
}
