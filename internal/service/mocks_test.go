package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// --- Mocks ---

type mockGateway struct {
	mu      sync.Mutex
	replies map[domain.GatewayTask]string
	err     error
	calls   []*domain.GatewayRequest
}

func (m *mockGateway) Generate(_ context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.GatewayResponse{
		Text:       m.replies[req.Task],
		TokensUsed: domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (m *mockGateway) count(task domain.GatewayTask) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Task == task {
			n++
		}
	}
	return n
}

type mockStore struct {
	mu     sync.Mutex
	saved  []domain.Incident
	source string
	err    error
}

func (m *mockStore) SaveIncidents(_ context.Context, source string, incidents []domain.Incident) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.source = source
	m.saved = append(m.saved, incidents...)
	return len(incidents), nil
}

func (m *mockStore) ListIncidents(_ context.Context, filter domain.IncidentFilter) ([]domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Incident
	for _, inc := range m.saved {
		if filter.Device == "" || inc.Device == filter.Device {
			out = append(out, inc)
		}
	}
	return out, m.err
}

func (m *mockStore) CloseOngoing(_ context.Context, up domain.NetworkEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for i := len(m.saved) - 1; i >= 0; i-- {
		inc := &m.saved[i]
		if inc.Device == up.Device && inc.Peer == up.Peer && inc.Ongoing && !inc.Start.After(up.Timestamp) {
			end := up.Timestamp
			inc.End, inc.Ongoing, inc.Duration = &end, false, end.Sub(inc.Start)
			inc.Events = append(inc.Events, up)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) PurgeBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, m.err
}

type mockLogSource struct {
	batches []string
	results []error
}

func (m *mockLogSource) Consume(ctx context.Context, handle func(context.Context, string) error) error {
	for _, b := range m.batches {
		m.results = append(m.results, handle(ctx, b))
	}
	return nil
}

func (m *mockLogSource) Close() error { return nil }

type mockRenderer struct {
	to string
}

func (m *mockRenderer) RenderDraft(res *domain.DisputeResolution, to string) ([]byte, error) {
	m.to = to
	return []byte("Subject: draft\r\n\r\n" + res.DraftResponse.Text), nil
}
