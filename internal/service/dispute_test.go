package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/network"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/service"
)

func newDisputeService(gw *mockGateway, store *mockStore) (*service.DisputeService, *observability.Metrics) {
	metrics := observability.NewMetrics()
	netSvc := service.NewNetworkService(network.NewCorrelator(), store, metrics, zap.NewNop())
	return service.NewDisputeService(
		gw,
		service.NewPolicyIndex(service.DefaultPolicies()),
		&mockRenderer{},
		metrics,
		zap.NewNop(),
		service.NewServiceStrategy(netSvc),
	), metrics
}

func TestResolve_GatewayHappyPath(t *testing.T) {
	gw := &mockGateway{replies: map[domain.GatewayTask]string{
		domain.TaskClassifyDispute: "Fraud.",
		domain.TaskSuggestAction:   "Flag the account.",
		domain.TaskDraftResponse:   "Dear Jane, we are on it.",
	}}
	svc, _ := newDisputeService(gw, nil)

	res, err := svc.Resolve(context.Background(), &domain.DisputeRequest{
		CustomerName:         "Jane",
		TransactionHistory:   "09/01 $899.00 ELECTRONICS STORE",
		CustomerInteractions: "I never made this purchase, my card was stolen",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Classification != domain.DisputeFraud || res.ClassifiedBy != "gateway" {
		t.Errorf("unexpected classification %s by %s", res.Classification, res.ClassifiedBy)
	}
	if res.ID == "" || res.ResolvedAt.IsZero() {
		t.Errorf("expected id and timestamp, got %+v", res)
	}
	if len(res.Policies) != 3 || res.Policies[0].ID != "fraud_001" {
		t.Errorf("expected the fraud policy first, got %+v", res.Policies)
	}
	if res.NextAction.Text != "Flag the account." || res.DraftResponse.Fallback {
		t.Errorf("unexpected generated text %+v / %+v", res.NextAction, res.DraftResponse)
	}
	if res.NetworkEvidence != nil {
		t.Error("fraud disputes carry no network evidence")
	}

	// The draft prompt carries the next action and the customer name.
	for _, c := range gw.calls {
		if c.Task == domain.TaskDraftResponse && (!strings.Contains(c.Prompt, "Flag the account.") || !strings.Contains(c.Prompt, "Jane")) {
			t.Errorf("unexpected draft prompt %q", c.Prompt)
		}
	}
}

func TestResolve_GatewayDownUsesFallbacks(t *testing.T) {
	gw := &mockGateway{err: &domain.ErrGatewayUnavailable{Task: domain.TaskClassifyDispute, Err: errors.New("503")}}
	svc, metrics := newDisputeService(gw, nil)

	res, err := svc.Resolve(context.Background(), &domain.DisputeRequest{
		TransactionHistory: "Premium upgrade $49.99",
	})
	if err != nil {
		t.Fatalf("gateway failures must not surface, got %v", err)
	}

	if res.Classification != domain.DisputeBilling || res.ClassifiedBy != "fallback" {
		t.Errorf("expected fallback billing, got %s by %s", res.Classification, res.ClassifiedBy)
	}
	if res.NextAction.Text != service.FallbackNextAction || !res.NextAction.Fallback {
		t.Errorf("unexpected next action %+v", res.NextAction)
	}
	if res.DraftResponse.Text != service.FallbackDraftResponse || res.DraftResponse.Reason != "gateway_unavailable" {
		t.Errorf("unexpected draft %+v", res.DraftResponse)
	}
	if s := metrics.GetGatewaySnapshot(); s.TotalCalls != 3 || s.Fallbacks != 3 {
		t.Errorf("expected 3 failed calls, got %+v", s)
	}
}

func TestResolve_ServiceDisputeAttachesNetworkEvidence(t *testing.T) {
	gw := &mockGateway{replies: map[domain.GatewayTask]string{
		domain.TaskClassifyDispute: "service",
		domain.TaskSuggestAction:   "Apply the SLA credit.",
		domain.TaskDraftResponse:   "Dear customer, a credit has been applied.",
	}}
	store := &mockStore{}
	svc, _ := newDisputeService(gw, store)
	fee := decimal.NewFromInt(500)

	res, err := svc.Resolve(context.Background(), &domain.DisputeRequest{
		CustomerName:         "Acme Corp",
		CustomerInteractions: "Our connection was down for most of the afternoon on Sept 2",
		BGPLog:               readFixture(t, "bgp_outage.log"),
		MonthlyFee:           &fee,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := res.NetworkEvidence
	if ev == nil || ev.Impact == nil || !ev.Impact.OutageDetected {
		t.Fatalf("expected outage evidence, got %+v", ev)
	}
	if ev.Impact.SLA == nil || !ev.Impact.SLA.Credit.Equal(decimal.RequireFromString("0.52")) {
		t.Errorf("expected a 0.52 credit, got %+v", ev.Impact.SLA)
	}
	if len(store.saved) != 1 || store.source != service.SourceDispute {
		t.Errorf("expected the incident stored as dispute evidence, got %d from %q", len(store.saved), store.source)
	}

	var actionPrompt string
	for _, c := range gw.calls {
		if c.Task == domain.TaskSuggestAction {
			actionPrompt = c.Prompt
		}
	}
	if !strings.Contains(actionPrompt, "Network Evidence:") || !strings.Contains(actionPrompt, "45.00 minutes") {
		t.Errorf("expected evidence in the action prompt, got %q", actionPrompt)
	}
}

func TestResolve_Validation(t *testing.T) {
	svc, _ := newDisputeService(&mockGateway{}, nil)

	_, err := svc.Resolve(context.Background(), &domain.DisputeRequest{CustomerName: "Jane"})

	var v *domain.ErrValidation
	if !errors.As(err, &v) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	svc, _ := newDisputeService(&mockGateway{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Resolve(ctx, &domain.DisputeRequest{TransactionHistory: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRenderDraft_DelegatesToRenderer(t *testing.T) {
	svc, _ := newDisputeService(&mockGateway{}, nil)
	res := &domain.DisputeResolution{DraftResponse: domain.GeneratedText{Text: "hello"}}

	b, err := svc.RenderDraft(res, "jane@example.com")
	if err != nil || !strings.HasSuffix(string(b), "hello") {
		t.Errorf("unexpected render %q (%v)", b, err)
	}
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		in   string
		want domain.DisputeType
	}{
		{"fraud", domain.DisputeFraud},
		{"  SERVICE\n", domain.DisputeService},
		{"This looks like a billing issue", domain.DisputeBilling},
		{"fraudulent billing", domain.DisputeFraud},
		{"no idea", domain.DisputeBilling},
		{"", domain.DisputeBilling},
	}
	for _, tt := range tests {
		if got := service.ParseClassification(tt.in); got != tt.want {
			t.Errorf("ParseClassification(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPolicyIndex_Retrieve(t *testing.T) {
	idx := service.NewPolicyIndex(service.DefaultPolicies())

	got := idx.Retrieve("BGP outage downtime SLA credits network", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(got))
	}
	for _, p := range got {
		if !strings.HasPrefix(p.ID, "network_") && p.ID != "bgp_evidence_001" {
			t.Errorf("expected network policies, got %s", p.ID)
		}
	}

	none := idx.Retrieve("zzz", 3)
	if len(none) != 3 || none[0].ID != "billing_001" {
		t.Errorf("expected corpus order without overlap, got %+v", none)
	}
	if len(idx.Retrieve("fraud", 50)) != len(service.DefaultPolicies()) {
		t.Error("expected k to be capped at the corpus size")
	}
}
