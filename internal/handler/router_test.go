package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/categorizer"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/finance"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/handler"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/cache"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/mailer"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/network"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/parser"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockGateway struct {
	replies map[domain.GatewayTask]string
	err     error
}

func (m *mockGateway) Generate(_ context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.GatewayResponse{Text: m.replies[req.Task]}, nil
}

func readFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	return string(b)
}

func newDeps(t *testing.T, gw *mockGateway) handler.Dependencies {
	t.Helper()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	c := cache.New[domain.GeneratedText](time.Minute)
	t.Cleanup(c.Close)

	netSvc := service.NewNetworkService(network.NewCorrelator(), nil, metrics, logger)
	return handler.Dependencies{
		Statements: service.NewStatementService(
			parser.NewExtractor(parser.DefaultVocabulary()),
			categorizer.New(categorizer.DefaultRules()),
			finance.DefaultMinimumPaymentRule(),
			gw, c, 2, metrics, logger,
		),
		Network: netSvc,
		Disputes: service.NewDisputeService(
			gw,
			service.NewPolicyIndex(service.DefaultPolicies()),
			mailer.NewDraftRenderer("disputes@example.com"),
			metrics, logger,
			service.NewServiceStrategy(netSvc),
		),
		Metrics: metrics,
		Logger:  logger,
	}
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

// --- Operational ---

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(handler.Dependencies{})

	rec := do(t, router, http.MethodGet, "/healthz", "", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(handler.Dependencies{})

	rec := do(t, router, http.MethodGet, "/readyz", "", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	router := handler.NewRouter(handler.Dependencies{Checks: []handler.HealthCheck{{
		Name:  "evidence-store",
		Check: func(context.Context) error { return errors.New("database is locked") },
	}}})

	if rec := do(t, router, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	rec := do(t, router, http.MethodGet, "/healthz", "", "")
	var status domain.HealthStatus
	decode(t, rec, &status)
	if status.Status != "degraded" || len(status.Services) != 2 || status.Services[1].Detail != "database is locked" {
		t.Errorf("unexpected health %+v", status)
	}
}

func TestMetrics(t *testing.T) {
	router := handler.NewRouter(handler.Dependencies{Metrics: observability.NewMetrics()})

	rec := do(t, router, http.MethodGet, "/metrics", "", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestUnconfiguredServiceAnswers503(t *testing.T) {
	router := handler.NewRouter(handler.Dependencies{})

	rec := do(t, router, http.MethodPost, "/v1/statements/parse", "text/plain", "Current Balance: $1.00")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

// --- Statements ---

func TestParseStatement_PlainText(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	rec := do(t, router, http.MethodPost, "/v1/statements/parse", "text/plain", readFixture(t, "statement_september.txt"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var result domain.StatementParseResult
	decode(t, rec, &result)
	if !result.Record.CurrentBalance.Valid || result.Record.CurrentBalance.Decimal.String() != "4681.15" {
		t.Errorf("unexpected current balance %v", result.Record.CurrentBalance)
	}
	if result.Reconciliation == nil || !result.Reconciliation.Balanced {
		t.Errorf("expected a balanced statement, got %+v", result.Reconciliation)
	}
}

func TestParseStatement_EmptyBody(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	rec := do(t, router, http.MethodPost, "/v1/statements/parse", "application/json", `{"text": "   "}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAnalyzeStatement_GatewayDownStill200(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{err: &domain.ErrGatewayTimeout{Task: domain.TaskExplainStatement}}))
	body, _ := json.Marshal(domain.StatementAnalysisRequest{
		Text:            readFixture(t, "statement_september.txt"),
		TransactionsCSV: readFixture(t, "transactions.csv"),
	})

	rec := do(t, router, http.MethodPost, "/v1/statements/analyze", "application/json", string(body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var report domain.StatementReport
	decode(t, rec, &report)
	if !report.Explanation.Fallback || report.Explanation.Reason != "gateway_timeout" {
		t.Errorf("expected a timeout fallback, got %+v", report.Explanation)
	}
	if report.Transactions == nil || len(report.Transactions.Transactions) == 0 {
		t.Error("expected imported transactions")
	}
}

func TestBatchStatements_PartialFailure(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{replies: map[domain.GatewayTask]string{domain.TaskExplainStatement: "ok"}}))
	body, _ := json.Marshal(map[string][]string{
		"statements": {readFixture(t, "statement_september.txt"), "  "},
	})

	rec := do(t, router, http.MethodPost, "/v1/statements/batch", "application/json", string(body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Items  []domain.BatchItem `json:"items"`
		Failed int                `json:"failed"`
	}
	decode(t, rec, &resp)
	if len(resp.Items) != 2 || resp.Failed != 1 || resp.Items[0].Report == nil || resp.Items[1].Error == "" {
		t.Errorf("unexpected batch %+v", resp)
	}
}

// --- Transactions & finance ---

func TestImportTransactions(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	rec := do(t, router, http.MethodPost, "/v1/transactions/import", "text/csv", readFixture(t, "transactions.csv"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var report domain.TransactionReport
	decode(t, rec, &report)
	if len(report.Transactions) == 0 || len(report.Categories) == 0 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestImportTransactions_MissingHeaders(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	rec := do(t, router, http.MethodPost, "/v1/transactions/import", "text/csv", "Date,Memo\n09/01/2025,Coffee\n")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCategorize(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	rec := do(t, router, http.MethodPost, "/v1/transactions/categorize", "application/json", `{"description": "STARBUCKS STORE #1234"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Category domain.Category `json:"category"`
	}
	decode(t, rec, &resp)
	if resp.Category != domain.CategoryDining {
		t.Errorf("expected dining, got %q", resp.Category)
	}
}

func TestPayoff(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	rec := do(t, router, http.MethodPost, "/v1/finance/payoff", "application/json", `{"balance": "4681.15", "apr": "18.99"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var h domain.PayoffHorizon
	decode(t, rec, &h)
	if h.Outcome != domain.PayoffPaid || h.Months == 0 {
		t.Errorf("unexpected horizon %+v", h)
	}
}

func TestPayoff_NegativeBalance(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	rec := do(t, router, http.MethodPost, "/v1/finance/payoff", "application/json", `{"balance": "-1", "apr": "0.2"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// --- Network ---

func TestCorrelate_WithMonthlyFee(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	rec := do(t, router, http.MethodPost, "/v1/network/correlate?monthly_fee=500", "text/plain", readFixture(t, "bgp_outage.log"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var a domain.NetworkAnalysis
	decode(t, rec, &a)
	if len(a.Report.Incidents) != 1 || a.Impact.SLA == nil || a.Impact.SLA.Credit.String() != "0.52" {
		t.Errorf("unexpected analysis %+v", a.Impact)
	}
	if a.Stored != 0 {
		t.Errorf("nothing is stored without an evidence store, got %d", a.Stored)
	}
}

func TestCorrelate_BadFee(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	rec := do(t, router, http.MethodPost, "/v1/network/correlate?monthly_fee=lots", "text/plain", readFixture(t, "bgp_outage.log"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListIncidents_NoStore(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	rec := do(t, router, http.MethodGet, "/v1/network/incidents", "", "")

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestListIncidents_BadSince(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	rec := do(t, router, http.MethodGet, "/v1/network/incidents?since=yesterday", "", "")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// --- Disputes ---

func TestResolveDispute_JSON(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{replies: map[domain.GatewayTask]string{
		domain.TaskClassifyDispute: "billing",
		domain.TaskSuggestAction:   "Refund the duplicate charge.",
		domain.TaskDraftResponse:   "Dear Sam, the refund is on its way.",
	}}))

	rec := do(t, router, http.MethodPost, "/v1/disputes/resolve", "application/json",
		`{"customer_name": "Sam", "transaction_history": "Charged twice for $49.99"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var res domain.DisputeResolution
	decode(t, rec, &res)
	if res.Classification != domain.DisputeBilling || res.DraftResponse.Text != "Dear Sam, the refund is on its way." {
		t.Errorf("unexpected resolution %+v", res)
	}
}

func TestResolveDispute_EML(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{err: errors.New("down")}))

	rec := do(t, router, http.MethodPost, "/v1/disputes/resolve?format=eml&to=sam@example.com", "application/json",
		`{"transaction_history": "Charged twice for $49.99"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "message/rfc822" {
		t.Errorf("unexpected content type %q", ct)
	}
	body := rec.Body.Bytes()
	if !bytes.Contains(body, []byte("sam@example.com")) || !bytes.Contains(body, []byte("X-Draft-Fallback")) {
		t.Errorf("unexpected message:\n%s", body)
	}
}

func TestResolveDispute_EMLWithoutRecipient(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	rec := do(t, router, http.MethodPost, "/v1/disputes/resolve?format=eml", "application/json",
		`{"transaction_history": "Charged twice"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestResolveDispute_Validation(t *testing.T) {
	router := handler.NewRouter(newDeps(t, &mockGateway{}))

	for _, body := range []string{`{}`, `not json`} {
		rec := do(t, router, http.MethodPost, "/v1/disputes/resolve", "application/json", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestGatewayMetrics(t *testing.T) {
	deps := newDeps(t, &mockGateway{err: errors.New("down")})
	router := handler.NewRouter(deps)

	do(t, router, http.MethodPost, "/v1/disputes/resolve", "application/json", `{"transaction_history": "Charged twice"}`)
	rec := do(t, router, http.MethodGet, "/v1/metrics/gateway", "", "")

	var m domain.GatewayMetrics
	decode(t, rec, &m)
	if m.TotalCalls != 3 || m.Fallbacks != 3 {
		t.Errorf("unexpected snapshot %+v", m)
	}
}
