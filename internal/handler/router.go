package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthCheck probes one dependency for /healthz and /readyz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies are the services exposed over HTTP. A nil service leaves its
// routes answering 503; a nil Auth leaves /v1 open.
type Dependencies struct {
	Statements *service.StatementService
	Network    *service.NetworkService
	Disputes   *service.DisputeService
	Auth       *service.TokenAuthority
	Checks     []HealthCheck
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Checks))
	r.Get("/readyz", readyzHandler(deps.Checks, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if deps.Auth != nil {
			r.Use(JWTAuthMiddleware(deps.Auth, logger))
		}

		// Statements & transactions
		r.Group(func(r chi.Router) {
			r.Use(RequireScope(ScopeStatements, logger))
			if deps.Statements == nil {
				r.Use(unavailable("statement service"))
			}
			svc := deps.Statements
			r.Post("/statements/parse", parseStatementHandler(svc, logger))
			r.Post("/statements/analyze", analyzeStatementHandler(svc, logger))
			r.Post("/statements/batch", batchStatementsHandler(svc, logger))
			r.Post("/transactions/import", importTransactionsHandler(svc, logger))
			r.Post("/transactions/categorize", categorizeHandler(svc, logger))
			r.Post("/finance/payoff", payoffHandler(svc, logger))
			r.Post("/finance/scenario", scenarioHandler(svc, logger))
		})

		// Network evidence
		r.Group(func(r chi.Router) {
			r.Use(RequireScope(ScopeNetwork, logger))
			if deps.Network == nil {
				r.Use(unavailable("network service"))
			}
			r.Post("/network/correlate", correlateHandler(deps.Network, logger))
			r.Get("/network/incidents", listIncidentsHandler(deps.Network, logger))
		})

		// Disputes
		r.Group(func(r chi.Router) {
			r.Use(RequireScope(ScopeDisputes, logger))
			if deps.Disputes == nil {
				r.Use(unavailable("dispute service"))
			}
			r.Post("/disputes/resolve", resolveDisputeHandler(deps.Disputes, logger))
		})

		r.Get("/metrics/gateway", gatewayMetricsHandler(metrics))
	})

	return r
}

func unavailable(name string) func(http.Handler) http.Handler {
	return func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusServiceUnavailable, name+" not configured")
		})
	}
}

// ============================================================
// Operational
// ============================================================

func runChecks(ctx context.Context, checks []HealthCheck) domain.HealthStatus {
	now := time.Now().UTC().Format(time.RFC3339)
	out := domain.HealthStatus{
		Status:   "healthy",
		Services: []domain.ServiceHealth{{Name: "bfa-api", Status: "healthy", LastChecked: now}},
	}
	for _, c := range checks {
		h := domain.ServiceHealth{Name: c.Name, Status: "healthy", LastChecked: now}
		if err := c.Check(ctx); err != nil {
			h.Status = "degraded"
			h.Detail = err.Error()
			out.Status = "degraded"
		}
		out.Services = append(out.Services, h)
	}
	return out
}

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		writeJSON(w, http.StatusOK, runChecks(ctx, checks))
	}
}

func readyzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := runChecks(ctx, checks)
		if status.Status != "healthy" {
			logger.Warn("not ready", zap.Any("services", status.Services))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func gatewayMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetGatewaySnapshot())
	}
}
