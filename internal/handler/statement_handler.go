package handler

import (
	"net/http"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Statements: POST /v1/statements/*
// ============================================================

func parseStatementHandler(svc *service.StatementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/statements/parse")
		defer span.End()

		text, err := readText(w, r, "text")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		result, err := svc.Parse(ctx, text)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("statement.parse_errors", len(result.Errors)))
		writeJSON(w, http.StatusOK, result)
	}
}

// analyzeStatementHandler accepts the full JSON request or, for plain text
// bodies, the statement alone.
func analyzeStatementHandler(svc *service.StatementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/statements/analyze")
		defer span.End()

		var req domain.StatementAnalysisRequest
		if isJSON(r) {
			if err := decodeJSON(w, r, &req); err != nil {
				handleServiceError(w, err, logger)
				return
			}
		} else {
			text, err := readText(w, r, "text")
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			req.Text = text
		}

		report, err := svc.Analyze(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

type batchRequest struct {
	Statements []string `json:"statements"`
}

type batchResponse struct {
	Items  []domain.BatchItem `json:"items"`
	Failed int                `json:"failed"`
}

func batchStatementsHandler(svc *service.StatementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/statements/batch")
		defer span.End()

		var req batchRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		items, err := svc.AnalyzeBatch(ctx, req.Statements)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		resp := batchResponse{Items: items}
		for _, it := range items {
			if it.Error != "" {
				resp.Failed++
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Transactions: POST /v1/transactions/*
// ============================================================

func importTransactionsHandler(svc *service.StatementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/import")
		defer span.End()

		csvText, err := readText(w, r, "csv")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		report, err := svc.ImportTransactions(ctx, csvText)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

type categorizeRequest struct {
	Description string `json:"description"`
}

type categorizeResponse struct {
	Description string          `json:"description"`
	Category    domain.Category `json:"category"`
}

func categorizeHandler(svc *service.StatementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req categorizeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		cat, err := svc.Categorize(req.Description)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, categorizeResponse{Description: req.Description, Category: cat})
	}
}

// ============================================================
// Finance: POST /v1/finance/*
// ============================================================

func payoffHandler(svc *service.StatementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/finance/payoff")
		defer span.End()

		var req domain.PayoffRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		h, err := svc.Payoff(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, h)
	}
}

func scenarioHandler(svc *service.StatementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/finance/scenario")
		defer span.End()

		var req domain.ScenarioRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		cmp, err := svc.Scenario(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cmp)
	}
}
