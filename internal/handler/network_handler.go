package handler

import (
	"net/http"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/service"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// correlateHandler handles POST /v1/network/correlate. The body is the raw
// device log (or {"log": "..."}); ?monthly_fee= adds an SLA assessment.
func correlateHandler(svc *service.NetworkService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/network/correlate")
		defer span.End()

		var fee *decimal.Decimal
		if v := r.URL.Query().Get("monthly_fee"); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				handleServiceError(w, &domain.ErrValidation{Field: "monthly_fee", Message: "must be a decimal amount"}, logger)
				return
			}
			fee = &d
		}

		text, err := readText(w, r, "log")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		analysis, err := svc.Analyze(ctx, text, service.SourceUpload, fee)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.Int("network.incidents", len(analysis.Report.Incidents)),
			attribute.Int("network.stored", analysis.Stored),
		)
		writeJSON(w, http.StatusOK, analysis)
	}
}

type incidentsResponse struct {
	Incidents []domain.Incident `json:"incidents"`
	Count     int               `json:"count"`
}

func listIncidentsHandler(svc *service.NetworkService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/network/incidents")
		defer span.End()

		filter, err := parseIncidentFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		incidents, err := svc.ListIncidents(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if incidents == nil {
			incidents = []domain.Incident{}
		}
		writeJSON(w, http.StatusOK, incidentsResponse{Incidents: incidents, Count: len(incidents)})
	}
}
