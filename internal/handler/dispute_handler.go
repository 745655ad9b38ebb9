package handler

import (
	"fmt"
	"net/http"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// resolveDisputeHandler handles POST /v1/disputes/resolve. With
// ?format=eml&to=<address> the draft reply is returned as a message instead
// of the JSON resolution.
func resolveDisputeHandler(svc *service.DisputeService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/disputes/resolve")
		defer span.End()

		format := r.URL.Query().Get("format")
		if format != "" && format != "json" && format != "eml" {
			handleServiceError(w, &domain.ErrValidation{Field: "format", Message: "must be json or eml"}, logger)
			return
		}

		var req domain.DisputeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		res, err := svc.Resolve(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("dispute.id", res.ID),
			attribute.String("dispute.type", string(res.Classification)),
		)
		fields := []zap.Field{
			zap.String("dispute_id", res.ID),
			zap.String("classification", string(res.Classification)),
			zap.Bool("fallback_draft", res.DraftResponse.Fallback),
		}
		if caller, ok := CallerFromContext(ctx); ok {
			fields = append(fields, zap.String("caller", caller.Subject))
		}
		logger.Info("dispute resolved", fields...)

		if format != "eml" {
			writeJSON(w, http.StatusOK, res)
			return
		}

		msg, err := svc.RenderDraft(res, r.URL.Query().Get("to"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.Header().Set("Content-Type", "message/rfc822")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="dispute-%s.eml"`, res.ID))
		w.WriteHeader(http.StatusOK)
		w.Write(msg)
	}
}
