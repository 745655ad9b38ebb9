package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// maxBodyBytes bounds every request body; statements and device logs are
// text blobs, never uploads.
const maxBodyBytes = 5 << 20

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return bodyError(err, "invalid request body")
	}
	return nil
}

// readText returns the raw body, or the named field when the body is JSON.
// Clients can post a statement or log as text/plain or wrapped in an object.
func readText(w http.ResponseWriter, r *http.Request, field string) (string, error) {
	if isJSON(r) {
		var body map[string]any
		if err := decodeJSON(w, r, &body); err != nil {
			return "", err
		}
		s, ok := body[field].(string)
		if !ok {
			return "", &domain.ErrValidation{Field: field, Message: "must be a string"}
		}
		return s, nil
	}

	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return "", bodyError(err, "unreadable request body")
	}
	return string(b), nil
}

func bodyError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return &domain.ErrValidation{Field: "body", Message: msg}
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// parseIncidentFilter reads ?device=&since=&limit=. since accepts RFC 3339
// or a plain date.
func parseIncidentFilter(r *http.Request) (domain.IncidentFilter, error) {
	q := r.URL.Query()
	f := domain.IncidentFilter{Device: strings.TrimSpace(q.Get("device")), Limit: 100}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			t, err = time.Parse(time.DateOnly, v)
		}
		if err != nil {
			return f, &domain.ErrValidation{Field: "since", Message: fmt.Sprintf("invalid time %q", v)}
		}
		f.Since = t.UTC()
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return f, &domain.ErrValidation{Field: "limit", Message: "must be between 1 and 1000"}
		}
		f.Limit = n
	}
	return f, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrGatewayTimeout
	var validation *domain.ErrValidation
	var missingHeaders *domain.ErrMissingHeaders
	var unauthorized *domain.ErrUnauthorized
	var external *domain.ErrExternalService
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &missingHeaders):
		logger.Debug("csv rejected", zap.Strings("missing", missingHeaders.Missing))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("gateway timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
