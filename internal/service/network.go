package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/network"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/port"
)

// Incident sources.
const (
	SourceUpload  = "upload"
	SourceDispute = "dispute"
	SourceStream  = "kafka"
)

var errNoEvents = errors.New("batch contained no BGP events")

// NetworkService correlates device logs into incidents and keeps them as
// evidence when a store is configured.
type NetworkService struct {
	correlator *network.Correlator
	store      port.EvidenceStore
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewNetworkService creates the service. store may be nil.
func NewNetworkService(correlator *network.Correlator, store port.EvidenceStore, metrics *observability.Metrics, logger *zap.Logger) *NetworkService {
	return &NetworkService{correlator: correlator, store: store, metrics: metrics, logger: logger}
}

// Analyze correlates a log blob and summarizes its impact. A storage
// failure is logged and reported as Stored == 0; the analysis still returns.
func (s *NetworkService) Analyze(ctx context.Context, text, source string, monthlyFee *decimal.Decimal) (*domain.NetworkAnalysis, error) {
	ctx, span := tracer.Start(ctx, "NetworkService.Analyze")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, &domain.ErrValidation{Field: "log", Message: "device log is empty"}
	}
	if monthlyFee != nil && monthlyFee.IsNegative() {
		return nil, &domain.ErrValidation{Field: "monthly_fee", Message: "must not be negative"}
	}

	report := s.correlator.CorrelateLog(text, network.Options{})
	s.metrics.AddParseEvents(observability.IgnoredLogLine, report.IgnoredLines)
	s.metrics.AddIncidents(source, len(report.Incidents))
	span.SetAttributes(
		attribute.Int("network.parsed_lines", report.ParsedLines),
		attribute.Int("network.incidents", len(report.Incidents)),
	)

	out := &domain.NetworkAnalysis{
		Report: report,
		Impact: network.Impact(report, monthlyFee),
	}

	if s.store != nil && len(report.Incidents) > 0 {
		n, err := s.store.SaveIncidents(ctx, source, report.Incidents)
		if err != nil {
			s.logger.Error("failed to persist incidents", zap.String("source", source), zap.Error(err))
		}
		out.Stored = n
	}
	if s.store != nil {
		out.Closed = s.closeRecovered(ctx, report.Recoveries)
		span.SetAttributes(attribute.Int("network.closed", out.Closed))
	}
	return out, nil
}

// closeRecovered ends stored ongoing incidents whose peer came back up in a
// later log. Failures are logged per recovery.
func (s *NetworkService) closeRecovered(ctx context.Context, recoveries []domain.NetworkEvent) int {
	closed := 0
	for _, up := range recoveries {
		ok, err := s.store.CloseOngoing(ctx, up)
		if err != nil {
			s.logger.Error("failed to close stored incident",
				zap.String("device", up.Device),
				zap.String("peer", up.Peer),
				zap.Error(err),
			)
			continue
		}
		if ok {
			closed++
		}
	}
	return closed
}

// ListIncidents returns stored evidence.
func (s *NetworkService) ListIncidents(ctx context.Context, filter domain.IncidentFilter) ([]domain.Incident, error) {
	ctx, span := tracer.Start(ctx, "NetworkService.ListIncidents")
	defer span.End()

	if s.store == nil {
		return nil, &domain.ErrExternalService{Service: "evidence-store", Err: errors.New("not configured")}
	}
	return s.store.ListIncidents(ctx, filter)
}

// Ingest consumes log batches from src until ctx is cancelled. Each batch is
// correlated on its own; a peer-up whose peer-down came in an earlier batch
// closes the stored ongoing incident.
func (s *NetworkService) Ingest(ctx context.Context, src port.LogSource) error {
	return src.Consume(ctx, func(ctx context.Context, batch string) error {
		a, err := s.Analyze(ctx, batch, SourceStream, nil)
		if err != nil {
			return err
		}
		if a.Report.ParsedLines == 0 {
			return errNoEvents
		}
		if len(a.Report.Incidents) > 0 || a.Closed > 0 {
			s.logger.Info("incidents ingested",
				zap.Int("incidents", len(a.Report.Incidents)),
				zap.Int("stored", a.Stored),
				zap.Int("closed", a.Closed),
				zap.String("impact", string(a.Impact.Level)),
			)
		}
		return nil
	})
}
