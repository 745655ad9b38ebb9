package service

import (
	"context"
	"strings"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// DisputeStrategy adds type-specific evidence to a dispute before policies
// are retrieved. Enrich may fill fields on res and returns a plain-text
// summary of what it found for the prompts ("" when nothing).
type DisputeStrategy interface {
	Type() domain.DisputeType
	Enrich(ctx context.Context, req *domain.DisputeRequest, res *domain.DisputeResolution) (string, error)
}

// DefaultStrategy adds nothing.
type DefaultStrategy struct{}

func (DefaultStrategy) Type() domain.DisputeType { return "" }

func (DefaultStrategy) Enrich(context.Context, *domain.DisputeRequest, *domain.DisputeResolution) (string, error) {
	return "", nil
}

// ServiceStrategy attaches BGP outage evidence and the SLA credit to
// service disputes that come with device logs.
type ServiceStrategy struct {
	network *NetworkService
}

// NewServiceStrategy creates the service-dispute strategy.
func NewServiceStrategy(network *NetworkService) *ServiceStrategy {
	return &ServiceStrategy{network: network}
}

func (*ServiceStrategy) Type() domain.DisputeType { return domain.DisputeService }

func (s *ServiceStrategy) Enrich(ctx context.Context, req *domain.DisputeRequest, res *domain.DisputeResolution) (string, error) {
	if strings.TrimSpace(req.BGPLog) == "" {
		return "", nil
	}
	a, err := s.network.Analyze(ctx, req.BGPLog, SourceDispute, req.MonthlyFee)
	if err != nil {
		return "", err
	}
	res.NetworkEvidence = &domain.NetworkEvidence{Report: a.Report, Impact: a.Impact}
	return evidenceSummary(res.NetworkEvidence), nil
}
