// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// GatewayCaller invokes the external AI gateway.
type GatewayCaller interface {
	Generate(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error)
}

// TokenSource issues bearer tokens for outbound calls.
type TokenSource interface {
	Token() (string, error)
}

// EvidenceStore persists correlated incidents as dispute evidence.
type EvidenceStore interface {
	SaveIncidents(ctx context.Context, source string, incidents []domain.Incident) (int, error)
	ListIncidents(ctx context.Context, filter domain.IncidentFilter) ([]domain.Incident, error)
	// CloseOngoing ends the latest ongoing incident of the recovery's device
	// and peer that started before it, reporting whether one was closed.
	CloseOngoing(ctx context.Context, recovery domain.NetworkEvent) (bool, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LogSource streams raw device log batches. Consume blocks until ctx is
// cancelled or the source fails.
type LogSource interface {
	Consume(ctx context.Context, handle func(ctx context.Context, batch string) error) error
	Close() error
}

// DraftRenderer turns a resolved dispute into a sendable message.
type DraftRenderer interface {
	RenderDraft(res *domain.DisputeResolution, to string) ([]byte, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
