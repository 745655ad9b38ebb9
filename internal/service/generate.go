package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/port"
)

// Fallback reasons reported on GeneratedText.
const (
	reasonTimeout     = "gateway_timeout"
	reasonUnavailable = "gateway_unavailable"
	reasonDisabled    = "gateway_disabled"
)

// textGenerator wraps the gateway so that every caller gets text back: a
// failed call degrades to the supplied fallback, never to an error.
type textGenerator struct {
	gateway port.GatewayCaller
	metrics *observability.Metrics
	logger  *zap.Logger
}

func (g *textGenerator) generate(ctx context.Context, req *domain.GatewayRequest, fallback string) domain.GeneratedText {
	if g.gateway == nil {
		return domain.GeneratedText{Text: fallback, Fallback: true, Reason: reasonDisabled}
	}

	start := time.Now()
	resp, err := g.gateway.Generate(ctx, req)
	g.metrics.RecordRequestDuration("gateway."+string(req.Task), time.Since(start))

	if err != nil {
		outcome, reason := observability.OutcomeUnavailable, reasonUnavailable
		var timeout *domain.ErrGatewayTimeout
		if errors.As(err, &timeout) {
			outcome, reason = observability.OutcomeTimeout, reasonTimeout
		}
		g.metrics.RecordGatewayCall(req.Task, outcome)
		g.logger.Warn("gateway call failed, using fallback",
			zap.String("task", string(req.Task)),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return domain.GeneratedText{Text: fallback, Fallback: true, Reason: reason}
	}

	g.metrics.RecordGatewayCall(req.Task, observability.OutcomeSuccess)
	g.metrics.RecordTokens(resp.TokensUsed.PromptTokens, resp.TokensUsed.CompletionTokens)
	return domain.GeneratedText{Text: strings.TrimSpace(resp.Text)}
}
