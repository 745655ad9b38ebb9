package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/port"
)

const (
	defaultCustomerName = "Valued Customer"
	policiesPerDispute  = 3
)

// DisputeService runs the dispute workflow: classify, gather evidence,
// retrieve policies, suggest the next action and draft a reply.
type DisputeService struct {
	gen        textGenerator
	policies   *PolicyIndex
	strategies map[domain.DisputeType]DisputeStrategy
	fallback   DisputeStrategy
	renderer   port.DraftRenderer
	metrics    *observability.Metrics
	logger     *zap.Logger
	newID      func() string
	now        func() time.Time
}

// NewDisputeService creates the dispute service. Strategies are looked up by
// classification; types without one use DefaultStrategy.
func NewDisputeService(
	gateway port.GatewayCaller,
	policies *PolicyIndex,
	renderer port.DraftRenderer,
	metrics *observability.Metrics,
	logger *zap.Logger,
	strategies ...DisputeStrategy,
) *DisputeService {
	s := &DisputeService{
		gen:        textGenerator{gateway: gateway, metrics: metrics, logger: logger},
		policies:   policies,
		strategies: make(map[domain.DisputeType]DisputeStrategy),
		fallback:   DefaultStrategy{},
		renderer:   renderer,
		metrics:    metrics,
		logger:     logger,
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, st := range strategies {
		s.strategies[st.Type()] = st
	}
	return s
}

// Resolve runs the whole workflow. Gateway failures never surface: each step
// degrades to its fallback text.
func (s *DisputeService) Resolve(ctx context.Context, req *domain.DisputeRequest) (*domain.DisputeResolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "DisputeService.Resolve")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("dispute.resolve", time.Since(start))
	}()

	if strings.TrimSpace(req.TransactionHistory) == "" && strings.TrimSpace(req.CustomerInteractions) == "" {
		return nil, &domain.ErrValidation{Field: "transaction_history", Message: "transaction history or customer interactions are required"}
	}
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		name = defaultCustomerName
	}

	res := &domain.DisputeResolution{ID: s.newID()}
	res.Classification, res.ClassifiedBy = s.classify(ctx, req)
	span.SetAttributes(attribute.String("dispute.type", string(res.Classification)))

	strategy, ok := s.strategies[res.Classification]
	if !ok {
		strategy = s.fallback
	}
	evidence, err := strategy.Enrich(ctx, req, res)
	if err != nil {
		return nil, err
	}

	query := "Dispute type: " + string(res.Classification) +
		". Transaction: " + req.TransactionHistory +
		". Customer: " + req.CustomerInteractions
	if evidence != "" {
		query += ". " + evidence
	}
	res.Policies = s.policies.Retrieve(query, policiesPerDispute)

	res.NextAction = s.gen.generate(ctx, &domain.GatewayRequest{
		Task:      domain.TaskSuggestAction,
		Prompt:    actionPrompt(res.Classification, req, res.Policies, evidence),
		MaxTokens: actionMaxTokens,
	}, FallbackNextAction)

	res.DraftResponse = s.gen.generate(ctx, &domain.GatewayRequest{
		Task:      domain.TaskDraftResponse,
		Prompt:    draftPrompt(res.Classification, res.NextAction.Text, name),
		MaxTokens: draftMaxTokens,
	}, FallbackDraftResponse)

	res.ResolvedAt = s.now().UTC()

	s.logger.Info("dispute resolved",
		zap.String("dispute_id", res.ID),
		zap.String("classification", string(res.Classification)),
		zap.String("classified_by", res.ClassifiedBy),
		zap.Bool("action_fallback", res.NextAction.Fallback),
		zap.Bool("draft_fallback", res.DraftResponse.Fallback),
	)
	return res, nil
}

// RenderDraft exports the draft response as an RFC 822 message.
func (s *DisputeService) RenderDraft(res *domain.DisputeResolution, to string) ([]byte, error) {
	if s.renderer == nil {
		return nil, &domain.ErrExternalService{Service: "mailer", Err: errors.New("not configured")}
	}
	return s.renderer.RenderDraft(res, to)
}

func (s *DisputeService) classify(ctx context.Context, req *domain.DisputeRequest) (domain.DisputeType, string) {
	out := s.gen.generate(ctx, &domain.GatewayRequest{
		Task:      domain.TaskClassifyDispute,
		Prompt:    classifyPrompt(req),
		MaxTokens: classifyMaxTokens,
	}, string(domain.DisputeBilling))

	by := "gateway"
	if out.Fallback {
		by = "fallback"
	}
	return ParseClassification(out.Text), by
}

// ParseClassification maps free model text to a dispute type. The first
// type mentioned in the order fraud, billing, service wins; anything else
// is billing.
func ParseClassification(text string) domain.DisputeType {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, kind := range []domain.DisputeType{domain.DisputeFraud, domain.DisputeBilling, domain.DisputeService} {
		if strings.Contains(t, string(kind)) {
			return kind
		}
	}
	return domain.DisputeBilling
}
