package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/categorizer"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/finance"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/cache"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/parser"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/port"
)

var tracer = otel.Tracer("service")

// StatementService parses, reconciles and analyzes billing statements.
type StatementService struct {
	extractor   *parser.Extractor
	categorizer *categorizer.Categorizer
	rule        domain.MinimumPaymentRule
	gen         textGenerator
	cache       port.Cache[domain.GeneratedText]
	batchLimit  int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewStatementService creates the statement service with all dependencies injected.
func NewStatementService(
	extractor *parser.Extractor,
	cat *categorizer.Categorizer,
	rule domain.MinimumPaymentRule,
	gateway port.GatewayCaller,
	explanations port.Cache[domain.GeneratedText],
	batchLimit int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *StatementService {
	if batchLimit < 1 {
		batchLimit = 1
	}
	return &StatementService{
		extractor:   extractor,
		categorizer: cat,
		rule:        rule,
		gen:         textGenerator{gateway: gateway, metrics: metrics, logger: logger},
		cache:       explanations,
		batchLimit:  batchLimit,
		metrics:     metrics,
		logger:      logger,
	}
}

// Parse extracts a statement record and checks the balance equation.
func (s *StatementService) Parse(ctx context.Context, text string) (*domain.StatementParseResult, error) {
	_, span := tracer.Start(ctx, "StatementService.Parse")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, &domain.ErrValidation{Field: "text", Message: "statement text is empty"}
	}

	rec, perrs := s.extractor.ParseStatement(text)
	s.metrics.AddParseEvents(observability.ParseErrorLabel, len(perrs))
	span.SetAttributes(attribute.Int("statement.fields", len(rec.Present())))

	out := &domain.StatementParseResult{Record: rec, Errors: perrs}
	if r, err := finance.Reconcile(rec); err == nil {
		out.Reconciliation = r
	}
	return out, nil
}

// ImportTransactions parses a CSV export and categorizes every row.
func (s *StatementService) ImportTransactions(ctx context.Context, csvText string) (*domain.TransactionReport, error) {
	ctx, span := tracer.Start(ctx, "StatementService.ImportTransactions")
	defer span.End()

	imp, err := parser.ParseTransactionsCSV(strings.NewReader(csvText))
	if err != nil {
		return nil, err
	}
	s.metrics.AddParseEvents(observability.SkippedRow, imp.SkippedRows)
	if imp.SkippedRows > 0 {
		s.logger.Info("csv rows skipped", zap.Int("skipped", imp.SkippedRows))
	}

	if err := s.categorizer.CategorizeAll(ctx, imp.Transactions); err != nil {
		return nil, fmt.Errorf("categorize: %w", err)
	}
	span.SetAttributes(attribute.Int("transactions.count", len(imp.Transactions)))

	return &domain.TransactionReport{
		TransactionImport: *imp,
		Categories:        s.categorizer.Summarize(imp.Transactions),
	}, nil
}

// Categorize classifies a single description.
func (s *StatementService) Categorize(description string) (domain.Category, error) {
	if strings.TrimSpace(description) == "" {
		return "", &domain.ErrValidation{Field: "description", Message: "description is empty"}
	}
	return s.categorizer.Categorize(description), nil
}

// Analyze runs the full pipeline for one statement: extraction, derivation,
// reconciliation, metrics, categories, scenarios, nudges and an explanation.
func (s *StatementService) Analyze(ctx context.Context, req *domain.StatementAnalysisRequest) (*domain.StatementReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "StatementService.Analyze")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("statement.analyze", time.Since(start))
	}()

	parsed, err := s.Parse(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	rec := finance.Derive(parsed.Record)

	report := &domain.StatementReport{
		Record:         rec,
		ParseErrors:    parsed.Errors,
		Reconciliation: parsed.Reconciliation,
		Metrics:        finance.Analyze(rec, s.rule),
	}

	if strings.TrimSpace(req.TransactionsCSV) != "" {
		txs, err := s.ImportTransactions(ctx, req.TransactionsCSV)
		if err != nil {
			return nil, err
		}
		report.Transactions = &txs.TransactionImport
		report.Categories = txs.Categories
	}

	scenarios, err := s.scenarios(rec, req.Scenarios)
	if err != nil {
		return nil, err
	}
	if scenarios == nil {
		if report.Metrics.Unavailable == nil {
			report.Metrics.Unavailable = map[string]string{}
		}
		report.Metrics.Unavailable["scenarios"] = "requires current balance and APR"
	}
	report.Scenarios = scenarios

	report.Nudges = finance.Nudges(rec, report.Categories, s.rule)
	if report.Nudges == nil {
		report.Nudges = []string{}
	}
	report.Explanation = s.explain(ctx, rec, report.Categories)

	s.logger.Info("statement analyzed",
		zap.Int("fields", len(rec.Present())),
		zap.Int("parse_errors", len(parsed.Errors)),
		zap.Bool("explanation_fallback", report.Explanation.Fallback),
	)
	return report, nil
}

// scenarios returns nil when the statement lacks the inputs to simulate.
func (s *StatementService) scenarios(rec *domain.StatementRecord, inputs []domain.ScenarioInput) ([]domain.ScenarioComparison, error) {
	if !rec.CurrentBalance.Valid || !rec.APR.Valid {
		return nil, nil
	}
	if len(inputs) == 0 {
		inputs = finance.DefaultScenarios()
	}
	out := make([]domain.ScenarioComparison, 0, len(inputs))
	for _, in := range inputs {
		cmp, err := finance.CompareScenario(rec.CurrentBalance.Decimal, rec.APR.Decimal, in, s.rule)
		if err != nil {
			return nil, err
		}
		out = append(out, *cmp)
	}
	return out, nil
}

func (s *StatementService) explain(ctx context.Context, rec *domain.StatementRecord, buckets []domain.CategoryBucket) domain.GeneratedText {
	prompt := explainPrompt(rec, buckets)
	key := cache.Fingerprint(string(domain.TaskExplainStatement), prompt)

	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit(observability.ExplanationCache)
		return cached
	}
	s.metrics.IncrCacheMiss(observability.ExplanationCache)

	out := s.gen.generate(ctx, &domain.GatewayRequest{
		Task:      domain.TaskExplainStatement,
		Prompt:    prompt,
		Context:   rec,
		MaxTokens: explainMaxTokens,
	}, finance.FallbackExplanation(rec))
	if !out.Fallback {
		s.cache.Set(key, out)
	}
	return out
}

// AnalyzeBatch analyzes statements concurrently. A failing statement is
// reported in its own item and never aborts the others.
func (s *StatementService) AnalyzeBatch(ctx context.Context, texts []string) ([]domain.BatchItem, error) {
	ctx, span := tracer.Start(ctx, "StatementService.AnalyzeBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(texts)))

	if len(texts) == 0 {
		return nil, &domain.ErrValidation{Field: "statements", Message: "at least one statement is required"}
	}

	items := make([]domain.BatchItem, len(texts))
	var g errgroup.Group
	g.SetLimit(s.batchLimit)
	for i, text := range texts {
		g.Go(func() error {
			items[i].Index = i
			report, err := s.Analyze(ctx, &domain.StatementAnalysisRequest{Text: text})
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Report = report
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Payoff runs the minimum-payment payoff simulation.
func (s *StatementService) Payoff(ctx context.Context, req *domain.PayoffRequest) (*domain.PayoffHorizon, error) {
	_, span := tracer.Start(ctx, "StatementService.Payoff")
	defer span.End()

	apr, err := validateBalanceAPR(req.Balance, req.APR)
	if err != nil {
		return nil, err
	}
	h := finance.PayoffHorizon(req.Balance, apr, s.ruleOr(req.Rule))
	return &h, nil
}

// Scenario compares one what-if against the no-change baseline.
func (s *StatementService) Scenario(ctx context.Context, req *domain.ScenarioRequest) (*domain.ScenarioComparison, error) {
	_, span := tracer.Start(ctx, "StatementService.Scenario")
	defer span.End()

	apr, err := validateBalanceAPR(req.Balance, req.APR)
	if err != nil {
		return nil, err
	}
	return finance.CompareScenario(req.Balance, apr, req.Scenario, s.ruleOr(req.Rule))
}

func (s *StatementService) ruleOr(r *domain.MinimumPaymentRule) domain.MinimumPaymentRule {
	if r == nil {
		return s.rule
	}
	return *r
}

// validateBalanceAPR rejects negative inputs and turns a percentage APR
// into a fraction.
func validateBalanceAPR(balance, apr decimal.Decimal) (decimal.Decimal, error) {
	if balance.IsNegative() {
		return decimal.Zero, &domain.ErrValidation{Field: "balance", Message: "must not be negative"}
	}
	if apr.IsNegative() {
		return decimal.Zero, &domain.ErrValidation{Field: "apr", Message: "must not be negative"}
	}
	if apr.GreaterThan(decimal.NewFromInt(1)) {
		apr = apr.Div(decimal.NewFromInt(100))
	}
	return apr, nil
}

// IsInputError reports whether err is caused by bad caller input.
func IsInputError(err error) bool {
	var (
		v *domain.ErrValidation
		h *domain.ErrMissingHeaders
	)
	return errors.As(err, &v) || errors.As(err, &h)
}
