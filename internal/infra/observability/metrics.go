package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// Gateway call outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
)

// Parse event kinds.
const (
	ParseErrorLabel = "parse_error"
	SkippedRow      = "skipped_row"
	IgnoredLogLine  = "ignored_line"
)

// ExplanationCache labels the statement explanation cache.
const ExplanationCache = "explanation"

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	gatewayCalls    *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	parseEvents     *prometheus.CounterVec
	incidents       *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		gatewayCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_gateway_calls_total",
				Help: "AI gateway calls by task and outcome.",
			},
			[]string{"task", "outcome"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		parseEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_parse_events_total",
				Help: "Non-fatal input problems: unparseable values, skipped CSV rows, ignored log lines.",
			},
			[]string{"kind"},
		),
		incidents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_incidents_correlated_total",
				Help: "Network incidents produced by the correlator.",
			},
			[]string{"source"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordGatewayCall counts one gateway call for task with the given outcome.
func (m *Metrics) RecordGatewayCall(task domain.GatewayTask, outcome string) {
	m.gatewayCalls.WithLabelValues(string(task), outcome).Inc()
	if outcome != OutcomeSuccess {
		m.externalErrors.WithLabelValues("gateway").Inc()
	}
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// AddParseEvents adds n events of the given kind. Zero is a no-op.
func (m *Metrics) AddParseEvents(kind string, n int) {
	if n > 0 {
		m.parseEvents.WithLabelValues(kind).Add(float64(n))
	}
}

// AddIncidents counts correlated incidents from a source (upload, kafka, dispute).
func (m *Metrics) AddIncidents(source string, n int) {
	if n > 0 {
		m.incidents.WithLabelValues(source).Add(float64(n))
	}
}

// GetGatewaySnapshot returns a snapshot of gateway-related metrics suitable
// for the GET /v1/metrics/gateway endpoint.
func (m *Metrics) GetGatewaySnapshot() *domain.GatewayMetrics {
	// Prometheus counters expose cumulative values.
	total := sumCounter(m.gatewayCalls, "", "")
	successes := sumCounter(m.gatewayCalls, "outcome", OutcomeSuccess)
	timeouts := sumCounter(m.gatewayCalls, "outcome", OutcomeTimeout)
	fallbacks := total - successes

	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	cacheHits := getCounterValue(m.cacheHits, ExplanationCache)
	cacheMisses := getCounterValue(m.cacheMisses, ExplanationCache)

	avgTokens := float64(0)
	fallbackRate := float64(0)
	cacheHitRate := float64(0)
	if successes > 0 {
		avgTokens = (promptTokens + completionTokens) / successes
	}
	if total > 0 {
		fallbackRate = fallbacks / total
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	// Estimated cost: ~$0.03/1k prompt tokens, ~$0.06/1k completion tokens
	estimatedCost := (promptTokens/1000)*0.03 + (completionTokens/1000)*0.06

	return &domain.GatewayMetrics{
		TotalCalls:          int64(total),
		Fallbacks:           int64(fallbacks),
		FallbackRate:        fallbackRate,
		Timeouts:            int64(timeouts),
		AvgTokensPerCall:    avgTokens,
		EstimatedCostUsd:    estimatedCost,
		CacheHitRate:        cacheHitRate,
		ParseErrors:         int64(getCounterValue(m.parseEvents, ParseErrorLabel)),
		SkippedRows:         int64(getCounterValue(m.parseEvents, SkippedRow)),
		IncidentsCorrelated: int64(sumCounter(m.incidents, "", "")),
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounter adds every child of cv, optionally only those whose label name
// has the given value. An empty name sums all children.
func sumCounter(cv *prometheus.CounterVec, name, value string) float64 {
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil || m.Counter == nil {
			continue
		}
		if name != "" && !hasLabel(m, name, value) {
			continue
		}
		total += m.Counter.GetValue()
	}
	return total
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
