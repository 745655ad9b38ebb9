// Package client holds HTTP clients for outbound dependencies.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/port"
)

var tracer = otel.Tracer("client")

// maxResponseBytes caps how much of a gateway reply is read.
const maxResponseBytes = 1 << 20

// GatewayClient calls the AI text gateway. Every call is bounded by a
// timeout, guarded by a circuit breaker and limited by a bulkhead.
type GatewayClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
	tokens     port.TokenSource
}

// NewGatewayClient creates a new GatewayClient. tokens may be nil, in which
// case requests are sent without an Authorization header.
func NewGatewayClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, tokens port.TokenSource) *GatewayClient {
	return &GatewayClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		tokens:     tokens,
	}
}

// Generate asks the gateway for text. Failures come back as
// *domain.ErrGatewayTimeout or *domain.ErrGatewayUnavailable.
func (c *GatewayClient) Generate(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	ctx, span := tracer.Start(ctx, "GatewayClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("gateway.task", string(req.Task)))

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, classify(ctx, span, req.Task, err)
	}
	defer c.bulkhead.Release()

	result, err := c.cb.Execute(func() (any, error) {
		var out *domain.GatewayResponse
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			resp, err := c.do(ctx, req)
			if err != nil {
				return err
			}
			out = resp
			return nil
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return out, nil
	})
	if err != nil {
		return nil, classify(ctx, span, req.Task, err)
	}

	resp := result.(*domain.GatewayResponse)
	span.SetAttributes(attribute.Int("gateway.tokens", resp.TokensUsed.TotalTokens))
	return resp, nil
}

func (c *GatewayClient) do(ctx context.Context, req *domain.GatewayRequest) (*domain.GatewayResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/generate", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("sign gateway token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("gateway returned status %d", resp.StatusCode)
		if retryable(resp.StatusCode) {
			return nil, err
		}
		return nil, resilience.Permanent(err)
	}

	var out domain.GatewayResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, errors.New("gateway returned empty text")
	}
	return &out, nil
}

// retryable reports whether a status may succeed on a later attempt. Other
// 4xx answers mean the request itself is wrong.
func retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
}

func classify(ctx context.Context, span trace.Span, task domain.GatewayTask, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "gateway call failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &domain.ErrGatewayTimeout{Task: task}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &domain.ErrGatewayUnavailable{Task: task, Err: &domain.ErrCircuitOpen{Service: "gateway"}}
	default:
		return &domain.ErrGatewayUnavailable{Task: task, Err: &domain.ErrExternalService{Service: "gateway", Err: err}}
	}
}
