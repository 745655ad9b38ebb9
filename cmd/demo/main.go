// Command demo runs the analysis pipelines on local files and prints the
// result as JSON.
//
//	demo [flags] statement|transactions|bgp|dispute <file>
//
// Exit status is 0 on success, 1 when the file cannot be read or its
// content is rejected, and 2 on usage errors.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/categorizer"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/finance"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/cache"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/client"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/mailer"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/network"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/parser"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/port"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	gatewayURL string
	timeout    time.Duration
	fee        string
	logLevel   string
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: demo [flags] statement|transactions|bgp|dispute <file>")
		fs.PrintDefaults()
	}

	var opts options
	fs.StringVar(&opts.gatewayURL, "gateway", "", "AI gateway base URL; empty uses fallback text")
	fs.DurationVar(&opts.timeout, "timeout", 20*time.Second, "gateway call timeout")
	fs.StringVar(&opts.fee, "fee", "", "monthly fee for the SLA credit (bgp)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log to stderr at this level (debug, info, warn)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return exitUsage
	}
	cmd, path := fs.Arg(0), fs.Arg(1)

	out, err := execute(context.Background(), cmd, path, opts)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "demo: %v\n", err)
		fs.Usage()
		return exitUsage
	case err != nil:
		fmt.Fprintf(stderr, "demo: %v\n", err)
		return exitFail
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "demo: %v\n", err)
		return exitFail
	}
	return exitOK
}

func execute(ctx context.Context, cmd, path string, opts options) (any, error) {
	var fee *decimal.Decimal
	if opts.fee != "" {
		d, err := decimal.NewFromString(opts.fee)
		if err != nil {
			return nil, fmt.Errorf("%w: -fee must be a decimal amount", errUsage)
		}
		fee = &d
	}

	switch cmd {
	case "statement", "transactions", "bgp", "dispute":
	default:
		return nil, fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if opts.logLevel != "" {
		logger = observability.NewLogger(opts.logLevel)
		defer logger.Sync()
	}
	metrics := observability.NewMetrics()

	var gateway port.GatewayCaller
	if opts.gatewayURL != "" {
		gateway = client.NewGatewayClient(
			&http.Client{Timeout: opts.timeout},
			opts.gatewayURL,
			resilience.NewCircuitBreaker("ai-gateway", logger),
			resilience.Config{MaxConcurrency: 1, Timeout: opts.timeout},
			nil,
		)
	}

	networkSvc := service.NewNetworkService(network.NewCorrelator(), nil, metrics, logger)

	switch cmd {
	case "statement", "transactions":
		explanations := cache.New[domain.GeneratedText](time.Minute)
		defer explanations.Close()
		statements := service.NewStatementService(
			parser.NewExtractor(parser.DefaultVocabulary()),
			categorizer.New(categorizer.DefaultRules()),
			finance.DefaultMinimumPaymentRule(),
			gateway, explanations, 1, metrics, logger,
		)
		if cmd == "transactions" {
			return statements.ImportTransactions(ctx, string(b))
		}
		return statements.Analyze(ctx, &domain.StatementAnalysisRequest{Text: string(b)})

	case "bgp":
		return networkSvc.Analyze(ctx, string(b), service.SourceUpload, fee)

	default:
		var req domain.DisputeRequest
		if err := json.Unmarshal(b, &req); err != nil {
			return nil, fmt.Errorf("%s: invalid dispute JSON: %w", path, err)
		}
		disputes := service.NewDisputeService(
			gateway,
			service.NewPolicyIndex(service.DefaultPolicies()),
			mailer.NewDraftRenderer("disputes@example.com"),
			metrics, logger,
			service.NewServiceStrategy(networkSvc),
		)
		return disputes.Resolve(ctx, &req)
	}
}
