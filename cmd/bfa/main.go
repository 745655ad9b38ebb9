package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/categorizer"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/config"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/handler"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/cache"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/client"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/logsource"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/mailer"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/infra/store"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/network"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/parser"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/port"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/service"

	"go.uber.org/zap"
)

const serviceName = "dispute-assistant-bfa"

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("gateway_url", cfg.GatewayURL),
		zap.Duration("gateway_timeout", cfg.GatewayTimeout),
		zap.Int("gateway_max_retries", cfg.GatewayMaxRetries),
		zap.Bool("gateway_signed", cfg.GatewaySigningSecret != ""),
		zap.Bool("api_auth", cfg.APIJWTSecret != ""),
		zap.Bool("evidence_store", cfg.DBPath != ""),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(rootCtx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	explanations := cache.New[domain.GeneratedText](cfg.CacheTTL)
	defer explanations.Close()

	// --- Gateway client ---
	var tokens port.TokenSource
	if cfg.GatewaySigningSecret != "" {
		authority, err := service.NewTokenAuthority(cfg.GatewaySigningSecret, serviceName, cfg.GatewayTokenTTL)
		if err != nil {
			logger.Fatal("invalid gateway signing config", zap.Error(err))
		}
		tokens = authority.Source(serviceName, "generate")
	}
	gateway := client.NewGatewayClient(
		&http.Client{Timeout: cfg.GatewayTimeout},
		cfg.GatewayURL,
		resilience.NewCircuitBreaker("ai-gateway", logger),
		resilience.Config{
			MaxRetries:     cfg.GatewayMaxRetries,
			InitialBackoff: cfg.GatewayBackoff,
			MaxConcurrency: cfg.GatewayMaxConcurrency,
			Timeout:        cfg.GatewayTimeout,
		},
		tokens,
	)

	// --- Evidence store ---
	var (
		evidence port.EvidenceStore
		checks   []handler.HealthCheck
	)
	if cfg.DBPath != "" {
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			logger.Fatal("failed to open evidence store", zap.String("path", cfg.DBPath), zap.Error(err))
		}
		defer db.Close()
		evidence = db
		checks = append(checks, handler.HealthCheck{Name: "evidence-store", Check: db.Ping})

		retention := store.NewRetentionJob(db, cfg.EvidenceRetention, logger)
		if err := retention.Start(cfg.RetentionSchedule); err != nil {
			logger.Fatal("invalid retention schedule", zap.String("schedule", cfg.RetentionSchedule), zap.Error(err))
		}
		defer retention.Stop()
	} else {
		logger.Warn("evidence store: DB_PATH not set, incidents are not persisted")
	}

	// --- Services ---
	rule := domain.MinimumPaymentRule{Floor: cfg.MinPaymentFloor, Percent: cfg.MinPaymentPercent}
	statements := service.NewStatementService(
		parser.NewExtractor(parser.DefaultVocabulary()),
		categorizer.New(categorizer.DefaultRules()),
		rule,
		gateway,
		explanations,
		cfg.BatchConcurrency,
		metrics,
		logger,
	)
	networkSvc := service.NewNetworkService(network.NewCorrelator(), evidence, metrics, logger)
	disputes := service.NewDisputeService(
		gateway,
		service.NewPolicyIndex(service.DefaultPolicies()),
		mailer.NewDraftRenderer(cfg.DraftFromAddress),
		metrics,
		logger,
		service.NewServiceStrategy(networkSvc),
	)

	var apiAuth *service.TokenAuthority
	if cfg.APIJWTSecret != "" {
		apiAuth, err = service.NewTokenAuthority(cfg.APIJWTSecret, serviceName, 0)
		if err != nil {
			logger.Fatal("invalid API auth config", zap.Error(err))
		}
	} else {
		logger.Warn("api auth: API_JWT_SECRET not set, /v1 routes are open")
	}

	// --- Streaming ingest ---
	if len(cfg.KafkaBrokers) > 0 {
		src, err := logsource.NewKafkaSource(logsource.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroup,
		}, logger)
		if err != nil {
			logger.Fatal("failed to create log consumer", zap.Error(err))
		}
		defer src.Close()

		go func() {
			logger.Info("log ingest starting", zap.String("topic", cfg.KafkaTopic))
			if err := networkSvc.Ingest(rootCtx, src); err != nil {
				logger.Error("log ingest stopped", zap.Error(err))
			}
		}()
	}

	// --- Router ---
	router := handler.NewRouter(handler.Dependencies{
		Statements: statements,
		Network:    networkSvc,
		Disputes:   disputes,
		Auth:       apiAuth,
		Checks:     checks,
		Metrics:    metrics,
		Logger:     logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.GatewayTimeout*3 + 10*time.Second, // a dispute makes three gateway calls
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
