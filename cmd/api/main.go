// Package main is the entry point for the Stripe webhook API.
//
// It loads configuration, builds one signature Verifier per webhook endpoint,
// wires the optional event ledger (Postgres), event queue (SQS) and metrics
// (CloudWatch), and serves the chi router either as a local HTTP server or
// behind API Gateway in Lambda.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"stripefacility/internal/api/handlers"
	"stripefacility/internal/config"
	"stripefacility/internal/core"
	"stripefacility/internal/db"
	"stripefacility/internal/events"
	"stripefacility/internal/metrics"
	"stripefacility/internal/queue"
	"stripefacility/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	// The SSM client is created lazily, so local runs without *_SSM_PARAM
	// variables never touch AWS.
	provider := config.NewSecretProvider(os.Getenv("SECRETS_PROVIDER"), os.Getenv("AWS_REGION"))
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("stripe facility API starting",
		"environment", cfg.Environment,
		"stripe_mode", cfg.Billing.Mode,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deps, err := connectDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv, err := buildServer(cfg, logger, deps)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		logger.Info("starting in Lambda mode")
		lambda.Start(core.NewLambdaAdapter(srv.Handler()).Proxy)
		return nil
	}

	return runHTTPServer(srv, cfg, logger)
}

// dependencies are the optional infrastructure pieces. A nil field means the
// feature is disabled by configuration.
type dependencies struct {
	ledger    *db.EventLedger
	publisher *queue.EventPublisher
	metrics   *metrics.CloudWatch
	closers   []func(context.Context) error
}

// connectDependencies opens the ledger pool and the AWS clients that the
// configuration asks for.
func connectDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dependencies, error) {
	deps := &dependencies{}

	if cfg.Database.Enabled() {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
		if err != nil {
			return nil, fmt.Errorf("parsing database URL: %w", err)
		}
		poolCfg.MaxConns = cfg.Database.MaxConns
		poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("creating database pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("pinging database: %w", err)
		}

		deps.ledger = db.NewEventLedger(pool, logger, db.WithClaimTTL(cfg.Database.ClaimTTL))
		if err := deps.ledger.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("preparing event ledger: %w", err)
		}
		deps.closers = append(deps.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		logger.Info("event ledger enabled")
	}

	if cfg.AWS.EventsQueueURL == "" && !cfg.Observability.MetricsEnabled {
		return deps, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	if cfg.AWS.EventsQueueURL != "" {
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		deps.publisher = queue.NewEventPublisher(client, cfg.AWS.EventsQueueURL, logger)
		logger.Info("event queue enabled", "queue_url", cfg.AWS.EventsQueueURL)
	}

	if cfg.Observability.MetricsEnabled {
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		deps.metrics = metrics.NewCloudWatch(client, cfg.Observability.MetricNamespace, logger)
		logger.Info("CloudWatch metrics enabled", "namespace", cfg.Observability.MetricNamespace)
	}

	return deps, nil
}

// buildServer creates the verifiers, dispatcher and webhook handler, then
// mounts everything on a core.Server.
func buildServer(cfg *config.Config, logger *slog.Logger, deps *dependencies) (*core.Server, error) {
	verifiers := make(map[string]*webhook.Verifier)
	for endpoint, secret := range cfg.Billing.WebhookSecrets() {
		v, err := webhook.NewVerifier(secret, webhook.WithTolerance(cfg.Billing.Tolerance))
		if err != nil {
			return nil, fmt.Errorf("creating verifier for %s endpoint: %w", endpoint, err)
		}
		verifiers[endpoint] = v
	}

	var recorder interface {
		core.MetricsCollector
		handlers.VerificationRecorder
		events.PublishRecorder
	} = metrics.Noop{}
	if deps.metrics != nil {
		recorder = deps.metrics
	}

	opts := []events.Option{events.WithRecorder(recorder)}
	if deps.ledger != nil {
		opts = append(opts, events.WithLedger(deps.ledger))
	}
	if deps.publisher != nil {
		opts = append(opts, events.WithPublisher(deps.publisher))
	}
	dispatcher := events.NewDispatcher(logger, opts...)
	dispatcher.On(events.AnyType, logEvent(logger))

	webhookHandler, err := handlers.NewWebhookHandler(verifiers, dispatcher, recorder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating webhook handler: %w", err)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = recorder
	srv.Registrars = append(srv.Registrars, webhookHandler.RegisterRoutes)

	if deps.ledger != nil {
		srv.HealthProbes = append(srv.HealthProbes, core.NewProbe("ledger", deps.ledger.Ping))
	}
	if deps.publisher != nil {
		srv.HealthProbes = append(srv.HealthProbes, core.NewProbe("queue", deps.publisher.Ping))
	}
	for _, fn := range deps.closers {
		srv.OnShutdown(fn)
	}

	srv.MountRoutes()
	logger.Info("webhook endpoints mounted", "endpoints", webhookHandler.Endpoints())
	return srv, nil
}

// logEvent records every accepted event. Downstream work happens in queue
// consumers.
func logEvent(logger *slog.Logger) events.HandlerFunc {
	return func(ctx context.Context, endpoint string, evt *webhook.Event) error {
		logger.InfoContext(ctx, "stripe event accepted",
			"endpoint", endpoint,
			"event_id", evt.ID(),
			"event_type", evt.Type(),
			"livemode", evt.Livemode(),
		)
		return nil
	}
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a JSON slog.Logger for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
