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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/bibbank/bib/pkg/auth"
	kafkapkg "github.com/bibbank/bib/pkg/kafka"
	"github.com/bibbank/bib/pkg/observability"
	pgpkg "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/pkg/tlsutil"
	"github.com/bibbank/bib/services/product-service/internal/application/usecase"
	"github.com/bibbank/bib/services/product-service/internal/domain/service"
	"github.com/bibbank/bib/services/product-service/internal/infrastructure/config"
	"github.com/bibbank/bib/services/product-service/internal/infrastructure/kafka"
	"github.com/bibbank/bib/services/product-service/internal/infrastructure/metrics"
	infraPG "github.com/bibbank/bib/services/product-service/internal/infrastructure/persistence/postgres"
	"github.com/bibbank/bib/services/product-service/internal/infrastructure/scheduler"
	grpcPresentation "github.com/bibbank/bib/services/product-service/internal/presentation/grpc"
	"github.com/bibbank/bib/services/product-service/internal/presentation/rest"
)

func main() {
	if err := run(); err != nil {
		slog.Error("product-service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	logger.Info("starting product-service",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
	)

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := shutdownTracer(shutdownCtx); err != nil {
				logger.Warn("tracer shutdown", "error", err)
			}
		}()
	}

	// Metrics
	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	otel.SetMeterProvider(meterProvider)
	recorder, err := metrics.New(meterProvider.Meter("github.com/bibbank/bib/services/product-service"))
	if err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	// Database
	pgCfg := cfg.DB.Postgres()
	pool, err := pgpkg.NewPool(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pgpkg.RunMigrations(pgCfg.DSN(), infraPG.Migrations, infraPG.MigrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Kafka
	producer, err := kafkapkg.NewProducer(cfg.Kafka.Kafka())
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}
	defer producer.Close()

	// Wire dependencies (DI via constructors)
	accountRepo := infraPG.NewAccountRepo(pool, cfg.Kafka.EventsTopic)
	scheduleRepo := infraPG.NewScheduleRepo(pool)
	batchRepo := infraPG.NewBatchRepo(pool)
	calendarRepo := infraPG.NewCalendarRepo(pool)
	outboxRepo := infraPG.NewOutboxRepo(pool)
	publisher := kafka.NewPublisher(producer, logger)
	engine := service.NewEngine(service.NewCASA(), service.NewCreditCard(), service.NewMurabahah())
	loader := usecase.NewAccountLoader(accountRepo, calendarRepo, cfg.CalendarID)

	// Use cases
	openAccountUC := usecase.NewOpenAccount(accountRepo, loader, engine)
	getAccountUC := usecase.NewGetAccount(loader)
	submitPostingsUC := usecase.NewSubmitPostings(accountRepo, loader, publisher, recorder, engine, logger)
	runScheduledUC := usecase.NewRunScheduledEvent(accountRepo, loader, recorder, engine)
	runDueUC := usecase.NewRunDueSchedules(scheduleRepo, runScheduledUC, logger)
	closeAccountUC := usecase.NewCloseAccount(accountRepo, loader, recorder, engine)
	listSchedulesUC := usecase.NewListSchedules(scheduleRepo)
	listBatchesUC := usecase.NewListBatches(batchRepo)
	getCalendarUC := usecase.NewGetCalendar(calendarRepo)
	saveCalendarUC := usecase.NewSaveCalendar(calendarRepo)

	// JWT service (validation-only: public key preferred, secret as fallback).
	jwtCfg := auth.JWTConfig{Issuer: cfg.JWT.Issuer}
	if cfg.JWT.PublicKeyPEM != "" {
		jwtCfg.PublicKeyPEM = cfg.JWT.PublicKeyPEM
	} else {
		jwtCfg.Secret = cfg.JWT.Secret
	}
	jwtSvc, err := auth.NewJWTService(jwtCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	// gRPC server
	handler := grpcPresentation.NewProductHandler(
		openAccountUC, getAccountUC, submitPostingsUC, runScheduledUC, closeAccountUC, listSchedulesUC,
		observability.Component(logger, "grpc"),
	)
	grpcServer, err := grpcPresentation.NewServer(handler, grpcPresentation.ServerConfig{
		Port:            cfg.GRPCPort,
		TLSCertFile:     cfg.TLS.CertFile,
		TLSKeyFile:      cfg.TLS.KeyFile,
		TLSClientCAFile: cfg.TLS.ClientCAFile,
		Reflection:      cfg.GRPCReflection,
	}, logger, jwtSvc)
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}

	// HTTP server (probes, metrics, read APIs)
	httpLogger := observability.Component(logger, "http")
	router := rest.NewRouter(rest.RouterConfig{
		Health:         rest.NewHealthHandler(cfg.Telemetry.ServiceName, map[string]rest.Pinger{"database": pool}, httpLogger),
		Accounts:       rest.NewAccountHandler(getAccountUC, listSchedulesUC, listBatchesUC, getCalendarUC, saveCalendarUC, httpLogger),
		Metrics:        metricsHandler,
		JWT:            jwtSvc,
		Logger:         httpLogger,
		AllowedOrigins: cfg.CORSOrigins,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           otelhttp.NewHandler(router, "product-http"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.TLS.Enabled() {
		tlsCfg, err := tlsutil.ServerConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, "")
		if err != nil {
			return fmt.Errorf("failed to load HTTP TLS config: %w", err)
		}
		httpServer.TLSConfig = tlsCfg
	}

	// Background workers
	relay := kafka.NewOutboxRelay(outboxRepo, producer, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, logger)
	triggers := kafka.NewScheduleTriggerConsumer(runScheduledUC, logger)
	consumer, err := kafkapkg.NewConsumer(cfg.Kafka.Kafka(), cfg.Kafka.TriggerTopic, triggers.Handle, observability.Component(logger, "kafka-consumer"))
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	defer consumer.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcServer.Start(gctx) })
	g.Go(func() error {
		logger.Info("HTTP server starting", "port", cfg.HTTPPort, "tls", httpServer.TLSConfig != nil)
		var err error
		if httpServer.TLSConfig != nil {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return consumer.Start(gctx) })
	if cfg.Scheduler.Enabled {
		worker := scheduler.NewWorker(runDueUC, cfg.Scheduler.PollInterval, cfg.Scheduler.BatchSize, logger)
		g.Go(func() error { return worker.Run(gctx) })
	}

	err = g.Wait()
	if err := meterProvider.Shutdown(context.Background()); err != nil {
		logger.Warn("meter provider shutdown", "error", err)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("product-service stopped")
	return nil
}
