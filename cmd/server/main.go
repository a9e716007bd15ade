package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	orderapp "github.com/orderflow/backend/internal/application/order"
	"github.com/orderflow/backend/internal/infrastructure/cache"
	"github.com/orderflow/backend/internal/infrastructure/config"
	"github.com/orderflow/backend/internal/infrastructure/fulfillment"
	"github.com/orderflow/backend/internal/infrastructure/logger"
	"github.com/orderflow/backend/internal/infrastructure/persistence"
	"github.com/orderflow/backend/internal/infrastructure/scheduler"
	"github.com/orderflow/backend/internal/infrastructure/telemetry"
	"github.com/orderflow/backend/internal/interfaces/http/handler"
	"github.com/orderflow/backend/internal/interfaces/http/middleware"
	"github.com/orderflow/backend/internal/interfaces/http/router"
)

const version = "1.0.0"

// schedulerHandle breaks the construction cycle between the job executor
// and the scheduler: the executor needs a place to enqueue retry jobs
// before the scheduler that runs it exists.
type schedulerHandle struct {
	s *scheduler.Scheduler
}

func (h *schedulerHandle) Schedule(job *scheduler.Job) error {
	return h.s.Schedule(job)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting order lifecycle orchestrator",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:  cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	orderRepo := persistence.NewGormOrderRepository(db.DB)
	auditRepo := persistence.NewGormAuditRepository(db.DB)

	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	supplierClient := fulfillment.NewSimulatedSupplierClient(
		cfg.Fulfillment.SupplierFailureRate, cfg.Fulfillment.CallLatency, log)
	forwarderClient := fulfillment.NewSimulatedForwarderClient(
		cfg.Fulfillment.ForwarderFailureRate, cfg.Fulfillment.CallLatency, log)
	supplierVerifier := fulfillment.NewSignatureVerifier(cfg.Webhook.SupplierSecret, cfg.Webhook.VerifyEnabled)
	forwarderVerifier := fulfillment.NewSignatureVerifier(cfg.Webhook.ForwarderSecret, cfg.Webhook.VerifyEnabled)

	handle := &schedulerHandle{}
	jobService := orderapp.NewJobService(orderRepo, supplierClient, forwarderClient, handle,
		orderapp.RetryPolicy{
			MaxAttempts: cfg.Jobs.MaxAttempts,
			Delay:       cfg.Jobs.RetryDelay,
		}, log)
	jobScheduler := scheduler.NewScheduler(scheduler.Config{
		Workers:    cfg.Jobs.Workers,
		QueueSize:  cfg.Jobs.QueueSize,
		JobTimeout: cfg.Jobs.JobTimeout,
	}, jobService, log)
	handle.s = jobScheduler

	if err := jobScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start job scheduler", zap.Error(err))
	}

	orderService := orderapp.NewOrderService(orderRepo, auditRepo, log)
	actionService := orderapp.NewActionService(orderRepo, idempotencyStore, handle,
		orderapp.ActionConfig{
			InitialDelay:   cfg.Jobs.InitialDelay,
			IdempotencyTTL: cfg.Idempotency.TTL,
		}, log)
	webhookService := orderapp.NewWebhookService(orderRepo, log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(
		middleware.RequestID(),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(handler.NewSystemHandler(cfg.App.Name, version)).
		Register(handler.NewOrderHandler(orderService, actionService)).
		Register(handler.NewWebhookHandler(webhookService, supplierVerifier, forwarderVerifier)).
		Setup()

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := jobScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Job scheduler shutdown error", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer provider shutdown error", zap.Error(err))
	}
	log.Info("Shutdown complete")
}
