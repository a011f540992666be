package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	carrierapp "github.com/fulfillment/backend/internal/application/carrier"
	"github.com/fulfillment/backend/internal/infrastructure/cache"
	"github.com/fulfillment/backend/internal/infrastructure/config"
	"github.com/fulfillment/backend/internal/infrastructure/logger"
	"github.com/fulfillment/backend/internal/infrastructure/persistence"
	"github.com/fulfillment/backend/internal/infrastructure/scheduler"
	"github.com/fulfillment/backend/internal/infrastructure/storage"
	"github.com/fulfillment/backend/internal/infrastructure/telemetry"
	"github.com/fulfillment/backend/internal/infrastructure/upstream"
	"github.com/fulfillment/backend/internal/interfaces/http/handler"
	"github.com/fulfillment/backend/internal/interfaces/http/middleware"
	"github.com/fulfillment/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting carrier sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mp.Shutdown(sctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tp.Shutdown(sctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.DBName = cfg.Database.DBName
	if err := telemetry.NewDBTracingPlugin(dbTracing, log).RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	carrierRepo := persistence.NewGormCarrierRepository(db.DB)
	storeRepo := persistence.NewGormStoreRepository(db.DB)

	locker, closeLocker, err := cache.NewStoreLockFactory(cfg.Redis, cfg.Sync, cache.WithLogger(log)).Create(ctx)
	if err != nil {
		log.Fatal("Failed to create store lock", zap.Error(err))
	}
	defer func() {
		_ = closeLocker()
	}()

	archive, err := storage.NewArchiveStorage(ctx, &cfg.Archive, log)
	if err != nil {
		log.Fatal("Failed to create archive storage", zap.Error(err))
	}

	syncMetrics, err := telemetry.NewSyncMetrics(mp.Meter("carrier.sync"))
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	fetcher := upstream.NewCarrierAPIClient(upstream.ClientConfig{
		BaseURL:      cfg.Upstream.BaseURL,
		CarriersPath: cfg.Upstream.CarriersPath,
		Timeout:      cfg.Upstream.Timeout,
	}, upstream.WithLogger(log))

	syncService, err := carrierapp.NewSyncService(
		carrierRepo, storeRepo, fetcher, locker, log,
		carrierapp.SyncServiceConfig{EmptyUpstreamPolicy: cfg.Sync.EmptyUpstreamPolicy},
		carrierapp.WithSyncMetrics(syncMetrics),
	)
	if err != nil {
		log.Fatal("Failed to create sync service", zap.Error(err))
	}
	csvService := carrierapp.NewCSVService(carrierRepo, storeRepo, locker, log,
		carrierapp.WithArchive(archive),
		carrierapp.WithImportMetrics(syncMetrics),
		carrierapp.WithMaxFileSize(cfg.HTTP.MaxBodySize),
	)

	var trigger *scheduler.CarrierSyncTrigger
	if cfg.Scheduler.Enabled {
		trigger, err = scheduler.NewCarrierSyncTrigger(scheduler.CarrierSyncTriggerConfig{
			Interval:    cfg.Scheduler.Interval,
			Timeout:     cfg.Scheduler.Timeout,
			Concurrency: cfg.Sync.Concurrency,
		}, syncService, log)
		if err != nil {
			log.Fatal("Failed to create sync trigger", zap.Error(err))
		}
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start sync trigger", zap.Error(err))
		}
		log.Info("Carrier sync trigger started",
			zap.Duration("interval", cfg.Scheduler.Interval),
			zap.Int("concurrency", cfg.Sync.Concurrency),
		)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Middleware order: request id first so every later layer can log it.
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanEnricher())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.HTTPMetricsWithMeter(mp.Meter("http.server")))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.GET("/health", handler.Health(db))

	carrierHandler := handler.NewCarrierHandler(syncService, csvService)
	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(carrierHandler).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Warn("Sync trigger did not stop cleanly", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
