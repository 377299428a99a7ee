package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	ledgerapp "github.com/propledger/backend/internal/application/ledger"
	"github.com/propledger/backend/internal/domain/ledger"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/propledger/backend/internal/infrastructure/cache"
	"github.com/propledger/backend/internal/infrastructure/config"
	"github.com/propledger/backend/internal/infrastructure/event"
	"github.com/propledger/backend/internal/infrastructure/logger"
	"github.com/propledger/backend/internal/infrastructure/migration"
	"github.com/propledger/backend/internal/infrastructure/persistence"
	"github.com/propledger/backend/internal/infrastructure/storage"
	"github.com/propledger/backend/internal/infrastructure/telemetry"
	"github.com/propledger/backend/internal/interfaces/http/handler"
	"github.com/propledger/backend/internal/interfaces/http/middleware"
	"github.com/propledger/backend/internal/interfaces/http/router"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()
	logCfg := logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}
	bootLog := logger.New(logCfg)

	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}

	log := bootLog
	if logProvider.IsEnabled() {
		log = logger.New(logCfg, telemetry.NewZapOTELCore(cfg.Telemetry.ServiceName, logProvider, logger.ParseLevel(cfg.Log.Level)))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ledger service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}
	var meter metric.Meter
	if meterProvider.IsEnabled() {
		meter = meterProvider.Meter("propledger")
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		MutexProfileRate:  cfg.Profiling.MutexProfileRate,
		BlockProfileRate:  cfg.Profiling.BlockProfileRate,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && cfg.Profiling.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}

	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:        log,
		LogLevel:      logger.GormLevel(cfg.Log.Level),
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		Tracing: telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.DBTraceEnabled && tracerProvider.IsEnabled(),
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		},
		Meter: meter,
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := runMigrations(db, cfg.Database.MigrationsPath, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	bus := event.NewInMemoryEventBus(log)
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	agreementRepo := persistence.NewGormAgreementRepository(db.DB)
	unitRepo := persistence.NewGormUnitRepository(db.DB)

	if cfg.Ledger.SyncMeterReadings {
		store, err := cache.NewIdempotencyStore(ctx, cfg.Ledger, cfg.Redis, cfg.App.Env != "production", log)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		syncHandler := event.NewIdempotentHandler(
			ledgerapp.NewMeterReadingSyncHandler(unitRepo, log),
			store,
			shared.IdempotencyConfig{Enabled: true, TTL: cfg.Ledger.IdempotencyTTL},
			log,
		)
		bus.Subscribe(syncHandler, syncHandler.EventTypes()...)
	}

	// archives stays a nil interface when storage is off; the archive route
	// then reports itself unconfigured
	var archives ledgerapp.ArchiveLocator
	if cfg.Storage.Enabled {
		objects, err := storage.NewS3ObjectStorage(ctx, cfg.Storage, log)
		if err != nil {
			log.Fatal("Failed to create object storage client", zap.Error(err))
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			log.Warn("Archive bucket is not available", zap.String("bucket", objects.Bucket()), zap.Error(err))
		}
		archives = objects
		if cfg.Ledger.ArchiveOnDelete {
			archiver := ledgerapp.NewLedgerArchiveHandler(objects, log)
			bus.Subscribe(archiver, archiver.EventTypes()...)
		}
	}

	var ledgerMetrics *telemetry.LedgerMetrics
	if meter != nil {
		ledgerMetrics, err = telemetry.NewLedgerMetrics(meter)
		if err != nil {
			log.Warn("Failed to create ledger metrics", zap.Error(err))
		}
	}

	opts := ledgerapp.Options{
		LockOnApproval:  cfg.Ledger.LockOnApproval,
		DefaultPageSize: cfg.Ledger.DefaultPageSize,
		MaxPageSize:     cfg.Ledger.MaxPageSize,
	}
	newService := func(kindCfg ledger.KindConfig) *ledgerapp.Service {
		source, err := ledger.SourceFor(kindCfg.Kind, agreementRepo, unitRepo)
		if err != nil {
			log.Fatal("Failed to resolve ledger source", zap.String("kind", kindCfg.Kind.String()), zap.Error(err))
		}
		return ledgerapp.NewService(kindCfg, ledgerapp.Dependencies{
			Repo:    ledgerRepo,
			Source:  source,
			Events:  bus,
			Metrics: ledgerMetrics,
			Logger:  log,
		}, opts)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies", zap.Error(err))
	}
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Tracing(),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(meter),
		middleware.Profiling(),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if cfg.HTTP.RateLimitEnabled {
		engine.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)))
	}

	systemHandler := handler.NewSystemHandler(db, version)
	engine.GET("/health", systemHandler.Health)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)

	router.NewRouter(engine).
		Register(router.NewLedgerGroup("rent", router.RentPrefix, handler.NewLedgerHandler(newService(ledger.RentConfig()), archives))).
		Register(router.NewLedgerGroup("services", router.ServicesPrefix, handler.NewLedgerHandler(newService(ledger.ServicesConfig()), archives))).
		Register(router.NewLedgerGroup("unit_bills", router.UnitBillsPrefix, handler.NewLedgerHandler(newService(ledger.UnitBillConfig()), archives))).
		Register(systemRoutes).
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

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error flushing metrics", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error flushing traces", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		bootLog.Error("Error flushing logs", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.CORSAllowOrigins
	}
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	return cors
}

func runMigrations(db *persistence.Database, path string, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	// Closing the migrator would close sqlDB, which the server keeps using
	m, err := migration.New(sqlDB, path, log)
	if err != nil {
		return err
	}
	return m.Up()
}
