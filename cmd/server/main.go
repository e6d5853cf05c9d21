package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/bizdash/backend/internal/application/billing"
	"github.com/bizdash/backend/internal/application/notification"
	"github.com/bizdash/backend/internal/domain/billing"
	infrabilling "github.com/bizdash/backend/internal/infrastructure/billing"
	"github.com/bizdash/backend/internal/infrastructure/cache"
	"github.com/bizdash/backend/internal/infrastructure/config"
	"github.com/bizdash/backend/internal/infrastructure/event"
	"github.com/bizdash/backend/internal/infrastructure/logger"
	"github.com/bizdash/backend/internal/infrastructure/persistence"
	"github.com/bizdash/backend/internal/infrastructure/scheduler"
	"github.com/bizdash/backend/internal/infrastructure/telemetry"
	"github.com/bizdash/backend/internal/interfaces/http/handler"
	"github.com/bizdash/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = version
	}

	ctx := context.Background()

	// Bootstrap logger, used until the OpenTelemetry log bridge is ready
	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log := telemetry.Bridge(baseLog, logProvider, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Telemetry.LogsLevel))
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting bizdash backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Telemetry providers
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
		ProfileTypes:    cfg.Telemetry.ProfilingTypes,
		Tags:            map[string]string{"env": cfg.App.Env},
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Telemetry.SpanProfilesEnabled && profiler.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	billingMetrics, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter:  meterProvider.Meter("bizdash/billing"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create billing metrics", zap.Error(err))
	}

	// Database. With the database disabled the service runs on a local SQLite file.
	dbCfg := cfg.Database
	if !dbCfg.Enabled {
		dbCfg.Driver = "sqlite"
		dbCfg.AutoMigrate = true
		log.Warn("Database disabled, using local SQLite storage", zap.String("path", dbCfg.SQLitePath))
	}
	gormLog := logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&dbCfg, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          dbCfg.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	if dbCfg.AutoMigrate {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", dbCfg.Driver))

	// Cache and idempotency stores
	stores := cache.NewStores(ctx, cfg.Redis, log)
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing cache", zap.Error(err))
		}
	}()

	// Billing engine
	catalog, err := cfg.Billing.TierCatalog()
	if err != nil {
		log.Fatal("Invalid tier catalog", zap.Error(err))
	}
	pricing, err := cfg.Billing.PricingConfig()
	if err != nil {
		log.Fatal("Invalid pricing configuration", zap.Error(err))
	}
	calculator, err := billing.NewTierPricingCalculator(pricing)
	if err != nil {
		log.Fatal("Invalid pricing configuration", zap.Error(err))
	}
	location, err := cfg.Billing.Location()
	if err != nil {
		log.Fatal("Invalid billing timezone", zap.Error(err))
	}
	policy, err := cfg.Billing.Policy()
	if err != nil {
		log.Fatal("Invalid recognition policy", zap.Error(err))
	}
	aggregator := billing.NewUsageAggregator(catalog.Currency()).WithWarningThreshold(cfg.Billing.WarningThreshold())

	// Repositories
	subscriberRepo := persistence.NewGormSubscriberRepository(db.DB)
	usageEventRepo := persistence.NewGormUsageEventRepository(db.DB)

	// Notifications and domain events
	notes := notification.NewStore(notification.DefaultCapacity, log)
	eventBus := event.NewBus(log)
	subscriberEvents := notification.NewSubscriberEventHandler(notes)
	eventBus.Subscribe(subscriberEvents)
	log.Info("Event handlers registered", zap.Strings("subscriber_events", subscriberEvents.EventTypes()))

	// Usage export to the external billing provider
	var exporter billing.UsageExporter
	if cfg.Stripe.Enabled {
		stripeExporter, err := infrabilling.NewStripeUsageExporter(&infrabilling.StripeConfig{
			SecretKey:         cfg.Stripe.SecretKey,
			IsTestMode:        cfg.Stripe.IsTestMode,
			APIURL:            cfg.Stripe.APIURL,
			MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
		}, log)
		if err != nil {
			log.Fatal("Invalid Stripe configuration", zap.Error(err))
		}
		exporter = stripeExporter
		log.Info("Stripe usage export enabled", zap.Bool("test_mode", cfg.Stripe.IsTestMode))
	}

	// Application services
	revenueService := billingapp.NewRevenueService(billingapp.RevenueServiceConfig{
		Subscribers: subscriberRepo,
		Events:      usageEventRepo,
		Catalog:     catalog,
		Aggregator:  aggregator,
		Policy:      policy,
		Cache:       stores.Metrics,
		CacheTTL:    cfg.Billing.MetricsCacheTTL,
		Location:    location,
		Metrics:     billingMetrics,
		Notifier:    notes,
		Logger:      log,
	})
	usageService := billingapp.NewUsageService(billingapp.UsageServiceConfig{
		Subscribers:    subscriberRepo,
		Events:         usageEventRepo,
		Catalog:        catalog,
		Aggregator:     aggregator,
		Idempotency:    stores.Idempotency,
		IdempotencyTTL: cfg.Billing.IdempotencyTTL,
		Invalidator:    revenueService,
		Exporter:       exporter,
		Location:       location,
		Metrics:        billingMetrics,
		Notifier:       notes,
		Logger:         log,
	})
	subscriberService := billingapp.NewSubscriberService(subscriberRepo, catalog, eventBus, revenueService, log)
	quoteService := billingapp.NewQuoteService(calculator, catalog, billingMetrics, log)

	// Daily export of running usage totals
	var exportScheduler *scheduler.UsageExportScheduler
	if exporter != nil && cfg.Stripe.ScheduleEnabled {
		schedCfg := scheduler.DefaultUsageExportSchedulerConfig()
		schedCfg.Schedule = cfg.Stripe.Schedule
		schedCfg.CloseOutDays = cfg.Stripe.CloseOutDays
		schedCfg.Location = location
		exportScheduler, err = scheduler.NewUsageExportScheduler(usageService, log, schedCfg)
		if err != nil {
			log.Fatal("Invalid usage export schedule", zap.Error(err))
		}
		if err := exportScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start usage export scheduler", zap.Error(err))
		}
	}

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	var httpMetrics *telemetry.HTTPMetrics
	if cfg.Telemetry.PrometheusEnabled {
		httpMetrics = telemetry.NewHTTPMetrics(cfg.Telemetry.PrometheusNamespace)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	tracingCfg.Enabled = cfg.Telemetry.Enabled

	profilingCfg := middleware.DefaultProfilingConfig()
	profilingCfg.Enabled = profiler.IsEnabled()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	// Middleware order:
	// 1. RequestID, so every later layer can log and trace it
	// 2. Recovery and request logging
	// 3. Security headers, CORS and body limit
	// 4. Metrics, tracing and profiling labels
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.AccessLog(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(corsCfg))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.HTTPMetrics(httpMetrics, middleware.DefaultMetricsSkipPaths...))
	engine.Use(middleware.TracingWithConfig(tracingCfg))
	engine.Use(middleware.SpanEnricher())
	engine.Use(middleware.ProfilingWithConfig(profilingCfg))

	base := handler.NewBaseHandler(httpMetrics, log)
	handlers := &handler.Handlers{
		Quote:        handler.NewQuoteHandler(base, quoteService),
		Usage:        handler.NewUsageHandler(base, usageService),
		Subscriber:   handler.NewSubscriberHandler(base, subscriberService),
		Revenue:      handler.NewRevenueHandler(base, revenueService),
		Notification: handler.NewNotificationHandler(base, notes),
		System: handler.NewSystemHandler(base, cfg.App.Name, version).
			AddCheck("database", db.Ping).
			AddCheck("cache", stores.Ping),
	}
	r := handlers.Mount(engine, "v1")
	if httpMetrics != nil {
		engine.GET("/metrics", gin.WrapH(httpMetrics.Handler()))
	}
	log.Info("Routes registered", zap.Strings("routes", r.Routes()))

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

	if exportScheduler != nil {
		if err := exportScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping usage export scheduler", zap.Error(err))
		}
	}

	// Flush telemetry after the last request has finished
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		baseLog.Error("Error shutting down log provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
