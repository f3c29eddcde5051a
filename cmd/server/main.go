package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	detectionapp "github.com/astroguard/backend/internal/application/detection"
	inventoryapp "github.com/astroguard/backend/internal/application/inventory"
	"github.com/astroguard/backend/internal/infrastructure/cache"
	"github.com/astroguard/backend/internal/infrastructure/config"
	"github.com/astroguard/backend/internal/infrastructure/detector"
	"github.com/astroguard/backend/internal/infrastructure/event"
	"github.com/astroguard/backend/internal/infrastructure/imaging"
	"github.com/astroguard/backend/internal/infrastructure/logger"
	"github.com/astroguard/backend/internal/infrastructure/migration"
	"github.com/astroguard/backend/internal/infrastructure/persistence"
	"github.com/astroguard/backend/internal/infrastructure/realtime"
	"github.com/astroguard/backend/internal/infrastructure/storage"
	"github.com/astroguard/backend/internal/infrastructure/telemetry"
	"github.com/astroguard/backend/internal/interfaces/http/handler"
	"github.com/astroguard/backend/internal/interfaces/http/middleware"
	"github.com/astroguard/backend/internal/interfaces/http/router"
	"github.com/astroguard/backend/migrations"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

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
		_ = log.Sync()
	}()

	log.Info("Starting AstroGuard backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Bridge(log, log.Level())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()
	meter := meterProvider.Meter("astroguard")

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Warn("Failed to start profiler", zap.Error(err))
	} else {
		defer func() {
			if err := profiler.Stop(); err != nil {
				log.Error("Error stopping profiler", zap.Error(err))
			}
		}()
		if profiler.IsEnabled() && cfg.Telemetry.SpanProfiles {
			tracerProvider.EnableSpanProfiles()
		}
	}

	// Database
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

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL && !cfg.IsProduction(),
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	if err := runMigrations(db, log); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Repositories
	itemRepo := persistence.NewGormItemRepository(db.DB)
	imageRepo := persistence.NewGormUploadedImageRepository(db.DB)

	// Event bus and realtime hub
	realtimeMetrics, err := telemetry.NewRealtimeMetrics(meter)
	if err != nil {
		log.Warn("Failed to register realtime metrics", zap.Error(err))
	}
	hub := realtime.NewHub(
		realtime.WithBuffer(cfg.Realtime.ClientBuffer),
		realtime.WithHubLogger(log),
		realtime.WithHubMetrics(realtimeMetrics),
	)

	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(hub, hub.EventTypes()...)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()
	log.Info("Realtime hub subscribed", zap.Strings("events", hub.EventTypes()))

	// Detection provider
	detectionMetrics, err := telemetry.NewDetectionMetrics(meter)
	if err != nil {
		log.Warn("Failed to register detection metrics", zap.Error(err))
	}
	detectorClient, err := detector.NewClient(&cfg.Detection,
		detector.WithLogger(log),
		detector.WithMetrics(detectionMetrics),
	)
	if err != nil {
		log.Fatal("Failed to create detection client", zap.Error(err))
	}

	videoStore, err := cache.NewVideoResultStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create video result store", zap.Error(err))
	}
	defer func() {
		if err := videoStore.Close(); err != nil {
			log.Error("Error closing video result store", zap.Error(err))
		}
	}()

	// Application services
	itemService := inventoryapp.NewItemService(itemRepo)
	itemService.SetEventPublisher(eventBus)
	itemService.SetLogger(log)

	reconcileMetrics, err := telemetry.NewReconcileMetrics(meter)
	if err != nil {
		log.Warn("Failed to register reconcile metrics", zap.Error(err))
	}
	reconciler := inventoryapp.NewReconciler(itemRepo)
	reconciler.SetEventPublisher(eventBus)
	reconciler.SetMetrics(reconcileMetrics)
	reconciler.SetLogger(log)

	detectionService := detectionapp.NewDetectionService(
		detectorClient,
		imaging.NewNormalizer(&cfg.Detection),
		videoStore,
		reconciler,
	)
	detectionService.SetVideoResultTTL(cfg.Cache.VideoResultTTL)
	detectionService.SetLogger(log)

	if cfg.Storage.Enabled {
		objectStorage, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create object storage", zap.Error(err))
		}
		detectionService.SetStorage(objectStorage, imageRepo)
		log.Info("Object storage enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log, "/health"))

	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	tracingCfg.Enabled = tracerProvider.IsEnabled()
	engine.Use(middleware.Tracing(tracingCfg))
	engine.Use(middleware.TracingAttributeInjector())
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(meterProvider))
	engine.Use(middleware.Profiling(profiler != nil && profiler.IsEnabled(), "/health"))

	engine.Use(middleware.CORS(middleware.CORSConfigFrom(&cfg.HTTP)))
	engine.Use(middleware.Secure(cfg.IsProduction()))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.NoRoute(router.NoRoute)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	groups := r.RegisterAPI(router.Handlers{
		System:    handler.NewSystemHandler(cfg.App.Name, db, hub.Count),
		Item:      handler.NewItemHandler(itemService),
		Detection: handler.NewDetectionHandler(detectionService),
		Stream: handler.NewStreamHandler(hub,
			handler.WithStreamLogger(log),
			handler.WithStreamHeartbeat(cfg.Realtime.HeartbeatInterval),
			handler.WithAllowedOrigins(cfg.HTTP.CORSAllowOrigins),
		),
	})
	for _, g := range groups {
		log.Debug("Routes registered", zap.String("group", g.Name()), zap.Int("routes", len(g.Routes())))
	}

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

	// Closing the hub ends open streams so Shutdown does not wait on them
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// runMigrations applies the embedded schema migrations
func runMigrations(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	return m.Up()
}
