package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/order-reconciler/internal/application/ledger"
	reconapp "github.com/erp/order-reconciler/internal/application/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/reconciliation"
	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/infrastructure/cache"
	"github.com/erp/order-reconciler/internal/infrastructure/client"
	"github.com/erp/order-reconciler/internal/infrastructure/config"
	"github.com/erp/order-reconciler/internal/infrastructure/event"
	"github.com/erp/order-reconciler/internal/infrastructure/logger"
	"github.com/erp/order-reconciler/internal/infrastructure/persistence"
	"github.com/erp/order-reconciler/internal/infrastructure/telemetry"
	"github.com/erp/order-reconciler/internal/interfaces/http/handler"
	"github.com/erp/order-reconciler/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ reconapp.Metrics = (*telemetry.ReconciliationMetrics)(nil)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logCfg := logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting order reconciler",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("guard_backend", cfg.Reconciliation.GuardBackend),
		zap.String("lock_backend", cfg.Reconciliation.LockBackend),
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
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if logsProvider.IsEnabled() {
		logCfg.Tee = []zapcore.Core{logsProvider.Core(logger.ParseLevel(cfg.Log.Level))}
		bridged, err := logger.New(logCfg)
		if err != nil {
			log.Fatal("Failed to attach the OTLP log bridge", zap.Error(err))
		}
		log = bridged
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilingEnabled,
		ServerAddress:     cfg.Telemetry.ProfilingServerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Telemetry.ProfilingBasicAuthUser,
		BasicAuthPassword: cfg.Telemetry.ProfilingBasicAuthPass,
		Goroutines:        cfg.Telemetry.ProfilingGoroutines,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == "sqlite" {
		// postgres schemas are managed by cmd/migrate
		if err := db.AutoMigrate(ctx); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	if err := instrumentDatabase(cfg, db, meter, log); err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// Redis is only needed by the redis guard and lock backends
	var redisClient *redis.Client
	if cfg.Reconciliation.GuardBackend == config.BackendRedis || cfg.Reconciliation.LockBackend == config.BackendRedis {
		redisClient, err = cache.NewRedisClient(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = redisClient.Close()
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	transitions, closeStore := newTransitionStore(cfg.Reconciliation, db, redisClient)
	defer closeStore()
	locker := newOrderLocker(cfg.Reconciliation, redisClient, log)

	// External services
	orderHTTP, err := client.New("order", cfg.Services.Order, log)
	if err != nil {
		log.Fatal("Failed to create order client", zap.Error(err))
	}
	inventoryHTTP, err := client.New("inventory", cfg.Services.Inventory, log)
	if err != nil {
		log.Fatal("Failed to create inventory client", zap.Error(err))
	}
	receivablesHTTP, err := client.New("receivables", cfg.Services.Receivables, log)
	if err != nil {
		log.Fatal("Failed to create receivables client", zap.Error(err))
	}
	orders := client.NewOrderClient(orderHTTP)
	inventory := client.NewInventoryClient(inventoryHTTP)
	receivables := client.NewReceivablesClient(receivablesHTTP)

	// Local journals
	intentRepo := persistence.NewGormIntentRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	transactionJournal := persistence.NewGormTransactionJournal(db.DB)
	adjustmentRepo := persistence.NewGormAdjustmentRepository(db.DB)

	// Ledgers and engine
	stockLedger := ledger.NewStockLedger(inventory, movementRepo, log)
	balanceLedger := ledger.NewBalanceLedger(receivables, transactionJournal, log)

	returns := reconapp.NewReturnProcessor(orders, stockLedger, adjustmentRepo, log)
	engine := reconapp.NewEngine(
		orders,
		reconapp.NewGuard(transitions),
		reconapp.NewStockCoordinator(stockLedger, log),
		reconapp.NewBalanceCoordinator(balanceLedger),
		returns,
		intentRepo,
		locker,
		log,
	)
	engine.SetMaxAttempts(cfg.Reconciliation.MaxAttempts)
	engine.SetLockWait(cfg.Reconciliation.LockWait)

	reconMetrics, err := telemetry.NewReconciliationMetrics(meter)
	if err != nil {
		log.Warn("Reconciliation metrics disabled", zap.Error(err))
	} else {
		engine.SetMetrics(reconMetrics)
		returns.SetMetrics(reconMetrics)
	}

	// Alerts go to Kafka when configured, otherwise to the log
	serializer := event.NewReconciliationSerializer()
	var publisher shared.EventPublisher = event.NewLoggingPublisher(serializer, log)
	var kafkaPublisher *event.KafkaPublisher
	if cfg.Kafka.Enabled {
		kafkaCfg := event.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}
		kafkaPublisher = event.NewKafkaPublisher(event.NewKafkaWriter(kafkaCfg), serializer, kafkaCfg, log)
		if err := kafkaPublisher.Start(ctx); err != nil {
			log.Fatal("Failed to start Kafka publisher", zap.Error(err))
		}
		publisher = kafkaPublisher
		log.Info("Publishing reconciliation events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	engine.SetEventPublisher(publisher)
	returns.SetEventPublisher(publisher)

	// Background reconciliation job
	var job *reconapp.Job
	if cfg.Reconciliation.JobEnabled {
		job = reconapp.NewJob(engine, intentRepo, movementRepo, transactionJournal, reconapp.JobConfig{
			BatchSize:  cfg.Reconciliation.JobBatchSize,
			Interval:   cfg.Reconciliation.JobInterval,
			StaleAfter: cfg.Reconciliation.StaleAfter,
		}, log.Named("reconciliation_job"))
		if err := job.Start(ctx); err != nil {
			log.Fatal("Failed to start reconciliation job", zap.Error(err))
		}
	}

	// HTTP
	handler.SetupValidator()
	ginMode := gin.DebugMode
	if cfg.App.Env == "production" {
		ginMode = gin.ReleaseMode
	}
	ginEngine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Mode:           ginMode,
		TracingEnabled: cfg.Telemetry.Enabled,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Meter:          meter,
		Logger:         log,
	})
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}

	systemHandler := handler.NewSystemHandler(telemetry.ServiceVersion).
		AddCheck("database", db.Ping)
	if redisClient != nil {
		systemHandler.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	systemHandler.RegisterRoutes(ginEngine)

	r := router.NewRouter(ginEngine, router.WithAPIVersion("v1"))
	r.Register(
		handler.NewOrderHandler(engine),
		handler.NewLedgerHandler(balanceLedger, stockLedger),
		handler.NewIntentHandler(engine),
	)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if job != nil {
		if err := job.Stop(shutdownCtx); err != nil {
			log.Error("Reconciliation job did not stop cleanly", zap.Error(err))
		}
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Stop(shutdownCtx); err != nil {
			log.Error("Kafka publisher did not flush", zap.Error(err))
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Profiler did not stop cleanly", zap.Error(err))
	}
	// last, so the shutdown entries above are still exported
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Logger provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// instrumentDatabase registers query tracing and query/pool metrics on db
func instrumentDatabase(cfg *config.Config, db *persistence.Database, meter metric.Meter, log *zap.Logger) error {
	tracingCfg := telemetry.DefaultDBTracingConfig()
	tracingCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	tracingCfg.LogFullSQL = cfg.App.Env == "development"
	if cfg.Database.Driver == "sqlite" {
		tracingCfg.DBSystem = "sqlite"
	}
	if err := telemetry.NewDBTracingPlugin(tracingCfg, log).RegisterOtelGorm(db.DB); err != nil {
		return err
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	dbMetrics, err := telemetry.NewDBMetrics(meter, sqlDB, tracingCfg.SlowQueryThresh, log)
	if err != nil {
		return err
	}
	return db.DB.Use(dbMetrics)
}

// newTransitionStore picks the guard backend. The returned func releases
// backend resources.
func newTransitionStore(cfg config.ReconciliationConfig, db *persistence.Database, rdb *redis.Client) (reconciliation.TransitionStore, func()) {
	switch cfg.GuardBackend {
	case config.BackendMemory:
		store := cache.NewInMemoryTransitionStore(cfg.GuardTTL)
		return store, func() { _ = store.Close() }
	case config.BackendRedis:
		return cache.NewRedisTransitionStore(rdb, "", cfg.GuardTTL), func() {}
	default:
		return persistence.NewGormTransitionStore(db.DB), func() {}
	}
}

func newOrderLocker(cfg config.ReconciliationConfig, rdb *redis.Client, log *zap.Logger) reconapp.OrderLocker {
	if cfg.LockBackend == config.BackendRedis {
		return cache.NewRedisOrderLocker(rdb, cfg.LockTTL, log.Named("order_locker"))
	}
	return cache.NewInMemoryOrderLocker()
}
