package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/sitescope/sitescope-be/internal/capture"
	"github.com/sitescope/sitescope-be/internal/config"
	"github.com/sitescope/sitescope-be/internal/pipeline"
	"github.com/sitescope/sitescope-be/internal/recommend"
	"github.com/sitescope/sitescope-be/internal/registry"
	"github.com/sitescope/sitescope-be/internal/report"
	"github.com/sitescope/sitescope-be/internal/worker"
	"github.com/sitescope/sitescope-be/internal/worker/storage"
	"github.com/sitescope/sitescope-be/shared/logger"
	"github.com/sitescope/sitescope-be/shared/postgresql"
	"github.com/sitescope/sitescope-be/shared/rabbitmq"
	"github.com/sitescope/sitescope-be/shared/redisdb"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client (analysis archive)
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	// Initialize job registry
	jobRegistry, redisClient, err := initRegistry(cfg, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize registry: %w", err)
	}

	// Assemble the pipeline
	machine := pipeline.NewMachine(&pipeline.Config{
		Registry:         jobRegistry,
		Capture:          initCaptureProvider(&cfg.Capture, appLogger.Logger),
		Recommender:      initRecommender(&cfg.Recommend, appLogger.Logger),
		Renderer:         report.NewRenderer(&report.Config{Dir: cfg.Report.Dir}, appLogger.Logger),
		Logger:           appLogger.Logger,
		RecommendTimeout: cfg.Recommend.Timeout,
	})

	// Create worker instance
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:        appLogger.Logger,
		Machine:       machine,
		Archive:       storage.NewStorage(dbClient.GetDB(), appLogger.Logger),
		RabbitClient:  rabbitClient,
		WorkerID:      fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:    cfg.Worker.JobTimeout,
		QueueName:     cfg.RabbitMQ.Queue.Name,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	// Cancel context to stop worker
	cancel()

	// Give worker time to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Stop worker
	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	// Cleanup function to close all resources
	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
		if redisClient != nil {
			redisClient.Close()
		}
	}
	cleanup()

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.EnableCaller,
		TimeFormat: time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRegistry builds the configured job registry backend. The redis client is
// returned for cleanup and is nil for the memory backend.
func initRegistry(cfg *config.Config, logger *slog.Logger) (pipeline.Registry, *redisdb.Client, error) {
	retention := cfg.Registry.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	switch cfg.Registry.Backend {
	case "redis":
		client, err := redisdb.NewClient(&redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return registry.NewRedisRegistry(client.GetRDB(), cfg.Registry.KeyPrefix, retention), client, nil
	default:
		return registry.NewMemoryRegistry(), nil, nil
	}
}

// initCaptureProvider wires the measurement tool clients into the capture
// provider. Lighthouse is the primary collector; WebPageTest and GTmetrix
// degrade to flagged placeholder samples without credentials.
func initCaptureProvider(cfg *config.CaptureConfig, logger *slog.Logger) *capture.Provider {
	lighthouse := capture.NewLighthouseCollector(&capture.LighthouseConfig{
		Endpoint: cfg.Lighthouse.Endpoint,
		Timeout:  cfg.Lighthouse.Timeout,
	}, logger)

	webpagetest := capture.NewWebPageTestClient(&capture.WebPageTestConfig{
		APIKey:       cfg.WebPageTest.APIKey,
		BaseURL:      cfg.WebPageTest.BaseURL,
		PollInterval: cfg.WebPageTest.PollInterval,
		MaxWait:      cfg.WebPageTest.MaxWait,
	}, logger)

	gtmetrix := capture.NewGTmetrixClient(&capture.GTmetrixConfig{
		APIKey:       cfg.GTmetrix.APIKey,
		APIUsername:  cfg.GTmetrix.APIUsername,
		BaseURL:      cfg.GTmetrix.BaseURL,
		PollInterval: cfg.GTmetrix.PollInterval,
		MaxWait:      cfg.GTmetrix.MaxWait,
	}, logger)

	screenshotter := capture.NewScreenshotClient(&capture.ScreenshotConfig{
		Endpoint: cfg.Screenshot.Endpoint,
		Dir:      cfg.Screenshot.Dir,
		Timeout:  cfg.Screenshot.Timeout,
	}, logger)

	return capture.NewProvider(lighthouse, screenshotter, logger, webpagetest, gtmetrix)
}

// initRecommender builds the recommendation generator.
func initRecommender(cfg *config.RecommendConfig, logger *slog.Logger) *recommend.Generator {
	return recommend.NewGenerator(&recommend.Config{
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Timeout:  cfg.Timeout,
	}, logger)
}
