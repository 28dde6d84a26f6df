package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sitescope/sitescope-be/internal/pipeline"
	"github.com/sitescope/sitescope-be/internal/worker/storage"
	"github.com/sitescope/sitescope-be/shared/rabbitmq"
)

// JobMessage is a queued analysis reference. The message carries only the job
// id; the full state lives in the registry.
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Machine       *pipeline.Machine
	Archive       *storage.Storage
	RabbitClient  *rabbitmq.Client
	WorkerID      string
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
	QueueName     string
}

// Worker consumes queued analyses and drives each one through the pipeline.
type Worker struct {
	logger        *slog.Logger
	machine       *pipeline.Machine
	archive       *storage.Storage
	rabbitClient  *rabbitmq.Client
	workerID      string
	concurrency   int
	prefetchCount int
	jobTimeout    time.Duration
	queueName     string
	jobsChan      chan *JobMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = cfg.Concurrency
	}
	return &Worker{
		logger:        cfg.Logger,
		machine:       cfg.Machine,
		archive:       cfg.Archive,
		rabbitClient:  cfg.RabbitClient,
		workerID:      cfg.WorkerID,
		concurrency:   cfg.Concurrency,
		prefetchCount: prefetch,
		jobTimeout:    cfg.JobTimeout,
		queueName:     cfg.QueueName,
		jobsChan:      make(chan *JobMessage),
		stopChan:      make(chan struct{}),
	}
}

// Start begins consuming and processing analyses. It blocks until the context
// is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
