package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sitescope/sitescope-be/internal/pipeline"
)

func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, fmt.Sprintf("%s-%d", w.workerID, i))
	}
}

// workerLoop pulls dispatched analyses off jobsChan, runs them and settles
// the delivery. One loop handles one job at a time; concurrency comes from
// the number of loops.
func (w *Worker) workerLoop(ctx context.Context, name string) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-w.jobsChan:
			if !ok {
				return
			}
			err := w.processJob(ctx, msg)
			w.settle(name, msg, err)
		}
	}
}

// settle acks a processed delivery, or nacks it with the requeue decision.
func (w *Worker) settle(name string, msg *JobMessage, procErr error) {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		w.logger.Error("No channel available to settle delivery",
			slog.String("worker", name),
			slog.String("job_id", msg.JobID),
		)
		return
	}

	if procErr == nil {
		if err := channel.Ack(msg.DeliveryTag, false); err != nil {
			w.logger.Error("Failed to ACK delivery",
				slog.String("worker", name),
				slog.String("job_id", msg.JobID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	requeue := shouldRequeueJob(procErr)
	w.logger.Error("Analysis processing failed",
		slog.String("worker", name),
		slog.String("job_id", msg.JobID),
		slog.Bool("requeue", requeue),
		slog.String("error", procErr.Error()),
	)
	if err := channel.Nack(msg.DeliveryTag, false, requeue); err != nil {
		w.logger.Error("Failed to NACK delivery",
			slog.String("worker", name),
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// shouldRequeueJob decides whether a failed delivery goes back on the queue.
// Only transient trouble is worth replaying; a missing job record or an
// unknown failure would fail identically on redelivery.
func shouldRequeueJob(err error) bool {
	if errors.Is(err, pipeline.ErrJobNotFound) {
		return false
	}
	var retryable *pipeline.RetryableError
	return errors.As(err, &retryable)
}
