package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sitescope/sitescope-be/internal/pipeline"
)

// processJob drives one analysis from its current state to a terminal one and
// archives the outcome. The returned error feeds the ACK/NACK decision: nil
// means done (ACK), a retryable error means requeue.
func (w *Worker) processJob(ctx context.Context, msg *JobMessage) error {
	w.logger.Info("Processing analysis",
		slog.String("job_id", msg.JobID),
		slog.String("worker_id", w.workerID),
	)

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	job, err := w.machine.Run(jobCtx, msg.JobID)
	if err != nil {
		if errors.Is(err, pipeline.ErrJobNotFound) {
			w.logger.Warn("Analysis vanished from registry, dropping message",
				slog.String("job_id", msg.JobID),
			)
			return fmt.Errorf("analysis not in registry: %w", err)
		}
		// Registry commit failures come back wrapped as retryable; the
		// pipeline is resumable, so a requeued message picks up where the
		// last committed stage left off.
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	w.logger.Info("Analysis finished",
		slog.String("job_id", job.ID),
		slog.String("status", job.Status),
		slog.Int("progress", job.Progress),
	)

	// Archiving is best effort; the registry still holds the authoritative
	// state until retention eviction.
	if err := w.archive.ArchiveJob(context.WithoutCancel(ctx), job); err != nil {
		w.logger.Error("Failed to archive analysis",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}
