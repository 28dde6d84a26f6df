package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sitescope/sitescope-be/internal/pipeline"
)

// Storage writes terminal analyses into the archive table the API's list
// endpoint reads from.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ArchiveJob upserts the terminal job snapshot. The full job state is kept as
// JSON so results survive registry eviction.
func (s *Storage) ArchiveJob(ctx context.Context, job *pipeline.Job) error {
	results, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job state: %w", err)
	}

	var reportPath *string
	if job.Report != nil {
		reportPath = &job.Report.Path
	}

	query := `
		INSERT INTO analyses (
			analysis_id, main_url, competitors, status,
			progress, results, report_path, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9
		)
		ON CONFLICT (analysis_id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			results = EXCLUDED.results,
			report_path = EXCLUDED.report_path,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.MainURL,
		pq.StringArray(job.CompetitorURLs),
		job.Status,
		job.Progress,
		results,
		reportPath,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to archive analysis: %w", err)
	}

	s.logger.Info("Analysis archived",
		slog.String("job_id", job.ID),
		slog.String("status", job.Status),
	)

	return nil
}
