package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sitescope/sitescope-be/internal/api/domain"
	"github.com/sitescope/sitescope-be/internal/api/model"
	"github.com/sitescope/sitescope-be/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

// UpsertAnalysis archives an analysis, replacing any previous snapshot of the
// same job.
func (s *Storage) UpsertAnalysis(ctx context.Context, analysis *model.Analysis) error {
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

	_, err := s.db.ExecContext(
		ctx,
		query,
		analysis.AnalysisID,
		analysis.MainURL,
		analysis.Competitors,
		analysis.Status,
		analysis.Progress,
		analysis.Results,
		analysis.ReportPath,
		analysis.CreatedAt,
		analysis.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to archive analysis: %w", err)
	}

	return nil
}

func (s *Storage) GetAnalysisByID(ctx context.Context, analysisID string) (*model.Analysis, error) {
	var analysis model.Analysis
	query := `
		SELECT
			analysis_id, main_url, competitors, status,
			progress, results, report_path, created_at, updated_at
		FROM analyses
		WHERE analysis_id = $1
	`

	err := s.db.GetContext(ctx, &analysis, query, analysisID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	return &analysis, nil
}

func (s *Storage) DeleteAnalysis(ctx context.Context, analysisID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE analysis_id = $1`, analysisID)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if affected == 0 {
		return domain.ErrAnalysisNotFound
	}

	return nil
}

type AnalysisFilter struct {
	Status   string
	PageSize int
	Cursor   *AnalysisCursor
}

type AnalysisCursor struct {
	CreatedAt  time.Time
	AnalysisID string
}

func (s *Storage) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.Analysis, error) {
	query := `
        SELECT
            analysis_id, main_url, competitors, status,
            progress, results, report_path, created_at, updated_at
        FROM analyses
        WHERE 1=1
    `
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, analysis_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.AnalysisID)
		argIdx += 2
	}

	// Order by created_at DESC, analysis_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, analysis_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var analyses []model.Analysis
	err := s.db.SelectContext(ctx, &analyses, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	return analyses, nil
}
