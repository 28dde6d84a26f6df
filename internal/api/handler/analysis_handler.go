package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitescope/sitescope-be/internal/api/domain"
	"github.com/sitescope/sitescope-be/internal/api/dto"
	"github.com/sitescope/sitescope-be/internal/api/model"
	"github.com/sitescope/sitescope-be/internal/api/storage"
	"github.com/sitescope/sitescope-be/internal/pipeline"
)

// SubmitAnalysis handles POST /api/v1/analyses
// Validates the URLs, registers the job and enqueues it for the worker.
func (h *AnalysisHandler) SubmitAnalysis(c *gin.Context) {
	var req dto.SubmitAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.machine.Submit(c.Request.Context(), req.MainURL, req.Competitors)
	if err != nil {
		if errors.Is(err, pipeline.ErrMainURLRequired) || errors.Is(err, pipeline.ErrInvalidURL) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		h.logger.Error("Failed to register analysis", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create analysis",
		})
		return
	}

	// The queue message carries only the job id; the worker loads the full
	// state from the registry.
	body, err := json.Marshal(gin.H{"job_id": job.ID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create analysis",
		})
		return
	}

	if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to enqueue analysis",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		// Orphaned registry entries would never run; clean up best effort.
		if derr := h.registry.Delete(c.Request.Context(), job.ID); derr != nil {
			h.logger.Warn("Failed to remove unqueued job", slog.String("job_id", job.ID))
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue analysis",
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.SubmitAnalysisResponse{
		AnalysisID:  job.ID,
		MainURL:     job.MainURL,
		Competitors: job.CompetitorURLs,
		Status:      job.Status,
		Progress:    job.Progress,
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
	})
}

// GetStatus handles GET /api/v1/analyses/:analysis_id/status
func (h *AnalysisHandler) GetStatus(c *gin.Context) {
	analysisID, ok := h.analysisID(c)
	if !ok {
		return
	}

	job, err := h.loadJob(c, analysisID)
	if err != nil {
		h.respondLoadError(c, analysisID, err)
		return
	}

	c.JSON(http.StatusOK, dto.StatusResponse{
		AnalysisID:   job.ID,
		MainURL:      job.MainURL,
		Status:       job.Status,
		CurrentStage: string(job.Stage),
		Progress:     job.Progress,
		Errors:       job.Errors,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	})
}

// GetResults handles GET /api/v1/analyses/:analysis_id/results
// Results exist only for completed analyses.
func (h *AnalysisHandler) GetResults(c *gin.Context) {
	analysisID, ok := h.analysisID(c)
	if !ok {
		return
	}

	job, err := h.loadJob(c, analysisID)
	if err != nil {
		h.respondLoadError(c, analysisID, err)
		return
	}

	if job.Status != pipeline.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Analysis is not completed",
			"status": job.Status,
		})
		return
	}

	c.JSON(http.StatusOK, dto.ResultsResponse{
		AnalysisID:      job.ID,
		MainURL:         job.MainURL,
		Status:          job.Status,
		Metrics:         job.Aggregated,
		Recommendations: job.Recommendations,
		Screenshots:     job.Screenshots,
		Report:          job.Report,
		Errors:          job.Errors,
		CompletedAt:     job.UpdatedAt.Format(time.RFC3339),
	})
}

// DownloadReport handles GET /api/v1/analyses/:analysis_id/report
func (h *AnalysisHandler) DownloadReport(c *gin.Context) {
	analysisID, ok := h.analysisID(c)
	if !ok {
		return
	}

	job, err := h.loadJob(c, analysisID)
	if err != nil {
		h.respondLoadError(c, analysisID, err)
		return
	}

	if job.Report == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Report not available",
		})
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(job.Report.Path))
	c.File(job.Report.Path)
}

// CancelAnalysis handles POST /api/v1/analyses/:analysis_id/cancel
// Flags the job; the worker honors the flag at the next stage boundary.
func (h *AnalysisHandler) CancelAnalysis(c *gin.Context) {
	analysisID, ok := h.analysisID(c)
	if !ok {
		return
	}

	err := h.registry.RequestCancel(c.Request.Context(), analysisID)
	switch {
	case errors.Is(err, pipeline.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Analysis not found",
		})
		return
	case errors.Is(err, pipeline.ErrJobTerminal):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Analysis already finished",
		})
		return
	case err != nil:
		h.logger.Error("Failed to request cancellation",
			slog.String("analysis_id", analysisID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cancel analysis",
		})
		return
	}

	h.logger.Info("Cancellation requested", slog.String("analysis_id", analysisID))

	c.JSON(http.StatusAccepted, gin.H{
		"analysis_id": analysisID,
		"message":     "Cancellation requested; takes effect at the next stage boundary",
	})
}

// DeleteAnalysis handles DELETE /api/v1/analyses/:analysis_id
// Removes the job, its archive row and its artifacts. Running jobs must be
// canceled first.
func (h *AnalysisHandler) DeleteAnalysis(c *gin.Context) {
	analysisID, ok := h.analysisID(c)
	if !ok {
		return
	}

	job, err := h.loadJob(c, analysisID)
	if err != nil {
		h.respondLoadError(c, analysisID, err)
		return
	}

	if !job.Terminal() {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Analysis is still running; cancel it first",
			"status": job.Status,
		})
		return
	}

	h.removeArtifacts(job)

	if err := h.registry.Delete(c.Request.Context(), analysisID); err != nil && !errors.Is(err, pipeline.ErrJobNotFound) {
		h.logger.Error("Failed to delete analysis from registry",
			slog.String("analysis_id", analysisID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete analysis",
		})
		return
	}

	if err := h.archive.DeleteAnalysis(c.Request.Context(), analysisID); err != nil && !errors.Is(err, domain.ErrAnalysisNotFound) {
		h.logger.Warn("Failed to delete archived analysis",
			slog.String("analysis_id", analysisID),
			slog.String("error", err.Error()),
		)
	}

	c.Status(http.StatusNoContent)
}

// ListAnalyses handles GET /api/v1/analyses
// Lists archived analyses with optional status filtering and cursor
// pagination.
func (h *AnalysisHandler) ListAnalyses(c *gin.Context) {
	var req dto.ListAnalysesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeAnalysisCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.AnalysisFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	analyses, err := h.archive.ListAnalyses(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list analyses", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list analyses",
		})
		return
	}

	hasMore := len(analyses) > req.PageSize
	if hasMore {
		analyses = analyses[:req.PageSize]
	}

	items := make([]dto.AnalysisDTO, len(analyses))
	for i, a := range analyses {
		items[i] = dto.AnalysisDTO{
			AnalysisID:  a.AnalysisID,
			MainURL:     a.MainURL,
			Competitors: a.Competitors,
			Status:      a.Status,
			Progress:    a.Progress,
			ReportPath:  a.ReportPath.String,
			CreatedAt:   a.CreatedAt.Format(time.RFC3339),
			UpdatedAt:   a.UpdatedAt.Format(time.RFC3339),
		}
	}

	var nextCursor string
	if hasMore {
		last := analyses[len(analyses)-1]
		nextCursor = EncodeAnalysisCursor(&storage.AnalysisCursor{
			CreatedAt:  last.CreatedAt,
			AnalysisID: last.AnalysisID,
		})
	}

	c.JSON(http.StatusOK, dto.ListAnalysesResponse{
		Analyses:   items,
		NextCursor: nextCursor,
	})
}

// analysisID extracts and validates the path parameter, writing the error
// response itself on failure.
func (h *AnalysisHandler) analysisID(c *gin.Context) (string, bool) {
	analysisID := c.Param("analysis_id")
	if _, err := uuid.Parse(analysisID); err != nil {
		h.logger.Error("Invalid analysis_id format",
			slog.String("analysis_id", analysisID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "analysis_id must be a valid UUID",
		})
		return "", false
	}
	return analysisID, true
}

// loadJob reads the job from the registry, falling back to the archive for
// terminal jobs the registry has already evicted.
func (h *AnalysisHandler) loadJob(c *gin.Context, analysisID string) (*pipeline.Job, error) {
	job, err := h.registry.Get(c.Request.Context(), analysisID)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pipeline.ErrJobNotFound) {
		return nil, err
	}

	row, aerr := h.archive.GetAnalysisByID(c.Request.Context(), analysisID)
	if aerr != nil {
		return nil, aerr
	}
	return jobFromArchive(row)
}

func jobFromArchive(row *model.Analysis) (*pipeline.Job, error) {
	var job pipeline.Job
	if len(row.Results) > 0 {
		if err := json.Unmarshal(row.Results, &job); err != nil {
			return nil, err
		}
	}
	job.ID = row.AnalysisID
	job.MainURL = row.MainURL
	job.CompetitorURLs = row.Competitors
	job.Status = row.Status
	job.Progress = row.Progress
	job.CreatedAt = row.CreatedAt
	job.UpdatedAt = row.UpdatedAt
	return &job, nil
}

func (h *AnalysisHandler) respondLoadError(c *gin.Context, analysisID string, err error) {
	if errors.Is(err, pipeline.ErrJobNotFound) || errors.Is(err, domain.ErrAnalysisNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Analysis not found",
		})
		return
	}
	h.logger.Error("Failed to load analysis",
		slog.String("analysis_id", analysisID),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Failed to load analysis",
	})
}

// removeArtifacts deletes the rendered report and the per-job screenshot
// directory. Missing files are fine.
func (h *AnalysisHandler) removeArtifacts(job *pipeline.Job) {
	if job.Report != nil && job.Report.Path != "" {
		if err := os.Remove(job.Report.Path); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("Failed to remove report file",
				slog.String("analysis_id", job.ID),
				slog.String("path", job.Report.Path),
			)
		}
	}

	for _, shot := range job.Screenshots {
		if shot.Screenshot == nil || shot.Screenshot.DesktopPath == "" {
			continue
		}
		// Screenshots live under one directory per job.
		dir := filepath.Dir(shot.Screenshot.DesktopPath)
		if err := os.RemoveAll(dir); err != nil {
			h.logger.Warn("Failed to remove screenshot directory",
				slog.String("analysis_id", job.ID),
				slog.String("dir", dir),
			)
		}
		break
	}
}
