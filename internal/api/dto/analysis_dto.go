package dto

import (
	"github.com/sitescope/sitescope-be/internal/analysis"
	"github.com/sitescope/sitescope-be/internal/pipeline"
)

type SubmitAnalysisRequest struct {
	MainURL     string   `json:"main_url" binding:"required"`
	Competitors []string `json:"competitors"`
}

type SubmitAnalysisResponse struct {
	AnalysisID  string   `json:"analysis_id"`
	MainURL     string   `json:"main_url"`
	Competitors []string `json:"competitors"`
	Status      string   `json:"status"`
	Progress    int      `json:"progress"`
	CreatedAt   string   `json:"created_at"`
}

type StatusResponse struct {
	AnalysisID   string   `json:"analysis_id"`
	MainURL      string   `json:"main_url"`
	Status       string   `json:"status"`
	CurrentStage string   `json:"current_stage,omitempty"`
	Progress     int      `json:"progress"`
	Errors       []string `json:"errors,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

type ResultsResponse struct {
	AnalysisID      string                      `json:"analysis_id"`
	MainURL         string                      `json:"main_url"`
	Status          string                      `json:"status"`
	Metrics         *analysis.AggregatedMetrics `json:"metrics"`
	Recommendations []analysis.Recommendation   `json:"recommendations"`
	Screenshots     []analysis.StageResult      `json:"screenshots,omitempty"`
	Report          *pipeline.ReportInfo        `json:"report,omitempty"`
	Errors          []string                    `json:"errors,omitempty"`
	CompletedAt     string                      `json:"completed_at,omitempty"`
}

type ListAnalysesRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListAnalysesResponse struct {
	Analyses   []AnalysisDTO `json:"analyses"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type AnalysisDTO struct {
	AnalysisID  string   `json:"analysis_id"`
	MainURL     string   `json:"main_url"`
	Competitors []string `json:"competitors"`
	Status      string   `json:"status"`
	Progress    int      `json:"progress"`
	ReportPath  string   `json:"report_path,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}
