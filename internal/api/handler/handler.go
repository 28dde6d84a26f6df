package handler

import (
	"log/slog"

	"github.com/sitescope/sitescope-be/internal/api/storage"
	"github.com/sitescope/sitescope-be/internal/pipeline"
	"github.com/sitescope/sitescope-be/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Machine      *pipeline.Machine
	Registry     pipeline.Registry
	Archive      *storage.Storage
	RabbitClient *rabbitmq.Client
}

// AnalysisHandler handles analysis-related HTTP requests
type AnalysisHandler struct {
	logger       *slog.Logger
	machine      *pipeline.Machine
	registry     pipeline.Registry
	archive      *storage.Storage
	rabbitClient *rabbitmq.Client
}

// NewAnalysisHandler creates a new AnalysisHandler instance
func NewAnalysisHandler(deps *Dependencies) *AnalysisHandler {
	return &AnalysisHandler{
		logger:       deps.Logger,
		machine:      deps.Machine,
		registry:     deps.Registry,
		archive:      deps.Archive,
		rabbitClient: deps.RabbitClient,
	}
}
