package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitescope/sitescope-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "sitescope-api-service",
		})
	})

	// Initialize analysis handler
	analysisHandler := handler.NewAnalysisHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		analyses := v1.Group("/analyses")
		{
			// POST /api/v1/analyses - Submit a new analysis
			analyses.POST("", analysisHandler.SubmitAnalysis)

			// GET /api/v1/analyses - List archived analyses with pagination
			analyses.GET("", analysisHandler.ListAnalyses)

			// GET /api/v1/analyses/:analysis_id/status - Poll progress
			analyses.GET("/:analysis_id/status", analysisHandler.GetStatus)

			// GET /api/v1/analyses/:analysis_id/results - Completed results
			analyses.GET("/:analysis_id/results", analysisHandler.GetResults)

			// GET /api/v1/analyses/:analysis_id/report - Download the report
			analyses.GET("/:analysis_id/report", analysisHandler.DownloadReport)

			// POST /api/v1/analyses/:analysis_id/cancel - Request cancellation
			analyses.POST("/:analysis_id/cancel", analysisHandler.CancelAnalysis)

			// DELETE /api/v1/analyses/:analysis_id - Delete an analysis
			analyses.DELETE("/:analysis_id", analysisHandler.DeleteAnalysis)
		}
	}

	return r
}
