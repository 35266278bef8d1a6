package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/nowatermark-go/api/handlers"
	"github.com/yourusername/nowatermark-go/api/middleware"
	"github.com/yourusername/nowatermark-go/internal/app"
	"github.com/yourusername/nowatermark-go/pkg/logger"
	"go.uber.org/zap"
)

// SetupRouter sets up the HTTP router. events may be nil, in which case
// error responses are only logged to log.
func SetupRouter(
	pipeline *app.ExtractionPipeline,
	history *app.HistoryService,
	log *zap.Logger,
	events *logger.MultiLogger,
	logsDir string,
) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(log, events))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(pipeline)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		extractionHandler := handlers.NewExtractionHandler(pipeline, log)
		extractions := v1.Group("/extractions")
		{
			extractions.POST("", extractionHandler.Submit)
			extractions.GET("/current", extractionHandler.Current)
			extractions.POST("/current/cancel", extractionHandler.Cancel)
			extractions.POST("/current/materialize", extractionHandler.Materialize)
			extractions.POST("/current/share", extractionHandler.Share)
			extractions.POST("/current/save", extractionHandler.Save)
		}

		historyHandler := handlers.NewHistoryHandler(history)
		records := v1.Group("/history")
		{
			records.GET("", historyHandler.List)
			records.GET("/:id", historyHandler.Get)
			records.DELETE("/:id", historyHandler.Delete)
			records.POST("/:id/materialize", historyHandler.Materialize)
			records.POST("/:id/save", historyHandler.Save)
		}

		logHandler := handlers.NewLogHandler(logsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
