package admin_api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/sendbulk-reconciler/internal/admin_api/handler"
	"github.com/sendbulk-reconciler/internal/admin_api/middleware"
	"github.com/sendbulk-reconciler/internal/platform/metrics"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	batchHandler *handler.BatchHandler,
	creditHandler *handler.CreditHandler,
	healthHandler *handler.HealthHandler,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	v1 := r.Group("/api/v1")
	{
		batches := v1.Group("/batches")
		{
			batches.POST("", batchHandler.Register)
			batches.GET("", batchHandler.List)
			batches.GET("/:batchId", batchHandler.GetByID)
			batches.GET("/:batchId/polls", batchHandler.ListPolls)
			batches.POST("/:batchId/reconcile", batchHandler.Reconcile)
		}

		users := v1.Group("/users/:userId/credit")
		{
			users.GET("", creditHandler.GetBalance)
			users.GET("/entries", creditHandler.ListEntries)
			users.POST("/adjustments", creditHandler.Adjust)
		}
	}

	r.GET("/health", healthHandler.Check)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}
