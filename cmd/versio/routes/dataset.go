package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/versio-data/versio/cmd/versio/container"
	"github.com/versio-data/versio/cmd/versio/handlers"
	"github.com/versio-data/versio/cmd/versio/middleware"
	commonmw "github.com/versio-data/versio/common/middleware"
)

// RegisterDatasetRoutes registers dataset CRUD and commit routes
func RegisterDatasetRoutes(e *echo.Echo, c *container.Container) {
	datasetHandler := handlers.NewDatasetHandler(c.Components, c.Datasets, c.Graph)
	versionHandler := handlers.NewVersionHandler(c.Components, c.Composer, c.Graph, c.Schemas)

	datasets := e.Group("/api/v1/datasets")
	datasets.Use(middleware.ExtractUsername())
	{
		datasets.POST("", datasetHandler.CreateDataset)     // POST /api/v1/datasets
		datasets.GET("", datasetHandler.ListDatasets)       // GET /api/v1/datasets
		datasets.GET("/:id", datasetHandler.GetDataset)     // GET /api/v1/datasets/{dataset_id}
		datasets.DELETE("/:id", datasetHandler.DeleteDataset)
		datasets.GET("/:id/tree", datasetHandler.GetTree)   // GET /api/v1/datasets/{dataset_id}/tree
	}

	// Commits carry content streams, so they alone get rate limiting
	commits := e.Group("/api/v1/datasets/:id/commits")
	commits.Use(middleware.ExtractUsername())
	if c.Limiter != nil && c.Components.Config.RateLimit.Enabled {
		rl := c.Components.Config.RateLimit
		commits.Use(commonmw.GlobalRateLimitMiddleware(c.Limiter, rl.GlobalLimit, rl.WindowSeconds))
		commits.Use(commonmw.UserRateLimitMiddleware(c.Limiter, rl.UserLimit, rl.WindowSeconds))
	}
	commits.POST("", versionHandler.Commit) // POST /api/v1/datasets/{dataset_id}/commits
}
