package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/versio-data/versio/cmd/versio/container"
	"github.com/versio-data/versio/cmd/versio/handlers"
	"github.com/versio-data/versio/cmd/versio/middleware"
)

// RegisterPointerRoutes registers branch and tag routes
func RegisterPointerRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewPointerHandler(c.Components, c.Registry)

	datasets := e.Group("/api/v1/datasets/:id")
	datasets.Use(middleware.ExtractUsername())
	{
		datasets.POST("/branches", h.CreateBranch)                  // POST /api/v1/datasets/{id}/branches
		datasets.POST("/branches/:name/advance", h.AdvanceBranch)   // POST /api/v1/datasets/{id}/branches/{name}/advance
		datasets.POST("/tags", h.CreateTag)                         // POST /api/v1/datasets/{id}/tags
		datasets.GET("/pointers", h.ListPointers)                   // GET /api/v1/datasets/{id}/pointers
		datasets.GET("/pointers/:name", h.ResolvePointer)           // GET /api/v1/datasets/{id}/pointers/{name}
		datasets.GET("/pointers/:name/history", h.GetHistory)       // GET /api/v1/datasets/{id}/pointers/{name}/history
		datasets.DELETE("/pointers/:name", h.DeletePointer)         // DELETE /api/v1/datasets/{id}/pointers/{name}
	}
}
