package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/versio-data/versio/cmd/versio/container"
	"github.com/versio-data/versio/cmd/versio/handlers"
)

// RegisterVersionRoutes registers version graph and schema routes
func RegisterVersionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewVersionHandler(c.Components, c.Composer, c.Graph, c.Schemas)

	versions := e.Group("/api/v1/versions")
	{
		versions.GET("/:id", h.GetVersion)                   // GET /api/v1/versions/{version_id}
		versions.GET("/:id/ancestry", h.GetAncestry)         // GET /api/v1/versions/{version_id}/ancestry
		versions.DELETE("/:id", h.DeleteVersion)             // DELETE /api/v1/versions/{version_id}
		versions.GET("/:id/schema", h.GetSchema)             // GET /api/v1/versions/{version_id}/schema
		versions.GET("/:a/schema/diff/:b", h.DiffSchema)     // GET /api/v1/versions/{a}/schema/diff/{b}
	}
}
