package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/versio-data/versio/cmd/versio/container"
	"github.com/versio-data/versio/cmd/versio/handlers"
)

// RegisterArtifactRoutes registers artifact metadata and content routes
func RegisterArtifactRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewArtifactHandler(c.Components, c.Store)

	artifacts := e.Group("/api/v1/artifacts")
	{
		artifacts.GET("/unreferenced", h.ListUnreferenced) // GET /api/v1/artifacts/unreferenced
		artifacts.GET("/:id", h.GetArtifact)               // GET /api/v1/artifacts/{artifact_id}
		artifacts.GET("/:id/content", h.GetContent)        // GET /api/v1/artifacts/{artifact_id}/content
		artifacts.POST("/:id/release", h.ReleaseArtifact)  // POST /api/v1/artifacts/{artifact_id}/release
	}
}
