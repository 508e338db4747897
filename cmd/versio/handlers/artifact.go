package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/versio-data/versio/cmd/versio/service"
	"github.com/versio-data/versio/common/bootstrap"
)

// ArtifactHandler handles artifact metadata and content requests
type ArtifactHandler struct {
	components *bootstrap.Components
	store      *service.ArtifactStore
}

// NewArtifactHandler creates a new artifact handler
func NewArtifactHandler(components *bootstrap.Components, store *service.ArtifactStore) *ArtifactHandler {
	return &ArtifactHandler{
		components: components,
		store:      store,
	}
}

func parseArtifactID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid artifact_id format",
		})
	}
	return id, nil
}

// GetArtifact retrieves artifact metadata
// GET /api/v1/artifacts/:id
func (h *ArtifactHandler) GetArtifact(c echo.Context) error {
	artifactID, err := parseArtifactID(c)
	if err != nil {
		return err
	}

	artifact, err := h.store.Get(c.Request().Context(), artifactID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, artifact)
}

// GetContent streams an artifact's bytes from its blob backend
// GET /api/v1/artifacts/:id/content
func (h *ArtifactHandler) GetContent(c echo.Context) error {
	artifactID, err := parseArtifactID(c)
	if err != nil {
		return err
	}

	artifact, rc, err := h.store.Open(c.Request().Context(), artifactID)
	if err != nil {
		h.components.Logger.Error("failed to open artifact content", "artifact_id", artifactID, "error", err)
		return serviceError(c, err)
	}
	defer rc.Close()

	contentType := echo.MIMEOctetStream
	if artifact.MimeType != nil {
		contentType = *artifact.MimeType
	}

	c.Response().Header().Set("X-Content-Hash", artifact.ContentHash)
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(artifact.SizeBytes, 10))
	return c.Stream(http.StatusOK, contentType, rc)
}

// ReleaseArtifact decrements an artifact's reference count
// POST /api/v1/artifacts/:id/release
func (h *ArtifactHandler) ReleaseArtifact(c echo.Context) error {
	artifactID, err := parseArtifactID(c)
	if err != nil {
		return err
	}

	if err := h.store.Release(c.Request().Context(), artifactID); err != nil {
		h.components.Logger.Error("failed to release artifact", "artifact_id", artifactID, "error", err)
		return serviceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// ListUnreferenced lists artifacts whose reference count reached zero
// GET /api/v1/artifacts/unreferenced
func (h *ArtifactHandler) ListUnreferenced(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	artifacts, err := h.store.ListUnreferenced(c.Request().Context(), limit)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"artifacts": artifacts,
		"count":     len(artifacts),
	})
}
