package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/versio-data/versio/cmd/versio/middleware"
	"github.com/versio-data/versio/cmd/versio/service"
	"github.com/versio-data/versio/common/bootstrap"
)

const defaultMovesLimit = 50

// PointerHandler handles branch and tag requests
type PointerHandler struct {
	components *bootstrap.Components
	registry   *service.PointerRegistry
}

// NewPointerHandler creates a new pointer handler
func NewPointerHandler(components *bootstrap.Components, registry *service.PointerRegistry) *PointerHandler {
	return &PointerHandler{
		components: components,
		registry:   registry,
	}
}

type createPointerRequest struct {
	Name      string `json:"name"`
	VersionID string `json:"version_id"`
}

func (h *PointerHandler) bindCreate(c echo.Context) (uuid.UUID, string, uuid.UUID, string, error) {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, "", uuid.Nil, "", c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid dataset_id format",
		})
	}

	username, err := middleware.RequireUsername(c)
	if err != nil {
		return uuid.Nil, "", uuid.Nil, "", err
	}

	var req createPointerRequest
	if err := c.Bind(&req); err != nil {
		return uuid.Nil, "", uuid.Nil, "", c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	versionID, err := uuid.Parse(req.VersionID)
	if err != nil {
		return uuid.Nil, "", uuid.Nil, "", c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid version_id format",
		})
	}

	return datasetID, req.Name, versionID, username, nil
}

// CreateBranch creates a mutable pointer
// POST /api/v1/datasets/:id/branches
func (h *PointerHandler) CreateBranch(c echo.Context) error {
	datasetID, name, versionID, username, err := h.bindCreate(c)
	if err != nil {
		return err
	}

	pointer, err := h.registry.CreateBranch(c.Request().Context(), datasetID, name, versionID, username)
	if err != nil {
		h.components.Logger.Error("failed to create branch", "dataset_id", datasetID, "name", name, "error", err)
		return serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, pointer)
}

// CreateTag creates an immutable pointer
// POST /api/v1/datasets/:id/tags
func (h *PointerHandler) CreateTag(c echo.Context) error {
	datasetID, name, versionID, username, err := h.bindCreate(c)
	if err != nil {
		return err
	}

	pointer, err := h.registry.CreateTag(c.Request().Context(), datasetID, name, versionID, username)
	if err != nil {
		h.components.Logger.Error("failed to create tag", "dataset_id", datasetID, "name", name, "error", err)
		return serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, pointer)
}

// AdvanceBranch reassigns a branch to another version
// POST /api/v1/datasets/:id/branches/:name/advance
func (h *PointerHandler) AdvanceBranch(c echo.Context) error {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid dataset_id format",
		})
	}
	name := c.Param("name")

	username, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	var req struct {
		VersionID string `json:"version_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}
	versionID, err := uuid.Parse(req.VersionID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid version_id format",
		})
	}

	if err := h.registry.AdvanceBranch(c.Request().Context(), datasetID, name, versionID, username); err != nil {
		h.components.Logger.Error("failed to advance branch", "dataset_id", datasetID, "name", name, "error", err)
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"dataset_id": datasetID,
		"name":       name,
		"version_id": versionID,
	})
}

// ListPointers lists all pointers of a dataset
// GET /api/v1/datasets/:id/pointers
func (h *PointerHandler) ListPointers(c echo.Context) error {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid dataset_id format",
		})
	}

	pointers, err := h.registry.List(c.Request().Context(), datasetID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"pointers": pointers,
		"count":    len(pointers),
	})
}

// ResolvePointer returns the pointer record with the version it references
// GET /api/v1/datasets/:id/pointers/:name
func (h *PointerHandler) ResolvePointer(c echo.Context) error {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid dataset_id format",
		})
	}

	pointer, err := h.registry.Get(c.Request().Context(), datasetID, c.Param("name"))
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, pointer)
}

// GetHistory returns the ancestry chain behind a pointer plus its move log
// GET /api/v1/datasets/:id/pointers/:name/history
func (h *PointerHandler) GetHistory(c echo.Context) error {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid dataset_id format",
		})
	}
	name := c.Param("name")

	limit := defaultMovesLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	chain, err := h.registry.History(c.Request().Context(), datasetID, name)
	if err != nil {
		return serviceError(c, err)
	}

	moves, err := h.registry.Moves(c.Request().Context(), datasetID, name, limit)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"dataset_id": datasetID,
		"name":       name,
		"ancestry":   chain,
		"moves":      moves,
	})
}

// DeletePointer removes a branch or tag
// DELETE /api/v1/datasets/:id/pointers/:name
func (h *PointerHandler) DeletePointer(c echo.Context) error {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid dataset_id format",
		})
	}
	name := c.Param("name")

	if err := h.registry.DeletePointer(c.Request().Context(), datasetID, name); err != nil {
		h.components.Logger.Error("failed to delete pointer", "dataset_id", datasetID, "name", name, "error", err)
		return serviceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
