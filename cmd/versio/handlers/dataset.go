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

const defaultListLimit = 100

// DatasetHandler handles dataset CRUD requests
type DatasetHandler struct {
	components *bootstrap.Components
	datasets   *service.DatasetService
	graph      *service.VersionGraph
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(components *bootstrap.Components, datasets *service.DatasetService, graph *service.VersionGraph) *DatasetHandler {
	return &DatasetHandler{
		components: components,
		datasets:   datasets,
		graph:      graph,
	}
}

// CreateDataset registers a new dataset
// POST /api/v1/datasets
func (h *DatasetHandler) CreateDataset(c echo.Context) error {
	ctx := c.Request().Context()

	username, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	var req struct {
		Name        string   `json:"name"`
		Description *string  `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	dataset, err := h.datasets.Create(ctx, service.CreateDatasetRequest{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		CreatedBy:   username,
	})
	if err != nil {
		h.components.Logger.Error("failed to create dataset", "name", req.Name, "error", err)
		return serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, dataset)
}

// ListDatasets lists datasets by most recent activity
// GET /api/v1/datasets
func (h *DatasetHandler) ListDatasets(c echo.Context) error {
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

	datasets, err := h.datasets.List(c.Request().Context(), limit)
	if err != nil {
		h.components.Logger.Error("failed to list datasets", "error", err)
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"datasets": datasets,
		"count":    len(datasets),
	})
}

// GetDataset retrieves a dataset by ID
// GET /api/v1/datasets/:id
func (h *DatasetHandler) GetDataset(c echo.Context) error {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid dataset_id format",
		})
	}

	dataset, err := h.datasets.Get(c.Request().Context(), datasetID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, dataset)
}

// DeleteDataset removes a dataset with all versions and pointers
// DELETE /api/v1/datasets/:id
func (h *DatasetHandler) DeleteDataset(c echo.Context) error {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid dataset_id format",
		})
	}

	if err := h.datasets.Delete(c.Request().Context(), datasetID); err != nil {
		h.components.Logger.Error("failed to delete dataset", "dataset_id", datasetID, "error", err)
		return serviceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// GetTree returns the dataset's version forest
// GET /api/v1/datasets/:id/tree
func (h *DatasetHandler) GetTree(c echo.Context) error {
	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid dataset_id format",
		})
	}

	if _, err := h.datasets.Get(c.Request().Context(), datasetID); err != nil {
		return serviceError(c, err)
	}

	roots, err := h.graph.Tree(c.Request().Context(), datasetID)
	if err != nil {
		h.components.Logger.Error("failed to build version tree", "dataset_id", datasetID, "error", err)
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"dataset_id": datasetID,
		"roots":      roots,
	})
}
