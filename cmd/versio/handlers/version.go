package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/versio-data/versio/cmd/versio/middleware"
	"github.com/versio-data/versio/cmd/versio/models"
	"github.com/versio-data/versio/cmd/versio/service"
	"github.com/versio-data/versio/common/bootstrap"
)

// schemaColumnsHeader carries the optional schema descriptor of a commit
// as a JSON array, keeping the request body free for the raw content
const schemaColumnsHeader = "X-Schema-Columns"

// extraComponentsHeader carries optional additional file components as a
// JSON array of {artifact_id, component_type, component_name}, referencing
// artifacts that already exist in the store
const extraComponentsHeader = "X-Extra-Components"

var validKinds = map[models.ArtifactKind]bool{
	models.KindCSV:     true,
	models.KindTSV:     true,
	models.KindParquet: true,
	models.KindExcel:   true,
	models.KindJSON:    true,
	models.KindBinary:  true,
}

var validComponents = map[models.ComponentType]bool{
	"":                   true,
	models.ComponentData: true,
	models.ComponentDocs: true,
	models.ComponentAux:  true,
}

// VersionHandler handles commits and version graph requests
type VersionHandler struct {
	components *bootstrap.Components
	composer   *service.VersionComposer
	graph      *service.VersionGraph
	schemas    *service.SchemaTracker
}

// NewVersionHandler creates a new version handler
func NewVersionHandler(components *bootstrap.Components, composer *service.VersionComposer, graph *service.VersionGraph, schemas *service.SchemaTracker) *VersionHandler {
	return &VersionHandler{
		components: components,
		composer:   composer,
		graph:      graph,
		schemas:    schemas,
	}
}

// Commit stores the request body as a new version on a branch.
// The body is the raw content stream; descriptive attributes travel as
// query params so nothing needs to buffer.
// POST /api/v1/datasets/:id/commits?branch=main&kind=csv&message=...
func (h *VersionHandler) Commit(c echo.Context) error {
	ctx := c.Request().Context()

	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid dataset_id format",
		})
	}

	username, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	kind := models.ArtifactKind(c.QueryParam("kind"))
	if kind == "" {
		kind = models.KindBinary
	}
	if !validKinds[kind] {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "unknown kind, expected one of csv, tsv, parquet, excel, json, binary",
		})
	}

	var columns []models.SchemaColumn
	if raw := c.Request().Header.Get(schemaColumnsHeader); raw != "" {
		if err := json.Unmarshal([]byte(raw), &columns); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "invalid X-Schema-Columns header, expected JSON array of columns",
			})
		}
	}

	var extras []service.ExtraComponent
	if raw := c.Request().Header.Get(extraComponentsHeader); raw != "" {
		if err := json.Unmarshal([]byte(raw), &extras); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "invalid X-Extra-Components header, expected JSON array of components",
			})
		}
		for _, extra := range extras {
			if !validComponents[extra.ComponentType] {
				return c.JSON(http.StatusBadRequest, map[string]interface{}{
					"error": "unknown component_type, expected one of data, docs, aux",
				})
			}
		}
	}

	var mimeType *string
	if mt := c.Request().Header.Get(echo.HeaderContentType); mt != "" {
		mimeType = &mt
	}

	result, err := h.composer.Commit(ctx, c.Request().Body, service.CommitRequest{
		DatasetID: datasetID,
		Branch:    c.QueryParam("branch"),
		Kind:      kind,
		MimeType:  mimeType,
		Message:   c.QueryParam("message"),
		CreatedBy: username,
		Columns:   columns,
		Extras:    extras,
	})
	if err != nil {
		h.components.Logger.Error("commit failed", "dataset_id", datasetID, "error", err)
		return serviceError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// GetVersion retrieves a version with its file associations
// GET /api/v1/versions/:id
func (h *VersionHandler) GetVersion(c echo.Context) error {
	versionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid version_id format",
		})
	}

	version, err := h.graph.Get(c.Request().Context(), versionID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, version)
}

// GetAncestry walks parent links from a version back to its root
// GET /api/v1/versions/:id/ancestry
func (h *VersionHandler) GetAncestry(c echo.Context) error {
	versionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid version_id format",
		})
	}

	chain, err := h.graph.AncestryChain(c.Request().Context(), versionID)
	if err != nil {
		h.components.Logger.Error("ancestry walk failed", "version_id", versionID, "error", err)
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"version_id": versionID,
		"ancestry":   chain,
		"depth":      len(chain),
	})
}

// DeleteVersion removes an unreferenced leaf version
// DELETE /api/v1/versions/:id
func (h *VersionHandler) DeleteVersion(c echo.Context) error {
	versionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid version_id format",
		})
	}

	if err := h.graph.DeleteVersion(c.Request().Context(), versionID); err != nil {
		h.components.Logger.Error("failed to delete version", "version_id", versionID, "error", err)
		return serviceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// GetSchema retrieves the schema snapshot of a version
// GET /api/v1/versions/:id/schema
func (h *VersionHandler) GetSchema(c echo.Context) error {
	versionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid version_id format",
		})
	}

	snapshot, err := h.schemas.Get(c.Request().Context(), versionID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, snapshot)
}

// DiffSchema compares the schema snapshots of two versions
// GET /api/v1/versions/:a/schema/diff/:b
func (h *VersionHandler) DiffSchema(c echo.Context) error {
	fromID, err := uuid.Parse(c.Param("a"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid version_id format",
		})
	}
	toID, err := uuid.Parse(c.Param("b"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid version_id format",
		})
	}

	diff, err := h.schemas.Diff(c.Request().Context(), fromID, toID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"from": fromID,
		"to":   toID,
		"diff": diff,
	})
}
