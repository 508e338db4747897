package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/versio-data/versio/cmd/versio/models"
	"github.com/versio-data/versio/common/logger"
)

// VersionComposer orchestrates the full commit flow: store the content,
// append a version node, capture the schema and advance the target branch.
// Each step commits independently; a failure after the artifact exists
// surfaces as ErrCommitIncomplete and the whole commit can be retried,
// with dedup absorbing the re-upload.
type VersionComposer struct {
	datasets DatasetRepo
	store    *ArtifactStore
	graph    *VersionGraph
	registry *PointerRegistry
	schemas  *SchemaTracker
	log      *logger.Logger
}

// NewVersionComposer creates a new version composer
func NewVersionComposer(datasets DatasetRepo, store *ArtifactStore, graph *VersionGraph, registry *PointerRegistry, schemas *SchemaTracker, log *logger.Logger) *VersionComposer {
	return &VersionComposer{
		datasets: datasets,
		store:    store,
		graph:    graph,
		registry: registry,
		schemas:  schemas,
		log:      log,
	}
}

// ExtraComponent attaches an already-stored artifact as an additional
// file component of the committed version
type ExtraComponent struct {
	ArtifactID    int64                `json:"artifact_id"`
	ComponentType models.ComponentType `json:"component_type"`
	ComponentName *string              `json:"component_name,omitempty"`
}

// CommitRequest describes one commit: a content stream destined for a
// branch, plus descriptive metadata, an optional schema and optional
// extra file components
type CommitRequest struct {
	DatasetID uuid.UUID
	Branch    string
	Kind      models.ArtifactKind
	MimeType  *string
	Message   string
	CreatedBy string
	Columns   []models.SchemaColumn
	Extras    []ExtraComponent
}

// CommitResult reports what a commit produced
type CommitResult struct {
	Version    *models.Version  `json:"version"`
	Artifact   *models.Artifact `json:"artifact"`
	Branch     string           `json:"branch"`
	FirstBuild bool             `json:"first_commit"`
}

// Commit performs one end-to-end commit. On a dataset's first commit the
// target branch is created automatically, along with main when the target
// is a different branch, so main always tracks the dataset from birth.
func (c *VersionComposer) Commit(ctx context.Context, content io.Reader, req CommitRequest) (*CommitResult, error) {
	branch := req.Branch
	if branch == "" {
		branch = models.MainBranch
	}

	if _, err := c.datasets.GetByID(ctx, req.DatasetID); err != nil {
		return nil, ErrDatasetNotFound
	}

	parentID, firstCommit, err := c.resolveTarget(ctx, req.DatasetID, branch)
	if err != nil {
		return nil, err
	}

	artifact, err := c.store.Create(ctx, content, CreateArtifactRequest{
		Kind:     req.Kind,
		MimeType: req.MimeType,
	})
	if err != nil {
		return nil, err
	}

	// The primary content leads the component list; extras reference
	// already-stored artifacts and take one reference each
	files := make([]FileComponent, 0, len(req.Extras)+1)
	files = append(files, FileComponent{ArtifactID: artifact.ArtifactID, ComponentType: models.ComponentData})
	retained := []int64{artifact.ArtifactID}

	for _, extra := range req.Extras {
		componentType := extra.ComponentType
		if componentType == "" {
			componentType = models.ComponentAux
		}
		if _, err := c.store.Retain(ctx, extra.ArtifactID); err != nil {
			c.releaseRetained(ctx, retained)
			return nil, err
		}
		retained = append(retained, extra.ArtifactID)
		files = append(files, FileComponent{
			ArtifactID:    extra.ArtifactID,
			ComponentType: componentType,
			ComponentName: extra.ComponentName,
		})
	}

	version, err := c.graph.CreateVersion(ctx, CreateVersionRequest{
		DatasetID: req.DatasetID,
		ParentID:  parentID,
		Files:     files,
		Message:   req.Message,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		// The references taken for this commit are returned; the bytes
		// stay for the retry to deduplicate against
		c.releaseRetained(ctx, retained)
		return nil, err
	}

	if len(req.Columns) > 0 {
		if _, err := c.schemas.Capture(ctx, version.VersionID, req.Columns); err != nil {
			return nil, fmt.Errorf("%w: version %s created but schema capture failed: %v", ErrCommitIncomplete, version.VersionID, err)
		}
	}

	if err := c.attachBranch(ctx, req.DatasetID, branch, version.VersionID, req.CreatedBy, firstCommit); err != nil {
		return nil, fmt.Errorf("%w: version %s created but branch %s not advanced: %v", ErrCommitIncomplete, version.VersionID, branch, err)
	}

	if err := c.datasets.Touch(ctx, req.DatasetID, time.Now()); err != nil {
		c.log.Warn("failed to touch dataset", "dataset_id", req.DatasetID, "error", err)
	}

	c.log.Info("commit complete",
		"dataset_id", req.DatasetID,
		"version_id", version.VersionID,
		"version_number", version.VersionNumber,
		"branch", branch,
		"first_commit", firstCommit,
	)

	return &CommitResult{
		Version:    version,
		Artifact:   artifact,
		Branch:     branch,
		FirstBuild: firstCommit,
	}, nil
}

func (c *VersionComposer) releaseRetained(ctx context.Context, artifactIDs []int64) {
	for _, id := range artifactIDs {
		if err := c.store.Release(ctx, id); err != nil {
			c.log.Error("failed to release artifact after commit failure",
				"artifact_id", id,
				"error", err,
			)
		}
	}
}

// resolveTarget determines the parent of the new version. A missing branch
// is only acceptable on a dataset with no pointers at all (the first
// commit); otherwise the caller must create the branch explicitly first.
func (c *VersionComposer) resolveTarget(ctx context.Context, datasetID uuid.UUID, branch string) (*uuid.UUID, bool, error) {
	pointer, err := c.registry.Get(ctx, datasetID, branch)
	if err == nil {
		if pointer.Immutable {
			return nil, false, ErrImmutablePointer
		}
		versionID := pointer.VersionID
		return &versionID, false, nil
	}
	if !errors.Is(err, ErrPointerNotFound) {
		return nil, false, err
	}

	count, err := c.registry.pointers.CountByDataset(ctx, datasetID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to count pointers: %w", err)
	}
	if count > 0 {
		return nil, false, ErrPointerNotFound
	}

	return nil, true, nil
}

func (c *VersionComposer) attachBranch(ctx context.Context, datasetID uuid.UUID, branch string, versionID uuid.UUID, actor string, firstCommit bool) error {
	if !firstCommit {
		return c.registry.AdvanceBranch(ctx, datasetID, branch, versionID, actor)
	}

	if err := c.createOrAdvance(ctx, datasetID, branch, versionID, actor); err != nil {
		return err
	}
	if branch != models.MainBranch {
		return c.createOrAdvance(ctx, datasetID, models.MainBranch, versionID, actor)
	}
	return nil
}

// createOrAdvance handles the race where two first commits arrive at once:
// the loser of the branch creation falls back to advancing it
func (c *VersionComposer) createOrAdvance(ctx context.Context, datasetID uuid.UUID, branch string, versionID uuid.UUID, actor string) error {
	_, err := c.registry.CreateBranch(ctx, datasetID, branch, versionID, actor)
	if errors.Is(err, ErrDuplicateName) {
		return c.registry.AdvanceBranch(ctx, datasetID, branch, versionID, actor)
	}
	return err
}
