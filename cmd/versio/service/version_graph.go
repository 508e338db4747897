package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/versio-data/versio/cmd/versio/models"
	"github.com/versio-data/versio/cmd/versio/repository"
	"github.com/versio-data/versio/common/logger"
)

// maxNumberAttempts bounds the version-number assignment retry loop under
// concurrent commits to the same dataset
const maxNumberAttempts = 5

// VersionGraph manages the DAG of dataset versions: nodes are versions,
// edges are parent links. Edges are append-only; a parent is never
// rewritten once a version exists, which rules out cycles by construction.
type VersionGraph struct {
	versions VersionRepo
	pointers PointerRepo
	store    *ArtifactStore
	log      *logger.Logger
}

// NewVersionGraph creates a new version graph service
func NewVersionGraph(versions VersionRepo, pointers PointerRepo, store *ArtifactStore, log *logger.Logger) *VersionGraph {
	return &VersionGraph{
		versions: versions,
		pointers: pointers,
		store:    store,
		log:      log,
	}
}

// FileComponent describes one artifact association of a new version
type FileComponent struct {
	ArtifactID    int64
	ComponentType models.ComponentType
	ComponentName *string
}

// CreateVersionRequest carries everything needed to append a version node
type CreateVersionRequest struct {
	DatasetID uuid.UUID
	ParentID  *uuid.UUID
	Files     []FileComponent
	Message   string
	CreatedBy string
}

// CreateVersion appends a new version node. The version number comes from
// the dataset's monotonic counter, so deleting a version never frees its
// number for reuse; the (dataset_id, version_number) unique constraint is
// a backstop and the insert retries on conflict.
func (g *VersionGraph) CreateVersion(ctx context.Context, req CreateVersionRequest) (*models.Version, error) {
	if req.ParentID != nil {
		parent, err := g.versions.GetByID(ctx, *req.ParentID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrParentNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to validate parent: %w", err)
		}
		if parent.DatasetID != req.DatasetID {
			return nil, ErrParentNotFound
		}
	}

	version := &models.Version{
		VersionID: uuid.New(),
		DatasetID: req.DatasetID,
		ParentID:  req.ParentID,
		Message:   req.Message,
		CreatedBy: req.CreatedBy,
		CreatedAt: time.Now(),
	}

	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		err = g.versions.Insert(ctx, version)
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
		g.log.Debug("version number conflict, retrying",
			"dataset_id", req.DatasetID,
			"attempt", attempt+1,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	files := make([]models.VersionFile, 0, len(req.Files))
	for i, f := range req.Files {
		files = append(files, models.VersionFile{
			VersionID:      version.VersionID,
			ArtifactID:     f.ArtifactID,
			ComponentType:  f.ComponentType,
			ComponentName:  f.ComponentName,
			ComponentIndex: i,
		})
	}
	if len(files) > 0 {
		if err := g.versions.InsertFiles(ctx, files); err != nil {
			return nil, fmt.Errorf("failed to attach version files: %w", err)
		}
		version.Files = files
	}

	g.log.Info("version created",
		"version_id", version.VersionID,
		"dataset_id", version.DatasetID,
		"version_number", version.VersionNumber,
		"parent_id", req.ParentID,
		"files", len(files),
	)

	return version, nil
}

// Get retrieves a version with its file associations
func (g *VersionGraph) Get(ctx context.Context, versionID uuid.UUID) (*models.Version, error) {
	version, err := g.versions.GetByID(ctx, versionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	files, err := g.versions.GetFiles(ctx, versionID)
	if err != nil {
		return nil, err
	}
	version.Files = files

	return version, nil
}

// AncestryChain walks parent links from the given version to a root,
// returning versions in walk order (the given version first). The graph is
// append-only and should never cycle by construction; the visited set is a
// defensive check, and a hit means data corruption.
func (g *VersionGraph) AncestryChain(ctx context.Context, versionID uuid.UUID) ([]*models.Version, error) {
	current, err := g.versions.GetByID(ctx, versionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	visited := map[uuid.UUID]bool{current.VersionID: true}
	chain := []*models.Version{current}

	for current.ParentID != nil {
		parentID := *current.ParentID
		if visited[parentID] {
			return nil, fmt.Errorf("%w: version %s revisited walking from %s", ErrCycleDetected, parentID, versionID)
		}

		current, err = g.versions.GetByID(ctx, parentID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: parent %s", ErrParentNotFound, parentID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to walk ancestry: %w", err)
		}

		visited[parentID] = true
		chain = append(chain, current)
	}

	return chain, nil
}

// Tree returns the dataset's versions grouped into parent-to-children
// adjacency. Roots are versions with no parent; children are ordered by
// version number.
func (g *VersionGraph) Tree(ctx context.Context, datasetID uuid.UUID) ([]*models.VersionTreeNode, error) {
	versions, err := g.versions.ListByDataset(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	nodes := make(map[uuid.UUID]*models.VersionTreeNode, len(versions))
	for _, v := range versions {
		nodes[v.VersionID] = &models.VersionTreeNode{Version: v}
	}

	var roots []*models.VersionTreeNode
	for _, v := range versions {
		node := nodes[v.VersionID]
		if v.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*v.ParentID]
		if !ok {
			// Parent outside this dataset's listing indicates corruption;
			// surface the node as a root rather than dropping it
			g.log.Warn("version parent missing from dataset listing",
				"version_id", v.VersionID,
				"parent_id", *v.ParentID,
			)
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	return roots, nil
}

// DeleteVersion removes a version node after referential integrity checks:
// no pointer may reference it and no version may list it as parent. One
// artifact reference is released per file association.
func (g *VersionGraph) DeleteVersion(ctx context.Context, versionID uuid.UUID) error {
	if _, err := g.versions.GetByID(ctx, versionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrVersionNotFound
		}
		return fmt.Errorf("failed to get version: %w", err)
	}

	referenced, err := g.pointers.ExistsForVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if referenced {
		return ErrVersionInUse
	}

	hasChildren, err := g.versions.HasChildren(ctx, versionID)
	if err != nil {
		return err
	}
	if hasChildren {
		return ErrVersionInUse
	}

	files, err := g.versions.GetFiles(ctx, versionID)
	if err != nil {
		return err
	}

	// Snapshot and file rows cascade with the node
	if err := g.versions.Delete(ctx, versionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrVersionNotFound
		}
		return fmt.Errorf("failed to delete version: %w", err)
	}

	for _, f := range files {
		if err := g.store.Release(ctx, f.ArtifactID); err != nil {
			g.log.Error("failed to release artifact reference on version delete",
				"version_id", versionID,
				"artifact_id", f.ArtifactID,
				"error", err,
			)
		}
	}

	g.log.Info("version deleted", "version_id", versionID, "released_artifacts", len(files))
	return nil
}
