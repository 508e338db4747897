package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/versio-data/versio/cmd/versio/models"
	"github.com/versio-data/versio/cmd/versio/repository"
	"github.com/versio-data/versio/common/cache"
	"github.com/versio-data/versio/common/logger"
)

// maxAdvanceAttempts bounds the optimistic-lock retry loop on branch
// advances. Two commits racing on the same branch resolve as last-writer-
// wins; the loop only re-reads the lock version between attempts.
const maxAdvanceAttempts = 5

// PointerRegistry manages named pointers into the version graph.
// Branches are mutable, tags are immutable, and every dataset keeps a
// reserved `main` branch that cannot be deleted.
type PointerRegistry struct {
	pointers PointerRepo
	versions VersionRepo
	graph    *VersionGraph
	cache    cache.Cache
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewPointerRegistry creates a new pointer registry. The cache may be nil
// to disable resolve caching.
func NewPointerRegistry(pointers PointerRepo, versions VersionRepo, graph *VersionGraph, resolveCache cache.Cache, cacheTTL time.Duration, log *logger.Logger) *PointerRegistry {
	return &PointerRegistry{
		pointers: pointers,
		versions: versions,
		graph:    graph,
		cache:    resolveCache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// CreateBranch creates a mutable pointer at the given version
func (r *PointerRegistry) CreateBranch(ctx context.Context, datasetID uuid.UUID, name string, fromVersionID uuid.UUID, createdBy string) (*models.Pointer, error) {
	return r.create(ctx, datasetID, name, fromVersionID, createdBy, false)
}

// CreateTag creates an immutable pointer at the given version. Tags never
// move after creation.
func (r *PointerRegistry) CreateTag(ctx context.Context, datasetID uuid.UUID, name string, versionID uuid.UUID, createdBy string) (*models.Pointer, error) {
	return r.create(ctx, datasetID, name, versionID, createdBy, true)
}

func (r *PointerRegistry) create(ctx context.Context, datasetID uuid.UUID, name string, versionID uuid.UUID, createdBy string, immutable bool) (*models.Pointer, error) {
	if msg := ValidatePointerName(name); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidName, msg)
	}

	if err := r.checkVersion(ctx, datasetID, versionID); err != nil {
		return nil, err
	}

	now := time.Now()
	pointer := &models.Pointer{
		DatasetID: datasetID,
		Name:      name,
		VersionID: versionID,
		Immutable: immutable,
		MovedBy:   &createdBy,
		CreatedAt: now,
		MovedAt:   now,
	}

	err := r.pointers.Insert(ctx, pointer)
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create pointer: %w", err)
	}

	r.recordMove(ctx, datasetID, name, nil, versionID, createdBy)
	r.invalidate(ctx, datasetID, name)

	kind := "branch"
	if immutable {
		kind = "tag"
	}
	r.log.Info("pointer created",
		"dataset_id", datasetID,
		"name", name,
		"kind", kind,
		"version_id", versionID,
	)

	return pointer, nil
}

// AdvanceBranch reassigns a branch to another version within the same
// dataset via an optimistic-lock compare-and-swap. Concurrent advances
// resolve as last-writer-wins; the losing commit's version stays reachable
// by its own identity only (the non-fast-forward race is accepted, not
// silently repaired).
//
// `main` accepts any reassignment, including backward resets; only its
// deletion is protected.
func (r *PointerRegistry) AdvanceBranch(ctx context.Context, datasetID uuid.UUID, name string, toVersionID uuid.UUID, movedBy string) error {
	if err := r.checkVersion(ctx, datasetID, toVersionID); err != nil {
		return err
	}

	for attempt := 0; attempt < maxAdvanceAttempts; attempt++ {
		pointer, err := r.pointers.Get(ctx, datasetID, name)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPointerNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get pointer: %w", err)
		}

		if pointer.Immutable {
			return ErrImmutablePointer
		}

		swapped, err := r.pointers.CompareAndSwap(ctx, datasetID, name, pointer.LockVersion, toVersionID, movedBy)
		if err != nil {
			return err
		}
		if !swapped {
			continue
		}

		r.recordMove(ctx, datasetID, name, &pointer.VersionID, toVersionID, movedBy)
		r.invalidate(ctx, datasetID, name)

		r.log.Info("branch advanced",
			"dataset_id", datasetID,
			"name", name,
			"from_version", pointer.VersionID,
			"to_version", toVersionID,
		)
		return nil
	}

	return fmt.Errorf("%w: branch %s", ErrAdvanceContention, name)
}

// DeletePointer removes a branch or tag. Deleting a pointer never deletes
// the underlying version. The main branch cannot be deleted.
func (r *PointerRegistry) DeletePointer(ctx context.Context, datasetID uuid.UUID, name string) error {
	if name == models.MainBranch {
		return ErrProtectedBranch
	}

	err := r.pointers.Delete(ctx, datasetID, name)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPointerNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete pointer: %w", err)
	}

	r.invalidate(ctx, datasetID, name)
	r.log.Info("pointer deleted", "dataset_id", datasetID, "name", name)
	return nil
}

// Get retrieves a pointer record by dataset and name
func (r *PointerRegistry) Get(ctx context.Context, datasetID uuid.UUID, name string) (*models.Pointer, error) {
	pointer, err := r.pointers.Get(ctx, datasetID, name)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPointerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pointer: %w", err)
	}
	return pointer, nil
}

// Resolve returns the version a pointer currently references
func (r *PointerRegistry) Resolve(ctx context.Context, datasetID uuid.UUID, name string) (uuid.UUID, error) {
	key := resolveKey(datasetID, name)

	if r.cache != nil {
		if raw, ok, err := r.cache.Get(ctx, key); err == nil && ok {
			if id, err := uuid.ParseBytes(raw); err == nil {
				return id, nil
			}
		}
	}

	pointer, err := r.Get(ctx, datasetID, name)
	if err != nil {
		return uuid.Nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, []byte(pointer.VersionID.String()), r.cacheTTL); err != nil {
			r.log.Warn("failed to cache pointer resolution", "key", key, "error", err)
		}
	}

	return pointer.VersionID, nil
}

// History returns the ancestry chain of the version a pointer resolves to
func (r *PointerRegistry) History(ctx context.Context, datasetID uuid.UUID, name string) ([]*models.Version, error) {
	versionID, err := r.Resolve(ctx, datasetID, name)
	if err != nil {
		return nil, err
	}
	return r.graph.AncestryChain(ctx, versionID)
}

// List retrieves all pointers of a dataset
func (r *PointerRegistry) List(ctx context.Context, datasetID uuid.UUID) ([]*models.Pointer, error) {
	pointers, err := r.pointers.ListByDataset(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pointers: %w", err)
	}
	return pointers, nil
}

// Moves retrieves the movement audit log of a pointer, newest first
func (r *PointerRegistry) Moves(ctx context.Context, datasetID uuid.UUID, name string, limit int) ([]*models.PointerMove, error) {
	moves, err := r.pointers.GetMoves(ctx, datasetID, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pointer history: %w", err)
	}
	return moves, nil
}

// checkVersion ensures the target version exists and belongs to the
// dataset. Pointer moves are guarded by this so no pointer can ever
// reference a missing version.
func (r *PointerRegistry) checkVersion(ctx context.Context, datasetID, versionID uuid.UUID) error {
	version, err := r.versions.GetByID(ctx, versionID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrVersionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to validate version: %w", err)
	}
	if version.DatasetID != datasetID {
		return ErrVersionNotFound
	}
	return nil
}

func (r *PointerRegistry) recordMove(ctx context.Context, datasetID uuid.UUID, name string, from *uuid.UUID, to uuid.UUID, movedBy string) {
	move := &models.PointerMove{
		DatasetID:   datasetID,
		Name:        name,
		FromVersion: from,
		ToVersion:   to,
		MovedBy:     &movedBy,
		MovedAt:     time.Now(),
	}
	if err := r.pointers.InsertMove(ctx, move); err != nil {
		// Audit failure does not invalidate the move itself
		r.log.Warn("failed to record pointer move", "dataset_id", datasetID, "name", name, "error", err)
	}
}

func (r *PointerRegistry) invalidate(ctx context.Context, datasetID uuid.UUID, name string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, resolveKey(datasetID, name)); err != nil {
		r.log.Warn("failed to invalidate pointer cache", "dataset_id", datasetID, "name", name, "error", err)
	}
}

func resolveKey(datasetID uuid.UUID, name string) string {
	return fmt.Sprintf("pointer:%s:%s", datasetID, name)
}
