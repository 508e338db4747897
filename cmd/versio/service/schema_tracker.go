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

// SchemaTracker records one structural snapshot per version and computes
// diffs between any two snapshots
type SchemaTracker struct {
	schemas  SchemaRepo
	versions VersionRepo
	log      *logger.Logger
}

// NewSchemaTracker creates a new schema tracker
func NewSchemaTracker(schemas SchemaRepo, versions VersionRepo, log *logger.Logger) *SchemaTracker {
	return &SchemaTracker{
		schemas:  schemas,
		versions: versions,
		log:      log,
	}
}

// Capture stores the schema snapshot of a version. A version has at most
// one snapshot and it never changes afterwards.
func (t *SchemaTracker) Capture(ctx context.Context, versionID uuid.UUID, columns []models.SchemaColumn) (*models.SchemaSnapshot, error) {
	if _, err := t.versions.GetByID(ctx, versionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to validate version: %w", err)
	}

	snapshot := &models.SchemaSnapshot{
		VersionID:  versionID,
		Columns:    columns,
		CapturedAt: time.Now(),
	}

	err := t.schemas.Insert(ctx, snapshot)
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrAlreadyCaptured
	}
	if err != nil {
		return nil, fmt.Errorf("failed to capture schema: %w", err)
	}

	t.log.Info("schema captured", "version_id", versionID, "columns", len(columns))
	return snapshot, nil
}

// Get retrieves the schema snapshot of a version
func (t *SchemaTracker) Get(ctx context.Context, versionID uuid.UUID) (*models.SchemaSnapshot, error) {
	snapshot, err := t.schemas.GetByVersion(ctx, versionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema snapshot: %w", err)
	}
	return snapshot, nil
}

// Diff compares the snapshots of two versions. Columns are matched by
// name, so reordering columns alone yields an empty diff.
func (t *SchemaTracker) Diff(ctx context.Context, fromVersion, toVersion uuid.UUID) (*models.SchemaDiff, error) {
	from, err := t.Get(ctx, fromVersion)
	if err != nil {
		return nil, err
	}
	to, err := t.Get(ctx, toVersion)
	if err != nil {
		return nil, err
	}

	return diffColumns(from.Columns, to.Columns), nil
}

// diffColumns computes the added/removed/changed sets between two column
// lists. Added follows the target order, removed follows the source order.
func diffColumns(from, to []models.SchemaColumn) *models.SchemaDiff {
	fromByName := make(map[string]models.SchemaColumn, len(from))
	for _, c := range from {
		fromByName[c.Name] = c
	}
	toByName := make(map[string]models.SchemaColumn, len(to))
	for _, c := range to {
		toByName[c.Name] = c
	}

	diff := &models.SchemaDiff{
		Added:   []models.SchemaColumn{},
		Removed: []models.SchemaColumn{},
		Changed: []models.SchemaChange{},
	}

	for _, c := range to {
		prev, ok := fromByName[c.Name]
		if !ok {
			diff.Added = append(diff.Added, c)
			continue
		}
		if prev.Type != c.Type || prev.Nullable != c.Nullable {
			diff.Changed = append(diff.Changed, models.SchemaChange{
				Column:       c.Name,
				FromType:     prev.Type,
				ToType:       c.Type,
				FromNullable: prev.Nullable,
				ToNullable:   c.Nullable,
			})
		}
	}

	for _, c := range from {
		if _, ok := toByName[c.Name]; !ok {
			diff.Removed = append(diff.Removed, c)
		}
	}

	return diff
}
