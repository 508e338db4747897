package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/versio-data/versio/cmd/versio/models"
	"github.com/versio-data/versio/common/db"
)

// VersionRepository handles database operations for version nodes and
// their file associations
type VersionRepository struct {
	db *db.DB
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(db *db.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

const versionColumns = `version_id, dataset_id, version_number, parent_id, message, created_by, created_at`

// Insert inserts a new version node, drawing version_number from the
// dataset's last_version_number counter inside the insert itself. The
// counter only grows, so numbers of deleted versions are never handed out
// again; the row lock taken by the UPDATE serializes concurrent commits
// and the (dataset_id, version_number) unique constraint stays as a
// backstop, surfacing as ErrConflict for the caller to retry.
func (r *VersionRepository) Insert(ctx context.Context, version *models.Version) error {
	query := `
		WITH bumped AS (
			UPDATE dataset
			SET last_version_number = last_version_number + 1
			WHERE dataset_id = $2
			RETURNING last_version_number
		)
		INSERT INTO dataset_version (version_id, dataset_id, version_number, parent_id, message, created_by, created_at)
		SELECT $1, $2, last_version_number, $3, $4, $5, $6
		FROM bumped
		RETURNING version_number
	`

	err := r.db.QueryRow(ctx, query,
		version.VersionID,
		version.DatasetID,
		version.ParentID,
		version.Message,
		version.CreatedBy,
		version.CreatedAt,
	).Scan(&version.VersionNumber)

	if err != nil {
		translated := translateError(err)
		if errors.Is(translated, ErrConflict) {
			return ErrConflict
		}
		// No bumped row means the dataset vanished underneath the commit
		if errors.Is(translated, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}

	return nil
}

// InsertFiles inserts the ordered file associations of a version
func (r *VersionRepository) InsertFiles(ctx context.Context, files []models.VersionFile) error {
	query := `
		INSERT INTO version_file (version_id, artifact_id, component_type, component_name, component_index)
		VALUES ($1, $2, $3, $4, $5)
	`

	for _, f := range files {
		_, err := r.db.Exec(ctx, query,
			f.VersionID,
			f.ArtifactID,
			f.ComponentType,
			f.ComponentName,
			f.ComponentIndex,
		)
		if err != nil {
			return fmt.Errorf("failed to insert version file: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a version by its ID
func (r *VersionRepository) GetByID(ctx context.Context, versionID uuid.UUID) (*models.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM dataset_version WHERE version_id = $1`

	version := &models.Version{}
	err := r.db.QueryRow(ctx, query, versionID).Scan(
		&version.VersionID,
		&version.DatasetID,
		&version.VersionNumber,
		&version.ParentID,
		&version.Message,
		&version.CreatedBy,
		&version.CreatedAt,
	)

	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return version, nil
}

// GetFiles retrieves a version's file associations in component order
func (r *VersionRepository) GetFiles(ctx context.Context, versionID uuid.UUID) ([]models.VersionFile, error) {
	query := `
		SELECT version_id, artifact_id, component_type, component_name, component_index
		FROM version_file
		WHERE version_id = $1
		ORDER BY component_index ASC
	`

	rows, err := r.db.Query(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get version files: %w", err)
	}
	defer rows.Close()

	var files []models.VersionFile
	for rows.Next() {
		var f models.VersionFile
		err := rows.Scan(&f.VersionID, &f.ArtifactID, &f.ComponentType, &f.ComponentName, &f.ComponentIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version file: %w", err)
		}
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version files: %w", err)
	}

	return files, nil
}

// ListByDataset retrieves all versions of a dataset ordered by number
func (r *VersionRepository) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Version, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM dataset_version
		WHERE dataset_id = $1
		ORDER BY version_number ASC
	`

	rows, err := r.db.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.Version
	for rows.Next() {
		version := &models.Version{}
		err := rows.Scan(
			&version.VersionID,
			&version.DatasetID,
			&version.VersionNumber,
			&version.ParentID,
			&version.Message,
			&version.CreatedBy,
			&version.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

// HasChildren reports whether any version lists the given one as parent
func (r *VersionRepository) HasChildren(ctx context.Context, versionID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM dataset_version WHERE parent_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, versionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check version children: %w", err)
	}

	return exists, nil
}

// Delete removes a version node. File associations and the schema snapshot
// cascade at the database level; the caller releases artifact references.
func (r *VersionRepository) Delete(ctx context.Context, versionID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM dataset_version WHERE version_id = $1`, versionID)
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
