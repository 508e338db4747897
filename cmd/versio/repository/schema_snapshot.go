package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/versio-data/versio/cmd/versio/models"
	"github.com/versio-data/versio/common/db"
)

// SchemaSnapshotRepository handles database operations for schema snapshots
type SchemaSnapshotRepository struct {
	db *db.DB
}

// NewSchemaSnapshotRepository creates a new schema snapshot repository
func NewSchemaSnapshotRepository(db *db.DB) *SchemaSnapshotRepository {
	return &SchemaSnapshotRepository{db: db}
}

// Insert inserts a snapshot. The version_id primary key enforces the
// one-snapshot-per-version rule: a second insert returns ErrConflict.
func (r *SchemaSnapshotRepository) Insert(ctx context.Context, snapshot *models.SchemaSnapshot) error {
	columns, err := json.Marshal(snapshot.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal schema columns: %w", err)
	}

	query := `
		INSERT INTO schema_snapshot (version_id, columns, captured_at)
		VALUES ($1, $2, $3)
	`

	_, err = r.db.Exec(ctx, query, snapshot.VersionID, columns, snapshot.CapturedAt)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrConflict) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert schema snapshot: %w", err)
	}

	return nil
}

// GetByVersion retrieves the snapshot captured for a version
func (r *SchemaSnapshotRepository) GetByVersion(ctx context.Context, versionID uuid.UUID) (*models.SchemaSnapshot, error) {
	query := `SELECT version_id, columns, captured_at FROM schema_snapshot WHERE version_id = $1`

	snapshot := &models.SchemaSnapshot{}
	var columns []byte
	err := r.db.QueryRow(ctx, query, versionID).Scan(
		&snapshot.VersionID,
		&columns,
		&snapshot.CapturedAt,
	)

	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schema snapshot: %w", err)
	}

	if err := json.Unmarshal(columns, &snapshot.Columns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema columns: %w", err)
	}

	return snapshot, nil
}
