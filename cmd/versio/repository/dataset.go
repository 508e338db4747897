package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/versio-data/versio/cmd/versio/models"
	"github.com/versio-data/versio/common/db"
)

// DatasetRepository handles database operations for datasets
type DatasetRepository struct {
	db *db.DB
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(db *db.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

const datasetColumns = `dataset_id, name, description, tags, created_by, created_at, updated_at`

// Insert inserts a new dataset. Returns ErrConflict when the creator
// already owns a dataset with the same name.
func (r *DatasetRepository) Insert(ctx context.Context, dataset *models.Dataset) error {
	query := `
		INSERT INTO dataset (dataset_id, name, description, tags, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		dataset.DatasetID,
		dataset.Name,
		dataset.Description,
		dataset.Tags,
		dataset.CreatedBy,
		dataset.CreatedAt,
		dataset.UpdatedAt,
	)

	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrConflict) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert dataset: %w", err)
	}

	return nil
}

// GetByID retrieves a dataset by its ID
func (r *DatasetRepository) GetByID(ctx context.Context, datasetID uuid.UUID) (*models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM dataset WHERE dataset_id = $1`

	dataset := &models.Dataset{}
	err := r.db.QueryRow(ctx, query, datasetID).Scan(
		&dataset.DatasetID,
		&dataset.Name,
		&dataset.Description,
		&dataset.Tags,
		&dataset.CreatedBy,
		&dataset.CreatedAt,
		&dataset.UpdatedAt,
	)

	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	return dataset, nil
}

// List retrieves datasets, newest first
func (r *DatasetRepository) List(ctx context.Context, limit int) ([]*models.Dataset, error) {
	query := `
		SELECT ` + datasetColumns + `
		FROM dataset
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*models.Dataset
	for rows.Next() {
		dataset := &models.Dataset{}
		err := rows.Scan(
			&dataset.DatasetID,
			&dataset.Name,
			&dataset.Description,
			&dataset.Tags,
			&dataset.CreatedBy,
			&dataset.CreatedAt,
			&dataset.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, dataset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating datasets: %w", err)
	}

	return datasets, nil
}

// Touch bumps the dataset's updated_at timestamp
func (r *DatasetRepository) Touch(ctx context.Context, datasetID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE dataset SET updated_at = $2 WHERE dataset_id = $1`, datasetID, at)
	if err != nil {
		return fmt.Errorf("failed to touch dataset: %w", err)
	}
	return nil
}

// Delete removes a dataset. Versions, pointers and snapshots cascade.
func (r *DatasetRepository) Delete(ctx context.Context, datasetID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM dataset WHERE dataset_id = $1`, datasetID)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
