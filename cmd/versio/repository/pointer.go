package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/versio-data/versio/cmd/versio/models"
	"github.com/versio-data/versio/common/db"
)

// PointerRepository handles database operations for branch and tag pointers
type PointerRepository struct {
	db *db.DB
}

// NewPointerRepository creates a new pointer repository
func NewPointerRepository(db *db.DB) *PointerRepository {
	return &PointerRepository{db: db}
}

const pointerColumns = `dataset_id, name, version_id, immutable, lock_version, moved_by, created_at, moved_at`

// Insert inserts a new pointer. Returns ErrConflict when a pointer with
// the same name exists in the dataset.
func (r *PointerRepository) Insert(ctx context.Context, pointer *models.Pointer) error {
	query := `
		INSERT INTO pointer (dataset_id, name, version_id, immutable, lock_version, moved_by, created_at, moved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		pointer.DatasetID,
		pointer.Name,
		pointer.VersionID,
		pointer.Immutable,
		pointer.LockVersion,
		pointer.MovedBy,
		pointer.CreatedAt,
		pointer.MovedAt,
	)

	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrConflict) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert pointer: %w", err)
	}

	return nil
}

// Get retrieves a pointer by dataset and name
func (r *PointerRepository) Get(ctx context.Context, datasetID uuid.UUID, name string) (*models.Pointer, error) {
	query := `SELECT ` + pointerColumns + ` FROM pointer WHERE dataset_id = $1 AND name = $2`

	pointer := &models.Pointer{}
	err := r.db.QueryRow(ctx, query, datasetID, name).Scan(
		&pointer.DatasetID,
		&pointer.Name,
		&pointer.VersionID,
		&pointer.Immutable,
		&pointer.LockVersion,
		&pointer.MovedBy,
		&pointer.CreatedAt,
		&pointer.MovedAt,
	)

	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pointer: %w", err)
	}

	return pointer, nil
}

// CompareAndSwap atomically reassigns a branch pointer, guarded by the
// optimistic lock version. Returns false when another writer advanced the
// pointer in between (the caller re-reads and retries or gives up).
func (r *PointerRepository) CompareAndSwap(ctx context.Context, datasetID uuid.UUID, name string, expectedLockVersion int64, toVersion uuid.UUID, movedBy string) (bool, error) {
	query := `
		UPDATE pointer
		SET version_id = $4, lock_version = lock_version + 1, moved_by = $5, moved_at = NOW()
		WHERE dataset_id = $1 AND name = $2 AND lock_version = $3 AND immutable = FALSE
		RETURNING lock_version
	`

	var newLockVersion int64
	err := r.db.QueryRow(ctx, query, datasetID, name, expectedLockVersion, toVersion, movedBy).Scan(&newLockVersion)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrNotFound) {
			// Lost the race (or the pointer vanished); caller re-reads
			return false, nil
		}
		return false, fmt.Errorf("failed to advance pointer: %w", err)
	}

	return true, nil
}

// Delete removes a pointer
func (r *PointerRepository) Delete(ctx context.Context, datasetID uuid.UUID, name string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM pointer WHERE dataset_id = $1 AND name = $2`, datasetID, name)
	if err != nil {
		return fmt.Errorf("failed to delete pointer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListByDataset retrieves all pointers of a dataset
func (r *PointerRepository) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Pointer, error) {
	query := `
		SELECT ` + pointerColumns + `
		FROM pointer
		WHERE dataset_id = $1
		ORDER BY name ASC
	`

	rows, err := r.db.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pointers: %w", err)
	}
	defer rows.Close()

	var pointers []*models.Pointer
	for rows.Next() {
		pointer := &models.Pointer{}
		err := rows.Scan(
			&pointer.DatasetID,
			&pointer.Name,
			&pointer.VersionID,
			&pointer.Immutable,
			&pointer.LockVersion,
			&pointer.MovedBy,
			&pointer.CreatedAt,
			&pointer.MovedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pointer: %w", err)
		}
		pointers = append(pointers, pointer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pointers: %w", err)
	}

	return pointers, nil
}

// CountByDataset returns the number of pointers in a dataset
func (r *PointerRepository) CountByDataset(ctx context.Context, datasetID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM pointer WHERE dataset_id = $1`, datasetID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pointers: %w", err)
	}
	return count, nil
}

// ExistsForVersion reports whether any pointer references the version
func (r *PointerRepository) ExistsForVersion(ctx context.Context, versionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pointer WHERE version_id = $1)`, versionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pointer references: %w", err)
	}
	return exists, nil
}

// InsertMove records a pointer movement in the audit log
func (r *PointerRepository) InsertMove(ctx context.Context, move *models.PointerMove) error {
	query := `
		INSERT INTO pointer_move (dataset_id, name, from_version, to_version, moved_by, moved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		move.DatasetID,
		move.Name,
		move.FromVersion,
		move.ToVersion,
		move.MovedBy,
		move.MovedAt,
	).Scan(&move.ID)

	if err != nil {
		return fmt.Errorf("failed to insert pointer move: %w", err)
	}

	return nil
}

// GetMoves retrieves the movement audit log for a pointer, newest first
func (r *PointerRepository) GetMoves(ctx context.Context, datasetID uuid.UUID, name string, limit int) ([]*models.PointerMove, error) {
	query := `
		SELECT id, dataset_id, name, from_version, to_version, moved_by, moved_at
		FROM pointer_move
		WHERE dataset_id = $1 AND name = $2
		ORDER BY moved_at DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, datasetID, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pointer moves: %w", err)
	}
	defer rows.Close()

	var moves []*models.PointerMove
	for rows.Next() {
		move := &models.PointerMove{}
		err := rows.Scan(
			&move.ID,
			&move.DatasetID,
			&move.Name,
			&move.FromVersion,
			&move.ToVersion,
			&move.MovedBy,
			&move.MovedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pointer move: %w", err)
		}
		moves = append(moves, move)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pointer moves: %w", err)
	}

	return moves, nil
}
