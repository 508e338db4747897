package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/versio-data/versio/cmd/versio/models"
	"github.com/versio-data/versio/common/db"
)

// ArtifactRepository handles database operations for artifacts
type ArtifactRepository struct {
	db *db.DB
}

// NewArtifactRepository creates a new artifact repository
func NewArtifactRepository(db *db.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

const artifactColumns = `artifact_id, content_hash, size_bytes, location, kind, mime_type, compression, ref_count, promoted, meta, created_at`

// Insert inserts a new artifact row, provisional until MarkPromoted. The
// content_hash unique constraint is the arbitration point for concurrent
// dedup: a conflicting insert returns ErrConflict and the caller reuses
// the winner's row once it promotes.
func (r *ArtifactRepository) Insert(ctx context.Context, artifact *models.Artifact) error {
	query := `
		INSERT INTO artifact (content_hash, size_bytes, location, kind, mime_type, compression, ref_count, promoted, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9)
		RETURNING artifact_id
	`

	err := r.db.QueryRow(ctx, query,
		artifact.ContentHash,
		artifact.SizeBytes,
		artifact.Location,
		artifact.Kind,
		artifact.MimeType,
		artifact.Compression,
		artifact.RefCount,
		artifact.Meta,
		artifact.CreatedAt,
	).Scan(&artifact.ArtifactID)

	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrConflict) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert artifact: %w", err)
	}

	return nil
}

// GetByID retrieves an artifact by its ID
func (r *ArtifactRepository) GetByID(ctx context.Context, artifactID int64) (*models.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifact WHERE artifact_id = $1`
	return r.scanOne(ctx, query, artifactID)
}

// GetByHash retrieves an artifact by its content hash
func (r *ArtifactRepository) GetByHash(ctx context.Context, contentHash string) (*models.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifact WHERE content_hash = $1`
	return r.scanOne(ctx, query, contentHash)
}

// IncrementRefByHash atomically bumps the reference count of the promoted
// artifact with the given content hash and returns the updated row.
// Provisional rows are skipped; a row whose physical write is still in
// flight must never be handed out as a dedup hit. Returns ErrNotFound when
// no promoted artifact exists, which tells the dedup path to attempt the
// optimistic insert instead.
func (r *ArtifactRepository) IncrementRefByHash(ctx context.Context, contentHash string) (*models.Artifact, error) {
	query := `
		UPDATE artifact
		SET ref_count = ref_count + 1
		WHERE content_hash = $1 AND promoted
		RETURNING ` + artifactColumns

	artifact, err := r.scanOne(ctx, query, contentHash)
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// IncrementRef bumps the reference count of a promoted artifact by ID,
// for attaching it to an additional version
func (r *ArtifactRepository) IncrementRef(ctx context.Context, artifactID int64) (*models.Artifact, error) {
	query := `
		UPDATE artifact
		SET ref_count = ref_count + 1
		WHERE artifact_id = $1 AND promoted
		RETURNING ` + artifactColumns

	artifact, err := r.scanOne(ctx, query, artifactID)
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// MarkPromoted flips a provisional row to promoted once its physical write
// has succeeded, making it visible to dedup
func (r *ArtifactRepository) MarkPromoted(ctx context.Context, artifactID int64) error {
	result, err := r.db.Exec(ctx, `UPDATE artifact SET promoted = TRUE WHERE artifact_id = $1`, artifactID)
	if err != nil {
		return fmt.Errorf("failed to mark artifact promoted: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DecrementRef decrements the reference count, clamping at zero
func (r *ArtifactRepository) DecrementRef(ctx context.Context, artifactID int64) error {
	query := `
		UPDATE artifact
		SET ref_count = GREATEST(ref_count - 1, 0)
		WHERE artifact_id = $1
	`

	result, err := r.db.Exec(ctx, query, artifactID)
	if err != nil {
		return fmt.Errorf("failed to decrement artifact ref count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes an artifact row. Used only to roll back a provisional
// insert whose physical write failed.
func (r *ArtifactRepository) Delete(ctx context.Context, artifactID int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM artifact WHERE artifact_id = $1`, artifactID)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListUnreferenced lists artifacts whose reference count has reached zero.
// Reclamation itself is out of scope; this feeds external GC tooling.
func (r *ArtifactRepository) ListUnreferenced(ctx context.Context, limit int) ([]*models.Artifact, error) {
	query := `
		SELECT ` + artifactColumns + `
		FROM artifact
		WHERE ref_count = 0
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unreferenced artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*models.Artifact
	for rows.Next() {
		artifact := &models.Artifact{}
		if err := scanArtifact(rows, artifact); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifacts: %w", err)
	}

	return artifacts, nil
}

func (r *ArtifactRepository) scanOne(ctx context.Context, query string, args ...any) (*models.Artifact, error) {
	artifact := &models.Artifact{}
	err := scanArtifact(r.db.QueryRow(ctx, query, args...), artifact)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return artifact, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner, artifact *models.Artifact) error {
	return row.Scan(
		&artifact.ArtifactID,
		&artifact.ContentHash,
		&artifact.SizeBytes,
		&artifact.Location,
		&artifact.Kind,
		&artifact.MimeType,
		&artifact.Compression,
		&artifact.RefCount,
		&artifact.Promoted,
		&artifact.Meta,
		&artifact.CreatedAt,
	)
}
