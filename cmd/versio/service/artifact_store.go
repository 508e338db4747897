package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/versio-data/versio/cmd/versio/models"
	"github.com/versio-data/versio/cmd/versio/repository"
	"github.com/versio-data/versio/common/blob"
	"github.com/versio-data/versio/common/logger"
)

// maxDedupAttempts bounds the optimistic insert loop. A retry is needed
// while the conflicting row is a provisional one whose physical write is
// still in flight, or when it vanishes outright (a concurrent writer
// rolling back a failed write).
const maxDedupAttempts = 5

// dedupRetryDelay spaces the retries out so a concurrent writer has time
// to finish its promote
const dedupRetryDelay = 50 * time.Millisecond

// ArtifactStore provides content-addressed artifact storage with
// deduplication and reference counting
type ArtifactStore struct {
	repo  ArtifactRepo
	blobs *blob.Registry
	log   *logger.Logger
}

// NewArtifactStore creates a new artifact store
func NewArtifactStore(repo ArtifactRepo, blobs *blob.Registry, log *logger.Logger) *ArtifactStore {
	return &ArtifactStore{
		repo:  repo,
		blobs: blobs,
		log:   log,
	}
}

// CreateArtifactRequest carries the descriptive attributes of an upload
type CreateArtifactRequest struct {
	Kind        models.ArtifactKind
	MimeType    *string
	Compression *string
	Meta        map[string]interface{}
}

// Create materializes a content stream as an artifact, deduplicating
// against existing content. The stream is hashed incrementally while being
// relayed to a staging location; identical bytes always resolve to the
// same artifact with its reference count incremented instead of a second
// physical copy.
func (s *ArtifactStore) Create(ctx context.Context, content io.Reader, req CreateArtifactRequest) (*models.Artifact, error) {
	backend, err := s.blobs.Default()
	if err != nil {
		return nil, err
	}

	staged, err := backend.Stage(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	for attempt := 0; attempt < maxDedupAttempts; attempt++ {
		// Fast path: content already stored and promoted, bump the
		// refcount and reuse
		existing, err := s.repo.IncrementRefByHash(ctx, staged.Hash)
		if err == nil {
			s.discardStaged(ctx, backend, staged)
			s.log.Info("artifact deduplicated",
				"artifact_id", existing.ArtifactID,
				"content_hash", existing.ContentHash,
				"ref_count", existing.RefCount,
			)
			return existing, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			s.discardStaged(ctx, backend, staged)
			return nil, fmt.Errorf("failed to look up artifact by hash: %w", err)
		}

		// Novel content: provisional insert before the physical write.
		// The location is deterministic from the hash, so it can be
		// recorded before the promote happens.
		artifact := &models.Artifact{
			ContentHash: staged.Hash,
			SizeBytes:   staged.Size,
			Location:    backend.Location(staged.Hash),
			Kind:        req.Kind,
			MimeType:    req.MimeType,
			Compression: req.Compression,
			RefCount:    1,
			Meta:        req.Meta,
			CreatedAt:   time.Now(),
		}

		err = s.repo.Insert(ctx, artifact)
		if errors.Is(err, repository.ErrConflict) {
			// Another caller won the race between hash computation and
			// commit. Loop back to reuse the winner's row once it promotes.
			s.log.Debug("artifact insert conflict, waiting for winner", "content_hash", staged.Hash)
			select {
			case <-ctx.Done():
				s.discardStaged(ctx, backend, staged)
				return nil, ctx.Err()
			case <-time.After(dedupRetryDelay):
			}
			continue
		}
		if err != nil {
			s.discardStaged(ctx, backend, staged)
			return nil, fmt.Errorf("failed to insert artifact: %w", err)
		}

		// Physical write. On failure the provisional row is rolled back so
		// no partial artifact stays visible.
		if _, err := backend.Promote(ctx, staged); err != nil {
			s.rollbackProvisional(ctx, artifact.ArtifactID)
			s.discardStaged(ctx, backend, staged)
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}

		// The row only becomes visible to dedup once the bytes are durable.
		// If the flip fails the row is rolled back; the promoted bytes sit
		// at their content-addressed location for the retry to reuse.
		if err := s.repo.MarkPromoted(ctx, artifact.ArtifactID); err != nil {
			s.rollbackProvisional(ctx, artifact.ArtifactID)
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		artifact.Promoted = true

		s.log.Info("artifact created",
			"artifact_id", artifact.ArtifactID,
			"content_hash", artifact.ContentHash,
			"size_bytes", artifact.SizeBytes,
			"kind", artifact.Kind,
		)
		return artifact, nil
	}

	s.discardStaged(ctx, backend, staged)
	return nil, fmt.Errorf("artifact dedup did not converge for %s", staged.Hash)
}

// Retain takes an additional reference on an existing artifact, for
// attaching it to another version. Provisional rows cannot be retained.
func (s *ArtifactStore) Retain(ctx context.Context, artifactID int64) (*models.Artifact, error) {
	artifact, err := s.repo.IncrementRef(ctx, artifactID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retain artifact: %w", err)
	}

	s.log.Debug("artifact reference retained", "artifact_id", artifactID, "ref_count", artifact.RefCount)
	return artifact, nil
}

// Release decrements an artifact's reference count. Bytes are never
// deleted here; reclamation of zero-reference artifacts is external.
func (s *ArtifactStore) Release(ctx context.Context, artifactID int64) error {
	err := s.repo.DecrementRef(ctx, artifactID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrArtifactNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to release artifact reference: %w", err)
	}

	s.log.Debug("artifact reference released", "artifact_id", artifactID)
	return nil
}

// Get retrieves artifact metadata by ID
func (s *ArtifactStore) Get(ctx context.Context, artifactID int64) (*models.Artifact, error) {
	artifact, err := s.repo.GetByID(ctx, artifactID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return artifact, nil
}

// Open streams an artifact's content from whichever backend its location
// scheme selects
func (s *ArtifactStore) Open(ctx context.Context, artifactID int64) (*models.Artifact, io.ReadCloser, error) {
	artifact, err := s.Get(ctx, artifactID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Open(ctx, artifact.Location)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	return artifact, rc, nil
}

// ListUnreferenced lists artifacts eligible for external reclamation
func (s *ArtifactStore) ListUnreferenced(ctx context.Context, limit int) ([]*models.Artifact, error) {
	artifacts, err := s.repo.ListUnreferenced(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unreferenced artifacts: %w", err)
	}
	return artifacts, nil
}

func (s *ArtifactStore) rollbackProvisional(ctx context.Context, artifactID int64) {
	if err := s.repo.Delete(ctx, artifactID); err != nil {
		s.log.Error("failed to roll back provisional artifact",
			"artifact_id", artifactID,
			"error", err,
		)
	}
}

func (s *ArtifactStore) discardStaged(ctx context.Context, backend blob.Backend, staged *blob.Staged) {
	if err := backend.Discard(ctx, staged); err != nil {
		s.log.Warn("failed to discard staged blob", "content_hash", staged.Hash, "error", err)
	}
}
