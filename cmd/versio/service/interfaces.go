package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/versio-data/versio/cmd/versio/models"
)

// Persistence interfaces consumed by the services. The repository package
// provides the Postgres implementations; tests substitute in-memory fakes.

// ArtifactRepo persists artifact rows
type ArtifactRepo interface {
	Insert(ctx context.Context, artifact *models.Artifact) error
	GetByID(ctx context.Context, artifactID int64) (*models.Artifact, error)
	GetByHash(ctx context.Context, contentHash string) (*models.Artifact, error)
	IncrementRefByHash(ctx context.Context, contentHash string) (*models.Artifact, error)
	IncrementRef(ctx context.Context, artifactID int64) (*models.Artifact, error)
	MarkPromoted(ctx context.Context, artifactID int64) error
	DecrementRef(ctx context.Context, artifactID int64) error
	Delete(ctx context.Context, artifactID int64) error
	ListUnreferenced(ctx context.Context, limit int) ([]*models.Artifact, error)
}

// VersionRepo persists version nodes and file associations
type VersionRepo interface {
	Insert(ctx context.Context, version *models.Version) error
	InsertFiles(ctx context.Context, files []models.VersionFile) error
	GetByID(ctx context.Context, versionID uuid.UUID) (*models.Version, error)
	GetFiles(ctx context.Context, versionID uuid.UUID) ([]models.VersionFile, error)
	ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Version, error)
	HasChildren(ctx context.Context, versionID uuid.UUID) (bool, error)
	Delete(ctx context.Context, versionID uuid.UUID) error
}

// PointerRepo persists branch/tag pointers and their audit log
type PointerRepo interface {
	Insert(ctx context.Context, pointer *models.Pointer) error
	Get(ctx context.Context, datasetID uuid.UUID, name string) (*models.Pointer, error)
	CompareAndSwap(ctx context.Context, datasetID uuid.UUID, name string, expectedLockVersion int64, toVersion uuid.UUID, movedBy string) (bool, error)
	Delete(ctx context.Context, datasetID uuid.UUID, name string) error
	ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Pointer, error)
	CountByDataset(ctx context.Context, datasetID uuid.UUID) (int, error)
	ExistsForVersion(ctx context.Context, versionID uuid.UUID) (bool, error)
	InsertMove(ctx context.Context, move *models.PointerMove) error
	GetMoves(ctx context.Context, datasetID uuid.UUID, name string, limit int) ([]*models.PointerMove, error)
}

// SchemaRepo persists schema snapshots
type SchemaRepo interface {
	Insert(ctx context.Context, snapshot *models.SchemaSnapshot) error
	GetByVersion(ctx context.Context, versionID uuid.UUID) (*models.SchemaSnapshot, error)
}

// DatasetRepo persists datasets
type DatasetRepo interface {
	Insert(ctx context.Context, dataset *models.Dataset) error
	GetByID(ctx context.Context, datasetID uuid.UUID) (*models.Dataset, error)
	List(ctx context.Context, limit int) ([]*models.Dataset, error)
	Touch(ctx context.Context, datasetID uuid.UUID, at time.Time) error
	Delete(ctx context.Context, datasetID uuid.UUID) error
}
