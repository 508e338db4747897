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

// DatasetService manages dataset lifecycle
type DatasetService struct {
	datasets DatasetRepo
	versions VersionRepo
	store    *ArtifactStore
	log      *logger.Logger
}

// NewDatasetService creates a new dataset service
func NewDatasetService(datasets DatasetRepo, versions VersionRepo, store *ArtifactStore, log *logger.Logger) *DatasetService {
	return &DatasetService{
		datasets: datasets,
		versions: versions,
		store:    store,
		log:      log,
	}
}

// CreateDatasetRequest carries the attributes of a new dataset
type CreateDatasetRequest struct {
	Name        string
	Description *string
	Tags        []string
	CreatedBy   string
}

// Create registers a new dataset. Names are unique per creator.
func (s *DatasetService) Create(ctx context.Context, req CreateDatasetRequest) (*models.Dataset, error) {
	if msg := ValidateDatasetName(req.Name); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidName, msg)
	}

	now := time.Now()
	dataset := &models.Dataset{
		DatasetID:   uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.datasets.Insert(ctx, dataset)
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}

	s.log.Info("dataset created", "dataset_id", dataset.DatasetID, "name", dataset.Name, "created_by", req.CreatedBy)
	return dataset, nil
}

// Get retrieves a dataset by ID
func (s *DatasetService) Get(ctx context.Context, datasetID uuid.UUID) (*models.Dataset, error) {
	dataset, err := s.datasets.GetByID(ctx, datasetID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDatasetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return dataset, nil
}

// List retrieves datasets ordered by most recent activity
func (s *DatasetService) List(ctx context.Context, limit int) ([]*models.Dataset, error) {
	datasets, err := s.datasets.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return datasets, nil
}

// Delete removes a dataset with all its versions, pointers and snapshots.
// Each version's artifact references are released first so shared content
// survives under other datasets; the row cascade then clears the graph.
func (s *DatasetService) Delete(ctx context.Context, datasetID uuid.UUID) error {
	if _, err := s.Get(ctx, datasetID); err != nil {
		return err
	}

	versions, err := s.versions.ListByDataset(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("failed to list versions for delete: %w", err)
	}

	released := 0
	for _, v := range versions {
		files, err := s.versions.GetFiles(ctx, v.VersionID)
		if err != nil {
			return fmt.Errorf("failed to list version files for delete: %w", err)
		}
		for _, f := range files {
			if err := s.store.Release(ctx, f.ArtifactID); err != nil {
				s.log.Error("failed to release artifact reference on dataset delete",
					"dataset_id", datasetID,
					"artifact_id", f.ArtifactID,
					"error", err,
				)
				continue
			}
			released++
		}
	}

	if err := s.datasets.Delete(ctx, datasetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDatasetNotFound
		}
		return fmt.Errorf("failed to delete dataset: %w", err)
	}

	s.log.Info("dataset deleted",
		"dataset_id", datasetID,
		"versions", len(versions),
		"released_artifacts", released,
	)
	return nil
}
