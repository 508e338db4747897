package models

import (
	"time"

	"github.com/google/uuid"
)

// ComponentType classifies a file's role within a multi-file version
type ComponentType string

const (
	// ComponentData is the primary data file
	ComponentData ComponentType = "data"

	// ComponentDocs is supporting documentation (data dictionary, readme)
	ComponentDocs ComponentType = "docs"

	// ComponentAux is any auxiliary file (sidecar index, sample output)
	ComponentAux ComponentType = "aux"
)

// Version represents an immutable snapshot node in a dataset's DAG
// Maps to: dataset_version table
type Version struct {
	// Unique version ID
	VersionID uuid.UUID `db:"version_id" json:"version_id"`

	// Owning dataset
	DatasetID uuid.UUID `db:"dataset_id" json:"dataset_id"`

	// Monotonically increasing per dataset, drawn from a counter that
	// never decreases; numbers of deleted versions are never reused
	VersionNumber int `db:"version_number" json:"version_number"`

	// Parent version, nil for roots. Must belong to the same dataset.
	// Never rewritten once the version exists.
	ParentID *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`

	// Commit message
	Message string `db:"message" json:"message"`

	// Audit fields
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Ordered file associations, loaded on demand
	Files []VersionFile `db:"-" json:"files,omitempty"`
}

// VersionFile associates an artifact with a version in a given role
// Maps to: version_file table
type VersionFile struct {
	VersionID      uuid.UUID     `db:"version_id" json:"version_id"`
	ArtifactID     int64         `db:"artifact_id" json:"artifact_id"`
	ComponentType  ComponentType `db:"component_type" json:"component_type"`
	ComponentName  *string       `db:"component_name" json:"component_name,omitempty"`
	ComponentIndex int           `db:"component_index" json:"component_index"`
}

// VersionTreeNode is a node in the forest returned by the version graph
type VersionTreeNode struct {
	Version  *Version           `json:"version"`
	Children []*VersionTreeNode `json:"children"`
}
