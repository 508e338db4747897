package models

import (
	"time"

	"github.com/google/uuid"
)

// Dataset represents a named collection of versions
// Maps to: dataset table
type Dataset struct {
	// Unique dataset ID
	DatasetID uuid.UUID `db:"dataset_id" json:"dataset_id"`

	// Dataset name, unique per creator
	Name string `db:"name" json:"name"`

	// Optional description
	Description *string `db:"description" json:"description,omitempty"`

	// Business tags (search/grouping labels, not version pointers)
	Tags []string `db:"tags" json:"tags"`

	// Audit fields
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
