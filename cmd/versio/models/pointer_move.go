package models

import (
	"time"

	"github.com/google/uuid"
)

// PointerMove is an audit log entry for branch advances
// Maps to: pointer_move table
type PointerMove struct {
	// Auto-incrementing ID
	ID int64 `db:"id" json:"id"`

	// Pointer that was moved
	DatasetID uuid.UUID `db:"dataset_id" json:"dataset_id"`
	Name      string    `db:"name" json:"name"`

	// Previous target (nil on creation)
	FromVersion *uuid.UUID `db:"from_version" json:"from_version,omitempty"`

	// New target
	ToVersion uuid.UUID `db:"to_version" json:"to_version"`

	// Audit fields
	MovedBy *string   `db:"moved_by" json:"moved_by,omitempty"`
	MovedAt time.Time `db:"moved_at" json:"moved_at"`
}
