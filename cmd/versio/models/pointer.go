package models

import (
	"time"

	"github.com/google/uuid"
)

// MainBranch is the reserved branch every dataset carries.
// It cannot be deleted.
const MainBranch = "main"

// Pointer is a named reference to exactly one version.
// Branches are mutable, tags are immutable.
// Maps to: pointer table
type Pointer struct {
	// Owning dataset
	DatasetID uuid.UUID `db:"dataset_id" json:"dataset_id"`

	// Pointer name, unique per dataset
	// Examples: 'main', 'feature/cleanup', 'v1.0'
	Name string `db:"name" json:"name"`

	// Referenced version
	VersionID uuid.UUID `db:"version_id" json:"version_id"`

	// Immutability flag: true for tags, false for branches.
	// A tag's version never changes after creation.
	Immutable bool `db:"immutable" json:"immutable"`

	// Optimistic locking version (for CAS advances)
	LockVersion int64 `db:"lock_version" json:"lock_version"`

	// Audit fields
	MovedBy   *string   `db:"moved_by" json:"moved_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	MovedAt   time.Time `db:"moved_at" json:"moved_at"`
}

// IsBranch reports whether the pointer may be reassigned
func (p *Pointer) IsBranch() bool {
	return !p.Immutable
}
