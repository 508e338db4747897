package models

import (
	"time"

	"github.com/google/uuid"
)

// SchemaColumn is one (name, declared type, nullable) tuple of a snapshot
type SchemaColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// SchemaSnapshot is the structural descriptor captured when a version is
// created. Exactly one per version, immutable once written.
// Maps to: schema_snapshot table
type SchemaSnapshot struct {
	// Owning version
	VersionID uuid.UUID `db:"version_id" json:"version_id"`

	// Ordered column descriptors (stored as JSONB)
	Columns []SchemaColumn `db:"columns" json:"columns"`

	// Capture timestamp
	CapturedAt time.Time `db:"captured_at" json:"captured_at"`
}

// SchemaChange describes one column present in both snapshots with a
// different declared type or nullability
type SchemaChange struct {
	Column       string `json:"column"`
	FromType     string `json:"from_type"`
	ToType       string `json:"to_type"`
	FromNullable bool   `json:"from_nullable"`
	ToNullable   bool   `json:"to_nullable"`
}

// SchemaDiff reports the three disjoint column sets between two snapshots.
// Comparison is by column name; ordering does not affect the result.
type SchemaDiff struct {
	Added   []SchemaColumn `json:"added"`
	Removed []SchemaColumn `json:"removed"`
	Changed []SchemaChange `json:"changed"`
}
