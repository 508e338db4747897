package models

import "time"

// ArtifactKind represents the declared content kind of an artifact
type ArtifactKind string

const (
	KindCSV     ArtifactKind = "csv"
	KindTSV     ArtifactKind = "tsv"
	KindParquet ArtifactKind = "parquet"
	KindExcel   ArtifactKind = "excel"
	KindJSON    ArtifactKind = "json"
	KindBinary  ArtifactKind = "binary"
)

// Artifact represents an immutable, content-addressed stored blob
// Maps to: artifact table
type Artifact struct {
	// Stable integer identity
	ArtifactID int64 `db:"artifact_id" json:"artifact_id"`

	// Content hash (sha256:abc123...), unique across the store.
	// Identical bytes always resolve to the same artifact row.
	ContentHash string `db:"content_hash" json:"content_hash"`

	// Blob size in bytes
	SizeBytes int64 `db:"size_bytes" json:"size_bytes"`

	// Scheme-prefixed storage location (file://..., s3://...).
	// The scheme alone determines which backend serves reads.
	Location string `db:"location" json:"location"`

	// Declared content kind
	Kind ArtifactKind `db:"kind" json:"kind"`

	// Optional MIME type
	MimeType *string `db:"mime_type" json:"mime_type,omitempty"`

	// Optional compression tag (gzip, zstd, ...)
	Compression *string `db:"compression" json:"compression,omitempty"`

	// Count of version associations holding this artifact.
	// Gates future reclamation; never drops below zero.
	RefCount int64 `db:"ref_count" json:"ref_count"`

	// False while the physical write is in flight. Dedup only reuses
	// promoted rows, so a provisional row is never visible as an artifact.
	Promoted bool `db:"promoted" json:"-"`

	// Free-form metadata (JSONB)
	Meta map[string]interface{} `db:"meta" json:"meta,omitempty"`

	// Creation timestamp
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
