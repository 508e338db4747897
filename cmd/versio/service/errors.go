package service

import "errors"

// Error taxonomy for the version-control core. Handlers map these to
// client-facing statuses; nothing here is logged-and-swallowed except the
// dedup race inside ArtifactStore, which resolves internally.
var (
	// Stale or invalid identities (not retryable)
	ErrDatasetNotFound  = errors.New("dataset not found")
	ErrVersionNotFound  = errors.New("version not found")
	ErrParentNotFound   = errors.New("parent version not found")
	ErrPointerNotFound  = errors.New("pointer not found")
	ErrArtifactNotFound = errors.New("artifact not found")

	// Policy violations (surfaced, not retried)
	ErrDuplicateName    = errors.New("name already exists")
	ErrProtectedBranch  = errors.New("main branch is protected")
	ErrImmutablePointer = errors.New("pointer is immutable")
	ErrVersionInUse     = errors.New("version is referenced by a pointer or child version")
	ErrAlreadyCaptured  = errors.New("schema snapshot already captured for version")
	ErrInvalidName      = errors.New("invalid name")

	// Storage unavailable (retryable by caller with backoff)
	ErrStorage = errors.New("storage failure")

	// Partial multi-step commit failure. The whole commit may be retried;
	// already-written artifacts and versions remain as harmless orphans.
	ErrCommitIncomplete = errors.New("commit incomplete")

	// Branch advance lost the optimistic-lock race too many times
	ErrAdvanceContention = errors.New("pointer advance contention")

	// Defensive invariant violation: indicates data corruption, never ignored
	ErrCycleDetected = errors.New("cycle detected in version ancestry")
)
