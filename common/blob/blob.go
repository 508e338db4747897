package blob

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"
)

// HashPrefix is the digest algorithm prefix for content hashes (sha256:abc...)
const HashPrefix = "sha256:"

// copyBufferSize is the chunk size used while hashing and relaying content
const copyBufferSize = 8 * 1024

// Staged is a blob that has been written to a staging location and hashed,
// but not yet promoted to its content-addressed location.
type Staged struct {
	// Content hash (sha256:hex)
	Hash string

	// Size in bytes
	Size int64

	// Backend-internal staging key
	tempKey string
}

// Backend is a physical storage backend for artifact content.
// Implementations are selected by the scheme of the location URI.
type Backend interface {
	// Scheme returns the URI scheme this backend serves ("file", "s3", ...)
	Scheme() string

	// Stage writes the stream to a staging location, hashing incrementally
	// while relaying bytes. The content is not yet visible at its final
	// location.
	Stage(ctx context.Context, r io.Reader) (*Staged, error)

	// Promote moves a staged blob to its content-addressed location and
	// returns the location URI.
	Promote(ctx context.Context, staged *Staged) (string, error)

	// Discard removes a staged blob that will not be promoted
	Discard(ctx context.Context, staged *Staged) error

	// Location returns the final location URI for a content hash without
	// performing any I/O. It must match what Promote would return.
	Location(hash string) string

	// Open streams back the content stored at a location URI
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Registry maps URI schemes to backends. The persisted location URI is
// self-describing: reads dispatch on its scheme, writes go to the default.
type Registry struct {
	backends      map[string]Backend
	defaultScheme string
}

// NewRegistry creates a backend registry with the given default write scheme
func NewRegistry(defaultScheme string) *Registry {
	return &Registry{
		backends:      make(map[string]Backend),
		defaultScheme: defaultScheme,
	}
}

// Register adds a backend for its scheme
func (r *Registry) Register(b Backend) {
	r.backends[b.Scheme()] = b
}

// Default returns the backend new artifacts are written to
func (r *Registry) Default() (Backend, error) {
	b, ok := r.backends[r.defaultScheme]
	if !ok {
		return nil, fmt.Errorf("no blob backend registered for scheme %q", r.defaultScheme)
	}
	return b, nil
}

// ForLocation returns the backend serving a location URI
func (r *Registry) ForLocation(location string) (Backend, error) {
	scheme, _, err := SplitLocation(location)
	if err != nil {
		return nil, err
	}
	b, ok := r.backends[scheme]
	if !ok {
		return nil, fmt.Errorf("no blob backend registered for scheme %q", scheme)
	}
	return b, nil
}

// Open streams the content stored at a location URI, dispatching on its scheme
func (r *Registry) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	b, err := r.ForLocation(location)
	if err != nil {
		return nil, err
	}
	return b.Open(ctx, location)
}

// SplitLocation splits a location URI into scheme and path
func SplitLocation(location string) (scheme, path string, err error) {
	idx := strings.Index(location, "://")
	if idx <= 0 {
		return "", "", fmt.Errorf("malformed blob location %q", location)
	}
	return location[:idx], location[idx+3:], nil
}

// FormatHash renders a sha256 digest in the canonical sha256:hex form
func FormatHash(sum [sha256.Size]byte) string {
	return fmt.Sprintf("%s%x", HashPrefix, sum)
}

// hashHex strips the digest prefix, returning the bare hex string
func hashHex(hash string) string {
	return strings.TrimPrefix(hash, HashPrefix)
}
