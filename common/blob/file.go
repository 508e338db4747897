package blob

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileBackend stores blobs on the local filesystem under a root directory.
// Layout: <root>/staging/<uuid> for staged blobs, <root>/objects/<hh>/<hash>
// for promoted ones (hh = first two hex chars, to keep directories small).
type FileBackend struct {
	root string
}

// NewFileBackend creates a filesystem backend rooted at the given directory
func NewFileBackend(root string) (*FileBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, "staging"), 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, "objects"), 0o755); err != nil {
		return nil, fmt.Errorf("create objects dir: %w", err)
	}
	return &FileBackend{root: abs}, nil
}

// Scheme returns "file"
func (b *FileBackend) Scheme() string {
	return "file"
}

// Stage writes the stream to a staging file, hashing in fixed-size chunks
func (b *FileBackend) Stage(ctx context.Context, r io.Reader) (*Staged, error) {
	tempKey := uuid.NewString()
	tempPath := b.stagingPath(tempKey)

	f, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	hasher := sha256.New()
	buf := make([]byte, copyBufferSize)
	size, err := io.CopyBuffer(io.MultiWriter(f, hasher), r, buf)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("stage blob: %w", err)
	}

	var sum [sha256.Size]byte
	hasher.Sum(sum[:0])

	return &Staged{
		Hash:    FormatHash(sum),
		Size:    size,
		tempKey: tempKey,
	}, nil
}

// Promote renames the staged file to its content-addressed path
func (b *FileBackend) Promote(ctx context.Context, staged *Staged) (string, error) {
	target := b.objectPath(staged.Hash)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := os.Rename(b.stagingPath(staged.tempKey), target); err != nil {
		return "", fmt.Errorf("promote blob: %w", err)
	}
	return b.Location(staged.Hash), nil
}

// Discard removes a staged file
func (b *FileBackend) Discard(ctx context.Context, staged *Staged) error {
	if err := os.Remove(b.stagingPath(staged.tempKey)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discard staged blob: %w", err)
	}
	return nil
}

// Location returns the file:// URI for a content hash
func (b *FileBackend) Location(hash string) string {
	return "file://" + b.objectPath(hash)
}

// Open opens the file behind a file:// location URI
func (b *FileBackend) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	_, path, err := SplitLocation(location)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", location, err)
	}
	return f, nil
}

func (b *FileBackend) stagingPath(tempKey string) string {
	return filepath.Join(b.root, "staging", tempKey)
}

func (b *FileBackend) objectPath(hash string) string {
	hex := hashHex(hash)
	return filepath.Join(b.root, "objects", hex[:2], hex)
}
