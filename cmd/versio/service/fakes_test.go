package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/versio-data/versio/cmd/versio/models"
	"github.com/versio-data/versio/cmd/versio/repository"
	"github.com/versio-data/versio/common/blob"
	"github.com/versio-data/versio/common/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

// fakeArtifactRepo is an in-memory ArtifactRepo with the same conflict
// semantics as the Postgres implementation
type fakeArtifactRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*models.Artifact
	byHash map[string]int64

	// insertConflicts forces the next N inserts to report a unique
	// violation, simulating a concurrent winner
	insertConflicts int
}

func newFakeArtifactRepo() *fakeArtifactRepo {
	return &fakeArtifactRepo{
		nextID: 1,
		byID:   make(map[int64]*models.Artifact),
		byHash: make(map[string]int64),
	}
}

func (f *fakeArtifactRepo) Insert(ctx context.Context, artifact *models.Artifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertConflicts > 0 {
		f.insertConflicts--
		return repository.ErrConflict
	}
	if _, ok := f.byHash[artifact.ContentHash]; ok {
		return repository.ErrConflict
	}
	artifact.ArtifactID = f.nextID
	f.nextID++
	cp := *artifact
	f.byID[artifact.ArtifactID] = &cp
	f.byHash[artifact.ContentHash] = artifact.ArtifactID
	return nil
}

func (f *fakeArtifactRepo) GetByID(ctx context.Context, artifactID int64) (*models.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[artifactID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeArtifactRepo) GetByHash(ctx context.Context, contentHash string) (*models.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byHash[contentHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f.byID[id]
	return &cp, nil
}

func (f *fakeArtifactRepo) IncrementRefByHash(ctx context.Context, contentHash string) (*models.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byHash[contentHash]
	if !ok || !f.byID[id].Promoted {
		return nil, repository.ErrNotFound
	}
	f.byID[id].RefCount++
	cp := *f.byID[id]
	return &cp, nil
}

func (f *fakeArtifactRepo) IncrementRef(ctx context.Context, artifactID int64) (*models.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[artifactID]
	if !ok || !a.Promoted {
		return nil, repository.ErrNotFound
	}
	a.RefCount++
	cp := *a
	return &cp, nil
}

func (f *fakeArtifactRepo) MarkPromoted(ctx context.Context, artifactID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[artifactID]
	if !ok {
		return repository.ErrNotFound
	}
	a.Promoted = true
	return nil
}

func (f *fakeArtifactRepo) DecrementRef(ctx context.Context, artifactID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[artifactID]
	if !ok {
		return repository.ErrNotFound
	}
	if a.RefCount > 0 {
		a.RefCount--
	}
	return nil
}

func (f *fakeArtifactRepo) Delete(ctx context.Context, artifactID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[artifactID]
	if !ok {
		return repository.ErrNotFound
	}
	delete(f.byHash, a.ContentHash)
	delete(f.byID, artifactID)
	return nil
}

func (f *fakeArtifactRepo) ListUnreferenced(ctx context.Context, limit int) ([]*models.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Artifact
	for _, a := range f.byID {
		if a.RefCount == 0 {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArtifactID < out[j].ArtifactID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeVersionRepo assigns version numbers the way the production insert
// does: from a per-dataset counter that never decreases, so numbers of
// deleted versions are never reassigned
type fakeVersionRepo struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*models.Version
	files      map[uuid.UUID][]models.VersionFile
	lastNumber map[uuid.UUID]int

	// insertConflicts forces the next N inserts to fail as if another
	// commit claimed the version number first
	insertConflicts int
}

func newFakeVersionRepo() *fakeVersionRepo {
	return &fakeVersionRepo{
		byID:       make(map[uuid.UUID]*models.Version),
		files:      make(map[uuid.UUID][]models.VersionFile),
		lastNumber: make(map[uuid.UUID]int),
	}
}

func (f *fakeVersionRepo) Insert(ctx context.Context, version *models.Version) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertConflicts > 0 {
		f.insertConflicts--
		return repository.ErrConflict
	}
	f.lastNumber[version.DatasetID]++
	version.VersionNumber = f.lastNumber[version.DatasetID]
	cp := *version
	f.byID[version.VersionID] = &cp
	return nil
}

func (f *fakeVersionRepo) InsertFiles(ctx context.Context, files []models.VersionFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, vf := range files {
		f.files[vf.VersionID] = append(f.files[vf.VersionID], vf)
	}
	return nil
}

func (f *fakeVersionRepo) GetByID(ctx context.Context, versionID uuid.UUID) (*models.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byID[versionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVersionRepo) GetFiles(ctx context.Context, versionID uuid.UUID) ([]models.VersionFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.VersionFile(nil), f.files[versionID]...), nil
}

func (f *fakeVersionRepo) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Version
	for _, v := range f.byID {
		if v.DatasetID == datasetID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}

func (f *fakeVersionRepo) HasChildren(ctx context.Context, versionID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.byID {
		if v.ParentID != nil && *v.ParentID == versionID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeVersionRepo) Delete(ctx context.Context, versionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[versionID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, versionID)
	delete(f.files, versionID)
	return nil
}

// setParent rewires a stored version's parent, bypassing the append-only
// rule to fabricate corrupted graphs
func (f *fakeVersionRepo) setParent(versionID uuid.UUID, parentID *uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[versionID].ParentID = parentID
}

type pointerKey struct {
	dataset uuid.UUID
	name    string
}

// fakePointerRepo implements the CAS semantics of the pointer table
type fakePointerRepo struct {
	mu       sync.Mutex
	pointers map[pointerKey]*models.Pointer
	moves    []*models.PointerMove
	nextMove int64

	// casFailures forces the next N swaps to report a stale lock version,
	// as if a concurrent advance slipped in between read and swap
	casFailures int
}

func newFakePointerRepo() *fakePointerRepo {
	return &fakePointerRepo{
		pointers: make(map[pointerKey]*models.Pointer),
		nextMove: 1,
	}
}

func (f *fakePointerRepo) Insert(ctx context.Context, pointer *models.Pointer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pointerKey{pointer.DatasetID, pointer.Name}
	if _, ok := f.pointers[key]; ok {
		return repository.ErrConflict
	}
	cp := *pointer
	f.pointers[key] = &cp
	return nil
}

func (f *fakePointerRepo) Get(ctx context.Context, datasetID uuid.UUID, name string) (*models.Pointer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pointers[pointerKey{datasetID, name}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePointerRepo) CompareAndSwap(ctx context.Context, datasetID uuid.UUID, name string, expectedLockVersion int64, toVersion uuid.UUID, movedBy string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.casFailures > 0 {
		f.casFailures--
		return false, nil
	}
	p, ok := f.pointers[pointerKey{datasetID, name}]
	if !ok || p.Immutable || p.LockVersion != expectedLockVersion {
		return false, nil
	}
	p.VersionID = toVersion
	p.LockVersion++
	p.MovedBy = &movedBy
	p.MovedAt = time.Now()
	return true, nil
}

func (f *fakePointerRepo) Delete(ctx context.Context, datasetID uuid.UUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pointerKey{datasetID, name}
	if _, ok := f.pointers[key]; !ok {
		return repository.ErrNotFound
	}
	delete(f.pointers, key)
	return nil
}

func (f *fakePointerRepo) ListByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Pointer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Pointer
	for _, p := range f.pointers {
		if p.DatasetID == datasetID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakePointerRepo) CountByDataset(ctx context.Context, datasetID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.pointers {
		if p.DatasetID == datasetID {
			count++
		}
	}
	return count, nil
}

func (f *fakePointerRepo) ExistsForVersion(ctx context.Context, versionID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pointers {
		if p.VersionID == versionID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePointerRepo) InsertMove(ctx context.Context, move *models.PointerMove) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *move
	cp.ID = f.nextMove
	f.nextMove++
	f.moves = append(f.moves, &cp)
	return nil
}

func (f *fakePointerRepo) GetMoves(ctx context.Context, datasetID uuid.UUID, name string, limit int) ([]*models.PointerMove, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PointerMove
	for i := len(f.moves) - 1; i >= 0; i-- {
		m := f.moves[i]
		if m.DatasetID == datasetID && m.Name == name {
			cp := *m
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// fakeSchemaRepo enforces one snapshot per version
type fakeSchemaRepo struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]*models.SchemaSnapshot
}

func newFakeSchemaRepo() *fakeSchemaRepo {
	return &fakeSchemaRepo{snapshots: make(map[uuid.UUID]*models.SchemaSnapshot)}
}

func (f *fakeSchemaRepo) Insert(ctx context.Context, snapshot *models.SchemaSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snapshots[snapshot.VersionID]; ok {
		return repository.ErrConflict
	}
	cp := *snapshot
	f.snapshots[snapshot.VersionID] = &cp
	return nil
}

func (f *fakeSchemaRepo) GetByVersion(ctx context.Context, versionID uuid.UUID) (*models.SchemaSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snapshots[versionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// fakeDatasetRepo keys uniqueness on (created_by, name)
type fakeDatasetRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Dataset
}

func newFakeDatasetRepo() *fakeDatasetRepo {
	return &fakeDatasetRepo{byID: make(map[uuid.UUID]*models.Dataset)}
}

func (f *fakeDatasetRepo) Insert(ctx context.Context, dataset *models.Dataset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.byID {
		if d.CreatedBy == dataset.CreatedBy && d.Name == dataset.Name {
			return repository.ErrConflict
		}
	}
	cp := *dataset
	f.byID[dataset.DatasetID] = &cp
	return nil
}

func (f *fakeDatasetRepo) GetByID(ctx context.Context, datasetID uuid.UUID) (*models.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[datasetID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDatasetRepo) List(ctx context.Context, limit int) ([]*models.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Dataset
	for _, d := range f.byID {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDatasetRepo) Touch(ctx context.Context, datasetID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byID[datasetID]
	if !ok {
		return repository.ErrNotFound
	}
	d.UpdatedAt = at
	return nil
}

func (f *fakeDatasetRepo) Delete(ctx context.Context, datasetID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[datasetID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, datasetID)
	return nil
}

// memBackend is an in-memory blob.Backend. Staged blobs are tracked by
// hash since promotion is keyed on the hash alone.
type memBackend struct {
	mu      sync.Mutex
	staged  map[string][]byte
	objects map[string][]byte

	// promoteErr, when set, fails every Promote call
	promoteErr error
}

func newMemBackend() *memBackend {
	return &memBackend{
		staged:  make(map[string][]byte),
		objects: make(map[string][]byte),
	}
}

func (m *memBackend) Scheme() string { return "mem" }

func (m *memBackend) Stage(ctx context.Context, r io.Reader) (*blob.Staged, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	hash := blob.FormatHash(sha256.Sum256(data))
	m.mu.Lock()
	m.staged[hash] = data
	m.mu.Unlock()
	return &blob.Staged{Hash: hash, Size: int64(len(data))}, nil
}

func (m *memBackend) Promote(ctx context.Context, staged *blob.Staged) (string, error) {
	if m.promoteErr != nil {
		return "", m.promoteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.staged[staged.Hash]
	if !ok {
		return "", fmt.Errorf("no staged blob for %s", staged.Hash)
	}
	m.objects[staged.Hash] = data
	delete(m.staged, staged.Hash)
	return m.Location(staged.Hash), nil
}

func (m *memBackend) Discard(ctx context.Context, staged *blob.Staged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.staged, staged.Hash)
	return nil
}

func (m *memBackend) Location(hash string) string {
	return "mem://" + hash
}

func (m *memBackend) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	_, path, err := blob.SplitLocation(location)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	data, ok := m.objects[path]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no blob at %s", location)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func newTestRegistry(backend blob.Backend) *blob.Registry {
	reg := blob.NewRegistry(backend.Scheme())
	reg.Register(backend)
	return reg
}
