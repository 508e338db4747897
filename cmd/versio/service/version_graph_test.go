package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/versio-data/versio/cmd/versio/models"
)

type graphFixture struct {
	artifacts *fakeArtifactRepo
	versions  *fakeVersionRepo
	pointers  *fakePointerRepo
	backend   *memBackend
	store     *ArtifactStore
	graph     *VersionGraph
}

func newGraphFixture() *graphFixture {
	f := &graphFixture{
		artifacts: newFakeArtifactRepo(),
		versions:  newFakeVersionRepo(),
		pointers:  newFakePointerRepo(),
		backend:   newMemBackend(),
	}
	f.store = NewArtifactStore(f.artifacts, newTestRegistry(f.backend), testLogger())
	f.graph = NewVersionGraph(f.versions, f.pointers, f.store, testLogger())
	return f
}

func (f *graphFixture) mustCreateArtifact(t *testing.T, content string) *models.Artifact {
	t.Helper()
	a, err := f.store.Create(context.Background(), strings.NewReader(content), CreateArtifactRequest{Kind: models.KindCSV})
	require.NoError(t, err)
	return a
}

func (f *graphFixture) mustCreateVersion(t *testing.T, datasetID uuid.UUID, parent *uuid.UUID, content string) *models.Version {
	t.Helper()
	artifact := f.mustCreateArtifact(t, content)
	v, err := f.graph.CreateVersion(context.Background(), CreateVersionRequest{
		DatasetID: datasetID,
		ParentID:  parent,
		Files:     []FileComponent{{ArtifactID: artifact.ArtifactID, ComponentType: models.ComponentData}},
		Message:   "test",
		CreatedBy: "alice",
	})
	require.NoError(t, err)
	return v
}

func TestVersionGraph_NumbersAreSequential(t *testing.T) {
	f := newGraphFixture()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	v2 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")
	v3 := f.mustCreateVersion(t, datasetID, &v2.VersionID, "v3")

	assert.Equal(t, 1, v1.VersionNumber)
	assert.Equal(t, 2, v2.VersionNumber)
	assert.Equal(t, 3, v3.VersionNumber)
}

func TestVersionGraph_NumbersNotReusedAfterDelete(t *testing.T) {
	f := newGraphFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	v2 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")
	require.Equal(t, 2, v2.VersionNumber)

	// Deleting the highest-numbered version must not free its number
	require.NoError(t, f.graph.DeleteVersion(ctx, v2.VersionID))

	v3 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v3")
	assert.Equal(t, 3, v3.VersionNumber)
}

func TestVersionGraph_NumberConflictRetries(t *testing.T) {
	f := newGraphFixture()
	datasetID := uuid.New()

	f.versions.insertConflicts = 2
	v := f.mustCreateVersion(t, datasetID, nil, "contended")
	assert.Equal(t, 1, v.VersionNumber)
}

func TestVersionGraph_ParentMustBelongToDataset(t *testing.T) {
	f := newGraphFixture()
	ctx := context.Background()

	other := f.mustCreateVersion(t, uuid.New(), nil, "other dataset")

	_, err := f.graph.CreateVersion(ctx, CreateVersionRequest{
		DatasetID: uuid.New(),
		ParentID:  &other.VersionID,
		CreatedBy: "alice",
	})
	assert.ErrorIs(t, err, ErrParentNotFound)

	missing := uuid.New()
	_, err = f.graph.CreateVersion(ctx, CreateVersionRequest{
		DatasetID: uuid.New(),
		ParentID:  &missing,
		CreatedBy: "alice",
	})
	assert.ErrorIs(t, err, ErrParentNotFound)
}

func TestVersionGraph_GetLoadsFiles(t *testing.T) {
	f := newGraphFixture()
	datasetID := uuid.New()

	v := f.mustCreateVersion(t, datasetID, nil, "with files")

	got, err := f.graph.Get(context.Background(), v.VersionID)
	require.NoError(t, err)
	require.Len(t, got.Files, 1)
	assert.Equal(t, models.ComponentData, got.Files[0].ComponentType)
	assert.Equal(t, 0, got.Files[0].ComponentIndex)
}

func TestVersionGraph_AncestryChain(t *testing.T) {
	f := newGraphFixture()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	v2 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")
	v3 := f.mustCreateVersion(t, datasetID, &v2.VersionID, "v3")

	chain, err := f.graph.AncestryChain(context.Background(), v3.VersionID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, v3.VersionID, chain[0].VersionID)
	assert.Equal(t, v2.VersionID, chain[1].VersionID)
	assert.Equal(t, v1.VersionID, chain[2].VersionID)
}

func TestVersionGraph_AncestryDetectsCycle(t *testing.T) {
	f := newGraphFixture()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	v2 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")

	// Corrupt the graph: v1 now points back at v2
	f.versions.setParent(v1.VersionID, &v2.VersionID)

	_, err := f.graph.AncestryChain(context.Background(), v2.VersionID)
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestVersionGraph_TreeBranches(t *testing.T) {
	f := newGraphFixture()
	datasetID := uuid.New()

	root := f.mustCreateVersion(t, datasetID, nil, "root")
	left := f.mustCreateVersion(t, datasetID, &root.VersionID, "left")
	right := f.mustCreateVersion(t, datasetID, &root.VersionID, "right")

	roots, err := f.graph.Tree(context.Background(), datasetID)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root.VersionID, roots[0].Version.VersionID)
	require.Len(t, roots[0].Children, 2)

	childIDs := []uuid.UUID{roots[0].Children[0].Version.VersionID, roots[0].Children[1].Version.VersionID}
	assert.Contains(t, childIDs, left.VersionID)
	assert.Contains(t, childIDs, right.VersionID)
}

func TestVersionGraph_DeleteBlockedByChild(t *testing.T) {
	f := newGraphFixture()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")

	err := f.graph.DeleteVersion(context.Background(), v1.VersionID)
	assert.ErrorIs(t, err, ErrVersionInUse)
}

func TestVersionGraph_DeleteBlockedByPointer(t *testing.T) {
	f := newGraphFixture()
	datasetID := uuid.New()
	ctx := context.Background()

	v := f.mustCreateVersion(t, datasetID, nil, "pinned")
	require.NoError(t, f.pointers.Insert(ctx, &models.Pointer{
		DatasetID: datasetID,
		Name:      "v1.0",
		VersionID: v.VersionID,
		Immutable: true,
		CreatedAt: time.Now(),
	}))

	err := f.graph.DeleteVersion(ctx, v.VersionID)
	assert.ErrorIs(t, err, ErrVersionInUse)
}

func TestVersionGraph_DeleteReleasesArtifacts(t *testing.T) {
	f := newGraphFixture()
	datasetID := uuid.New()
	ctx := context.Background()

	v := f.mustCreateVersion(t, datasetID, nil, "leaf content")
	artifactID := v.Files[0].ArtifactID

	require.NoError(t, f.graph.DeleteVersion(ctx, v.VersionID))

	_, err := f.graph.Get(ctx, v.VersionID)
	assert.ErrorIs(t, err, ErrVersionNotFound)

	// The bytes stay; only the reference is returned
	artifact, err := f.store.Get(ctx, artifactID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), artifact.RefCount)
}
