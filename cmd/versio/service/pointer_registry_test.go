package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/versio-data/versio/cmd/versio/models"
	"github.com/versio-data/versio/common/cache"
)

type registryFixture struct {
	*graphFixture
	registry *PointerRegistry
}

func newRegistryFixture() *registryFixture {
	gf := newGraphFixture()
	return &registryFixture{
		graphFixture: gf,
		registry:     NewPointerRegistry(gf.pointers, gf.versions, gf.graph, cache.NewMemoryCache(testLogger()), time.Minute, testLogger()),
	}
}

func TestPointerRegistry_CreateBranchAndResolve(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v := f.mustCreateVersion(t, datasetID, nil, "v1")

	branch, err := f.registry.CreateBranch(ctx, datasetID, "main", v.VersionID, "alice")
	require.NoError(t, err)
	assert.True(t, branch.IsBranch())

	resolved, err := f.registry.Resolve(ctx, datasetID, "main")
	require.NoError(t, err)
	assert.Equal(t, v.VersionID, resolved)

	// Second resolve is served from cache
	resolved, err = f.registry.Resolve(ctx, datasetID, "main")
	require.NoError(t, err)
	assert.Equal(t, v.VersionID, resolved)
}

func TestPointerRegistry_DuplicateName(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v := f.mustCreateVersion(t, datasetID, nil, "v1")

	_, err := f.registry.CreateBranch(ctx, datasetID, "dev", v.VersionID, "alice")
	require.NoError(t, err)

	_, err = f.registry.CreateTag(ctx, datasetID, "dev", v.VersionID, "alice")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestPointerRegistry_InvalidName(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v := f.mustCreateVersion(t, datasetID, nil, "v1")

	for _, name := range []string{"", "/leading", "has space", "-dash-first"} {
		_, err := f.registry.CreateBranch(ctx, datasetID, name, v.VersionID, "alice")
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}

func TestPointerRegistry_PointerCannotDangle(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	_, err := f.registry.CreateBranch(ctx, datasetID, "main", uuid.New(), "alice")
	assert.ErrorIs(t, err, ErrVersionNotFound)

	// A version from another dataset is equally invalid
	foreign := f.mustCreateVersion(t, uuid.New(), nil, "foreign")
	_, err = f.registry.CreateTag(ctx, datasetID, "v1.0", foreign.VersionID, "alice")
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestPointerRegistry_AdvanceBranch(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	v2 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")

	_, err := f.registry.CreateBranch(ctx, datasetID, "main", v1.VersionID, "alice")
	require.NoError(t, err)

	require.NoError(t, f.registry.AdvanceBranch(ctx, datasetID, "main", v2.VersionID, "bob"))

	resolved, err := f.registry.Resolve(ctx, datasetID, "main")
	require.NoError(t, err)
	assert.Equal(t, v2.VersionID, resolved)

	// Backward reset to v1 is allowed, main included
	require.NoError(t, f.registry.AdvanceBranch(ctx, datasetID, "main", v1.VersionID, "bob"))
	resolved, err = f.registry.Resolve(ctx, datasetID, "main")
	require.NoError(t, err)
	assert.Equal(t, v1.VersionID, resolved)
}

func TestPointerRegistry_AdvanceRetriesPastStaleLock(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	v2 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")

	_, err := f.registry.CreateBranch(ctx, datasetID, "main", v1.VersionID, "alice")
	require.NoError(t, err)

	// Concurrent advances stale the lock version twice; the loop re-reads
	// and the advance still lands
	f.pointers.casFailures = 2
	require.NoError(t, f.registry.AdvanceBranch(ctx, datasetID, "main", v2.VersionID, "bob"))

	resolved, err := f.registry.Resolve(ctx, datasetID, "main")
	require.NoError(t, err)
	assert.Equal(t, v2.VersionID, resolved)

	// The version the branch moved past is still reachable directly
	_, err = f.graph.Get(ctx, v1.VersionID)
	assert.NoError(t, err)
}

func TestPointerRegistry_AdvanceContentionBounded(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	v2 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")

	_, err := f.registry.CreateBranch(ctx, datasetID, "main", v1.VersionID, "alice")
	require.NoError(t, err)

	f.pointers.casFailures = maxAdvanceAttempts
	err = f.registry.AdvanceBranch(ctx, datasetID, "main", v2.VersionID, "bob")
	assert.ErrorIs(t, err, ErrAdvanceContention)
}

func TestPointerRegistry_TagIsImmutable(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	v2 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")

	_, err := f.registry.CreateTag(ctx, datasetID, "v1.0", v1.VersionID, "alice")
	require.NoError(t, err)

	err = f.registry.AdvanceBranch(ctx, datasetID, "v1.0", v2.VersionID, "alice")
	assert.ErrorIs(t, err, ErrImmutablePointer)

	resolved, err := f.registry.Resolve(ctx, datasetID, "v1.0")
	require.NoError(t, err)
	assert.Equal(t, v1.VersionID, resolved)
}

func TestPointerRegistry_MainDeleteProtected(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v := f.mustCreateVersion(t, datasetID, nil, "v1")
	_, err := f.registry.CreateBranch(ctx, datasetID, models.MainBranch, v.VersionID, "alice")
	require.NoError(t, err)

	err = f.registry.DeletePointer(ctx, datasetID, models.MainBranch)
	assert.ErrorIs(t, err, ErrProtectedBranch)

	// Other pointers delete fine, and the version survives
	_, err = f.registry.CreateTag(ctx, datasetID, "v1.0", v.VersionID, "alice")
	require.NoError(t, err)
	require.NoError(t, f.registry.DeletePointer(ctx, datasetID, "v1.0"))

	_, err = f.graph.Get(ctx, v.VersionID)
	assert.NoError(t, err)
}

func TestPointerRegistry_HistoryWalksAncestry(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	v2 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")

	_, err := f.registry.CreateBranch(ctx, datasetID, "main", v2.VersionID, "alice")
	require.NoError(t, err)

	chain, err := f.registry.History(ctx, datasetID, "main")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, v2.VersionID, chain[0].VersionID)
	assert.Equal(t, v1.VersionID, chain[1].VersionID)
}

func TestPointerRegistry_MovesAreAudited(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	v2 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")

	_, err := f.registry.CreateBranch(ctx, datasetID, "main", v1.VersionID, "alice")
	require.NoError(t, err)
	require.NoError(t, f.registry.AdvanceBranch(ctx, datasetID, "main", v2.VersionID, "bob"))

	moves, err := f.registry.Moves(ctx, datasetID, "main", 10)
	require.NoError(t, err)
	require.Len(t, moves, 2)

	// Newest first: the advance, then the creation
	assert.Equal(t, v2.VersionID, moves[0].ToVersion)
	require.NotNil(t, moves[0].FromVersion)
	assert.Equal(t, v1.VersionID, *moves[0].FromVersion)
	assert.Nil(t, moves[1].FromVersion)
}
