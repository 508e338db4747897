package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/versio-data/versio/cmd/versio/models"
)

type trackerFixture struct {
	*graphFixture
	schemas *fakeSchemaRepo
	tracker *SchemaTracker
}

func newTrackerFixture() *trackerFixture {
	gf := newGraphFixture()
	schemas := newFakeSchemaRepo()
	return &trackerFixture{
		graphFixture: gf,
		schemas:      schemas,
		tracker:      NewSchemaTracker(schemas, gf.versions, testLogger()),
	}
}

func TestSchemaTracker_CaptureOncePerVersion(t *testing.T) {
	f := newTrackerFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v := f.mustCreateVersion(t, datasetID, nil, "v1")
	columns := []models.SchemaColumn{
		{Name: "id", Type: "integer", Nullable: false},
		{Name: "name", Type: "string", Nullable: true},
	}

	snapshot, err := f.tracker.Capture(ctx, v.VersionID, columns)
	require.NoError(t, err)
	assert.Equal(t, v.VersionID, snapshot.VersionID)

	_, err = f.tracker.Capture(ctx, v.VersionID, columns)
	assert.ErrorIs(t, err, ErrAlreadyCaptured)

	got, err := f.tracker.Get(ctx, v.VersionID)
	require.NoError(t, err)
	assert.Equal(t, columns, got.Columns)
}

func TestSchemaTracker_CaptureUnknownVersion(t *testing.T) {
	f := newTrackerFixture()
	_, err := f.tracker.Capture(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestSchemaTracker_Diff(t *testing.T) {
	f := newTrackerFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	v2 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")

	_, err := f.tracker.Capture(ctx, v1.VersionID, []models.SchemaColumn{
		{Name: "id", Type: "integer", Nullable: false},
		{Name: "name", Type: "string", Nullable: true},
		{Name: "legacy", Type: "string", Nullable: true},
	})
	require.NoError(t, err)

	_, err = f.tracker.Capture(ctx, v2.VersionID, []models.SchemaColumn{
		{Name: "id", Type: "integer", Nullable: false},
		{Name: "name", Type: "string", Nullable: false},
		{Name: "amount", Type: "decimal", Nullable: true},
	})
	require.NoError(t, err)

	diff, err := f.tracker.Diff(ctx, v1.VersionID, v2.VersionID)
	require.NoError(t, err)

	require.Len(t, diff.Added, 1)
	assert.Equal(t, "amount", diff.Added[0].Name)

	require.Len(t, diff.Removed, 1)
	assert.Equal(t, "legacy", diff.Removed[0].Name)

	require.Len(t, diff.Changed, 1)
	assert.Equal(t, "name", diff.Changed[0].Column)
	assert.True(t, diff.Changed[0].FromNullable)
	assert.False(t, diff.Changed[0].ToNullable)
}

func TestSchemaTracker_DiffIgnoresColumnOrder(t *testing.T) {
	f := newTrackerFixture()
	ctx := context.Background()
	datasetID := uuid.New()

	v1 := f.mustCreateVersion(t, datasetID, nil, "v1")
	v2 := f.mustCreateVersion(t, datasetID, &v1.VersionID, "v2")

	_, err := f.tracker.Capture(ctx, v1.VersionID, []models.SchemaColumn{
		{Name: "a", Type: "integer"},
		{Name: "b", Type: "string"},
	})
	require.NoError(t, err)

	_, err = f.tracker.Capture(ctx, v2.VersionID, []models.SchemaColumn{
		{Name: "b", Type: "string"},
		{Name: "a", Type: "integer"},
	})
	require.NoError(t, err)

	diff, err := f.tracker.Diff(ctx, v1.VersionID, v2.VersionID)
	require.NoError(t, err)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Empty(t, diff.Changed)
}

func TestDiffColumns_EmptySides(t *testing.T) {
	all := []models.SchemaColumn{{Name: "x", Type: "string"}}

	diff := diffColumns(nil, all)
	assert.Len(t, diff.Added, 1)
	assert.Empty(t, diff.Removed)

	diff = diffColumns(all, nil)
	assert.Empty(t, diff.Added)
	assert.Len(t, diff.Removed, 1)
}
