package memstore

import (
	"context"
	"testing"

	"github.com/couchcryptid/region-sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feature(id string, cat domain.Category) domain.NormalizedFeature {
	return domain.NormalizedFeature{ID: id, SourceType: "node", Category: cat, Region: "r1"}
}

func TestStore_UpsertOverwritesByID(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.BatchUpsertRecords(ctx, "features:r1", []domain.NormalizedFeature{
		feature("node/2", domain.CategoryHotel),
		feature("node/1", domain.CategoryInfra),
	}))
	require.NoError(t, s.BatchUpsertRecords(ctx, "features:r1", []domain.NormalizedFeature{
		feature("node/1", domain.CategoryGov),
	}))

	got, err := s.GetAllRecords(ctx, "features:r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "node/1", got[0].ID)
	assert.Equal(t, domain.CategoryGov, got[0].Category)
	assert.Equal(t, "node/2", got[1].ID)
}

func TestStore_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.BatchUpsertRecords(ctx, "features:a", []domain.NormalizedFeature{feature("node/1", domain.CategoryInfra)}))

	got, err := s.GetAllRecords(ctx, "features:b")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_NamedSettings(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, ok, err := s.GetNamedSetting(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte(`{"version":1}`)
	require.NoError(t, s.SetNamedSetting(ctx, "k", value))
	value[0] = 'x' // caller mutation must not leak into the store

	got, ok, err := s.GetNamedSetting(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"version":1}`, string(got))
}

func TestStore_CommitSyncAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CommitSync(ctx, "features:r1",
		[]domain.NormalizedFeature{feature("node/1", domain.CategoryInfra), feature("node/2", domain.CategoryTraffic)},
		"region_version:r1", []byte(`{"feature_count":2}`)))

	v, ok, err := s.GetNamedSetting(ctx, "region_version:r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"feature_count":2}`, string(v))

	require.NoError(t, s.DeleteRecords(ctx, "features:r1", []string{"node/1", "node/404"}))
	got, err := s.GetAllRecords(ctx, "features:r1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "node/2", got[0].ID)
}

func TestStore_TagsAreNotShared(t *testing.T) {
	ctx := context.Background()
	s := New()

	in := feature("node/1", domain.CategoryInfra)
	in.Tags = domain.Tags{"amenity": "police"}
	require.NoError(t, s.BatchUpsertRecords(ctx, "features:r1", []domain.NormalizedFeature{in}))
	in.Tags["amenity"] = "changed after upsert"

	got, err := s.GetAllRecords(ctx, "features:r1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "police", got[0].Tags["amenity"])

	got[0].Tags["amenity"] = "changed after read"
	again, err := s.GetAllRecords(ctx, "features:r1")
	require.NoError(t, err)
	assert.Equal(t, "police", again[0].Tags["amenity"])
}
