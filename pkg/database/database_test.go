package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenfolio/portfolio-api/pkg/errs"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func testPhoto(id string) *Photo {
	return &Photo{
		ID:               id,
		Title:            "Dawn over the ridge",
		Description:      "Dawn over the ridge",
		CreatedAt:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:        time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
		Width:            4000,
		Height:           3000,
		Color:            "#262626",
		Views:            100,
		Downloads:        5,
		Likes:            10,
		URLRaw:           "https://img/" + id + "/raw",
		PhotographerName: "Jo Silva",
		Tags:             Tags{"mountain", "sunrise"},
		LastSyncedAt:     time.Now().UTC(),
	}
}

func enrichedPhoto(id string) *Photo {
	p := testPhoto(id)
	p.ExifMake = strPtr("Canon")
	p.ExifModel = strPtr("EOS R5")
	p.ExifExposureTime = strPtr("1/250")
	p.ExifAperture = strPtr("2.8")
	p.ExifFocalLength = strPtr("35")
	p.ExifISO = strPtr("200")
	p.LocationName = strPtr("Serra da Estrela")
	p.LocationCity = strPtr("Manteigas")
	p.LocationCountry = strPtr("Portugal")
	return p
}

func TestUpsertPhotoIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPhoto(ctx, testPhoto("p1")))
	require.NoError(t, store.UpsertPhoto(ctx, testPhoto("p1")))

	var count int64
	store.db.Model(&Photo{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUpsertPhotoRefreshesValues(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPhoto(ctx, testPhoto("p1")))

	updated := testPhoto("p1")
	updated.Title = "Renamed after the storm"
	updated.Views = 250
	updated.Tags = Tags{"storm"}
	require.NoError(t, store.UpsertPhoto(ctx, updated))

	got, err := store.GetPhoto(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Renamed after the storm", got.Title)
	assert.Equal(t, int64(250), got.Views)
	assert.Equal(t, Tags{"storm"}, got.Tags)
}

func TestBulkUpsertKeepsEnrichment(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPhoto(ctx, testPhoto("p1")))
	require.NoError(t, store.EnrichPhoto(ctx, enrichedPhoto("p1")))

	// The next bulk sync carries fresh stats but no EXIF or location.
	refreshed := testPhoto("p1")
	refreshed.Views = 999
	require.NoError(t, store.UpsertPhoto(ctx, refreshed))

	got, err := store.GetPhoto(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(999), got.Views)
	require.NotNil(t, got.ExifMake)
	assert.Equal(t, "Canon", *got.ExifMake)
	require.NotNil(t, got.LocationCountry)
	assert.Equal(t, "Portugal", *got.LocationCountry)
	assert.True(t, got.Enriched())
}

func TestEnrichPhotoNeverRegressesStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	bulk := testPhoto("p1")
	bulk.Views = 1500
	bulk.Downloads = 40
	require.NoError(t, store.UpsertPhoto(ctx, bulk))

	// The detail payload reports different counters; they must not win.
	detail := enrichedPhoto("p1")
	detail.Views = 3
	detail.Downloads = 0
	require.NoError(t, store.EnrichPhoto(ctx, detail))

	got, err := store.GetPhoto(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.Views)
	assert.Equal(t, int64(40), got.Downloads)
	require.NotNil(t, got.ExifISO)
	assert.Equal(t, "200", *got.ExifISO)
}

func TestUpsertPreservesLinks(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPhoto(ctx, testPhoto("p1")))
	require.NoError(t, store.UpsertCollection(ctx, &Collection{ID: "c1", Title: "Hills", Slug: "hills"}))
	require.NoError(t, store.LinkPhotoToCollection(ctx, "p1", "c1", time.Now()))

	// Re-syncing the photo must not cascade the membership away.
	require.NoError(t, store.UpsertPhoto(ctx, testPhoto("p1")))

	var count int64
	store.db.Model(&PhotoCollection{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLinkIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPhoto(ctx, testPhoto("p1")))
	require.NoError(t, store.UpsertCollection(ctx, &Collection{ID: "c1", Title: "Hills", Slug: "hills"}))

	addedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.LinkPhotoToCollection(ctx, "p1", "c1", addedAt))
	require.NoError(t, store.LinkPhotoToCollection(ctx, "p1", "c1", addedAt))

	var count int64
	store.db.Model(&PhotoCollection{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLinkToMissingPhotoIsReferential(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertCollection(ctx, &Collection{ID: "c1", Title: "Hills", Slug: "hills"}))

	err := store.LinkPhotoToCollection(ctx, "ghost", "c1", time.Now())
	require.Error(t, err)
	assert.Equal(t, errs.KindReferential, errs.KindOf(err))
}

func TestLinkToMissingCollectionIsReferential(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPhoto(ctx, testPhoto("p1")))

	err := store.LinkPhotoToCollection(ctx, "p1", "ghost", time.Now())
	require.Error(t, err)
	assert.Equal(t, errs.KindReferential, errs.KindOf(err))
}

func TestGetPhotoMissingReturnsNil(t *testing.T) {
	store := openTestStore(t)

	photo, err := store.GetPhoto(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, photo)

	collection, err := store.GetCollection(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, collection)
}

func TestHasPhoto(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ok, err := store.HasPhoto(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.UpsertPhoto(ctx, testPhoto("p1")))

	ok, err = store.HasPhoto(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMostViewedPhotoIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, p := range []struct {
		id    string
		views int64
	}{{"low", 10}, {"high", 1000}, {"mid", 500}} {
		photo := testPhoto(p.id)
		photo.Views = p.views
		require.NoError(t, store.UpsertPhoto(ctx, photo))
	}

	ids, err := store.MostViewedPhotoIDs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "mid"}, ids)
}

func TestSyncRunHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	last, err := store.LastSyncRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	first := &SyncRun{StartedAt: time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC), Complete: true, PhotosUpserted: 12}
	second := &SyncRun{StartedAt: time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC), Complete: false, PhotosUpserted: 3}
	require.NoError(t, store.RecordSyncRun(ctx, first))
	require.NoError(t, store.RecordSyncRun(ctx, second))

	last, err = store.LastSyncRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, second.StartedAt.Unix(), last.StartedAt.Unix())
	assert.False(t, last.Complete)
}

func TestPrunePhotos(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertPhoto(ctx, testPhoto("keep")))
	require.NoError(t, store.UpsertPhoto(ctx, testPhoto("stale")))
	require.NoError(t, store.UpsertCollection(ctx, &Collection{ID: "c1", Title: "Hills", Slug: "hills"}))
	require.NoError(t, store.LinkPhotoToCollection(ctx, "stale", "c1", time.Now()))

	// An empty keep list must not wipe the table.
	n, err := store.PrunePhotosNotIn(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.PrunePhotosNotIn(ctx, []string{"keep"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	gone, err := store.GetPhoto(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Cascade removed the membership and the trigger removed the index
	// entry.
	var links int64
	store.db.Model(&PhotoCollection{}).Count(&links)
	assert.Zero(t, links)

	results, _, err := store.SearchPhotos(ctx, "ridge", "", OrderPopular, 1, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep", results[0].ID)
}
