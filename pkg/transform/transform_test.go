package transform

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenfolio/portfolio-api/pkg/database"
	"github.com/lumenfolio/portfolio-api/pkg/errs"
	"github.com/lumenfolio/portfolio-api/pkg/unsplash"
)

var syncedAt = time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)

func testCore(id string) unsplash.PhotoCore {
	core := unsplash.PhotoCore{
		ID:             id,
		CreatedAt:      "2024-03-01T10:00:00Z",
		UpdatedAt:      "2024-03-02T11:30:00Z",
		Width:          4000,
		Height:         3000,
		Color:          "#262626",
		BlurHash:       "LEHV6nWB2yk8",
		Description:    "Dawn over the ridge",
		AltDescription: "a mountain at sunrise",
		Likes:          42,
		Tags: []unsplash.Tag{
			{Title: "mountain"},
			{Title: ""},
			{Title: "sunrise"},
		},
	}
	core.URLs.Raw = "https://img/raw"
	core.URLs.Full = "https://img/full"
	core.URLs.Regular = "https://img/regular"
	core.URLs.Small = "https://img/small"
	core.URLs.Thumb = "https://img/thumb"
	core.Links.HTML = "https://unsplash.com/photos/" + id
	core.Links.DownloadLocation = "https://api.unsplash.com/photos/" + id + "/download"
	core.User.Name = "Jo Silva"
	core.User.Username = "josilva"
	core.User.ProfileImage.Large = "https://img/avatar"
	return core
}

func TestBulkPhoto(t *testing.T) {
	rec := &unsplash.BulkPhotoRecord{PhotoCore: testCore("p1")}
	rec.Statistics = &unsplash.Statistics{}
	rec.Statistics.Views.Total = 1500
	rec.Statistics.Downloads.Total = 80

	photo, err := BulkPhoto(rec, syncedAt)
	require.NoError(t, err)

	assert.Equal(t, "p1", photo.ID)
	assert.Equal(t, "Dawn over the ridge", photo.Title)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), photo.CreatedAt.UTC())
	assert.Equal(t, time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC), photo.UpdatedAt.UTC())
	assert.Equal(t, int64(1500), photo.Views)
	assert.Equal(t, int64(80), photo.Downloads)
	assert.Equal(t, int64(42), photo.Likes)
	assert.Equal(t, "https://img/regular", photo.URLRegular)
	assert.Equal(t, "Jo Silva", photo.PhotographerName)
	assert.Equal(t, "https://unsplash.com/@josilva", photo.PhotographerURL)
	assert.Equal(t, "https://img/avatar", photo.PhotographerAvatar)
	assert.Equal(t, database.Tags{"mountain", "sunrise"}, photo.Tags)
	assert.Equal(t, "https://unsplash.com/photos/p1", photo.UnsplashURL)
	assert.Equal(t, syncedAt, photo.LastSyncedAt)

	// The listing shape never carries EXIF or location.
	assert.Nil(t, photo.ExifMake)
	assert.Nil(t, photo.LocationName)
}

func TestBulkPhotoWithoutStatistics(t *testing.T) {
	rec := &unsplash.BulkPhotoRecord{PhotoCore: testCore("p1")}

	photo, err := BulkPhoto(rec, syncedAt)
	require.NoError(t, err)
	assert.Zero(t, photo.Views)
	assert.Zero(t, photo.Downloads)
	assert.Equal(t, int64(42), photo.Likes)
}

func TestTitleFallbacks(t *testing.T) {
	rec := &unsplash.BulkPhotoRecord{PhotoCore: testCore("p1")}
	rec.Description = "  "
	photo, err := BulkPhoto(rec, syncedAt)
	require.NoError(t, err)
	assert.Equal(t, "a mountain at sunrise", photo.Title)

	rec.AltDescription = ""
	photo, err = BulkPhoto(rec, syncedAt)
	require.NoError(t, err)
	assert.Equal(t, "Photo by Jo Silva", photo.Title)

	rec.User.Name = ""
	photo, err = BulkPhoto(rec, syncedAt)
	require.NoError(t, err)
	assert.Empty(t, photo.Title)
}

func TestPhotographerURLNeedsUsername(t *testing.T) {
	rec := &unsplash.BulkPhotoRecord{PhotoCore: testCore("p1")}
	rec.User.Username = ""

	photo, err := BulkPhoto(rec, syncedAt)
	require.NoError(t, err)
	assert.Empty(t, photo.PhotographerURL)
}

func TestDetailPhoto(t *testing.T) {
	lat, lng := 40.35, -7.57
	rec := &unsplash.DetailPhotoRecord{PhotoCore: testCore("p1"), Downloads: 90}
	rec.Exif = &unsplash.Exif{
		Make:         "Canon",
		Model:        "EOS R5",
		ExposureTime: "1/250",
		Aperture:     "2.8",
		FocalLength:  "35.0",
		ISO:          200,
	}
	rec.Location = &unsplash.Location{Name: "Serra da Estrela", Country: "Portugal"}
	rec.Location.Position.Latitude = &lat
	rec.Location.Position.Longitude = &lng

	photo, err := DetailPhoto(rec, syncedAt)
	require.NoError(t, err)

	assert.Equal(t, int64(90), photo.Downloads)
	require.NotNil(t, photo.ExifMake)
	assert.Equal(t, "Canon", *photo.ExifMake)
	require.NotNil(t, photo.ExifISO)
	assert.Equal(t, "200", *photo.ExifISO)
	require.NotNil(t, photo.LocationName)
	assert.Equal(t, "Serra da Estrela", *photo.LocationName)
	assert.Nil(t, photo.LocationCity)
	require.NotNil(t, photo.LocationLatitude)
	assert.InDelta(t, 40.35, *photo.LocationLatitude, 0.001)
}

func TestDetailPhotoPartialExif(t *testing.T) {
	rec := &unsplash.DetailPhotoRecord{PhotoCore: testCore("p1")}
	rec.Exif = &unsplash.Exif{Model: "X100V"}

	photo, err := DetailPhoto(rec, syncedAt)
	require.NoError(t, err)

	assert.Nil(t, photo.ExifMake)
	require.NotNil(t, photo.ExifModel)
	assert.Equal(t, "X100V", *photo.ExifModel)
	// ISO zero means the camera did not report one.
	assert.Nil(t, photo.ExifISO)
}

func TestDetailPhotoWithoutGroups(t *testing.T) {
	rec := &unsplash.DetailPhotoRecord{PhotoCore: testCore("p1")}

	photo, err := DetailPhoto(rec, syncedAt)
	require.NoError(t, err)

	assert.Nil(t, photo.ExifMake)
	assert.Nil(t, photo.ExifModel)
	assert.Nil(t, photo.ExifISO)
	assert.Nil(t, photo.LocationName)
	assert.Nil(t, photo.LocationLatitude)
	assert.False(t, photo.Enriched())
}

func TestCollectionPhoto(t *testing.T) {
	rec := &unsplash.CollectionPhotoRecord{PhotoCore: testCore("p1")}

	photo, err := CollectionPhoto(rec, syncedAt)
	require.NoError(t, err)
	assert.Equal(t, "p1", photo.ID)
	assert.Zero(t, photo.Views)
	assert.Nil(t, photo.ExifMake)
}

func TestCollection(t *testing.T) {
	payload := `{
		"id": "c1",
		"title": "Valência 2024",
		"description": "A spring trip",
		"published_at": "2024-03-01T10:00:00Z",
		"updated_at": "2024-06-01T08:00:00Z",
		"total_photos": 12,
		"cover_photo": {"id": "p9", "urls": {"small": "https://img/p9/small"}}
	}`
	var rec unsplash.CollectionRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))

	collection, err := Collection(&rec, syncedAt)
	require.NoError(t, err)

	assert.Equal(t, "c1", collection.ID)
	assert.Equal(t, "valencia-2024", collection.Slug)
	assert.Equal(t, 12, collection.TotalPhotos)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), collection.UpdatedAt.UTC())
	assert.Equal(t, "p9", collection.CoverPhotoID)
	assert.Equal(t, "https://img/p9/small", collection.CoverPhotoURL)
	assert.Equal(t, syncedAt, collection.LastSyncedAt)
}

func TestCollectionSlugFallsBackToID(t *testing.T) {
	rec := &unsplash.CollectionRecord{ID: "c1", Title: "!!!"}

	collection, err := Collection(rec, syncedAt)
	require.NoError(t, err)
	assert.Equal(t, "c1", collection.Slug)
}

func TestCollectionWithoutCover(t *testing.T) {
	rec := &unsplash.CollectionRecord{ID: "c1", Title: "Hills"}

	collection, err := Collection(rec, syncedAt)
	require.NoError(t, err)
	assert.Empty(t, collection.CoverPhotoID)
	assert.Empty(t, collection.CoverPhotoURL)
}

func TestTransformRejectsBadRecords(t *testing.T) {
	_, err := BulkPhoto(nil, syncedAt)
	assert.Equal(t, errs.KindTransform, errs.KindOf(err))

	_, err = BulkPhoto(&unsplash.BulkPhotoRecord{}, syncedAt)
	assert.Equal(t, errs.KindTransform, errs.KindOf(err))

	rec := &unsplash.BulkPhotoRecord{PhotoCore: testCore("p1")}
	rec.CreatedAt = "yesterday-ish"
	_, err = BulkPhoto(rec, syncedAt)
	assert.Equal(t, errs.KindTransform, errs.KindOf(err))

	_, err = Collection(nil, syncedAt)
	assert.Equal(t, errs.KindTransform, errs.KindOf(err))

	_, err = Collection(&unsplash.CollectionRecord{Title: "No id"}, syncedAt)
	assert.Equal(t, errs.KindTransform, errs.KindOf(err))
}

func TestMissingTimestampsAreZero(t *testing.T) {
	rec := &unsplash.BulkPhotoRecord{PhotoCore: testCore("p1")}
	rec.CreatedAt = ""
	rec.UpdatedAt = ""

	photo, err := BulkPhoto(rec, syncedAt)
	require.NoError(t, err)
	assert.True(t, photo.CreatedAt.IsZero())
	assert.True(t, photo.UpdatedAt.IsZero())
}

func TestAddedAt(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	core := testCore("p1")
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), AddedAt(&core, now).UTC())

	core.CreatedAt = ""
	assert.Equal(t, now, AddedAt(&core, now))

	core.CreatedAt = "not-a-time"
	assert.Equal(t, now, AddedAt(&core, now))

	assert.Equal(t, now, AddedAt(nil, now))
}
