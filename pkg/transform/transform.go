// Package transform maps remote payloads onto local rows. Every
// function is pure: no I/O, no clock reads, errors instead of panics.
// A field the source omits becomes NULL (or zero for counters), never a
// placeholder string.
package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lumenfolio/portfolio-api/pkg/database"
	"github.com/lumenfolio/portfolio-api/pkg/errs"
	"github.com/lumenfolio/portfolio-api/pkg/slug"
	"github.com/lumenfolio/portfolio-api/pkg/unsplash"
)

// BulkPhoto maps a listing payload onto a photo row. Statistics ride
// along when the remote included them; without them the counters stay
// at zero rather than NULL so ordering by views never needs a NULL
// branch.
func BulkPhoto(rec *unsplash.BulkPhotoRecord, syncedAt time.Time) (*database.Photo, error) {
	if rec == nil {
		return nil, errs.Transform("transform.BulkPhoto", "nil record", nil)
	}
	photo, err := fromCore(&rec.PhotoCore, syncedAt, "transform.BulkPhoto")
	if err != nil {
		return nil, err
	}
	if rec.Statistics != nil {
		photo.Views = rec.Statistics.Views.Total
		photo.Downloads = rec.Statistics.Downloads.Total
	}
	return photo, nil
}

// DetailPhoto maps a detail payload onto a photo row, including the
// EXIF and location groups. Either group maps to NULL as a whole when
// the payload omits it.
func DetailPhoto(rec *unsplash.DetailPhotoRecord, syncedAt time.Time) (*database.Photo, error) {
	if rec == nil {
		return nil, errs.Transform("transform.DetailPhoto", "nil record", nil)
	}
	photo, err := fromCore(&rec.PhotoCore, syncedAt, "transform.DetailPhoto")
	if err != nil {
		return nil, err
	}
	photo.Downloads = rec.Downloads

	if exif := rec.Exif; exif != nil {
		photo.ExifMake = strPtr(exif.Make)
		photo.ExifModel = strPtr(exif.Model)
		photo.ExifExposureTime = strPtr(exif.ExposureTime)
		photo.ExifAperture = strPtr(exif.Aperture)
		photo.ExifFocalLength = strPtr(exif.FocalLength)
		if exif.ISO != 0 {
			iso := strconv.Itoa(exif.ISO)
			photo.ExifISO = &iso
		}
	}
	if loc := rec.Location; loc != nil {
		photo.LocationName = strPtr(loc.Name)
		photo.LocationCity = strPtr(loc.City)
		photo.LocationCountry = strPtr(loc.Country)
		photo.LocationLatitude = loc.Position.Latitude
		photo.LocationLongitude = loc.Position.Longitude
	}
	return photo, nil
}

// CollectionPhoto maps a collection-membership payload onto a photo
// row. The payload is the bare core shape, so the row carries zero
// counters until a later bulk pass refreshes it.
func CollectionPhoto(rec *unsplash.CollectionPhotoRecord, syncedAt time.Time) (*database.Photo, error) {
	if rec == nil {
		return nil, errs.Transform("transform.CollectionPhoto", "nil record", nil)
	}
	return fromCore(&rec.PhotoCore, syncedAt, "transform.CollectionPhoto")
}

// Collection maps a collection payload onto a collection row. The slug
// is derived locally from the title; when the title yields nothing the
// remote id stands in so the unique index never sees an empty slug.
func Collection(rec *unsplash.CollectionRecord, syncedAt time.Time) (*database.Collection, error) {
	if rec == nil {
		return nil, errs.Transform("transform.Collection", "nil record", nil)
	}
	if rec.ID == "" {
		return nil, errs.Transform("transform.Collection", "record has no id", nil)
	}

	publishedAt, err := parseTime(rec.PublishedAt, "transform.Collection", "published_at")
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(rec.UpdatedAt, "transform.Collection", "updated_at")
	if err != nil {
		return nil, err
	}

	s := slug.Make(rec.Title)
	if s == "" {
		s = rec.ID
	}

	collection := &database.Collection{
		ID:           rec.ID,
		Title:        rec.Title,
		Slug:         s,
		Description:  rec.Description,
		TotalPhotos:  rec.TotalPhotos,
		PublishedAt:  publishedAt,
		UpdatedAt:    updatedAt,
		LastSyncedAt: syncedAt,
	}
	if rec.CoverPhoto != nil {
		collection.CoverPhotoID = rec.CoverPhoto.ID
		collection.CoverPhotoURL = rec.CoverPhoto.URLs.Small
	}
	return collection, nil
}

// AddedAt picks the membership timestamp for a photo-collection link:
// the photo's own creation time, or now when that is unknown.
func AddedAt(core *unsplash.PhotoCore, now time.Time) time.Time {
	if core == nil {
		return now
	}
	t, err := time.Parse(time.RFC3339, core.CreatedAt)
	if err != nil {
		return now
	}
	return t
}

func fromCore(core *unsplash.PhotoCore, syncedAt time.Time, op string) (*database.Photo, error) {
	if core.ID == "" {
		return nil, errs.Transform(op, "record has no id", nil)
	}

	createdAt, err := parseTime(core.CreatedAt, op, "created_at")
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(core.UpdatedAt, op, "updated_at")
	if err != nil {
		return nil, err
	}

	return &database.Photo{
		ID:                   core.ID,
		Title:                title(core),
		Description:          core.Description,
		AltDescription:       core.AltDescription,
		CreatedAt:            createdAt,
		UpdatedAt:            updatedAt,
		Width:                core.Width,
		Height:               core.Height,
		Color:                core.Color,
		BlurHash:             core.BlurHash,
		Likes:                core.Likes,
		URLRaw:               core.URLs.Raw,
		URLFull:              core.URLs.Full,
		URLRegular:           core.URLs.Regular,
		URLSmall:             core.URLs.Small,
		URLThumb:             core.URLs.Thumb,
		PhotographerName:     core.User.Name,
		PhotographerUsername: core.User.Username,
		PhotographerURL:      photographerURL(core.User.Username),
		PhotographerAvatar:   core.User.ProfileImage.Large,
		Tags:                 tagTitles(core.Tags),
		UnsplashURL:          core.Links.HTML,
		DownloadLocation:     core.Links.DownloadLocation,
		LastSyncedAt:         syncedAt,
	}, nil
}

// title picks a display title: description first, then the alt text,
// then an attribution line built from the photographer's name.
func title(core *unsplash.PhotoCore) string {
	if t := strings.TrimSpace(core.Description); t != "" {
		return t
	}
	if t := strings.TrimSpace(core.AltDescription); t != "" {
		return t
	}
	if core.User.Name == "" {
		return ""
	}
	return "Photo by " + core.User.Name
}

func photographerURL(username string) string {
	if username == "" {
		return ""
	}
	return "https://unsplash.com/@" + username
}

func tagTitles(tags []unsplash.Tag) database.Tags {
	titles := make(database.Tags, 0, len(tags))
	for _, tag := range tags {
		if tag.Title != "" {
			titles = append(titles, tag.Title)
		}
	}
	return titles
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseTime reads an RFC 3339 timestamp. Absent maps to the zero time;
// present but unreadable is a transform error, not a silent zero.
func parseTime(value, op, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errs.Transform(op, fmt.Sprintf("unreadable %s %q", field, value), err)
	}
	return t, nil
}
