package database

import (
	"time"
)

// Photo is the canonical row for one remote photo. CreatedAt and
// UpdatedAt carry the remote's timestamps, so GORM's automatic stamping
// is switched off on them; LastSyncedAt is the local clock.
type Photo struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	AltDescription string    `json:"alt_description"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime:false;index:idx_photos_created_at"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`

	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Color    string `json:"color"`
	BlurHash string `json:"blur_hash"`

	Views     int64 `json:"views" gorm:"not null;default:0;index:idx_photos_views"`
	Downloads int64 `json:"downloads" gorm:"not null;default:0"`
	Likes     int64 `json:"likes" gorm:"not null;default:0"`

	URLRaw     string `json:"url_raw"`
	URLFull    string `json:"url_full"`
	URLRegular string `json:"url_regular"`
	URLSmall   string `json:"url_small"`
	URLThumb   string `json:"url_thumb"`

	PhotographerName     string `json:"photographer_name"`
	PhotographerUsername string `json:"photographer_username"`
	PhotographerURL      string `json:"photographer_url"`
	PhotographerAvatar   string `json:"photographer_avatar"`

	// Nullable as a group: populated by enrichment or not at all.
	LocationName      *string  `json:"location_name"`
	LocationCity      *string  `json:"location_city"`
	LocationCountry   *string  `json:"location_country"`
	LocationLatitude  *float64 `json:"location_latitude"`
	LocationLongitude *float64 `json:"location_longitude"`

	ExifMake         *string `json:"exif_make"`
	ExifModel        *string `json:"exif_model"`
	ExifExposureTime *string `json:"exif_exposure_time"`
	ExifAperture     *string `json:"exif_aperture"`
	ExifFocalLength  *string `json:"exif_focal_length"`
	ExifISO          *string `json:"exif_iso" gorm:"column:exif_iso"`

	Tags Tags `json:"tags" gorm:"type:text"`

	UnsplashURL      string `json:"unsplash_url"`
	DownloadLocation string `json:"download_location"`

	LastSyncedAt time.Time `json:"last_synced_at"`
}

// Enriched reports whether the detail fetch has populated this row.
func (p *Photo) Enriched() bool {
	return p.ExifMake != nil
}

// Collection is one remote collection. The slug is derived from the
// title at transform time and used in public URLs.
type Collection struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug" gorm:"uniqueIndex"`
	Description string    `json:"description"`
	TotalPhotos int       `json:"total_photos"`
	PublishedAt time.Time `json:"published_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime:false;index:idx_collections_updated_at"`

	CoverPhotoID  string `json:"cover_photo_id"`
	CoverPhotoURL string `json:"cover_photo_url"`

	LastSyncedAt time.Time `json:"last_synced_at"`
}

// PhotoCollection links one photo to one collection. The composite key
// makes re-linking on every sync idempotent.
type PhotoCollection struct {
	PhotoID      string    `json:"photo_id" gorm:"primaryKey"`
	CollectionID string    `json:"collection_id" gorm:"primaryKey;index:idx_photo_collections_collection"`
	AddedAt      time.Time `json:"added_at"`

	Photo      Photo      `json:"-" gorm:"foreignKey:PhotoID;constraint:OnDelete:CASCADE"`
	Collection Collection `json:"-" gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE"`
}

// SyncRun is the history row recorded after every orchestrator run.
type SyncRun struct {
	StartedAt  time.Time `json:"started_at" gorm:"primaryKey"`
	FinishedAt time.Time `json:"finished_at"`
	Complete   bool      `json:"complete"`
	Phases     string    `json:"phases"` // completed phases, comma-joined, e.g.: "bulk_fetch,enrichment"

	Budget    int `json:"budget"`
	UnitsUsed int `json:"units_used"`

	PhotosUpserted      int `json:"photos_upserted"`
	PhotosEnriched      int `json:"photos_enriched"`
	CollectionsUpserted int `json:"collections_upserted"`
	Linked              int `json:"linked"`
	Skipped             int `json:"skipped"`
}
