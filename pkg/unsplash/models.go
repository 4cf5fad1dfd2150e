package unsplash

// The remote returns three distinct photo shapes depending on the
// endpoint. Each gets its own record type so a caller can never feed a
// listing payload into code expecting detail fields; the shared core is
// embedded.

// PhotoURLs carries the size variants of one photo.
type PhotoURLs struct {
	Raw     string `json:"raw"`
	Full    string `json:"full"`
	Regular string `json:"regular"`
	Small   string `json:"small"`
	Thumb   string `json:"thumb"`
}

// PhotoLinks carries the photo page and the download callback endpoints.
type PhotoLinks struct {
	HTML             string `json:"html"`
	Download         string `json:"download"`
	DownloadLocation string `json:"download_location"`
}

// User is the photographer object attached to every photo shape.
type User struct {
	Name         string `json:"name"`
	Username     string `json:"username"`
	ProfileImage struct {
		Large string `json:"large"`
	} `json:"profile_image"`
}

// Tag is one entry of a photo's tag list.
type Tag struct {
	Title string `json:"title"`
}

// StatTotal wraps the remote's nested counter objects.
type StatTotal struct {
	Total int64 `json:"total"`
}

// Statistics is present on listing responses requested with stats=true.
type Statistics struct {
	Views     StatTotal `json:"views"`
	Downloads StatTotal `json:"downloads"`
}

// Exif is the consolidated camera block of the detail shape. The remote
// returns it whole or not at all.
type Exif struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	ExposureTime string `json:"exposure_time"`
	Aperture     string `json:"aperture"`
	FocalLength  string `json:"focal_length"`
	ISO          int    `json:"iso"`
}

// Location is the consolidated place block of the detail shape.
type Location struct {
	Name     string `json:"name"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Position struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"position"`
}

// PhotoCore holds the fields every photo shape carries. Timestamps stay
// raw strings here; parsing them is the transform's job.
type PhotoCore struct {
	ID             string     `json:"id"`
	CreatedAt      string     `json:"created_at"`
	UpdatedAt      string     `json:"updated_at"`
	Width          int        `json:"width"`
	Height         int        `json:"height"`
	Color          string     `json:"color"`
	BlurHash       string     `json:"blur_hash"`
	Description    string     `json:"description"`
	AltDescription string     `json:"alt_description"`
	Likes          int64      `json:"likes"`
	URLs           PhotoURLs  `json:"urls"`
	Links          PhotoLinks `json:"links"`
	User           User       `json:"user"`
	Tags           []Tag      `json:"tags"`
}

// BulkPhotoRecord is the account listing shape: statistics included when
// requested, never EXIF or location.
type BulkPhotoRecord struct {
	PhotoCore
	Statistics *Statistics `json:"statistics"`
}

// DetailPhotoRecord is the single-photo shape: full EXIF and location
// blocks, plus a flat downloads counter instead of nested statistics.
type DetailPhotoRecord struct {
	PhotoCore
	Downloads int64     `json:"downloads"`
	Exif      *Exif     `json:"exif"`
	Location  *Location `json:"location"`
}

// CollectionPhotoRecord is the membership listing shape: core fields
// only, no statistics, no EXIF.
type CollectionPhotoRecord struct {
	PhotoCore
}

// CollectionRecord is the collection listing shape.
type CollectionRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PublishedAt string `json:"published_at"`
	UpdatedAt   string `json:"updated_at"`
	TotalPhotos int    `json:"total_photos"`
	CoverPhoto  *struct {
		ID   string    `json:"id"`
		URLs PhotoURLs `json:"urls"`
	} `json:"cover_photo"`
}
