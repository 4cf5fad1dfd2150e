package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/lumenfolio/portfolio-api/pkg/errs"
)

// Store owns one SQLite database. Callers construct it explicitly and
// hand it to whoever needs it; there is no package-level instance.
type Store struct {
	db    *gorm.DB
	stats statsCache
}

// Open connects to the database file, configures the pool and brings
// the schema up to date. WAL keeps readers unblocked while the
// synchronizer writes.
func Open(path string) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.New(
			log.Default(),
			logger.Config{
				SlowThreshold:             10 * time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ftsDDL builds the search index: an external-content FTS5 table over
// photos plus the triggers that keep it in step. Trigger and photo
// write share a transaction, so the index can never lag a committed
// row.
var ftsDDL = []string{
	`CREATE VIRTUAL TABLE IF NOT EXISTS photos_fts USING fts5(
		title, description, alt_description, tags,
		location_name, location_city, location_country,
		photographer_name,
		content=photos,
		content_rowid=rowid,
		tokenize="porter unicode61"
	)`,
	`CREATE TRIGGER IF NOT EXISTS photos_fts_after_insert AFTER INSERT ON photos BEGIN
		INSERT INTO photos_fts(rowid, title, description, alt_description, tags, location_name, location_city, location_country, photographer_name)
		VALUES (new.rowid, new.title, new.description, new.alt_description, new.tags, new.location_name, new.location_city, new.location_country, new.photographer_name);
	END`,
	`CREATE TRIGGER IF NOT EXISTS photos_fts_after_delete AFTER DELETE ON photos BEGIN
		INSERT INTO photos_fts(photos_fts, rowid, title, description, alt_description, tags, location_name, location_city, location_country, photographer_name)
		VALUES ('delete', old.rowid, old.title, old.description, old.alt_description, old.tags, old.location_name, old.location_city, old.location_country, old.photographer_name);
	END`,
	`CREATE TRIGGER IF NOT EXISTS photos_fts_after_update AFTER UPDATE ON photos BEGIN
		INSERT INTO photos_fts(photos_fts, rowid, title, description, alt_description, tags, location_name, location_city, location_country, photographer_name)
		VALUES ('delete', old.rowid, old.title, old.description, old.alt_description, old.tags, old.location_name, old.location_city, old.location_country, old.photographer_name);
		INSERT INTO photos_fts(rowid, title, description, alt_description, tags, location_name, location_city, location_country, photographer_name)
		VALUES (new.rowid, new.title, new.description, new.alt_description, new.tags, new.location_name, new.location_city, new.location_country, new.photographer_name);
	END`,
}

// migrate runs automatic migration for all models, then the raw DDL the
// search index needs.
func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&Photo{},
		&Collection{},
		&PhotoCollection{},
		&SyncRun{},
	)
	if err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	for _, ddl := range ftsDDL {
		if err := s.db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("failed to create search index: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying handle for instrumentation plugins.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks the database connection.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// photoBulkColumns are the columns a bulk upsert may assign on
// conflict. The EXIF and location groups stay out of the list: the
// listing shape never carries them, so a re-sync must not wipe what
// enrichment wrote.
var photoBulkColumns = []string{
	"title", "description", "alt_description", "created_at", "updated_at",
	"width", "height", "color", "blur_hash",
	"views", "downloads", "likes",
	"url_raw", "url_full", "url_regular", "url_small", "url_thumb",
	"photographer_name", "photographer_username", "photographer_url", "photographer_avatar",
	"tags", "unsplash_url", "download_location", "last_synced_at",
}

// photoEnrichColumns are the columns an enrichment write may assign:
// the two consolidated groups and the sync timestamps. Statistics stay
// untouched, a detail fetch never regresses what the bulk phase wrote.
var photoEnrichColumns = []string{
	"location_name", "location_city", "location_country", "location_latitude", "location_longitude",
	"exif_make", "exif_model", "exif_exposure_time", "exif_aperture", "exif_focal_length", "exif_iso",
	"updated_at", "last_synced_at",
}

// UpsertPhoto inserts or updates a photo row by id. ON CONFLICT DO
// UPDATE keeps the rowid stable, so membership rows and the search
// index's content_rowid mapping survive re-syncs.
func (s *Store) UpsertPhoto(ctx context.Context, photo *Photo) error {
	if photo == nil {
		return nil
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(photoBulkColumns),
	}).Create(photo).Error; err != nil {
		return fmt.Errorf("failed to upsert photo %s: %w", photo.ID, err)
	}
	return nil
}

// EnrichPhoto writes the EXIF and location groups onto an existing row.
func (s *Store) EnrichPhoto(ctx context.Context, photo *Photo) error {
	if photo == nil {
		return nil
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(photoEnrichColumns),
	}).Create(photo).Error; err != nil {
		return fmt.Errorf("failed to enrich photo %s: %w", photo.ID, err)
	}
	return nil
}

// UpsertCollection inserts or updates a collection row by id.
func (s *Store) UpsertCollection(ctx context.Context, collection *Collection) error {
	if collection == nil {
		return nil
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "slug", "description", "total_photos",
			"published_at", "updated_at",
			"cover_photo_id", "cover_photo_url", "last_synced_at",
		}),
	}).Create(collection).Error; err != nil {
		return fmt.Errorf("failed to upsert collection %s: %w", collection.ID, err)
	}
	return nil
}

// LinkPhotoToCollection records membership. Re-linking an existing pair
// is a no-op. Linking to a missing photo or collection reports a
// referential error, which the synchronizer treats as a bug, not as
// remote weather.
func (s *Store) LinkPhotoToCollection(ctx context.Context, photoID, collectionID string, addedAt time.Time) error {
	link := PhotoCollection{PhotoID: photoID, CollectionID: collectionID, AddedAt: addedAt}

	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
	if err != nil {
		if isForeignKeyViolation(err) {
			return errs.Referential("database.LinkPhotoToCollection",
				fmt.Sprintf("link %s -> %s references a missing row", photoID, collectionID), err)
		}
		return fmt.Errorf("failed to link photo %s to collection %s: %w", photoID, collectionID, err)
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// GetPhoto returns the photo, or (nil, nil) when the id is unknown.
func (s *Store) GetPhoto(ctx context.Context, id string) (*Photo, error) {
	var photo Photo
	err := s.db.WithContext(ctx).First(&photo, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo %s: %w", id, err)
	}
	return &photo, nil
}

// GetCollection returns the collection, or (nil, nil) when the id is
// unknown.
func (s *Store) GetCollection(ctx context.Context, id string) (*Collection, error) {
	var collection Collection
	err := s.db.WithContext(ctx).First(&collection, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", id, err)
	}
	return &collection, nil
}

// HasPhoto reports whether a photo row exists.
func (s *Store) HasPhoto(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Photo{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check photo %s: %w", id, err)
	}
	return count > 0, nil
}

// MostViewedPhotoIDs returns up to n photo ids ordered by view count.
// The synchronizer uses it to pick which photos deserve a detail fetch.
func (s *Store) MostViewedPhotoIDs(ctx context.Context, n int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Photo{}).
		Order("views DESC, created_at DESC").
		Limit(n).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select most viewed photos: %w", err)
	}
	return ids, nil
}

// RecordSyncRun appends one run to the history.
func (s *Store) RecordSyncRun(ctx context.Context, run *SyncRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// LastSyncRun returns the most recent run, or (nil, nil) when nothing
// has ever synced.
func (s *Store) LastSyncRun(ctx context.Context) (*SyncRun, error) {
	var run SyncRun
	err := s.db.WithContext(ctx).Order("started_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last sync run: %w", err)
	}
	return &run, nil
}

// PrunePhotosNotIn deletes photos absent from keep and returns how many
// went. Normal sync runs never delete anything; this is the explicit
// reconciliation pass for rows whose remote counterpart is gone.
// Cascade clears their membership rows, the delete trigger clears their
// index entries. An empty keep list deletes nothing.
func (s *Store) PrunePhotosNotIn(ctx context.Context, keep []string) (int64, error) {
	if len(keep) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id NOT IN ?", keep).Delete(&Photo{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune photos: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PruneCollectionsNotIn deletes collections absent from keep, same
// rules as PrunePhotosNotIn.
func (s *Store) PruneCollectionsNotIn(ctx context.Context, keep []string) (int64, error) {
	if len(keep) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id NOT IN ?", keep).Delete(&Collection{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune collections: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// sanitizeMatch reduces free text to a quoted, implicit-AND FTS5 match
// expression. Quoting keeps user input from reaching the match parser
// as syntax.
func sanitizeMatch(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !isWordRune(r)
	})
	if len(fields) == 0 {
		return ""
	}
	for i, f := range fields {
		fields[i] = `"` + f + `"`
	}
	return strings.Join(fields, " ")
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r >= 0x80:
		// Leave non-ASCII to the unicode61 tokenizer.
		return true
	}
	return false
}
