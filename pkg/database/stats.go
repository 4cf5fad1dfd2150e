package database

import (
	"sync"
	"time"
)

// CollectionStats aggregates one collection's member counters.
type CollectionStats struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	TotalPhotos    int    `json:"total_photos"`
	TotalViews     int64  `json:"total_views"`
	TotalDownloads int64  `json:"total_downloads"`
	TotalLikes     int64  `json:"total_likes"`
}

// CachedStats holds the cached portfolio statistics.
type CachedStats struct {
	LastSync         string            `json:"lastSync"`
	TotalPhotos      int               `json:"totalPhotos"`
	TotalCollections int               `json:"totalCollections"`
	TotalLinks       int               `json:"totalLinks"`
	EnrichedPhotos   int               `json:"enrichedPhotos"`
	TotalViews       int64             `json:"totalViews"`
	TotalDownloads   int64             `json:"totalDownloads"`
	TotalLikes       int64             `json:"totalLikes"`
	Collections      []CollectionStats `json:"collections"`
}

// statsCache guards the computed statistics of one store.
type statsCache struct {
	mu    sync.RWMutex
	stats *CachedStats
}

// GetCachedStats returns the cached stats if available, nil otherwise.
func (s *Store) GetCachedStats() *CachedStats {
	if !s.stats.mu.TryRLock() {
		return nil
	}
	defer s.stats.mu.RUnlock()

	return s.stats.stats
}

// ComputeAndCacheStats computes the stats from the database and stores
// them in cache. With force false it gives up immediately when another
// computation holds the lock.
func (s *Store) ComputeAndCacheStats(force bool) *CachedStats {
	if force {
		s.stats.mu.Lock()
	} else {
		if !s.stats.mu.TryLock() {
			// Another computation is in progress, return nil to indicate stats are not available
			return nil
		}
	}
	defer s.stats.mu.Unlock()

	stats := &CachedStats{}

	// Get last completed sync date
	var lastRun SyncRun
	err := s.db.Where("complete = ?", true).Order("started_at DESC").First(&lastRun).Error
	if err != nil {
		// never fully synchronized, cannot compute stats
		return nil
	}
	stats.LastSync = lastRun.StartedAt.Format(time.RFC3339)

	var photoCount, collectionCount, linkCount, enrichedCount int64
	s.db.Model(&Photo{}).Count(&photoCount)
	s.db.Model(&Collection{}).Count(&collectionCount)
	s.db.Model(&PhotoCollection{}).Count(&linkCount)
	s.db.Model(&Photo{}).Where("exif_make IS NOT NULL").Count(&enrichedCount)
	stats.TotalPhotos = int(photoCount)
	stats.TotalCollections = int(collectionCount)
	stats.TotalLinks = int(linkCount)
	stats.EnrichedPhotos = int(enrichedCount)

	var totals struct {
		Views     int64
		Downloads int64
		Likes     int64
	}
	s.db.Model(&Photo{}).
		Select("COALESCE(SUM(views), 0) AS views, COALESCE(SUM(downloads), 0) AS downloads, COALESCE(SUM(likes), 0) AS likes").
		Scan(&totals)
	stats.TotalViews = totals.Views
	stats.TotalDownloads = totals.Downloads
	stats.TotalLikes = totals.Likes

	// Per-collection aggregates over linked photos
	s.db.Model(&Collection{}).
		Select(`collections.id, collections.title, collections.total_photos,
			COALESCE(SUM(photos.views), 0) AS total_views,
			COALESCE(SUM(photos.downloads), 0) AS total_downloads,
			COALESCE(SUM(photos.likes), 0) AS total_likes`).
		Joins("LEFT JOIN photo_collections ON photo_collections.collection_id = collections.id").
		Joins("LEFT JOIN photos ON photos.id = photo_collections.photo_id").
		Group("collections.id").
		Order("collections.updated_at DESC").
		Scan(&stats.Collections)

	s.stats.stats = stats
	return s.stats.stats
}

// InvalidateStatsCache marks the cache as invalid so it will be recomputed on next access.
func (s *Store) InvalidateStatsCache() {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()
	s.stats.stats = nil
}

// HasCachedStats returns whether stats are currently cached.
func (s *Store) HasCachedStats() bool {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	return s.stats.stats != nil
}
