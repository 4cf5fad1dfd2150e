package database

import (
	"context"
	"fmt"
)

// Order selects a photo listing's sort.
type Order string

const (
	OrderNewest  Order = "newest"
	OrderOldest  Order = "oldest"
	OrderPopular Order = "popular"
)

// clause maps the order onto a whitelisted ORDER BY expression. Unknown
// values fall back to popular.
func (o Order) clause() string {
	switch o {
	case OrderNewest:
		return "photos.created_at DESC"
	case OrderOldest:
		return "photos.created_at ASC"
	default:
		return "photos.views DESC, photos.created_at DESC"
	}
}

// page normalizes pagination input and returns the offset. Listings
// fetch one row beyond the page to learn whether more exist.
func page(pageNum, perPage int) (offset, limit int) {
	if pageNum < 1 {
		pageNum = 1
	}
	if perPage < 1 {
		perPage = 30
	}
	return (pageNum - 1) * perPage, perPage
}

// ListPhotos returns one page of photos plus a flag that another page
// exists.
func (s *Store) ListPhotos(ctx context.Context, order Order, pageNum, perPage int) ([]Photo, bool, error) {
	offset, limit := page(pageNum, perPage)

	var photos []Photo
	err := s.db.WithContext(ctx).
		Order(order.clause()).
		Limit(limit + 1).
		Offset(offset).
		Find(&photos).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to list photos: %w", err)
	}
	return trimPage(photos, limit)
}

// ListCollections returns every collection, most recently updated
// first. A portfolio has few, so collections are not paginated.
func (s *Store) ListCollections(ctx context.Context) ([]Collection, error) {
	var collections []Collection
	err := s.db.WithContext(ctx).
		Order("updated_at DESC").
		Find(&collections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return collections, nil
}

// ListCollectionPhotos returns one page of a collection's members plus
// a flag that another page exists.
func (s *Store) ListCollectionPhotos(ctx context.Context, collectionID string, order Order, pageNum, perPage int) ([]Photo, bool, error) {
	offset, limit := page(pageNum, perPage)

	var photos []Photo
	err := s.db.WithContext(ctx).
		Select("photos.*").
		Joins("JOIN photo_collections ON photo_collections.photo_id = photos.id").
		Where("photo_collections.collection_id = ?", collectionID).
		Order(order.clause()).
		Limit(limit + 1).
		Offset(offset).
		Find(&photos).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to list photos of collection %s: %w", collectionID, err)
	}
	return trimPage(photos, limit)
}

// SearchPhotos matches the search index. Matching is case-folded,
// stemmed and whole-token; every word of the query must match. Results
// come back in the requested order, not by match rank. An empty or
// symbol-only query matches nothing.
func (s *Store) SearchPhotos(ctx context.Context, query, collectionID string, order Order, pageNum, perPage int) ([]Photo, bool, error) {
	match := sanitizeMatch(query)
	if match == "" {
		return []Photo{}, false, nil
	}
	offset, limit := page(pageNum, perPage)

	q := s.db.WithContext(ctx).
		Select("photos.*").
		Joins("JOIN photos_fts ON photos_fts.rowid = photos.rowid").
		Where("photos_fts MATCH ?", match)
	if collectionID != "" {
		q = q.
			Joins("JOIN photo_collections ON photo_collections.photo_id = photos.id").
			Where("photo_collections.collection_id = ?", collectionID)
	}

	var photos []Photo
	err := q.
		Order(order.clause()).
		Limit(limit + 1).
		Offset(offset).
		Find(&photos).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to search photos: %w", err)
	}
	return trimPage(photos, limit)
}

func trimPage(photos []Photo, limit int) ([]Photo, bool, error) {
	if photos == nil {
		photos = []Photo{}
	}
	hasMore := len(photos) > limit
	if hasMore {
		photos = photos[:limit]
	}
	return photos, hasMore, nil
}
