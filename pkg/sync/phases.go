package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/lumenfolio/portfolio-api/pkg/database"
	"github.com/lumenfolio/portfolio-api/pkg/errs"
	"github.com/lumenfolio/portfolio-api/pkg/transform"
	"github.com/lumenfolio/portfolio-api/pkg/unsplash"
)

// run carries the state of one pass through the four phases.
type run struct {
	store   *database.Store
	client  *unsplash.Client
	opts    Options
	status  *Status
	summary *Summary

	// filled by the collections phase, consumed by linking
	collectionIDs []string
}

// execute walks the phases in order. A fatal error aborts the rest of
// the run; everything already upserted stays committed.
func (r *run) execute(ctx context.Context) {
	sequence := []struct {
		name Phase
		fn   func(context.Context) error
	}{
		{PhaseBulkFetch, r.bulkFetch},
		{PhaseEnrichment, r.enrich},
		{PhaseCollections, r.collections},
		{PhaseLinking, r.linking},
	}

	for _, phase := range sequence {
		r.status.setPhase(phase.name)
		if err := phase.fn(ctx); err != nil {
			r.summary.abort(phase.name, err.Error())
			return
		}
		r.summary.completePhase(phase.name)
		r.status.progress(r.summary, r.client.Budget().Used())
	}
}

// callRemote runs one adapter call with bounded retries and backoff.
// Only the transient kind is retried; rate limits, auth rejections and
// missing resources come back on the first attempt.
func (r *run) callRemote(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(uint(r.opts.RetryAttempts)),
		retry.Delay(r.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(errs.IsRetryable),
	)
}

// fatal reports whether err must end the whole run instead of skipping
// the item at hand. A rate limit means the budget is gone, an auth
// rejection will not heal by itself, and a referential failure is a
// phase-ordering bug.
func fatal(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch errs.KindOf(err) {
	case errs.KindRemoteRateLimited, errs.KindRemoteAuth, errs.KindReferential:
		return true
	}
	return false
}

// bulkFetch pages through the account's photos and upserts each one.
// EXIF and location stay null here; the listing shape never carries
// them.
func (r *run) bulkFetch(ctx context.Context) error {
	syncedAt := time.Now().UTC()

	for page := 1; ; page++ {
		var records []unsplash.BulkPhotoRecord
		err := r.callRemote(ctx, func() error {
			var err error
			records, err = r.client.ListUserPhotos(ctx, page, r.opts.PerPage)
			return err
		})
		if err != nil {
			if fatal(err) {
				return err
			}
			// The page stayed unreachable through every retry. Drop
			// the rest of the listing and let the later phases run.
			r.summary.skip(PhaseBulkFetch, fmt.Sprintf("page %d", page), err.Error())
			return nil
		}
		if len(records) == 0 {
			return nil
		}

		for i := range records {
			if r.opts.MaxPhotos > 0 && r.summary.PhotosUpserted >= r.opts.MaxPhotos {
				return nil
			}
			rec := &records[i]
			photo, err := transform.BulkPhoto(rec, syncedAt)
			if err != nil {
				r.summary.skip(PhaseBulkFetch, rec.ID, err.Error())
				continue
			}
			if err := r.store.UpsertPhoto(ctx, photo); err != nil {
				if fatal(err) {
					return err
				}
				r.summary.skip(PhaseBulkFetch, rec.ID, err.Error())
				continue
			}
			r.summary.PhotosUpserted++
		}
		r.status.progress(r.summary, r.client.Budget().Used())

		if len(records) < r.opts.PerPage {
			return nil
		}
	}
}

// enrich fetches full detail for a small fixed subset and writes the
// EXIF and location groups onto rows phase one already created. The
// subset is either configured explicitly or the most viewed photos.
func (r *run) enrich(ctx context.Context) error {
	ids := r.opts.FeaturedIDs
	if len(ids) == 0 {
		if r.opts.EnrichCount <= 0 {
			return nil
		}
		var err error
		ids, err = r.store.MostViewedPhotoIDs(ctx, r.opts.EnrichCount)
		if err != nil {
			return err
		}
	}

	syncedAt := time.Now().UTC()
	for _, id := range ids {
		var rec *unsplash.DetailPhotoRecord
		err := r.callRemote(ctx, func() error {
			var err error
			rec, err = r.client.GetPhotoDetail(ctx, id)
			return err
		})
		if err != nil {
			if fatal(err) {
				return err
			}
			// Deleted upstream, or unreachable after retries.
			r.summary.skip(PhaseEnrichment, id, err.Error())
			continue
		}

		photo, err := transform.DetailPhoto(rec, syncedAt)
		if err != nil {
			r.summary.skip(PhaseEnrichment, id, err.Error())
			continue
		}
		if err := r.store.EnrichPhoto(ctx, photo); err != nil {
			if fatal(err) {
				return err
			}
			r.summary.skip(PhaseEnrichment, id, err.Error())
			continue
		}
		r.summary.PhotosEnriched++
	}
	return nil
}

// collections pages through the account's collections and upserts each
// one, remembering the ids for the linking phase.
func (r *run) collections(ctx context.Context) error {
	syncedAt := time.Now().UTC()

	for page := 1; ; page++ {
		var records []unsplash.CollectionRecord
		err := r.callRemote(ctx, func() error {
			var err error
			records, err = r.client.ListCollections(ctx, page, r.opts.PerPage)
			return err
		})
		if err != nil {
			if fatal(err) {
				return err
			}
			r.summary.skip(PhaseCollections, fmt.Sprintf("page %d", page), err.Error())
			return nil
		}
		if len(records) == 0 {
			return nil
		}

		for i := range records {
			rec := &records[i]
			collection, err := transform.Collection(rec, syncedAt)
			if err != nil {
				r.summary.skip(PhaseCollections, rec.ID, err.Error())
				continue
			}
			if err := r.store.UpsertCollection(ctx, collection); err != nil {
				if fatal(err) {
					return err
				}
				r.summary.skip(PhaseCollections, rec.ID, err.Error())
				continue
			}
			r.summary.CollectionsUpserted++
			r.collectionIDs = append(r.collectionIDs, collection.ID)
		}
		r.status.progress(r.summary, r.client.Budget().Used())

		if len(records) < r.opts.PerPage {
			return nil
		}
	}
}

// linking walks every collection upserted this run and records its
// memberships. Photos the bulk phase never saw get a minimal row first,
// so the junction insert always finds both sides.
func (r *run) linking(ctx context.Context) error {
	for _, collectionID := range r.collectionIDs {
		if err := r.linkCollection(ctx, collectionID); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) linkCollection(ctx context.Context, collectionID string) error {
	syncedAt := time.Now().UTC()
	linked := 0

	for page := 1; ; page++ {
		var records []unsplash.CollectionPhotoRecord
		err := r.callRemote(ctx, func() error {
			var err error
			records, err = r.client.ListCollectionPhotos(ctx, collectionID, page, r.opts.PerPage)
			return err
		})
		if err != nil {
			if fatal(err) {
				return err
			}
			// Give up on this collection's remaining members, move on
			// to the next collection.
			r.summary.skip(PhaseLinking, collectionID, err.Error())
			return nil
		}
		if len(records) == 0 {
			return nil
		}

		for i := range records {
			if r.opts.MaxPerCollection > 0 && linked >= r.opts.MaxPerCollection {
				return nil
			}
			rec := &records[i]
			if err := r.linkOne(ctx, rec, collectionID, syncedAt); err != nil {
				if fatal(err) {
					return err
				}
				r.summary.skip(PhaseLinking, fmt.Sprintf("%s in %s", rec.ID, collectionID), err.Error())
				continue
			}
			linked++
			r.summary.Linked++
		}
		r.status.progress(r.summary, r.client.Budget().Used())

		if len(records) < r.opts.PerPage {
			return nil
		}
	}
}

func (r *run) linkOne(ctx context.Context, rec *unsplash.CollectionPhotoRecord, collectionID string, syncedAt time.Time) error {
	known, err := r.store.HasPhoto(ctx, rec.ID)
	if err != nil {
		return err
	}
	if !known {
		photo, err := transform.CollectionPhoto(rec, syncedAt)
		if err != nil {
			return err
		}
		if err := r.store.UpsertPhoto(ctx, photo); err != nil {
			return err
		}
		r.summary.PhotosUpserted++
	}
	return r.store.LinkPhotoToCollection(ctx, rec.ID, collectionID, transform.AddedAt(&rec.PhotoCore, syncedAt))
}
