package routing

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/sync/singleflight"

	"github.com/lumenfolio/portfolio-api/pkg/database"
	"github.com/lumenfolio/portfolio-api/pkg/sync"
	"github.com/lumenfolio/portfolio-api/pkg/unsplash"
)

// Deps are the collaborators the handlers read from. They are passed in
// explicitly; nothing here reaches for a global.
type Deps struct {
	Store  *database.Store
	Runner *sync.Runner
	Remote *unsplash.Client
}

type PlainOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type PhotoListInput struct {
	Order   string `query:"order" enum:"newest,oldest,popular" default:"popular" doc:"Sort order"`
	Page    int    `query:"page" default:"1" minimum:"1" doc:"Page number"`
	PerPage int    `query:"per_page" default:"30" minimum:"1" maximum:"100" doc:"Photos per page"`
}

type PhotoListOutput struct {
	Body struct {
		Photos  []database.Photo `json:"photos"`
		Page    int              `json:"page"`
		PerPage int              `json:"per_page"`
		HasMore bool             `json:"has_more"`
	}
}

type PhotoInput struct {
	ID string `path:"id" doc:"Photo identifier"`
}

type PhotoOutput struct {
	Body database.Photo
}

type SearchInput struct {
	Query      string `query:"q" required:"true" doc:"Matches title, description, tags, location and photographer fields; terms are ANDed"`
	Collection string `query:"collection" doc:"Restrict matches to one collection"`
	Order      string `query:"order" enum:"newest,oldest,popular" default:"popular" doc:"Sort order"`
	Page       int    `query:"page" default:"1" minimum:"1" doc:"Page number"`
	PerPage    int    `query:"per_page" default:"30" minimum:"1" maximum:"100" doc:"Photos per page"`
}

type DownloadOutput struct {
	Body struct {
		Success bool   `json:"success"`
		URL     string `json:"url"`
	}
}

type CollectionsOutput struct {
	Body struct {
		Collections []database.Collection `json:"collections"`
	}
}

type CollectionPhotosInput struct {
	ID      string `path:"id" doc:"Collection identifier"`
	Order   string `query:"order" enum:"newest,oldest,popular" default:"newest" doc:"Sort order"`
	Page    int    `query:"page" default:"1" minimum:"1" doc:"Page number"`
	PerPage int    `query:"per_page" default:"30" minimum:"1" maximum:"100" doc:"Photos per page"`
}

type StatsOutput struct {
	Body database.CachedStats
}

type SyncStatusOutput struct {
	Body struct {
		Status  sync.StatusSnapshot `json:"status"`
		LastRun *database.SyncRun   `json:"lastRun,omitempty"`
	}
}

type SyncTriggerOutput struct {
	Body struct {
		Started bool `json:"started"`
	}
}

func Setup(api huma.API, deps Deps) {
	api.UseMiddleware(authMiddleware(api))

	// Concurrent registrations for the same photo collapse into one
	// remote call.
	var downloads singleflight.Group

	huma.Register(api, huma.Operation{
		OperationID: "HealthCheck",
		Method:      "GET",
		Path:        "/healthz",
		Summary:     "Health check",
		Description: "Check if the API and its store are reachable",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*PlainOutput, error) {
		if err := deps.Store.Ping(); err != nil {
			return nil, huma.Error503ServiceUnavailable("store unreachable", err)
		}
		return &PlainOutput{
			ContentType: "text/plain",
			Body:        []byte("OK"),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ListPhotos",
		Method:      "GET",
		Path:        "/v1/photos",
		Summary:     "List photos",
		Description: "List the mirrored photos, paginated and sorted",
		Tags:        []string{"Photos"},
	}, func(ctx context.Context, input *PhotoListInput) (*PhotoListOutput, error) {
		photos, hasMore, err := deps.Store.ListPhotos(ctx, database.Order(input.Order), input.Page, input.PerPage)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list photos", err)
		}
		resp := &PhotoListOutput{}
		resp.Body.Photos = photos
		resp.Body.Page = input.Page
		resp.Body.PerPage = input.PerPage
		resp.Body.HasMore = hasMore
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "SearchPhotos",
		Method:      "GET",
		Path:        "/v1/photos/search",
		Summary:     "Search photos",
		Description: "Full-text search over the mirrored photos",
		Tags:        []string{"Photos"},
	}, func(ctx context.Context, input *SearchInput) (*PhotoListOutput, error) {
		photos, hasMore, err := deps.Store.SearchPhotos(ctx, input.Query, input.Collection, database.Order(input.Order), input.Page, input.PerPage)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to search photos", err)
		}
		resp := &PhotoListOutput{}
		resp.Body.Photos = photos
		resp.Body.Page = input.Page
		resp.Body.PerPage = input.PerPage
		resp.Body.HasMore = hasMore
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "GetPhoto",
		Method:      "GET",
		Path:        "/v1/photos/{id}",
		Summary:     "Get photo",
		Description: "Get one photo with every stored field",
		Tags:        []string{"Photos"},
	}, func(ctx context.Context, input *PhotoInput) (*PhotoOutput, error) {
		photo, err := deps.Store.GetPhoto(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to get photo", err)
		}
		if photo == nil {
			return nil, huma.Error404NotFound("photo not found")
		}
		return &PhotoOutput{Body: *photo}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "RegisterDownload",
		Method:      "POST",
		Path:        "/v1/photos/{id}/download",
		Summary:     "Register a download",
		Description: "Report a download to the remote service, as its guidelines require, and return the file URL",
		Tags:        []string{"Photos"},
	}, func(ctx context.Context, input *PhotoInput) (*DownloadOutput, error) {
		photo, err := deps.Store.GetPhoto(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to get photo", err)
		}
		if photo == nil {
			return nil, huma.Error404NotFound("photo not found")
		}

		_, err, _ = downloads.Do(photo.ID, func() (any, error) {
			return nil, deps.Remote.TriggerDownload(ctx, photo.DownloadLocation)
		})
		if err != nil {
			return nil, huma.Error502BadGateway("failed to register download", err)
		}

		resp := &DownloadOutput{}
		resp.Body.Success = true
		resp.Body.URL = photo.URLFull
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ListCollections",
		Method:      "GET",
		Path:        "/v1/collections",
		Summary:     "List collections",
		Description: "List the mirrored collections with their cover photos",
		Tags:        []string{"Collections"},
	}, func(ctx context.Context, input *struct{}) (*CollectionsOutput, error) {
		collections, err := deps.Store.ListCollections(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list collections", err)
		}
		resp := &CollectionsOutput{}
		resp.Body.Collections = collections
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ListCollectionPhotos",
		Method:      "GET",
		Path:        "/v1/collections/{id}/photos",
		Summary:     "List collection photos",
		Description: "List the photos of one collection, paginated and sorted",
		Tags:        []string{"Collections"},
	}, func(ctx context.Context, input *CollectionPhotosInput) (*PhotoListOutput, error) {
		collection, err := deps.Store.GetCollection(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to get collection", err)
		}
		if collection == nil {
			return nil, huma.Error404NotFound("collection not found")
		}

		photos, hasMore, err := deps.Store.ListCollectionPhotos(ctx, input.ID, database.Order(input.Order), input.Page, input.PerPage)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list collection photos", err)
		}
		resp := &PhotoListOutput{}
		resp.Body.Photos = photos
		resp.Body.Page = input.Page
		resp.Body.PerPage = input.PerPage
		resp.Body.HasMore = hasMore
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "GetStatistics",
		Method:      "GET",
		Path:        "/v1/statistics",
		Summary:     "Get statistics",
		Description: "Get aggregate statistics about the mirrored portfolio",
		Tags:        []string{"Statistics"},
	}, func(ctx context.Context, input *struct{}) (*StatsOutput, error) {
		stats := deps.Store.GetCachedStats()
		if stats == nil {
			go deps.Store.ComputeAndCacheStats(false)
			return nil, huma.Error503ServiceUnavailable("statistics are being computed, please retry later")
		}
		return &StatsOutput{Body: *stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "GetSyncStatus",
		Method:      "GET",
		Path:        "/v1/statistics/sync",
		Summary:     "Get sync status",
		Description: "Get the active run's progress and the last recorded run",
		Tags:        []string{"Statistics"},
	}, func(ctx context.Context, input *struct{}) (*SyncStatusOutput, error) {
		last, err := deps.Store.LastSyncRun(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load sync history", err)
		}
		resp := &SyncStatusOutput{}
		resp.Body.Status = deps.Runner.Status()
		resp.Body.LastRun = last
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "TriggerSync",
		Method:        "POST",
		Path:          "/v1/sync",
		Summary:       "Trigger a sync",
		Description:   "Start a synchronization run in the background",
		Tags:          []string{"Sync"},
		DefaultStatus: http.StatusAccepted,
		Security: []map[string][]string{
			{"bearerAuth": {}},
		},
	}, func(ctx context.Context, input *struct{}) (*SyncTriggerOutput, error) {
		if deps.Runner.Running() {
			return nil, huma.Error409Conflict("a synchronization run is already active")
		}
		go func() {
			// The runner reports its own outcome; a lost race with
			// another trigger needs no handling.
			_, _ = deps.Runner.RunOnce(context.Background())
		}()

		resp := &SyncTriggerOutput{}
		resp.Body.Started = true
		return resp, nil
	})
}
