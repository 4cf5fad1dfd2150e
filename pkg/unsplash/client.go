package unsplash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lumenfolio/portfolio-api/pkg/errs"
)

const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.unsplash.com"

	// DefaultPerPage is the page size the remote caps listings at.
	DefaultPerPage = 30

	defaultTimeout = 10 * time.Second
	acceptVersion  = "v1"
)

// Config describes one client. The sync path passes a fresh Budget per
// run; the serving path leaves it nil.
type Config struct {
	AccessKey string
	Username  string
	BaseURL   string
	Timeout   time.Duration
	Budget    *Budget
}

// Client is a typed wrapper over the remote photo API. It maps every
// failure to a kind and never retries on its own; retry policy belongs
// to the caller.
type Client struct {
	http      *http.Client
	baseURL   string
	accessKey string
	username  string
	budget    *Budget
}

// New creates a client from the config, filling in defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		accessKey: cfg.AccessKey,
		username:  cfg.Username,
		budget:    cfg.Budget,
	}
}

// Budget returns the budget this client spends from, nil when unmetered.
func (c *Client) Budget() *Budget {
	return c.budget
}

// ListUserPhotos fetches one page of the account's photos with
// statistics included. Costs one budget unit.
func (c *Client) ListUserPhotos(ctx context.Context, page, perPage int) ([]BulkPhotoRecord, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("order_by", "latest")
	q.Set("stats", "true")

	var photos []BulkPhotoRecord
	if err := c.get(ctx, "unsplash.ListUserPhotos", "/users/"+c.username+"/photos", q, &photos); err != nil {
		return nil, err
	}
	return photos, nil
}

// GetPhotoDetail fetches the full single-photo payload, the only shape
// carrying EXIF and location. Costs one budget unit.
func (c *Client) GetPhotoDetail(ctx context.Context, id string) (*DetailPhotoRecord, error) {
	var photo DetailPhotoRecord
	if err := c.get(ctx, "unsplash.GetPhotoDetail", "/photos/"+id, nil, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

// ListCollections fetches one page of the account's collections. Costs
// one budget unit.
func (c *Client) ListCollections(ctx context.Context, page, perPage int) ([]CollectionRecord, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var collections []CollectionRecord
	if err := c.get(ctx, "unsplash.ListCollections", "/users/"+c.username+"/collections", q, &collections); err != nil {
		return nil, err
	}
	return collections, nil
}

// ListCollectionPhotos fetches one page of a collection's members. Costs
// one budget unit.
func (c *Client) ListCollectionPhotos(ctx context.Context, collectionID string, page, perPage int) ([]CollectionPhotoRecord, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("order_by", "latest")

	var photos []CollectionPhotoRecord
	if err := c.get(ctx, "unsplash.ListCollectionPhotos", "/collections/"+collectionID+"/photos", q, &photos); err != nil {
		return nil, err
	}
	return photos, nil
}

// TriggerDownload tells the remote a download happened, as its
// guidelines require. The target is the stored download_location URL.
// Fire and forget: the response body is discarded. Costs no budget, the
// call happens on the serving path, not during sync.
func (c *Client) TriggerDownload(ctx context.Context, downloadLocation string) error {
	const op = "unsplash.TriggerDownload"
	if downloadLocation == "" {
		return errs.RemoteNotFound(op, "photo has no download location")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadLocation, nil)
	if err != nil {
		return errs.RemoteUnavailable(op, "failed to build request", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.RemoteUnavailable(op, "request failed", err)
	}
	defer resp.Body.Close()

	if err := statusError(op, resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// get spends one budget unit, performs the request and decodes the
// response. The budget check runs before any network I/O.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	if err := c.budget.Spend(op); err != nil {
		return err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errs.RemoteUnavailable(op, "failed to build request", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.RemoteUnavailable(op, "request failed", err)
	}
	defer resp.Body.Close()

	if err := statusError(op, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.RemoteUnavailable(op, "failed to decode response", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", acceptVersion)
}

// statusError maps a non-200 answer to the kind the caller dispatches
// on. 401 and 403 mean the credential is bad, 404 means the resource is
// gone upstream, 429 means the remote itself ran out of patience.
func statusError(op string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.RemoteAuth(op, fmt.Sprintf("credential rejected with status %d", resp.StatusCode))
	case http.StatusNotFound:
		return errs.RemoteNotFound(op, "resource not found")
	case http.StatusTooManyRequests:
		msg := "remote rate limit hit"
		if remaining := resp.Header.Get("X-Ratelimit-Remaining"); remaining != "" {
			msg = fmt.Sprintf("%s, %s calls remaining this hour", msg, remaining)
		}
		return errs.RemoteRateLimited(op, msg)
	default:
		return errs.RemoteUnavailable(op, fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}
}
