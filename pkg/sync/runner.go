// Package sync mirrors the remote account into the local store. One
// run walks four ordered phases, bulk photo fetch, selective EXIF
// enrichment, collection fetch and membership linking, under a fixed
// remote call budget. The run never deletes rows; whatever it manages
// to upsert before an abort stays committed.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lumenfolio/portfolio-api/pkg/database"
	"github.com/lumenfolio/portfolio-api/pkg/unsplash"
)

// DefaultBudget is the remote call allowance per run, matching the
// remote's demo-tier hourly limit.
const DefaultBudget = 50

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
)

// ErrRunActive reports that a run is already in progress.
var ErrRunActive = errors.New("a synchronization run is already active")

// Options bound one run's volume and retry behavior. The zero value
// gets sensible defaults.
type Options struct {
	// Budget caps the remote calls one run may make.
	Budget int

	// PerPage is the listing page size. The effective cap for phases
	// one, three and four is pages times this.
	PerPage int

	// EnrichCount picks how many of the most viewed photos get a
	// detail fetch when FeaturedIDs is empty. Zero skips enrichment.
	EnrichCount int

	// FeaturedIDs pins the enrichment subset to explicit photo ids.
	FeaturedIDs []string

	// MaxPhotos caps phase one's upserts, zero means no cap.
	MaxPhotos int

	// MaxPerCollection caps phase four's links per collection, zero
	// means no cap.
	MaxPerCollection int

	RetryAttempts int
	RetryDelay    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Budget <= 0 {
		o.Budget = DefaultBudget
	}
	if o.PerPage <= 0 {
		o.PerPage = unsplash.DefaultPerPage
	}
	if o.EnrichCount < 0 {
		o.EnrichCount = 0
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = defaultRetryAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}
	return o
}

// Runner owns the single-writer loop: at most one run at a time, a
// fresh budget and client per run.
type Runner struct {
	store  *database.Store
	remote unsplash.Config
	opts   Options
	log    *slog.Logger

	status  Status
	running atomic.Bool
}

// NewRunner wires a runner against the store and the remote config.
// The config's Budget field is ignored; every run gets its own.
func NewRunner(store *database.Store, remote unsplash.Config, opts Options, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		store:  store,
		remote: remote,
		opts:   opts.withDefaults(),
		log:    log,
	}
}

// Running reports whether a run is active.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Status returns a copy of the active run's progress.
func (r *Runner) Status() StatusSnapshot {
	return r.status.Snapshot()
}

// RunOnce performs one full pass and returns its summary. An aborted
// run is still a summary, not an error; the error return covers only
// an already-active run. The run is recorded in the history table and
// the statistics cache is recomputed either way.
func (r *Runner) RunOnce(ctx context.Context) (*Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunActive
	}
	defer r.running.Store(false)

	budget := unsplash.NewBudget(r.opts.Budget)
	remote := r.remote
	remote.Budget = budget
	client := unsplash.New(remote)

	summary := newSummary(r.opts.Budget)
	r.status.begin(r.opts.Budget)
	defer r.status.end()

	r.log.Info("synchronization starting",
		"budget", r.opts.Budget,
		"per_page", r.opts.PerPage,
		"enrich_count", r.opts.EnrichCount,
	)

	pass := &run{
		store:   r.store,
		client:  client,
		opts:    r.opts,
		status:  &r.status,
		summary: summary,
	}
	pass.execute(ctx)

	summary.finish(budget.Used())

	// Record and recompute even when the run was canceled; the partial
	// state is real and the history row is how operators see it.
	recordCtx := context.WithoutCancel(ctx)
	if err := r.store.RecordSyncRun(recordCtx, summary.syncRun()); err != nil {
		r.log.Error("failed to record synchronization run", "error", err)
	}
	r.store.ComputeAndCacheStats(true)

	summary.log(r.log)
	return summary, nil
}
