package sync

import (
	"log/slog"
	"strings"
	"time"

	"github.com/lumenfolio/portfolio-api/pkg/database"
)

// Phase names one of the four ordered steps of a run.
type Phase string

const (
	PhaseBulkFetch   Phase = "bulk_fetch"
	PhaseEnrichment  Phase = "enrichment"
	PhaseCollections Phase = "collections"
	PhaseLinking     Phase = "linking"
)

// allPhases lists the phases in execution order.
var allPhases = []Phase{PhaseBulkFetch, PhaseEnrichment, PhaseCollections, PhaseLinking}

// Skip records one item passed over during a run, with enough context
// to diagnose it afterwards.
type Skip struct {
	Phase  Phase  `json:"phase"`
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// Summary is the structured outcome of one run: which phases finished,
// what each entity type received, what was skipped and why, and where
// the run stopped if it did not get through.
type Summary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Budget    int `json:"budget"`
	UnitsUsed int `json:"units_used"`

	PhasesCompleted []Phase `json:"phases_completed"`

	PhotosUpserted      int `json:"photos_upserted"`
	PhotosEnriched      int `json:"photos_enriched"`
	CollectionsUpserted int `json:"collections_upserted"`
	Linked              int `json:"linked"`

	Skipped []Skip `json:"skipped,omitempty"`

	Aborted     bool   `json:"aborted"`
	AbortPhase  Phase  `json:"abort_phase,omitempty"`
	AbortReason string `json:"abort_reason,omitempty"`
}

func newSummary(budget int) *Summary {
	return &Summary{
		StartedAt: time.Now().UTC(),
		Budget:    budget,
	}
}

func (s *Summary) skip(phase Phase, item, reason string) {
	s.Skipped = append(s.Skipped, Skip{Phase: phase, Item: item, Reason: reason})
}

func (s *Summary) completePhase(phase Phase) {
	s.PhasesCompleted = append(s.PhasesCompleted, phase)
}

func (s *Summary) abort(phase Phase, reason string) {
	s.Aborted = true
	s.AbortPhase = phase
	s.AbortReason = reason
}

func (s *Summary) finish(unitsUsed int) {
	s.FinishedAt = time.Now().UTC()
	s.UnitsUsed = unitsUsed
}

// Complete reports whether every phase ran to its end.
func (s *Summary) Complete() bool {
	return !s.Aborted && len(s.PhasesCompleted) == len(allPhases)
}

func joinPhases(phases []Phase) string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}
	return strings.Join(names, ",")
}

// syncRun maps the summary onto its history row.
func (s *Summary) syncRun() *database.SyncRun {
	return &database.SyncRun{
		StartedAt:           s.StartedAt,
		FinishedAt:          s.FinishedAt,
		Complete:            s.Complete(),
		Phases:              joinPhases(s.PhasesCompleted),
		Budget:              s.Budget,
		UnitsUsed:           s.UnitsUsed,
		PhotosUpserted:      s.PhotosUpserted,
		PhotosEnriched:      s.PhotosEnriched,
		CollectionsUpserted: s.CollectionsUpserted,
		Linked:              s.Linked,
		Skipped:             len(s.Skipped),
	}
}

func (s *Summary) log(l *slog.Logger) {
	attrs := []any{
		"phases", joinPhases(s.PhasesCompleted),
		"units_used", s.UnitsUsed,
		"budget", s.Budget,
		"photos", s.PhotosUpserted,
		"enriched", s.PhotosEnriched,
		"collections", s.CollectionsUpserted,
		"linked", s.Linked,
		"skipped", len(s.Skipped),
		"duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String(),
	}
	if s.Aborted {
		attrs = append(attrs, "abort_phase", string(s.AbortPhase), "abort_reason", s.AbortReason)
		l.Warn("synchronization aborted", attrs...)
		return
	}
	l.Info("synchronization finished", attrs...)
}
