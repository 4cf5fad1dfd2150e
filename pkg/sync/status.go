package sync

import (
	gosync "sync"
	"time"
)

// StatusSnapshot is a point-in-time copy of the active run's progress.
type StatusSnapshot struct {
	IsRunning   bool      `json:"isRunning"`
	Phase       Phase     `json:"phase,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	Budget      int       `json:"budget"`
	UnitsUsed   int       `json:"unitsUsed"`
	Photos      int       `json:"photos"`
	Enriched    int       `json:"enriched"`
	Collections int       `json:"collections"`
	Linked      int       `json:"linked"`
}

// Status tracks the progress of the active run for the status endpoint.
// Readers get value copies, never the guarded struct itself.
type Status struct {
	mu   gosync.RWMutex
	snap StatusSnapshot
}

// Snapshot returns a copy of the current progress.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Status) begin(budget int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = StatusSnapshot{
		IsRunning: true,
		StartedAt: time.Now().UTC(),
		Budget:    budget,
	}
}

func (s *Status) setPhase(phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Phase = phase
}

// progress refreshes the counters from the summary after a batch of
// writes.
func (s *Status) progress(sum *Summary, unitsUsed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.UnitsUsed = unitsUsed
	s.snap.Photos = sum.PhotosUpserted
	s.snap.Enriched = sum.PhotosEnriched
	s.snap.Collections = sum.CollectionsUpserted
	s.snap.Linked = sum.Linked
}

func (s *Status) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.IsRunning = false
	s.snap.Phase = ""
}
