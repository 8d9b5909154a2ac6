package app

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
)

// Run phases reported by a Tracker.
const (
	PhaseIdle        = "idle"
	PhaseDiscovering = "discovering"
	PhaseScraping    = "scraping"
	PhaseDone        = "done"
	PhaseFailed      = "failed"
)

// Progress is a point-in-time view of a crawl.
type Progress struct {
	RunID      string               `json:"run_id,omitempty"`
	RunDate    string               `json:"run_date,omitempty"`
	Phase      string               `json:"phase"`
	StartedAt  time.Time            `json:"started_at,omitempty"`
	Candidates int                  `json:"candidates"`
	Stored     int                  `json:"stored"`
	Halted     bool                 `json:"halted"`
	Counters   *crawler.RunCounters `json:"counters,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// Tracker follows one crawl for the ops router. It is safe for concurrent
// use.
type Tracker struct {
	mu   sync.Mutex
	snap Progress
}

// NewTracker returns an idle Tracker.
func NewTracker() *Tracker {
	return &Tracker{snap: Progress{Phase: PhaseIdle}}
}

// Status implements api.RunStatus.
func (t *Tracker) Status() any {
	return t.Progress()
}

// Progress returns a copy of the current view.
func (t *Tracker) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.snap
	if snap.Counters != nil {
		counters := *snap.Counters
		snap.Counters = &counters
	}
	return snap
}

func (t *Tracker) start(meta crawler.RunMetadata) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Progress{
		RunID:     meta.RunID,
		RunDate:   meta.RunDate,
		Phase:     PhaseDiscovering,
		StartedAt: meta.StartedAt,
	}
}

func (t *Tracker) discovered(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Phase = PhaseScraping
	t.snap.Candidates = n
}

func (t *Tracker) stored() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Stored++
}

func (t *Tracker) finish(state *crawler.RunState, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Phase = PhaseDone
	if err != nil {
		t.snap.Phase = PhaseFailed
		t.snap.Error = err.Error()
	}
	if state != nil {
		counters := state.Counters
		t.snap.Counters = &counters
		t.snap.Halted = state.Halted
	}
}

func (t *Tracker) wrap(next crawler.ResultSink) crawler.ResultSink {
	return trackedSink{next: next, tracker: t}
}

// trackedSink counts postings that reached every sink.
type trackedSink struct {
	next    crawler.ResultSink
	tracker *Tracker
}

func (s trackedSink) Store(ctx context.Context, posting crawler.ExtractedPosting, meta crawler.RunMetadata) error {
	if err := s.next.Store(ctx, posting, meta); err != nil {
		return err
	}
	s.tracker.stored()
	return nil
}
