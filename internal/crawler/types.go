package crawler

import "time"

// CandidateLink is a URL believed to point at a single job posting.
type CandidateLink struct {
	URL             string
	DiscoveredOrder int
	// Slug is the path remainder after the job marker, used for file naming.
	Slug string
}

// RawDocument is the fetched content of one candidate URL.
type RawDocument struct {
	URL       string
	Body      string
	FetchedAt time.Time
}

// ExtractedPosting is the structured result of processing one candidate.
// NormalizedText is always rendered from ContentFragment.
type ExtractedPosting struct {
	URL             string     `json:"url"`
	Slug            string     `json:"slug"`
	DiscoveredOrder int        `json:"discovered_order"`
	ContentFragment string     `json:"-"`
	FragmentFound   bool       `json:"article_found"`
	PostedAt        *time.Time `json:"posted_at,omitempty"`
	PostedAtRaw     string     `json:"time_value,omitempty"`
	NormalizedText  string     `json:"-"`
	FetchedAt       time.Time  `json:"fetched_at"`
}

// PolicyVerdict is the stopping policy's decision for one posting.
type PolicyVerdict struct {
	// Accept keeps the posting.
	Accept bool
	// HaltFurtherWork stops the run independent of Accept.
	HaltFurtherWork bool
}

// RunMetadata describes the run a posting belongs to.
type RunMetadata struct {
	RunID     string    `json:"run_id"`
	RunDate   string    `json:"run_date"`
	Source    string    `json:"source"`
	SiteRoot  string    `json:"site_root"`
	StartedAt time.Time `json:"started_at"`
}

// CandidateState tracks one candidate through the orchestrator.
type CandidateState string

// Candidate lifecycle values.
const (
	CandidateQueued     CandidateState = "queued"
	CandidateDispatched CandidateState = "dispatched"
	CandidateSucceeded  CandidateState = "succeeded"
	CandidateFailed     CandidateState = "failed"
	CandidateCancelled  CandidateState = "cancelled"
)

// RunCounters summarizes how the candidates of a run ended up.
type RunCounters struct {
	Candidates int `json:"candidates"`
	Dispatched int `json:"dispatched"`
	Accepted   int `json:"accepted"`
	Rejected   int `json:"rejected"`
	Discarded  int `json:"discarded"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// RunState is the orchestrator's accumulated result. Accepted is in
// completion order, not submission order.
type RunState struct {
	Accepted []ExtractedPosting
	Halted   bool
	// HaltedBy is the URL whose verdict triggered the halt.
	HaltedBy string
	// States is indexed by position in the (truncated) candidate list.
	States   []CandidateState
	Counters RunCounters
}

// NewRunState returns a state with every candidate queued.
func NewRunState(candidates int) *RunState {
	states := make([]CandidateState, candidates)
	for i := range states {
		states[i] = CandidateQueued
	}
	return &RunState{
		States:   states,
		Counters: RunCounters{Candidates: candidates},
	}
}

// AcceptedURLs lists accepted posting URLs in completion order.
func (s *RunState) AcceptedURLs() []string {
	out := make([]string, 0, len(s.Accepted))
	for _, p := range s.Accepted {
		out = append(out, p.URL)
	}
	return out
}
