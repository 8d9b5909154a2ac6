// Package stopping decides, from a posting's timestamp, whether it is kept and
// whether the run should stop discovering older postings. It is the single
// place the age cutoff lives.
package stopping

import (
	"time"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
)

// Evaluate returns the verdict for a posting dated postedAt (nil when the
// date was missing or unparseable). It performs no I/O and depends only on
// its arguments.
func Evaluate(cfg crawler.CrawlConfig, postedAt *time.Time, now time.Time) crawler.PolicyVerdict {
	switch cfg.Mode {
	case crawler.ModeTargetDate:
		return targetDate(cfg, postedAt)
	default:
		return rollingWindow(cfg, postedAt, now)
	}
}

func rollingWindow(cfg crawler.CrawlConfig, postedAt *time.Time, now time.Time) crawler.PolicyVerdict {
	// Unknown age never halts the run.
	if postedAt == nil {
		return crawler.PolicyVerdict{Accept: true}
	}
	window := cfg.FreshnessWindow
	if window.IsZero() {
		window = crawler.DefaultWindow()
	}
	if postedAt.Before(window.Cutoff(now)) {
		return crawler.PolicyVerdict{Accept: false, HaltFurtherWork: true}
	}
	return crawler.PolicyVerdict{Accept: true}
}

// targetDate never halts: the scan is exhaustive.
func targetDate(cfg crawler.CrawlConfig, postedAt *time.Time) crawler.PolicyVerdict {
	if postedAt == nil {
		return crawler.PolicyVerdict{}
	}
	return crawler.PolicyVerdict{Accept: crawler.SameDate(*postedAt, cfg.TargetDate)}
}

// Evaluator binds a config and clock so workers can evaluate postings
// without threading "now" through every call.
type Evaluator struct {
	cfg   crawler.CrawlConfig
	clock crawler.Clock
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(cfg crawler.CrawlConfig, clock crawler.Clock) *Evaluator {
	return &Evaluator{cfg: cfg, clock: clock}
}

// Evaluate applies the policy at the clock's current time.
func (e *Evaluator) Evaluate(postedAt *time.Time) crawler.PolicyVerdict {
	now := time.Now()
	if e.clock != nil {
		now = e.clock.Now()
	}
	return Evaluate(e.cfg, postedAt, now)
}
