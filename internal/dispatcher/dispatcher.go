// Package dispatcher fans candidates out to a bounded pool of workers and
// folds their completions into the run state.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
	"github.com/JakeFAU/jobscall-crawler/internal/metrics"
	"github.com/JakeFAU/jobscall-crawler/internal/worker"
)

// Processor handles a single candidate. *worker.Worker satisfies it.
type Processor interface {
	Process(ctx context.Context, index int, cand crawler.CandidateLink) worker.Completion
}

// Dispatcher runs candidates through a Processor with at most
// cfg.Concurrency in flight.
type Dispatcher struct {
	cfg       crawler.CrawlConfig
	processor Processor
	sink      crawler.ResultSink
	logger    *zap.Logger
}

// New creates a Dispatcher. It fails with a *crawler.ConfigError before any
// work is scheduled when cfg is invalid.
func New(cfg crawler.CrawlConfig, processor Processor, sink crawler.ResultSink, logger *zap.Logger) (*Dispatcher, error) {
	normalized, err := crawler.NewCrawlConfig(cfg)
	if err != nil {
		return nil, err
	}
	if processor == nil {
		return nil, &crawler.ConfigError{Field: "processor", Reason: "is required"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:       normalized,
		processor: processor,
		sink:      sink,
		logger:    logger,
	}, nil
}

// Run processes candidates in discovery order and blocks until nothing is
// queued or in flight. A halt verdict stops further dispatch and cancels
// every queued candidate; completions that arrive after the halt are
// discarded. If ctx ends first, Run stops dispatching, waits for in-flight
// work, and returns the partial state with ctx's error.
func (d *Dispatcher) Run(
	ctx context.Context,
	candidates []crawler.CandidateLink,
	meta crawler.RunMetadata,
) (*crawler.RunState, error) {
	if d.cfg.MaxCandidates > 0 && len(candidates) > d.cfg.MaxCandidates {
		d.logger.Info("truncating candidates",
			zap.Int("discovered", len(candidates)),
			zap.Int("max_candidates", d.cfg.MaxCandidates),
		)
		candidates = candidates[:d.cfg.MaxCandidates]
	}

	r := &run{
		d:          d,
		meta:       meta,
		candidates: candidates,
		state:      crawler.NewRunState(len(candidates)),
		results:    make(chan worker.Completion, d.cfg.Concurrency),
	}
	d.logger.Info("dispatch started",
		zap.String("run_id", meta.RunID),
		zap.Int("candidates", len(candidates)),
		zap.Int("concurrency", d.cfg.Concurrency),
		zap.String("mode", string(d.cfg.Mode)),
	)

	r.loop(ctx)

	c := r.state.Counters
	d.logger.Info("dispatch finished",
		zap.String("run_id", meta.RunID),
		zap.Bool("halted", r.state.Halted),
		zap.String("halted_by", r.state.HaltedBy),
		zap.Int("accepted", c.Accepted),
		zap.Int("rejected", c.Rejected),
		zap.Int("discarded", c.Discarded),
		zap.Int("failed", c.Failed),
		zap.Int("cancelled", c.Cancelled),
	)
	if err := ctx.Err(); err != nil {
		return r.state, err
	}
	return r.state, nil
}

// run holds the bookkeeping for one Run call. Only the goroutine executing
// loop reads or writes it.
type run struct {
	d          *Dispatcher
	meta       crawler.RunMetadata
	candidates []crawler.CandidateLink
	state      *crawler.RunState
	results    chan worker.Completion
	wg         sync.WaitGroup

	next     int
	inFlight int
	halting  bool
}

func (r *run) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			if n := r.cancelQueued(); n > 0 {
				r.d.logger.Warn("run cancelled", zap.Int("cancelled", n), zap.Error(ctx.Err()))
			}
		} else {
			r.fill(ctx)
		}
		if r.inFlight == 0 {
			break
		}
		r.handle(ctx, <-r.results)
	}
	r.wg.Wait()
}

// fill dispatches queued candidates until the pool is full.
func (r *run) fill(ctx context.Context) {
	for !r.halting && r.inFlight < r.d.cfg.Concurrency && r.next < len(r.candidates) {
		idx := r.next
		cand := r.candidates[idx]
		r.next++
		r.inFlight++
		r.state.States[idx] = crawler.CandidateDispatched
		r.state.Counters.Dispatched++

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			// The channel holds Concurrency entries, so this never blocks.
			r.results <- r.process(ctx, idx, cand)
		}()
	}
}

// process runs one candidate and turns a panic into a failed completion so
// the remaining candidates still run.
func (r *run) process(ctx context.Context, idx int, cand crawler.CandidateLink) (done worker.Completion) {
	defer func() {
		if rec := recover(); rec != nil {
			r.d.logger.Error("candidate panicked",
				zap.String("url", cand.URL),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			done = worker.Completion{
				Index:     idx,
				Candidate: cand,
				Err:       &crawler.FetchError{URL: cand.URL, Cause: fmt.Errorf("panic: %v", rec)},
			}
		}
	}()
	return r.d.processor.Process(ctx, idx, cand)
}

// handle is the single writer of run state.
func (r *run) handle(ctx context.Context, done worker.Completion) {
	r.inFlight--
	url := done.Candidate.URL

	if done.Err != nil || done.Posting == nil {
		r.state.States[done.Index] = crawler.CandidateFailed
		r.state.Counters.Failed++
		metrics.ObservePosting(url, metrics.StatusFailed)
		r.d.logger.Warn("candidate failed", zap.String("url", url), zap.Error(done.Err))
		return
	}
	r.state.States[done.Index] = crawler.CandidateSucceeded

	if r.halting {
		r.state.Counters.Discarded++
		metrics.ObservePosting(url, metrics.StatusDiscarded)
		r.d.logger.Debug("discarding completion after halt", zap.String("url", url))
		return
	}

	if done.Verdict.Accept {
		r.accept(ctx, *done.Posting)
	} else {
		r.state.Counters.Rejected++
		metrics.ObservePosting(url, metrics.StatusRejected)
	}

	if done.Verdict.HaltFurtherWork {
		r.halting = true
		r.state.Halted = true
		r.state.HaltedBy = url
		cancelled := r.cancelQueued()
		metrics.ObserveHalt(string(r.d.cfg.Mode), cancelled)
		r.d.logger.Info("stopping policy halted run",
			zap.String("url", url),
			zap.Int("cancelled", cancelled),
			zap.Int("in_flight", r.inFlight),
		)
	}
}

func (r *run) accept(ctx context.Context, posting crawler.ExtractedPosting) {
	r.state.Accepted = append(r.state.Accepted, posting)
	r.state.Counters.Accepted++
	metrics.ObservePosting(posting.URL, metrics.StatusAccepted)
	if r.d.sink == nil {
		return
	}
	if err := r.d.sink.Store(ctx, posting, r.meta); err != nil {
		metrics.ObserveSinkError()
		r.d.logger.Error("store posting failed", zap.String("url", posting.URL), zap.Error(err))
	}
}

// cancelQueued marks every undispatched candidate cancelled and returns how
// many were affected.
func (r *run) cancelQueued() int {
	n := 0
	for ; r.next < len(r.candidates); r.next++ {
		if r.state.States[r.next] == crawler.CandidateQueued {
			r.state.States[r.next] = crawler.CandidateCancelled
			n++
		}
	}
	r.state.Counters.Cancelled += n
	return n
}
