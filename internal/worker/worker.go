// Package worker runs the per-candidate pipeline: fetch, extract, evaluate.
// Workers never touch run state; they report a Completion to the dispatcher.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
	"github.com/JakeFAU/jobscall-crawler/internal/metrics"
	"github.com/JakeFAU/jobscall-crawler/internal/telemetry"
)

// Evaluator decides whether a posting is kept and whether the run halts.
type Evaluator interface {
	Evaluate(postedAt *time.Time) crawler.PolicyVerdict
}

// Config controls Worker behavior.
type Config struct {
	// FetchTimeout bounds a single fetch. Zero leaves it to the fetcher.
	FetchTimeout time.Duration
}

// Completion is the result of processing one candidate.
type Completion struct {
	// Index is the candidate's position in the dispatched list.
	Index     int
	Candidate crawler.CandidateLink
	// Posting is nil when the fetch failed.
	Posting  *crawler.ExtractedPosting
	Verdict  crawler.PolicyVerdict
	Err      error
	Duration time.Duration
}

// Worker processes individual candidates. It is safe for concurrent use as
// long as its collaborators are.
type Worker struct {
	fetcher   crawler.Fetcher
	extractor crawler.Extractor
	evaluator Evaluator
	clock     crawler.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	fetcher crawler.Fetcher,
	extractor crawler.Extractor,
	evaluator Evaluator,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		fetcher:   fetcher,
		extractor: extractor,
		evaluator: evaluator,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Process fetches, extracts, and evaluates a single candidate. Fetch failures
// are reported as a *crawler.FetchError in the Completion.
func (w *Worker) Process(ctx context.Context, index int, cand crawler.CandidateLink) Completion {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	ctx, span := telemetry.Tracer().Start(ctx, "process_candidate", trace.WithAttributes(
		attribute.String("url", cand.URL),
		attribute.Int("order", cand.DiscoveredOrder),
	))
	defer span.End()

	done := Completion{Index: index, Candidate: cand}
	start := w.now()

	doc, err := w.fetch(ctx, cand.URL)
	done.Duration = w.now().Sub(start)
	metrics.ObserveFetch(cand.URL, done.Duration)
	if err != nil {
		done.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		w.logger.Warn("fetch failed",
			zap.String("url", cand.URL),
			zap.Int("order", cand.DiscoveredOrder),
			zap.Error(err),
		)
		return done
	}
	w.logger.Debug("fetched candidate",
		zap.String("url", cand.URL),
		zap.Int("bytes", len(doc.Body)),
		zap.Duration("duration", done.Duration),
	)

	posting := w.extractor.Extract(doc)
	posting.URL = cand.URL
	posting.Slug = cand.Slug
	posting.DiscoveredOrder = cand.DiscoveredOrder
	done.Posting = &posting

	if w.evaluator != nil {
		done.Verdict = w.evaluator.Evaluate(posting.PostedAt)
	} else {
		done.Verdict = crawler.PolicyVerdict{Accept: true}
	}
	span.SetAttributes(
		attribute.Bool("accept", done.Verdict.Accept),
		attribute.Bool("halt", done.Verdict.HaltFurtherWork),
	)
	w.logger.Debug("evaluated candidate",
		zap.String("url", cand.URL),
		zap.String("time_value", posting.PostedAtRaw),
		zap.Bool("article_found", posting.FragmentFound),
		zap.Bool("accept", done.Verdict.Accept),
		zap.Bool("halt", done.Verdict.HaltFurtherWork),
	)
	return done
}

func (w *Worker) fetch(ctx context.Context, url string) (crawler.RawDocument, error) {
	if w.fetcher == nil {
		return crawler.RawDocument{}, &crawler.FetchError{URL: url, Cause: errors.New("no fetcher configured")}
	}
	fetchCtx := ctx
	if w.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, w.cfg.FetchTimeout)
		defer cancel()
	}

	doc, err := w.fetcher.Fetch(fetchCtx, url)
	if err != nil {
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, crawler.ErrTimeout) {
			err = fmt.Errorf("%w: %w", crawler.ErrTimeout, err)
		}
		return crawler.RawDocument{}, &crawler.FetchError{URL: url, Cause: err}
	}
	if doc.URL == "" {
		doc.URL = url
	}
	if doc.FetchedAt.IsZero() {
		doc.FetchedAt = w.now()
	}
	return doc, nil
}

func (w *Worker) now() time.Time {
	if w.clock != nil {
		return w.clock.Now()
	}
	return time.Now().UTC()
}
