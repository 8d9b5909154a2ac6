package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/api"
	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
	"github.com/JakeFAU/jobscall-crawler/internal/discovery"
	"github.com/JakeFAU/jobscall-crawler/internal/dispatcher"
	"github.com/JakeFAU/jobscall-crawler/internal/extract"
	"github.com/JakeFAU/jobscall-crawler/internal/policy/stopping"
	pubmemory "github.com/JakeFAU/jobscall-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/jobscall-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/jobscall-crawler/internal/sink"
	"github.com/JakeFAU/jobscall-crawler/internal/storage/postgres"
	"github.com/JakeFAU/jobscall-crawler/internal/telemetry"
	"github.com/JakeFAU/jobscall-crawler/internal/worker"
)

// CrawlResult is what a crawl produced.
type CrawlResult struct {
	Meta         crawler.RunMetadata
	Candidates   int
	State        *crawler.RunState
	ManifestPath string
	SummaryPath  string
}

// Crawl discovers the configured site, runs the orchestrator over the
// candidates, and records the manifest and summary. A cancelled ctx still
// writes the summary of the partial run.
func (a *App) Crawl(ctx context.Context, tracker *Tracker) (*CrawlResult, error) {
	runCfg, err := a.cfg.CrawlConfig()
	if err != nil {
		return nil, err
	}
	meta, err := a.newRunMetadata()
	if err != nil {
		return nil, err
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	tracker.start(meta)
	fail := func(err error) (*CrawlResult, error) {
		tracker.finish(nil, err)
		return nil, err
	}
	logger := a.logger.With(zap.String("run_id", meta.RunID))

	ctx, span := telemetry.Tracer().Start(ctx, "crawl", trace.WithAttributes(
		attribute.String("run_id", meta.RunID),
		attribute.String("site", meta.SiteRoot),
		attribute.String("mode", string(runCfg.Mode)),
	))
	defer span.End()

	stopOps := a.serveOps(ctx, tracker)
	defer stopOps()

	disc := discovery.New(a.fetcher, discovery.Config{
		JobMarker: a.cfg.Site.JobMarker,
		Exclude:   a.cfg.Site.Exclude,
	}, logger.Named("discovery"))
	candidates, err := disc.Discover(ctx, meta.SiteRoot)
	if err != nil {
		return fail(err)
	}
	tracker.discovered(len(candidates))

	blobSink, err := a.newBlobSink(ctx, logger)
	if err != nil {
		return fail(err)
	}
	result := &CrawlResult{Meta: meta, Candidates: len(candidates)}
	if result.ManifestPath, err = blobSink.WriteManifest(ctx, meta, discovery.URLs(candidates)); err != nil {
		return fail(err)
	}

	sinks, err := a.resultSinks(ctx, blobSink)
	if err != nil {
		return fail(err)
	}
	proc := worker.New(
		a.fetcher,
		extract.New(extract.Config{
			ArticleSelector: a.cfg.Site.ArticleSelector,
			TimeSelector:    a.cfg.Site.TimeSelector,
			Location:        a.cfg.Location(),
		}, logger.Named("extract")),
		stopping.NewEvaluator(runCfg, a.clock),
		a.clock,
		worker.Config{FetchTimeout: a.cfg.FetchTimeout()},
		logger.Named("worker"),
	)
	disp, err := dispatcher.New(runCfg, proc, tracker.wrap(sinks), logger.Named("dispatcher"))
	if err != nil {
		return fail(err)
	}

	state, runErr := disp.Run(ctx, candidates, meta)
	result.State = state
	tracker.finish(state, runErr)
	if state != nil {
		span.SetAttributes(
			attribute.Int("accepted", state.Counters.Accepted),
			attribute.Bool("halted", state.Halted),
		)
		// The summary outlives a cancelled run context.
		summaryCtx := context.WithoutCancel(ctx)
		if result.SummaryPath, err = blobSink.WriteSummary(summaryCtx, meta, state); err != nil {
			return result, errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		return result, runErr
	}
	logger.Info("crawl finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", state.Counters.Accepted),
		zap.Bool("halted", state.Halted),
		zap.String("summary", result.SummaryPath),
	)
	return result, nil
}

func (a *App) newRunMetadata() (crawler.RunMetadata, error) {
	runID, err := a.ids.NewID()
	if err != nil {
		return crawler.RunMetadata{}, fmt.Errorf("generate run id: %w", err)
	}
	now := a.clock.Now()
	return crawler.RunMetadata{
		RunID:     runID,
		RunDate:   now.Format(RunDateLayout),
		Source:    a.cfg.Site.Source,
		SiteRoot:  a.cfg.Site.Root,
		StartedAt: now,
	}, nil
}

func (a *App) newBlobSink(ctx context.Context, logger *zap.Logger) (*sink.BlobSink, error) {
	pub, err := a.notificationPublisher(ctx)
	if err != nil {
		return nil, err
	}
	var topic string
	if pub != nil {
		topic = a.cfg.PubSub.TopicName
	}
	return sink.New(a.store, pub, a.clock, sink.Config{
		Prefix: a.cfg.Storage.Prefix,
		Topic:  topic,
	}, logger.Named("sink")), nil
}

func (a *App) notificationPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.publisher != nil || a.cfg.PubSub.TopicName == "" {
		return a.publisher, nil
	}
	if a.cfg.PubSub.DryRun {
		a.publisher = pubmemory.New(a.logger.Named("publisher"))
		return a.publisher, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub, err := pubsubpublisher.NewFromClient(client, a.cfg.PubSub.TopicName, map[string]string{
		"source": a.cfg.Site.Source,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	a.onClose(func() {
		pub.Close()
		if err := client.Close(); err != nil {
			a.logger.Warn("close pubsub client", zap.Error(err))
		}
	})
	a.publisher = pub
	return pub, nil
}

func (a *App) resultSinks(ctx context.Context, blobSink *sink.BlobSink) (crawler.ResultSink, error) {
	sinks := sink.Multi{blobSink}
	sinks = append(sinks, a.sinks...)
	if a.cfg.DB.DSN != "" {
		store, err := postgres.NewPostingStore(ctx, postgres.Config{
			DSN:      a.cfg.DB.DSN,
			Table:    a.cfg.DB.Table,
			MaxConns: a.cfg.DB.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}
	if len(sinks) == 1 {
		return blobSink, nil
	}
	return sinks, nil
}

// serveOps exposes the ops router for the duration of a run when an address
// is configured. The returned func stops it.
func (a *App) serveOps(ctx context.Context, tracker *Tracker) func() {
	if a.cfg.Metrics.Addr == "" {
		return func() {}
	}
	opsCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	srv := api.NewServer(tracker, a.logger)
	go func() {
		defer close(done)
		if err := srv.ListenAndServe(opsCtx, a.cfg.Metrics.Addr); err != nil {
			a.logger.Warn("ops server stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
