// Package app builds the long-lived services a command needs from
// configuration and runs the crawl, extract, and upload pipelines on top of
// them.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/clock/system"
	"github.com/JakeFAU/jobscall-crawler/internal/config"
	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/jobscall-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/jobscall-crawler/internal/fetcher/firecrawl"
	"github.com/JakeFAU/jobscall-crawler/internal/id/uuid"
	"github.com/JakeFAU/jobscall-crawler/internal/storage/gcs"
	"github.com/JakeFAU/jobscall-crawler/internal/storage/local"
	"github.com/JakeFAU/jobscall-crawler/internal/storage/memory"
	"github.com/JakeFAU/jobscall-crawler/internal/structured"
)

// RunDateLayout names the per-day artifact directory.
const RunDateLayout = "20060102"

// SiteFetcher maps a site and fetches its pages.
type SiteFetcher interface {
	crawler.Mapper
	crawler.Fetcher
}

// Store is a blob store that can be read back.
type Store interface {
	crawler.BlobStore
	crawler.BlobReader
}

// App holds the shared services for one command invocation.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	clock   crawler.Clock
	ids     crawler.IDGenerator
	fetcher SiteFetcher
	store   Store

	publisher crawler.Publisher
	sinks     []crawler.ResultSink
	generator structured.Generator
	uploadDst crawler.BlobStore

	gcsClient *storage.Client
	closers   []func()
}

// Option overrides a service New would otherwise build from config.
type Option func(*App)

// WithClock sets the clock.
func WithClock(c crawler.Clock) Option { return func(a *App) { a.clock = c } }

// WithIDGenerator sets the run ID source.
func WithIDGenerator(g crawler.IDGenerator) Option { return func(a *App) { a.ids = g } }

// WithFetcher sets the site mapper and page fetcher.
func WithFetcher(f SiteFetcher) Option { return func(a *App) { a.fetcher = f } }

// WithStore sets the artifact store.
func WithStore(s Store) Option { return func(a *App) { a.store = s } }

// WithPublisher sets the notification publisher.
func WithPublisher(p crawler.Publisher) Option { return func(a *App) { a.publisher = p } }

// WithSink adds a result sink alongside the artifact sink.
func WithSink(s crawler.ResultSink) Option { return func(a *App) { a.sinks = append(a.sinks, s) } }

// WithGenerator sets the structured extraction model.
func WithGenerator(g structured.Generator) Option { return func(a *App) { a.generator = g } }

// WithUploadTarget sets the upload destination.
func WithUploadTarget(s crawler.BlobStore) Option { return func(a *App) { a.uploadDst = s } }

// New creates the App. Services not supplied through opts are built from
// cfg; remote clients are created lazily by the pipeline that needs them.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = system.New()
	}
	if a.ids == nil {
		a.ids = uuid.NewUUIDGenerator()
	}
	if a.fetcher == nil {
		fetcher, err := newFetcher(cfg, logger)
		if err != nil {
			return nil, err
		}
		a.fetcher = fetcher
	}
	if a.store == nil {
		store, err := a.newStore(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
	}
	return a, nil
}

func newFetcher(cfg config.Config, logger *zap.Logger) (SiteFetcher, error) {
	if cfg.Crawler.Backend == config.BackendColly {
		return collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.FetchTimeout(),
		}), nil
	}
	return firecrawl.New(firecrawl.Config{
		BaseURL:  cfg.Firecrawl.BaseURL,
		APIKey:   cfg.Firecrawl.APIKey,
		MapLimit: cfg.Firecrawl.MapLimit,
		Timeout:  time.Duration(cfg.Firecrawl.TimeoutSec) * time.Second,
	}, nil, logger.Named("firecrawl"))
}

func (a *App) newStore(ctx context.Context) (Store, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		client, err := a.storageClient(ctx)
		if err != nil {
			return nil, err
		}
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		a.logger.Info("using gcs storage", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	case config.StorageMemory:
		a.logger.Info("using in-memory storage; artifacts are discarded on exit")
		return memory.NewBlobStore(), nil
	default:
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local store: %w", err)
		}
		a.logger.Info("using local storage", zap.String("dir", a.cfg.Storage.LocalDir))
		return store, nil
	}
}

func (a *App) storageClient(ctx context.Context) (*storage.Client, error) {
	if a.gcsClient != nil {
		return a.gcsClient, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	a.gcsClient = client
	a.onClose(func() {
		if err := client.Close(); err != nil {
			a.logger.Warn("close storage client", zap.Error(err))
		}
	})
	return client, nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the artifact store.
func (a *App) Store() Store {
	return a.store
}

// Today is the run date for work started now.
func (a *App) Today() string {
	return a.clock.Now().Format(RunDateLayout)
}

// Close releases every client the App created, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}
