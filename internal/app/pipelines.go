package app

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
	"github.com/JakeFAU/jobscall-crawler/internal/sink"
	"github.com/JakeFAU/jobscall-crawler/internal/storage/gcs"
	"github.com/JakeFAU/jobscall-crawler/internal/storage/local"
	"github.com/JakeFAU/jobscall-crawler/internal/storage/s3"
	"github.com/JakeFAU/jobscall-crawler/internal/structured"
	"github.com/JakeFAU/jobscall-crawler/internal/upload"
)

// Upload targets.
const (
	TargetR2  = "r2"
	TargetGCS = "gcs"
)

// Extract runs structured extraction over the Markdown of runDate. When file
// is set only that record is processed; a bare name is looked up in the
// run's markdown directory.
func (a *App) Extract(ctx context.Context, runDate, file string) (structured.Report, error) {
	gen, err := a.structuredGenerator(ctx)
	if err != nil {
		return structured.Report{}, err
	}
	runner := a.structuredRunner(structured.NewExtractor(gen, a.logger.Named("gemini")))
	if file == "" {
		return runner.Run(ctx, runDate)
	}
	if !strings.Contains(file, "/") {
		file = path.Join(sink.KindDir(a.cfg.Storage.Prefix, runDate, a.cfg.Site.Source, sink.KindMarkdown), file)
	}
	return runner.RunFile(ctx, runDate, file)
}

// Populate splits the stored extraction results of runDate into per-job
// records without calling the model.
func (a *App) Populate(ctx context.Context, runDate string) (structured.Report, error) {
	return a.structuredRunner(nil).Populate(ctx, runDate)
}

func (a *App) structuredRunner(ext *structured.Extractor) *structured.Runner {
	return structured.NewRunner(ext, a.store, structured.Config{
		Prefix:      a.cfg.Storage.Prefix,
		Source:      a.cfg.Site.Source,
		Concurrency: a.cfg.Gemini.Concurrency,
	}, a.logger.Named("structured"))
}

func (a *App) structuredGenerator(ctx context.Context) (structured.Generator, error) {
	if a.generator != nil {
		return a.generator, nil
	}
	client, err := structured.NewGeminiClient(ctx, structured.GeminiConfig{
		APIKey:      a.cfg.Gemini.APIKey,
		Model:       a.cfg.Gemini.Model,
		Temperature: a.cfg.Gemini.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	a.onClose(func() {
		if err := client.Close(); err != nil {
			a.logger.Warn("close gemini client", zap.Error(err))
		}
	})
	a.generator = client
	return client, nil
}

// Upload copies the final records of runDate to target. When dir is set the
// records are read from that local directory instead of the artifact store.
func (a *App) Upload(ctx context.Context, runDate, dir, target string) (upload.Report, error) {
	var src crawler.BlobReader = a.store
	if dir != "" {
		store, err := local.New(local.Config{BaseDir: dir})
		if err != nil {
			return upload.Report{}, fmt.Errorf("open %s: %w", dir, err)
		}
		src = store
	}
	dst, err := a.uploadTarget(ctx, target)
	if err != nil {
		return upload.Report{}, err
	}
	u, err := upload.New(src, dst, upload.Config{
		Prefix: a.cfg.Storage.Prefix,
		Source: a.cfg.Site.Source,
	}, a.logger)
	if err != nil {
		return upload.Report{}, err
	}
	return u.Run(ctx, runDate)
}

func (a *App) uploadTarget(ctx context.Context, target string) (crawler.BlobStore, error) {
	if a.uploadDst != nil {
		return a.uploadDst, nil
	}
	metadata := map[string]string{
		"source":      a.cfg.Site.Source,
		"upload_date": a.clock.Now().Format(time.RFC3339),
	}
	switch target {
	case TargetR2, "":
		r2 := a.cfg.Storage.R2
		return s3.New(ctx, s3.Config{
			Bucket:          r2.Bucket,
			Endpoint:        r2.Endpoint,
			AccountID:       r2.AccountID,
			Region:          r2.Region,
			AccessKeyID:     r2.AccessKeyID,
			SecretAccessKey: r2.SecretAccessKey,
			Metadata:        metadata,
		})
	case TargetGCS:
		client, err := a.storageClient(ctx)
		if err != nil {
			return nil, err
		}
		return gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Metadata: metadata})
	default:
		return nil, fmt.Errorf("unknown upload target %q", target)
	}
}
