// Package upload copies finalized job records of a run date to remote
// storage.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
	"github.com/JakeFAU/jobscall-crawler/internal/sink"
)

const defaultConcurrency = 8

// ErrIncomplete reports that at least one record failed to upload.
var ErrIncomplete = errors.New("upload incomplete")

// Config locates the records to upload.
type Config struct {
	Prefix      string
	Source      string
	Concurrency int
}

// Report summarizes an upload pass.
type Report struct {
	Total     int
	Uploaded  int
	Failed    int
	Locations []string
}

// Uploader copies final/*.json records from src to dst.
type Uploader struct {
	src    crawler.BlobReader
	dst    crawler.BlobStore
	cfg    Config
	logger *zap.Logger
}

// New constructs an Uploader.
func New(src crawler.BlobReader, dst crawler.BlobStore, cfg Config, logger *zap.Logger) (*Uploader, error) {
	if src == nil {
		return nil, fmt.Errorf("source store is required")
	}
	if dst == nil {
		return nil, fmt.Errorf("destination store is required")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{src: src, dst: dst, cfg: cfg, logger: logger.Named("upload")}, nil
}

// Run uploads every record of runDate under <runDate>/<name>. It returns
// ErrIncomplete unless every record was uploaded.
func (u *Uploader) Run(ctx context.Context, runDate string) (Report, error) {
	dir := sink.KindDir(u.cfg.Prefix, runDate, u.cfg.Source, sink.KindFinal)
	all, err := u.src.ListObjects(ctx, dir)
	if err != nil {
		return Report{}, fmt.Errorf("list %s: %w", dir, err)
	}
	var files []string
	for _, p := range all {
		if strings.HasSuffix(p, ".json") {
			files = append(files, p)
		}
	}
	if len(files) == 0 {
		return Report{}, fmt.Errorf("no .json files found in %s", dir)
	}

	var (
		mu     sync.Mutex
		report = Report{Total: len(files)}
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.Concurrency)
	for _, file := range files {
		g.Go(func() error {
			loc, err := u.one(gCtx, runDate, file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				u.logger.Warn("upload failed", zap.String("file", file), zap.Error(err))
				return gCtx.Err()
			}
			report.Uploaded++
			report.Locations = append(report.Locations, loc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	u.logger.Info("upload finished",
		zap.String("run_date", runDate),
		zap.Int("uploaded", report.Uploaded),
		zap.Int("failed", report.Failed),
	)
	if report.Uploaded != report.Total {
		return report, fmt.Errorf("%w: %d of %d records failed", ErrIncomplete, report.Failed, report.Total)
	}
	return report, nil
}

func (u *Uploader) one(ctx context.Context, runDate, file string) (string, error) {
	data, err := u.src.GetObject(ctx, file)
	if err != nil {
		return "", err
	}
	key := path.Join(runDate, path.Base(file))
	return u.dst.PutObject(ctx, key, "application/json", bytes.NewReader(data))
}
