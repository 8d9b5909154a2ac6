package structured

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
	"github.com/JakeFAU/jobscall-crawler/internal/sink"
)

const defaultConcurrency = 4

// Store is a blob store that can also be read back.
type Store interface {
	crawler.BlobStore
	crawler.BlobReader
}

// Config locates a source's artifacts within the store.
type Config struct {
	Prefix      string
	Source      string
	Concurrency int
}

// Report counts what a pass did. Per-file failures are counted, not fatal.
type Report struct {
	Files       int
	Succeeded   int
	Failed      int
	JobsWritten int
}

func (r *Report) add(other Report) {
	r.Files += other.Files
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.JobsWritten += other.JobsWritten
}

// Runner drives extraction over every Markdown file of a run date.
type Runner struct {
	extractor *Extractor
	store     Store
	cfg       Config
	logger    *zap.Logger
}

// NewRunner constructs a Runner. extractor may be nil when only Populate is
// used.
func NewRunner(extractor *Extractor, store Store, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		extractor: extractor,
		store:     store,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run extracts every Markdown file stored for runDate, writing
// json/<stem>.json and one final/<stem>-NNN.json per job.
func (r *Runner) Run(ctx context.Context, runDate string) (Report, error) {
	dir := sink.KindDir(r.cfg.Prefix, runDate, r.cfg.Source, sink.KindMarkdown)
	files, err := r.list(ctx, dir, ".md")
	if err != nil {
		return Report{}, err
	}
	return r.each(ctx, files, func(ctx context.Context, file string) (int, error) {
		return r.extractFile(ctx, runDate, file)
	})
}

// RunFile extracts a single stored Markdown file.
func (r *Runner) RunFile(ctx context.Context, runDate, file string) (Report, error) {
	return r.each(ctx, []string{file}, func(ctx context.Context, file string) (int, error) {
		return r.extractFile(ctx, runDate, file)
	})
}

// Populate splits every json/<stem>.json of runDate into per-job files
// without calling the model.
func (r *Runner) Populate(ctx context.Context, runDate string) (Report, error) {
	dir := sink.KindDir(r.cfg.Prefix, runDate, r.cfg.Source, sink.KindJSON)
	files, err := r.list(ctx, dir, ".json")
	if err != nil {
		return Report{}, err
	}
	return r.each(ctx, files, func(ctx context.Context, file string) (int, error) {
		data, err := r.store.GetObject(ctx, file)
		if err != nil {
			return 0, err
		}
		var ext Extraction
		if err := json.Unmarshal(data, &ext); err != nil {
			return 0, fmt.Errorf("decode %s: %w", file, err)
		}
		return r.split(ctx, runDate, stem(file), ext.Jobs)
	})
}

func (r *Runner) list(ctx context.Context, dir, ext string) ([]string, error) {
	all, err := r.store.ListObjects(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var files []string
	for _, p := range all {
		if strings.HasSuffix(p, ext) {
			files = append(files, p)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", ext, dir)
	}
	return files, nil
}

// each runs fn over files with bounded parallelism and tallies results.
func (r *Runner) each(
	ctx context.Context,
	files []string,
	fn func(ctx context.Context, file string) (int, error),
) (Report, error) {
	var (
		mu     sync.Mutex
		report = Report{Files: len(files)}
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, file := range files {
		g.Go(func() error {
			jobs, err := fn(gCtx, file)
			one := Report{}
			if err != nil {
				one.Failed = 1
				r.logger.Warn("structured extraction failed", zap.String("file", file), zap.Error(err))
			} else {
				one.Succeeded = 1
				one.JobsWritten = jobs
				r.logger.Info("structured extraction done", zap.String("file", file), zap.Int("jobs", jobs))
			}
			mu.Lock()
			report.add(one)
			mu.Unlock()
			return gCtx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) extractFile(ctx context.Context, runDate, file string) (int, error) {
	if r.extractor == nil {
		return 0, fmt.Errorf("no extractor configured")
	}
	markdown, err := r.store.GetObject(ctx, file)
	if err != nil {
		return 0, err
	}
	ext, err := r.extractor.Extract(ctx, string(markdown))
	if err != nil {
		return 0, err
	}
	name := stem(file)
	jsonPath := path.Join(sink.KindDir(r.cfg.Prefix, runDate, r.cfg.Source, sink.KindJSON), name+".json")
	if err := r.putJSON(ctx, jsonPath, ext); err != nil {
		return 0, err
	}
	return r.split(ctx, runDate, name, ext.Jobs)
}

// split writes one final/<stem>-NNN.json per job, numbered from 001.
func (r *Runner) split(ctx context.Context, runDate, name string, jobs []Job) (int, error) {
	dir := sink.KindDir(r.cfg.Prefix, runDate, r.cfg.Source, sink.KindFinal)
	for i, job := range jobs {
		p := path.Join(dir, fmt.Sprintf("%s-%03d.json", name, i+1))
		if err := r.putJSON(ctx, p, job); err != nil {
			return i, err
		}
	}
	return len(jobs), nil
}

func (r *Runner) putJSON(ctx context.Context, p string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", p, err)
	}
	if _, err := r.store.PutObject(ctx, p, "application/json", bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func stem(file string) string {
	base := path.Base(file)
	return strings.TrimSuffix(base, path.Ext(base))
}
