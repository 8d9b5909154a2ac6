// Package sink persists accepted postings and per-run records through a
// BlobStore, optionally announcing each stored posting on a topic.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
	"github.com/JakeFAU/jobscall-crawler/internal/hash/sha256"
)

// Config controls where artifacts land and which topic is notified.
type Config struct {
	Prefix string
	// Topic enables one notification per stored posting when set.
	Topic string
}

// JobInfo describes one stored posting in the run summary.
type JobInfo struct {
	URL           string     `json:"url"`
	HTMLFile      string     `json:"html_filename"`
	MarkdownFile  string     `json:"md_filename"`
	HTMLLength    int        `json:"html_length"`
	MDLength      int        `json:"md_length"`
	ArticleFound  bool       `json:"article_found"`
	TimeValue     string     `json:"time_value"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
	BlobURI       string     `json:"blob_uri"`
	ContentSHA256 string     `json:"content_sha256"`
}

type metaRecord struct {
	RunID           string    `json:"run_id"`
	Slug            string    `json:"slug"`
	DiscoveredOrder int       `json:"discovered_order"`
	FetchedAt       time.Time `json:"fetched_at"`
	JobInfo
}

// BlobSink implements crawler.ResultSink on top of a BlobStore.
type BlobSink struct {
	store     crawler.BlobStore
	publisher crawler.Publisher
	clock     crawler.Clock
	cfg       Config
	hasher    *sha256.Hasher
	logger    *zap.Logger

	mu   sync.Mutex
	jobs []JobInfo
}

// New constructs a BlobSink. publisher may be nil.
func New(
	store crawler.BlobStore,
	publisher crawler.Publisher,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *BlobSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobSink{
		store:     store,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		hasher:    sha256.New(),
		logger:    logger,
	}
}

// Store writes the posting's HTML fragment, Markdown, and metadata.
func (s *BlobSink) Store(ctx context.Context, posting crawler.ExtractedPosting, meta crawler.RunMetadata) error {
	if s.store == nil {
		return fmt.Errorf("blob store is not configured")
	}
	stem := FileStem(posting.Slug, posting.DiscoveredOrder)
	htmlPath := path.Join(KindDir(s.cfg.Prefix, meta.RunDate, meta.Source, KindHTML), stem+".html")
	mdPath := path.Join(KindDir(s.cfg.Prefix, meta.RunDate, meta.Source, KindMarkdown), stem+".md")
	metaPath := path.Join(KindDir(s.cfg.Prefix, meta.RunDate, meta.Source, KindMeta), stem+".json")

	if _, err := s.store.PutObject(ctx, htmlPath, "text/html; charset=utf-8", bytes.NewReader([]byte(posting.ContentFragment))); err != nil {
		return fmt.Errorf("store html: %w", err)
	}
	mdURI, err := s.store.PutObject(ctx, mdPath, "text/markdown; charset=utf-8", bytes.NewReader([]byte(posting.NormalizedText)))
	if err != nil {
		return fmt.Errorf("store markdown: %w", err)
	}

	info := JobInfo{
		URL:           posting.URL,
		HTMLFile:      path.Base(htmlPath),
		MarkdownFile:  path.Base(mdPath),
		HTMLLength:    len(posting.ContentFragment),
		MDLength:      len(posting.NormalizedText),
		ArticleFound:  posting.FragmentFound,
		TimeValue:     posting.PostedAtRaw,
		PostedAt:      posting.PostedAt,
		BlobURI:       mdURI,
		ContentSHA256: s.hasher.Hash([]byte(posting.NormalizedText)),
	}
	record := metaRecord{
		RunID:           meta.RunID,
		Slug:            posting.Slug,
		DiscoveredOrder: posting.DiscoveredOrder,
		FetchedAt:       posting.FetchedAt,
		JobInfo:         info,
	}
	if err := s.putJSON(ctx, metaPath, record); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, info)
	s.mu.Unlock()

	s.logger.Debug("posting stored", zap.String("url", posting.URL), zap.String("blob_uri", mdURI))
	return s.notify(ctx, posting, meta, mdURI)
}

func (s *BlobSink) notify(ctx context.Context, posting crawler.ExtractedPosting, meta crawler.RunMetadata, uri string) error {
	if s.cfg.Topic == "" || s.publisher == nil {
		return nil
	}
	payload := map[string]any{
		"run_id":    meta.RunID,
		"url":       posting.URL,
		"blob_uri":  uri,
		"posted_at": posting.PostedAtRaw,
		"timestamp": s.now().Format(time.RFC3339),
	}
	if _, err := s.publisher.Publish(ctx, s.cfg.Topic, payload); err != nil {
		return fmt.Errorf("publish payload: %w", err)
	}
	s.logger.Info("posting published",
		zap.String("run_id", meta.RunID),
		zap.String("url", posting.URL),
		zap.String("blob_uri", uri),
	)
	return nil
}

// Jobs returns the postings stored so far, in store order.
func (s *BlobSink) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]JobInfo(nil), s.jobs...)
}

type manifest struct {
	URL        string    `json:"url"`
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	TotalLinks int       `json:"total_links"`
	Links      []string  `json:"links"`
}

// WriteManifest records the candidate links discovered for a run.
func (s *BlobSink) WriteManifest(ctx context.Context, meta crawler.RunMetadata, links []string) (string, error) {
	if links == nil {
		links = []string{}
	}
	p := ManifestPath(s.cfg.Prefix, meta.RunDate, meta.Source)
	doc := manifest{
		URL:        meta.SiteRoot,
		RunID:      meta.RunID,
		Timestamp:  s.now(),
		TotalLinks: len(links),
		Links:      links,
	}
	if err := s.putJSON(ctx, p, doc); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return p, nil
}

// Summary is the run-level record written after dispatch completes.
type Summary struct {
	Source      string              `json:"source"`
	RunID       string              `json:"run_id"`
	Timestamp   time.Time           `json:"timestamp"`
	TotalJobs   int                 `json:"total_jobs"`
	Halted      bool                `json:"halted"`
	HaltedBy    string              `json:"halted_by,omitempty"`
	Counters    crawler.RunCounters `json:"counters"`
	ScrapedJobs []JobInfo           `json:"scraped_jobs"`
}

// WriteSummary records the run outcome together with every stored posting.
func (s *BlobSink) WriteSummary(ctx context.Context, meta crawler.RunMetadata, state *crawler.RunState) (string, error) {
	if state == nil {
		return "", errors.New("run state is required")
	}
	jobs := s.Jobs()
	if jobs == nil {
		jobs = []JobInfo{}
	}
	p := SummaryPath(s.cfg.Prefix, meta.RunDate)
	doc := Summary{
		Source:      meta.Source,
		RunID:       meta.RunID,
		Timestamp:   s.now(),
		TotalJobs:   len(jobs),
		Halted:      state.Halted,
		HaltedBy:    state.HaltedBy,
		Counters:    state.Counters,
		ScrapedJobs: jobs,
	}
	if err := s.putJSON(ctx, p, doc); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return p, nil
}

func (s *BlobSink) putJSON(ctx context.Context, p string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", p, err)
	}
	if _, err := s.store.PutObject(ctx, p, "application/json", bytes.NewReader(data)); err != nil {
		return err
	}
	return nil
}

func (s *BlobSink) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now().UTC()
}
