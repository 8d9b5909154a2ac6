// Package extract isolates a posting's article fragment, finds its
// publication timestamp, and renders the fragment as Markdown.
package extract

import (
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
)

// Default selectors for the posting container and its timestamp.
const (
	DefaultArticleSelector = "article"
	DefaultTimeSelector    = "time"
	dateAttribute          = "datetime"
)

// Config controls which elements are treated as the posting and its date.
type Config struct {
	ArticleSelector string
	TimeSelector    string
	// Location is applied to timestamps that carry no zone. Defaults to UTC.
	Location *time.Location
}

// Extractor implements crawler.Extractor with goquery. It is safe for
// concurrent use.
type Extractor struct {
	cfg       Config
	converter *md.Converter
	logger    *zap.Logger
}

// New constructs an Extractor.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if cfg.ArticleSelector == "" {
		cfg.ArticleSelector = DefaultArticleSelector
	}
	if cfg.TimeSelector == "" {
		cfg.TimeSelector = DefaultTimeSelector
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		cfg:       cfg,
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}
}

// Extract never fails: when no article is found the whole body becomes the
// fragment, and an unparseable date leaves PostedAt nil.
func (e *Extractor) Extract(doc crawler.RawDocument) crawler.ExtractedPosting {
	posting := crawler.ExtractedPosting{
		URL:             doc.URL,
		ContentFragment: doc.Body,
		FetchedAt:       doc.FetchedAt,
	}

	article, ok := e.findArticle(doc)
	if ok {
		if fragment, err := goquery.OuterHtml(article); err == nil {
			posting.ContentFragment = fragment
			posting.FragmentFound = true
			posting.PostedAtRaw = e.findTimestamp(article)
		} else {
			e.logger.Debug("serialize article failed", zap.String("url", doc.URL), zap.Error(err))
		}
	} else {
		e.logger.Debug("no article container found", zap.String("url", doc.URL))
	}

	if posting.PostedAtRaw != "" {
		posting.PostedAt = e.parseDate(doc.URL, posting.PostedAtRaw)
	}
	posting.NormalizedText = e.Normalize(posting.ContentFragment)
	return posting
}

func (e *Extractor) findArticle(doc crawler.RawDocument) (*goquery.Selection, bool) {
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc.Body))
	if err != nil {
		e.logger.Debug("parse document failed", zap.String("url", doc.URL), zap.Error(err))
		return nil, false
	}
	article := parsed.Find(e.cfg.ArticleSelector).First()
	if article.Length() == 0 {
		return nil, false
	}
	return article, true
}

// findTimestamp prefers the machine-readable attribute over visible text.
// The attribute is returned exactly as written.
func (e *Extractor) findTimestamp(article *goquery.Selection) string {
	timeTag := article.Find(e.cfg.TimeSelector).First()
	if timeTag.Length() == 0 {
		return ""
	}
	if value, exists := timeTag.Attr(dateAttribute); exists && strings.TrimSpace(value) != "" {
		return value
	}
	return strings.TrimSpace(timeTag.Text())
}

func (e *Extractor) parseDate(url, raw string) *time.Time {
	parsed, err := dateparse.ParseIn(strings.TrimSpace(raw), e.cfg.Location)
	if err != nil {
		e.logger.Debug("unparseable posting date",
			zap.String("url", url),
			zap.String("time_value", raw),
			zap.Error(err),
		)
		return nil
	}
	return &parsed
}

// Normalize renders an HTML fragment as Markdown without line wrapping. If
// conversion fails it falls back to the fragment's visible text.
func (e *Extractor) Normalize(fragment string) string {
	markdown, err := e.converter.ConvertString(fragment)
	if err == nil {
		return markdown
	}
	e.logger.Debug("markdown conversion failed", zap.Error(err))
	parsed, perr := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if perr != nil {
		return fragment
	}
	return strings.TrimSpace(parsed.Text())
}
