// Package firecrawl talks to a Firecrawl scraping service. The client maps a
// site into a list of URLs and scrapes single pages as HTML.
package firecrawl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	fc "github.com/mendableai/firecrawl-go"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
)

// DefaultBaseURL is where a self-hosted Firecrawl listens by default.
const DefaultBaseURL = "http://localhost:3002"

// selfHostedKey stands in for the API key of instances that run without
// authentication. The SDK refuses an empty key.
const selfHostedKey = "fc-self-hosted"

const defaultTimeout = 60 * time.Second

// Config controls the Firecrawl client.
type Config struct {
	BaseURL string
	// APIKey is sent as a bearer token. Self-hosted instances usually run
	// without one.
	APIKey string
	// MapLimit caps the number of URLs the map endpoint returns. Zero lets
	// the service decide.
	MapLimit int
	Timeout  time.Duration
}

// Client implements crawler.Mapper and crawler.Fetcher.
type Client struct {
	cfg    Config
	app    *fc.FirecrawlApp
	logger *zap.Logger
}

// New constructs a Client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	key := cfg.APIKey
	if key == "" {
		key = selfHostedKey
	}
	app, err := fc.NewFirecrawlApp(key, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("init firecrawl: %w", err)
	}
	app.Client = httpClient
	return &Client{
		cfg:    cfg,
		app:    app,
		logger: logger,
	}, nil
}

// Map returns the mapped links as a keyed collection ({"links": [...]}) so
// discovery can normalize it like any other map response.
func (c *Client) Map(ctx context.Context, siteRoot string) (any, error) {
	var params *fc.MapParams
	if c.cfg.MapLimit > 0 {
		limit := c.cfg.MapLimit
		params = &fc.MapParams{Limit: &limit}
	}
	resp, err := call(ctx, "map", func() (*fc.MapResponse, error) {
		return c.app.MapURL(siteRoot, params)
	})
	if err != nil {
		return nil, err
	}
	links := make([]any, 0, len(resp.Links))
	for _, l := range resp.Links {
		links = append(links, l)
	}
	c.logger.Debug("site mapped", zap.String("site", siteRoot), zap.Int("links", len(links)))
	return map[string]any{"links": links}, nil
}

// Fetch scrapes url and returns its HTML.
func (c *Client) Fetch(ctx context.Context, url string) (crawler.RawDocument, error) {
	doc, err := call(ctx, "scrape", func() (*fc.FirecrawlDocument, error) {
		return c.app.ScrapeURL(url, &fc.ScrapeParams{Formats: []string{"html"}})
	})
	if err != nil {
		return crawler.RawDocument{}, err
	}
	html := ""
	if doc != nil {
		html = firstNonEmpty(doc.HTML, doc.RawHTML)
	}
	if html == "" {
		return crawler.RawDocument{}, fmt.Errorf("scrape %s: response has no html", url)
	}
	return crawler.RawDocument{
		URL:       url,
		Body:      html,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// call runs a blocking SDK request and gives up when ctx ends first. The
// abandoned request is still bounded by the HTTP client timeout.
func call[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v: v, err: err}
	}()

	var zero T
	select {
	case <-ctx.Done():
		return zero, classify(op, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return zero, classify(op, r.err)
		}
		return r.v, nil
	}
}

func classify(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: firecrawl %s: %w", crawler.ErrTimeout, op, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("firecrawl %s: %w", op, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: firecrawl %s: %w", crawler.ErrUnreachable, op, err)
	}
	return fmt.Errorf("firecrawl %s: %w", op, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
