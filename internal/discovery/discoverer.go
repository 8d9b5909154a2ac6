// Package discovery maps a target site and filters the result down to job
// posting candidates in first-seen order.
package discovery

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
	"github.com/JakeFAU/jobscall-crawler/internal/metrics"
)

// Config controls candidate filtering.
type Config struct {
	// JobMarker identifies posting URLs, e.g. "/job/".
	JobMarker string
	// Exclude drops any URL containing one of these substrings.
	Exclude []string
}

// Discoverer turns a site map into ordered candidate links.
type Discoverer struct {
	mapper crawler.Mapper
	cfg    Config
	logger *zap.Logger
}

// New constructs a Discoverer.
func New(mapper crawler.Mapper, cfg Config, logger *zap.Logger) *Discoverer {
	if cfg.JobMarker == "" {
		cfg.JobMarker = DefaultJobMarker
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		mapper: mapper,
		cfg:    cfg,
		logger: logger,
	}
}

// Discover maps siteRoot and returns the filtered candidates. It fails with a
// *crawler.DiscoveryError when the mapper is unreachable or its response holds
// no usable link collection. An empty filtered set is not an error.
func (d *Discoverer) Discover(ctx context.Context, siteRoot string) ([]crawler.CandidateLink, error) {
	if d.mapper == nil {
		return nil, &crawler.DiscoveryError{SiteRoot: siteRoot, Message: "no mapper configured"}
	}
	d.logger.Info("mapping site", zap.String("site", siteRoot))
	raw, err := d.mapper.Map(ctx, siteRoot)
	if err != nil {
		return nil, &crawler.DiscoveryError{SiteRoot: siteRoot, Message: "map site", Cause: err}
	}
	links, shape, ok := ParseLinks(raw)
	if !ok {
		return nil, &crawler.DiscoveryError{SiteRoot: siteRoot, Message: "unrecognized link collection"}
	}
	if len(links) == 0 {
		return nil, &crawler.DiscoveryError{SiteRoot: siteRoot, Message: "empty link collection"}
	}

	filtered := FilterJobLinks(links, d.cfg.JobMarker, d.cfg.Exclude)
	candidates := make([]crawler.CandidateLink, 0, len(filtered))
	for i, link := range filtered {
		candidates = append(candidates, crawler.CandidateLink{
			URL:             link,
			DiscoveredOrder: i,
			Slug:            JobSlug(link, d.cfg.JobMarker),
		})
	}

	metrics.ObserveDiscovery(siteRoot, len(candidates))

	fields := []zap.Field{
		zap.String("site", siteRoot),
		zap.String("shape", shape),
		zap.Int("links", len(links)),
		zap.Int("candidates", len(candidates)),
	}
	if len(candidates) == 0 {
		d.logger.Warn("no job links matched", append(fields, zap.String("marker", d.cfg.JobMarker))...)
	} else {
		d.logger.Info("discovery complete", fields...)
	}
	return candidates, nil
}

// URLs flattens candidates back into their URLs, preserving order.
func URLs(candidates []crawler.CandidateLink) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, strings.TrimSpace(c.URL))
	}
	return out
}
