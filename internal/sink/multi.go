package sink

import (
	"context"
	"errors"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
)

// Multi fans a posting out to every sink. All sinks are attempted; their
// errors are joined.
type Multi []crawler.ResultSink

// Store implements crawler.ResultSink.
func (m Multi) Store(ctx context.Context, posting crawler.ExtractedPosting, meta crawler.RunMetadata) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Store(ctx, posting, meta); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
