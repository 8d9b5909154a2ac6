package crawler

import (
	"context"
	"io"
	"time"
)

// Mapper lists the URLs of a site. The response shape is left to the
// implementation; discovery normalizes it.
type Mapper interface {
	Map(ctx context.Context, siteRoot string) (any, error)
}

// Fetcher retrieves the raw document behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (RawDocument, error)
}

// Extractor turns a raw document into a posting. It never fails.
type Extractor interface {
	Extract(doc RawDocument) ExtractedPosting
}

// ResultSink persists accepted postings.
type ResultSink interface {
	Store(ctx context.Context, posting ExtractedPosting, meta RunMetadata) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// BlobReader reads back artifacts a BlobStore wrote. Paths are relative to
// the store root and use forward slashes.
type BlobReader interface {
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
