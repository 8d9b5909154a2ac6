package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
)

var meta = crawler.RunMetadata{RunID: "0190c2a4-run", RunDate: "20240501", Source: "jobscallme"}

func TestStoreInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostingStoreWithPool(mock, "postings")
	require.NoError(t, err)

	posted := time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)
	fetched := time.Unix(1714550400, 0).UTC()
	posting := crawler.ExtractedPosting{
		URL:             "https://www.jobscall.me/job/backend",
		Slug:            "backend",
		DiscoveredOrder: 3,
		FragmentFound:   true,
		PostedAt:        &posted,
		PostedAtRaw:     "2024-05-01T08:00:00Z",
		NormalizedText:  "# Backend",
		FetchedAt:       fetched,
	}

	mock.ExpectExec("INSERT INTO postings").
		WithArgs(
			meta.RunID,
			posting.URL,
			posting.Slug,
			posting.DiscoveredOrder,
			posted,
			posting.PostedAtRaw,
			true,
			posting.NormalizedText,
			fetched,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Store(context.Background(), posting, meta))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUndatedPosting(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostingStoreWithPool(mock, "")
	require.NoError(t, err)

	posting := crawler.ExtractedPosting{URL: "https://x/job/a", Slug: "a"}
	mock.ExpectExec("INSERT INTO postings").
		WithArgs(meta.RunID, posting.URL, "a", 0, nil, "", false, "", time.Time{}).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, store.Store(context.Background(), posting, meta))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostingStoreWithPool(mock, "postings")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO postings").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err = store.Store(context.Background(), crawler.ExtractedPosting{URL: "https://x/job/a"}, meta)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert posting")
}

func TestStoreRequiresRunID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostingStoreWithPool(mock, "postings")
	require.NoError(t, err)
	assert.Error(t, store.Store(context.Background(), crawler.ExtractedPosting{}, crawler.RunMetadata{}))
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostingStoreWithPool(mock, "job_postings")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS job_postings").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConstructorValidation(t *testing.T) {
	t.Parallel()

	_, err := NewPostingStoreWithPool(nil, "postings")
	assert.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewPostingStoreWithPool(mock, "postings; DROP TABLE x")
	assert.Error(t, err)

	_, err = NewPostingStore(context.Background(), Config{})
	assert.Error(t, err)
}
