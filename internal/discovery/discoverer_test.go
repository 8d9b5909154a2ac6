package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscall-crawler/internal/crawler"
)

func TestDiscoverBuildsOrderedCandidates(t *testing.T) {
	t.Parallel()

	mapper := &fakeMapper{raw: map[string]any{
		"links": []any{
			map[string]any{"url": "https://www.jobscall.me/job/zeta"},
			map[string]any{"url": "https://www.jobscall.me/job/category/it"},
			map[string]any{"url": "https://www.jobscall.me/job/alpha"},
			map[string]any{"url": "https://www.jobscall.me/job/jobscallmefb"},
		},
	}}
	d := New(mapper, Config{Exclude: []string{"/job/jobscallmefb"}}, zap.NewNop())

	got, err := d.Discover(context.Background(), "https://www.jobscall.me/job")
	require.NoError(t, err)
	assert.Equal(t, "https://www.jobscall.me/job", mapper.site)
	assert.Equal(t, []crawler.CandidateLink{
		{URL: "https://www.jobscall.me/job/zeta", DiscoveredOrder: 0, Slug: "zeta"},
		{URL: "https://www.jobscall.me/job/alpha", DiscoveredOrder: 1, Slug: "alpha"},
	}, got)
	assert.Equal(t, []string{"https://www.jobscall.me/job/zeta", "https://www.jobscall.me/job/alpha"}, URLs(got))
}

func TestDiscoverErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mapper crawler.Mapper
	}{
		{"unreachable", &fakeMapper{err: crawler.ErrUnreachable}},
		{"unknown shape", &fakeMapper{raw: map[string]any{"status": "ok"}}},
		{"empty collection", &fakeMapper{raw: []any{}}},
		{"nil mapper", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := New(tc.mapper, Config{}, nil)
			got, err := d.Discover(context.Background(), "https://example.com")
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, crawler.ErrDiscovery))
		})
	}
}

func TestDiscoverUnreachableKeepsCause(t *testing.T) {
	t.Parallel()

	d := New(&fakeMapper{err: crawler.ErrUnreachable}, Config{}, nil)
	_, err := d.Discover(context.Background(), "https://example.com")
	require.ErrorIs(t, err, crawler.ErrUnreachable)
}

func TestDiscoverNoMatchesIsNotAnError(t *testing.T) {
	t.Parallel()

	d := New(&fakeMapper{raw: []any{"https://example.com/about"}}, Config{}, nil)
	got, err := d.Discover(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Empty(t, got)
}

type fakeMapper struct {
	raw  any
	err  error
	site string
}

func (m *fakeMapper) Map(_ context.Context, siteRoot string) (any, error) {
	m.site = siteRoot
	return m.raw, m.err
}
