package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"job page", "https://www.jobscall.me/job/backend-engineer", "www.jobscall.me"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := postingsTotal
	Init()
	require.NotNil(t, first)
	assert.Same(t, first, postingsTotal)
}

func TestObservePosting(t *testing.T) {
	Init()
	counter := postingsTotal.WithLabelValues("posting.example", StatusAccepted)
	before := testutil.ToFloat64(counter)

	ObservePosting("https://posting.example/job/a", StatusAccepted)
	ObservePosting("https://posting.example/job/b", StatusAccepted)

	assert.InDelta(t, before+2, testutil.ToFloat64(counter), 0.0001)
}

func TestObserveHalt(t *testing.T) {
	Init()
	halts := haltsTotal.WithLabelValues("halt_test_mode")
	cancelledBefore := testutil.ToFloat64(candidatesCancelledTotal)

	ObserveHalt("halt_test_mode", 3)
	ObserveHalt("halt_test_mode", 0)

	assert.InDelta(t, 2, testutil.ToFloat64(halts), 0.0001)
	assert.GreaterOrEqual(t, testutil.ToFloat64(candidatesCancelledTotal), cancelledBefore+3)
}

func TestObserveDiscoveryAndFetch(t *testing.T) {
	Init()
	ObserveDiscovery("https://discovery.example/job", 4)
	assert.InDelta(t, 4, testutil.ToFloat64(discoveredLinksTotal.WithLabelValues("discovery.example")), 0.0001)

	ObserveFetch("https://fetch.example/job/x", 250*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(fetchDurationSeconds, "jobcrawler_fetch_duration_seconds"))
}
