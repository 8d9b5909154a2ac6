package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileStem(t *testing.T) {
	t.Parallel()

	cases := []struct {
		slug  string
		order int
		want  string
	}{
		{"backend-engineer", 0, "backend-engineer"},
		{"senior dev?ref=1", 0, "senior_dev_ref_1"},
		{"", 7, "posting-7"},
		{"..", 3, "posting-3"},
		{"職位", 1, "posting-1"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FileStem(tc.slug, tc.order), tc.slug)
	}
}

func TestPaths(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "20240501", RunDir("", "20240501"))
	assert.Equal(t, "job-data/20240501", RunDir("/job-data/", "20240501"))
	assert.Equal(t, "job-data/20240501/jobscallme/markdown", KindDir("job-data", "20240501", "jobscallme", KindMarkdown))
	assert.Equal(t, "job-data/20240501/jobscallme_links.json", ManifestPath("job-data", "20240501", "jobscallme"))
	assert.Equal(t, "job-data/20240501/scraping_summary.json", SummaryPath("job-data", "20240501"))
}
