package sink

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Artifact directories within a run.
const (
	KindHTML     = "html"
	KindMarkdown = "markdown"
	KindMeta     = "meta"
	KindJSON     = "json"
	KindFinal    = "final"

	summaryFile = "scraping_summary.json"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// RunDir is the directory holding everything written for one run date.
func RunDir(prefix, runDate string) string {
	return path.Join(strings.Trim(prefix, "/"), runDate)
}

// KindDir is the directory for one artifact kind of a source.
func KindDir(prefix, runDate, source, kind string) string {
	return path.Join(RunDir(prefix, runDate), source, kind)
}

// ManifestPath is where the discovered links of a run are recorded.
func ManifestPath(prefix, runDate, source string) string {
	return path.Join(RunDir(prefix, runDate), source+"_links.json")
}

// SummaryPath is where the run summary is recorded.
func SummaryPath(prefix, runDate string) string {
	return path.Join(RunDir(prefix, runDate), summaryFile)
}

// FileStem turns a slug into a safe file name stem. Postings without a slug
// are named after their discovery position.
func FileStem(slug string, order int) string {
	stem := strings.Trim(unsafeName.ReplaceAllString(slug, "_"), "._")
	if stem == "" {
		return "posting-" + strconv.Itoa(order)
	}
	return stem
}
