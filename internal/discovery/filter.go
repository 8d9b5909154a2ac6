package discovery

import "strings"

// DefaultJobMarker is the path segment that identifies a job posting URL.
const DefaultJobMarker = "/job/"

// FilterJobLinks keeps URLs whose remainder after the marker is a single
// non-empty path segment, dropping category/tag listings and anything matching
// an exclusion substring. Order is preserved and duplicates are kept.
func FilterJobLinks(links []string, marker string, exclude []string) []string {
	if marker == "" {
		marker = DefaultJobMarker
	}
	out := make([]string, 0, len(links))
	for _, link := range links {
		if !strings.Contains(link, marker) {
			continue
		}
		if excluded(link, exclude) {
			continue
		}
		remainder := JobSlug(link, marker)
		switch {
		case remainder == "":
			continue
		case strings.Contains(remainder, "/"):
			continue
		case strings.HasSuffix(link, marker):
			continue
		case strings.Contains(link, marker+"category/"), strings.Contains(link, marker+"tag/"):
			continue
		}
		out = append(out, link)
	}
	return out
}

// JobSlug returns the part of link after the last occurrence of marker, or ""
// when the marker is absent.
func JobSlug(link, marker string) string {
	idx := strings.LastIndex(link, marker)
	if idx < 0 {
		return ""
	}
	return link[idx+len(marker):]
}

func excluded(link string, exclude []string) bool {
	for _, pattern := range exclude {
		if pattern != "" && strings.Contains(link, pattern) {
			return true
		}
	}
	return false
}
