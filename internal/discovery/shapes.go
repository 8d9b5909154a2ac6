package discovery

import "strings"

// shapeParser converts one known mapping-response shape into URLs. It reports
// false when the response is not of its shape.
type shapeParser func(raw any) ([]string, bool)

// shapeParsers are tried in order; the first match wins.
var shapeParsers = []struct {
	name  string
	parse shapeParser
}{
	{"link_objects", parseLinkObjects},
	{"keyed_collection", parseKeyedCollection},
	{"bare_strings", parseBareStrings},
}

// collectionKeys are probed in order for the keyed shape.
var collectionKeys = []string{"links", "urls", "data", "results"}

// ParseLinks normalizes a raw mapping response into a flat URL list. It
// returns the name of the matching shape, or false when no shape applies.
func ParseLinks(raw any) ([]string, string, bool) {
	for _, sp := range shapeParsers {
		if links, ok := sp.parse(raw); ok {
			return links, sp.name, true
		}
	}
	return nil, "", false
}

// parseLinkObjects handles a list of objects exposing "url", either at the
// top level or under "links".
func parseLinkObjects(raw any) ([]string, bool) {
	list, ok := raw.([]any)
	if !ok {
		obj, isObj := raw.(map[string]any)
		if !isObj {
			return nil, false
		}
		list, ok = obj["links"].([]any)
		if !ok {
			return nil, false
		}
	}
	if len(list) == 0 {
		return nil, false
	}
	links := make([]string, 0, len(list))
	for _, item := range list {
		obj, isObj := item.(map[string]any)
		if !isObj {
			return nil, false
		}
		if u, isStr := obj["url"].(string); isStr && strings.TrimSpace(u) != "" {
			links = append(links, u)
		}
	}
	return links, true
}

// parseKeyedCollection handles a mapping whose first present collection key
// holds a list of strings.
func parseKeyedCollection(raw any) ([]string, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, key := range collectionKeys {
		value, present := obj[key]
		if !present {
			continue
		}
		return stringList(value)
	}
	return nil, false
}

// parseBareStrings handles a plain list of strings.
func parseBareStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), true
	default:
		return stringList(raw)
	}
}

func stringList(raw any) ([]string, bool) {
	if v, ok := raw.([]string); ok {
		return append([]string(nil), v...), true
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	links := make([]string, 0, len(list))
	for _, item := range list {
		s, isStr := item.(string)
		if !isStr {
			return nil, false
		}
		links = append(links, s)
	}
	return links, true
}
