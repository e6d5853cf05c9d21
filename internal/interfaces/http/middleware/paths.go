package middleware

import "strings"

// pathSet matches request paths that a middleware should pass through untouched
type pathSet struct {
	exact    map[string]bool
	prefixes []string
}

func newPathSet(paths, prefixes []string) pathSet {
	exact := make(map[string]bool, len(paths))
	for _, p := range paths {
		exact[p] = true
	}
	return pathSet{exact: exact, prefixes: prefixes}
}

func (s pathSet) matches(path string) bool {
	if s.exact[path] {
		return true
	}
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
