package domain

import (
	"path"
	"sort"
	"strings"
)

// FileMap maps a normalized project path to file content.
type FileMap map[string]string

// Clone returns an independent copy. A nil map clones to an empty map.
func (m FileMap) Clone() FileMap {
	out := make(FileMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Paths returns the keys in lexical order.
func (m FileMap) Paths() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both maps hold exactly the same paths and contents.
func (m FileMap) Equal(other FileMap) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Delta describes what changed between two maps.
type Delta struct {
	Upserts FileMap
	Deletes []string
}

// Empty reports whether the delta carries no work.
func (d Delta) Empty() bool {
	return len(d.Upserts) == 0 && len(d.Deletes) == 0
}

// Diff computes the writes needed to turn prev into next.
func Diff(prev, next FileMap) Delta {
	d := Delta{Upserts: FileMap{}}
	for k, v := range next {
		if pv, ok := prev[k]; !ok || pv != v {
			d.Upserts[k] = v
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			d.Deletes = append(d.Deletes, k)
		}
	}
	sort.Strings(d.Deletes)
	return d
}

// NormalizePath turns user or model supplied paths into the canonical key form:
// forward slashes, no leading "./" or "/", cleaned. Returns "" for paths that
// resolve outside the project root.
func NormalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return ""
	}
	return p
}
