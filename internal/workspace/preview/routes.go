package preview

import (
	"strings"

	"github.com/bizconsole/console-backend/internal/workspace/domain"
)

// NormalizeRoute strips query, fragment and surrounding slashes from a
// preview path. The root route is "".
func NormalizeRoute(route string) string {
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	return strings.Trim(strings.TrimSpace(route), "/")
}

// RouteCandidates lists, in priority order, the source files that may render route.
func RouteCandidates(route string) []string {
	r := NormalizeRoute(route)
	if r == "" {
		return []string{
			"src/app/page.tsx",
			"src/app/page.jsx",
			"app/page.tsx",
			"src/pages/index.tsx",
			"pages/index.tsx",
			"index.html",
		}
	}
	return []string{
		"src/app/" + r + "/page.tsx",
		"src/app/" + r + "/page.jsx",
		"app/" + r + "/page.tsx",
		"src/pages/" + r + ".tsx",
		"src/pages/" + r + "/index.tsx",
		"pages/" + r + ".tsx",
		r + ".html",
	}
}

// ResolveRoute returns the first candidate present in files.
func ResolveRoute(files domain.FileMap, route string) (string, bool) {
	for _, p := range RouteCandidates(route) {
		if _, ok := files[p]; ok {
			return p, true
		}
	}
	return "", false
}
