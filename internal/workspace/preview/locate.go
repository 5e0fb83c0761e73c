package preview

import (
	"strconv"
	"strings"

	"github.com/bizconsole/console-backend/internal/workspace/domain"
)

// Location is a position in a source file. Line and Column are 1-based; 0 means unknown.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// ParseLoc parses "file:line" or "file:line:col".
func ParseLoc(loc string) (Location, bool) {
	parts := strings.Split(strings.TrimSpace(loc), ":")
	var nums []int
	for len(parts) > 1 && len(nums) < 2 {
		n, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil || n <= 0 {
			break
		}
		nums = append([]int{n}, nums...)
		parts = parts[:len(parts)-1]
	}
	if len(nums) == 0 {
		return Location{}, false
	}
	file := domain.NormalizePath(strings.Join(parts, ":"))
	if file == "" {
		return Location{}, false
	}
	l := Location{File: file, Line: nums[0]}
	if len(nums) == 2 {
		l.Column = nums[1]
	}
	return l, true
}

var searchableExt = []string{".tsx", ".jsx", ".ts", ".js", ".html", ".mdx", ".md"}

func searchable(p string) bool {
	for _, ext := range searchableExt {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// searchOrder puts preferred first, then every other searchable file in path order.
func searchOrder(files domain.FileMap, preferred string) []string {
	out := make([]string, 0, len(files))
	if _, ok := files[preferred]; ok && preferred != "" {
		out = append(out, preferred)
	}
	for _, p := range files.Paths() {
		if p != preferred && searchable(p) {
			out = append(out, p)
		}
	}
	return out
}

// FindText locates the first line containing the visible text of an element.
func FindText(files domain.FileMap, text, preferred string) (Location, bool) {
	needle := strings.Join(strings.Fields(text), " ")
	if len([]rune(needle)) < 2 {
		return Location{}, false
	}
	for _, p := range searchOrder(files, preferred) {
		for i, line := range strings.Split(files[p], "\n") {
			if strings.Contains(strings.Join(strings.Fields(line), " "), needle) {
				return Location{File: p, Line: i + 1}, true
			}
		}
	}
	return Location{}, false
}

// FindClass locates a class attribute carrying className, first as a whole,
// then by its first token.
func FindClass(files domain.FileMap, className, preferred string) (Location, bool) {
	tokens := strings.Fields(className)
	if len(tokens) == 0 {
		return Location{}, false
	}
	order := searchOrder(files, preferred)
	for _, needle := range []string{strings.Join(tokens, " "), tokens[0]} {
		for _, p := range order {
			for i, line := range strings.Split(files[p], "\n") {
				if (strings.Contains(line, "className") || strings.Contains(line, "class=")) && strings.Contains(line, needle) {
					return Location{File: p, Line: i + 1}, true
				}
			}
		}
	}
	return Location{}, false
}
