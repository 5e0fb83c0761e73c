package filestore

import (
	"net/url"
	"strings"
)

// StripFences removes markdown code fences wrapping the whole content. Models
// sometimes double-encode a fence, so wrapping is peeled repeatedly. Content
// that merely contains fenced blocks is left alone.
func StripFences(content string) string {
	for {
		trimmed := strings.TrimSpace(content)
		if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
			return content
		}
		nl := strings.IndexByte(trimmed, '\n')
		if nl < 0 {
			return content
		}
		// The opening line may only carry a language tag.
		if strings.ContainsAny(strings.TrimSpace(trimmed[3:nl]), " `") {
			return content
		}
		inner := trimmed[nl+1 : len(trimmed)-3]
		inner = strings.TrimSuffix(inner, "\n")
		// Several fenced blocks side by side are a document, not a wrapper.
		if strings.Contains(inner, "```") && !strings.HasPrefix(strings.TrimSpace(inner), "```") {
			return content
		}
		content = inner + "\n"
		if strings.TrimSpace(inner) == "" {
			return ""
		}
	}
}

// FileKey escapes a normalized path into a single store key segment so path
// separators never collide with the store's key delimiter.
func FileKey(path string) string {
	return url.PathEscape(path)
}

// PathFromKey reverses FileKey.
func PathFromKey(key string) (string, error) {
	return url.PathUnescape(key)
}
