package orchestrator

import (
	"github.com/tidwall/gjson"

	"github.com/bizconsole/console-backend/internal/workspace/upstream"
)

// Rescue looks for a structured reply embedded in free text that the service
// labelled as a plain message. It is best effort: ok is false whenever no
// embedded object declares a known non-message kind with the payload it needs.
func Rescue(text string) (*upstream.GenerationResponse, bool) {
	for _, obj := range objectLiterals(text) {
		if !gjson.Valid(obj) {
			continue
		}
		declared := gjson.Get(obj, "kind").String()
		if declared == "" {
			declared = gjson.Get(obj, "type").String()
		}
		kind, ok := upstream.ParseKind(declared)
		if !ok || kind == upstream.KindMessage {
			continue
		}
		resp, ok := upstream.DecodeResponse([]byte(obj))
		if !ok {
			continue
		}
		if kind == upstream.KindCodeUpdate && len(resp.Files) == 0 {
			continue
		}
		if kind == upstream.KindPlan && resp.Plan == nil {
			continue
		}
		return resp, true
	}
	return nil, false
}

// objectLiterals returns every outermost balanced {...} span in text, in order.
// Braces inside JSON strings do not count.
func objectLiterals(text string) []string {
	var out []string
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		if end, ok := matchBrace(text, i); ok {
			out = append(out, text[i:end+1])
			i = end
		}
	}
	return out
}

func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
