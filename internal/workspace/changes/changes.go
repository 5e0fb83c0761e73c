package changes

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/bizconsole/console-backend/internal/workspace/domain"
)

const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// FileChange summarises the line-level effect of a mutation on one file.
type FileChange struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

// Between returns one FileChange per path that differs between prev and next,
// in path order. Unchanged files are omitted.
func Between(prev, next domain.FileMap) []FileChange {
	delta := domain.Diff(prev, next)
	out := make([]FileChange, 0, len(delta.Upserts)+len(delta.Deletes))
	for _, p := range delta.Upserts.Paths() {
		before, existed := prev[p]
		added, removed := LineStats(before, next[p])
		kind := KindUpdated
		if !existed {
			kind = KindCreated
		}
		out = append(out, FileChange{Path: p, Kind: kind, Added: added, Removed: removed})
	}
	for _, p := range delta.Deletes {
		_, removed := LineStats(prev[p], "")
		out = append(out, FileChange{Path: p, Kind: KindDeleted, Removed: removed})
	}
	return out
}

// LineStats counts added and removed lines using a line-mode diff.
func LineStats(before, after string) (added, removed int) {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		n := lineCount(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

// Summary renders "N file(s) changed." the way the workspace notifies users.
func Summary(n int) string {
	if n == 1 {
		return "1 file changed."
	}
	return fmt.Sprintf("%d files changed.", n)
}

func lineCount(value string) int {
	if value == "" {
		return 0
	}
	n := strings.Count(value, "\n")
	if !strings.HasSuffix(value, "\n") {
		n++
	}
	return n
}
