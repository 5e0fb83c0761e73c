package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, "Add a contact button", TitleFrom("  Add a  contact\nbutton "))
	assert.Equal(t, DefaultTitle, TitleFrom("   "))

	long := strings.Repeat("é", 50)
	title := TitleFrom(long)
	assert.Equal(t, strings.Repeat("é", 40)+"...", title)
}

func TestSnippetFrom(t *testing.T) {
	s := SnippetFrom(strings.Repeat("a", 200))
	assert.Equal(t, SnippetMaxRunes, utf8.RuneCountInString(s))
	assert.True(t, strings.HasSuffix(s, "..."))
	assert.Equal(t, "short", SnippetFrom("short"))
}

func TestPlanStatusAt(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "build me a site"},
		{Role: RoleAI, Plan: &Plan{Summary: "landing page"}},
	}
	assert.Equal(t, PlanPending, PlanStatusAt(msgs, 1))
	assert.Equal(t, PlanStatus(""), PlanStatusAt(msgs, 0))

	msgs = append(msgs, Message{Role: RoleAI, Content: "anything else?"})
	assert.Equal(t, PlanPending, PlanStatusAt(msgs, 1), "ai turns do not resolve a plan")

	msgs = append(msgs, Message{Role: RoleUser, Content: "Approved. Please implement the plan."})
	assert.Equal(t, PlanResolved, PlanStatusAt(msgs, 1))
	assert.Equal(t, PlanStatus(""), PlanStatusAt(msgs, 9))
}
