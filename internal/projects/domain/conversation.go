package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	TitleMaxRunes   = 40
	SnippetMaxRunes = 80
	DefaultTitle    = "New conversation"
)

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Conversation is a chat thread belonging to exactly one project.
type Conversation struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	LastMessage string    `json:"last_message"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Plan is a proposed, unapplied change description. It carries no state of
// its own; see PlanResolved.
type Plan struct {
	Summary       string   `json:"summary"`
	Features      []string `json:"features,omitempty"`
	FileStructure []string `json:"file_structure,omitempty"`
	Theme         string   `json:"theme,omitempty"`
}

type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepCurrent StepStatus = "current"
	StepDone    StepStatus = "done"
	StepError   StepStatus = "error"
)

type StepCategory string

const (
	StepInProgress StepCategory = "in-progress"
	StepUpcoming   StepCategory = "upcoming"
)

// Step is display-only progress derived from a reply.
type Step struct {
	Label    string       `json:"label"`
	Status   StepStatus   `json:"status"`
	Category StepCategory `json:"category"`
}

// Message is immutable once stored.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Images         []string  `json:"images,omitempty"`
	Plan           *Plan     `json:"plan,omitempty"`
	Steps          []Step    `json:"steps,omitempty"`
	ThinkingMs     int64     `json:"thinking_ms,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type PlanStatus string

const (
	PlanPending  PlanStatus = "pending"
	PlanResolved PlanStatus = "resolved"
)

// PlanStatusAt derives the status of the plan carried by msgs[i]. A plan is
// resolved once any later user turn exists. It returns "" when msgs[i] has no plan.
func PlanStatusAt(msgs []Message, i int) PlanStatus {
	if i < 0 || i >= len(msgs) || msgs[i].Plan == nil {
		return ""
	}
	for _, m := range msgs[i+1:] {
		if m.Role == RoleUser {
			return PlanResolved
		}
	}
	return PlanPending
}

// TitleFrom derives a conversation title from the first user turn.
func TitleFrom(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	if t == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(t) <= TitleMaxRunes {
		return t
	}
	return string([]rune(t)[:TitleMaxRunes]) + "..."
}

// SnippetFrom derives the last-message preview, never longer than SnippetMaxRunes.
func SnippetFrom(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(t) <= SnippetMaxRunes {
		return t
	}
	return string([]rune(t)[:SnippetMaxRunes-3]) + "..."
}
