package domain

import "time"

type EventType string

const (
	EventProjectCreated      EventType = "project.created"
	EventProjectUpdated      EventType = "project.updated"
	EventProjectDeleted      EventType = "project.deleted"
	EventConversationCreated EventType = "conversation.created"
	EventConversationUpdated EventType = "conversation.updated"
	EventMessageCreated      EventType = "message.created"
)

// Event is an incremental directory update pushed to list subscribers.
type Event struct {
	Type         EventType     `json:"type"`
	OwnerUID     string        `json:"-"`
	ProjectID    string        `json:"project_id"`
	Project      *Project      `json:"project,omitempty"`
	Conversation *Conversation `json:"conversation,omitempty"`
	Message      *Message      `json:"message,omitempty"`
	At           time.Time     `json:"at"`
}
