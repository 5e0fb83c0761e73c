package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/bizconsole/console-backend/internal/projects/domain"
)

// ConversationRepository persists conversations and their append-only messages.
// Ownership of the project is checked by the caller.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a conversation under projectID.
func (r *ConversationRepository) Create(ctx context.Context, projectID, title string) (*domain.Conversation, error) {
	if title == "" {
		title = domain.DefaultTitle
	}
	const q = `
INSERT INTO conversations (id, project_id, title)
VALUES ($1, $2, $3)
RETURNING id, project_id, title, last_message, created_at, updated_at;
`
	var c domain.Conversation
	err := r.db.QueryRowContext(ctx, q, uuid.NewString(), projectID, title).
		Scan(&c.ID, &c.ProjectID, &c.Title, &c.LastMessage, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns the conversations of a project, most recently active first.
func (r *ConversationRepository) List(ctx context.Context, projectID string) ([]domain.Conversation, error) {
	const q = `
SELECT id, project_id, title, last_message, created_at, updated_at
FROM conversations
WHERE project_id = $1
ORDER BY updated_at DESC;
`
	rows, err := r.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Conversation, 0, 8)
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Title, &c.LastMessage, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendMessage stores msg and refreshes the conversation's snippet. The first
// user turn replaces a default title. Both writes share one transaction.
func (r *ConversationRepository) AppendMessage(ctx context.Context, projectID string, msg domain.Message) (*domain.Message, *domain.Conversation, error) {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	images, err := json.Marshal(nonNil(msg.Images))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal images: %w", err)
	}
	steps, err := json.Marshal(nonNil(msg.Steps))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal steps: %w", err)
	}
	var plan any
	if msg.Plan != nil {
		raw, err := json.Marshal(msg.Plan)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal plan: %w", err)
		}
		plan = raw
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	title := ""
	if msg.Role == domain.RoleUser {
		title = domain.TitleFrom(msg.Content)
	}

	const qConv = `
UPDATE conversations
SET last_message = $3,
    title = CASE WHEN $4 <> '' AND title = $5 THEN $4 ELSE title END,
    updated_at = now()
WHERE id = $1 AND project_id = $2
RETURNING id, project_id, title, last_message, created_at, updated_at;
`
	var c domain.Conversation
	err = tx.QueryRowContext(ctx, qConv, msg.ConversationID, projectID, domain.SnippetFrom(msg.Content), title, domain.DefaultTitle).
		Scan(&c.ID, &c.ProjectID, &c.Title, &c.LastMessage, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, err
	}

	const qMsg = `
INSERT INTO messages (id, conversation_id, role, content, images, plan, steps, thinking_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err = tx.ExecContext(ctx, qMsg, msg.ID, msg.ConversationID, string(msg.Role), msg.Content,
		images, plan, steps, msg.ThinkingMs, msg.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &msg, &c, nil
}

// ListMessages returns a conversation's messages in append order.
func (r *ConversationRepository) ListMessages(ctx context.Context, projectID, conversationID string) ([]domain.Message, error) {
	const q = `
SELECT m.id, m.conversation_id, m.role, m.content, m.images, m.plan, m.steps, m.thinking_ms, m.created_at
FROM messages m
JOIN conversations c ON c.id = m.conversation_id
WHERE c.project_id = $1 AND m.conversation_id = $2
ORDER BY m.created_at ASC, m.id ASC;
`
	rows, err := r.db.QueryContext(ctx, q, projectID, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Message, 0, 32)
	for rows.Next() {
		var m domain.Message
		var role string
		var images, plan, steps []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &images, &plan, &steps, &m.ThinkingMs, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		if len(images) > 0 {
			if err := json.Unmarshal(images, &m.Images); err != nil {
				return nil, fmt.Errorf("failed to unmarshal images: %w", err)
			}
		}
		if len(steps) > 0 {
			if err := json.Unmarshal(steps, &m.Steps); err != nil {
				return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
			}
		}
		if len(plan) > 0 && string(plan) != "null" {
			m.Plan = &domain.Plan{}
			if err := json.Unmarshal(plan, m.Plan); err != nil {
				return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
