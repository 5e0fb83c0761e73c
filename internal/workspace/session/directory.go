package session

import (
	"context"

	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
)

// Directory is the owner-scoped project and conversation directory.
type Directory interface {
	Get(ctx context.Context, ownerUID, publicID string) (*pdomain.Project, error)
	RemoteRef(ctx context.Context, ownerUID, publicID string) (*pdomain.RemoteRef, error)
	LinkRemote(ctx context.Context, ownerUID, publicID string, ref pdomain.RemoteRef) (*pdomain.Project, error)
	Touch(ctx context.Context, publicID string) error
	CreateConversation(ctx context.Context, ownerUID, projectID, title string) (*pdomain.Conversation, error)
	AppendMessage(ctx context.Context, ownerUID, projectID string, msg pdomain.Message) (*pdomain.Message, error)
	ListMessages(ctx context.Context, ownerUID, projectID, conversationID string) ([]pdomain.Message, error)
}

// ownerDirectory binds a Directory to one owner so the workspace components
// can address projects by id alone.
type ownerDirectory struct {
	dir   Directory
	owner string
}

func (d ownerDirectory) RemoteRef(ctx context.Context, projectID string) (*pdomain.RemoteRef, error) {
	return d.dir.RemoteRef(ctx, d.owner, projectID)
}

func (d ownerDirectory) LinkRemote(ctx context.Context, projectID string, ref pdomain.RemoteRef) error {
	_, err := d.dir.LinkRemote(ctx, d.owner, projectID, ref)
	return err
}

func (d ownerDirectory) Touch(ctx context.Context, projectID string) error {
	return d.dir.Touch(ctx, projectID)
}

func (d ownerDirectory) CreateConversation(ctx context.Context, projectID, title string) (*pdomain.Conversation, error) {
	return d.dir.CreateConversation(ctx, d.owner, projectID, title)
}

func (d ownerDirectory) AppendMessage(ctx context.Context, projectID string, msg pdomain.Message) (*pdomain.Message, error) {
	return d.dir.AppendMessage(ctx, d.owner, projectID, msg)
}

func (d ownerDirectory) ListMessages(ctx context.Context, projectID, conversationID string) ([]pdomain.Message, error) {
	return d.dir.ListMessages(ctx, d.owner, projectID, conversationID)
}
