package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bizconsole/console-backend/internal/logging"
	"github.com/bizconsole/console-backend/internal/projects/domain"
	wsdomain "github.com/bizconsole/console-backend/internal/workspace/domain"
	"github.com/bizconsole/console-backend/internal/workspace/filestore"
)

// ProjectStore is the project persistence used by the directory.
type ProjectStore interface {
	Create(ctx context.Context, ownerUID, name string) (*domain.Project, error)
	Get(ctx context.Context, ownerUID, publicID string) (*domain.Project, error)
	List(ctx context.Context, ownerUID string) ([]domain.Project, error)
	Rename(ctx context.Context, ownerUID, publicID, newName string) (*domain.Project, error)
	SetRemote(ctx context.Context, ownerUID, publicID string, ref *domain.RemoteRef) (*domain.Project, error)
	RecordDeployment(ctx context.Context, ownerUID, publicID, url string, at time.Time) (*domain.Project, error)
	SetVisibility(ctx context.Context, ownerUID, publicID string, v domain.Visibility, customDomain string) (*domain.Project, error)
	Touch(ctx context.Context, publicID string) error
	Delete(ctx context.Context, ownerUID, publicID string) (bool, error)
}

// FileWriter seeds the starter files of a new project.
type FileWriter interface {
	WriteFiles(ctx context.Context, projectID string, upserts wsdomain.FileMap, deletes []string) error
}

// ConversationStore persists conversations and messages.
type ConversationStore interface {
	Create(ctx context.Context, projectID, title string) (*domain.Conversation, error)
	List(ctx context.Context, projectID string) ([]domain.Conversation, error)
	AppendMessage(ctx context.Context, projectID string, msg domain.Message) (*domain.Message, *domain.Conversation, error)
	ListMessages(ctx context.Context, projectID, conversationID string) ([]domain.Message, error)
}

// EventBus fans directory events out to list subscribers.
type EventBus interface {
	Publish(ctx context.Context, ev domain.Event) error
	Subscribe(ctx context.Context, ownerUID string) (<-chan domain.Event, func(), error)
}

// DirectoryService owns the project and conversation lists of every user.
// Mutations publish an incremental event after they succeed.
type DirectoryService struct {
	projects ProjectStore
	files    FileWriter
	convs    ConversationStore
	events   EventBus
	now      func() time.Time
	onDelete []func(ctx context.Context, ownerUID, publicID string)
}

func NewDirectoryService(projects ProjectStore, files FileWriter, convs ConversationStore, events EventBus) *DirectoryService {
	return &DirectoryService{
		projects: projects,
		files:    files,
		convs:    convs,
		events:   events,
		now:      time.Now,
	}
}

// OnDelete registers fn to run after a project is deleted.
func (s *DirectoryService) OnDelete(fn func(ctx context.Context, ownerUID, publicID string)) {
	s.onDelete = append(s.onDelete, fn)
}

// Create creates a project and seeds the starter files.
func (s *DirectoryService) Create(ctx context.Context, ownerUID, name string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", domain.ErrInvalid)
	}
	p, err := s.projects.Create(ctx, ownerUID, name)
	if err != nil {
		return nil, err
	}
	if err := s.files.WriteFiles(ctx, p.PublicID, filestore.StarterFiles(), nil); err != nil {
		// Load re-seeds an empty project.
		logging.NewLogger(ctx).Named("directory").LogWarnf("create", "project_id=%s seed failed: %v", p.PublicID, err)
	}
	s.publish(ctx, domain.Event{Type: domain.EventProjectCreated, OwnerUID: ownerUID, ProjectID: p.PublicID, Project: p})
	return p, nil
}

func (s *DirectoryService) Get(ctx context.Context, ownerUID, publicID string) (*domain.Project, error) {
	return s.projects.Get(ctx, ownerUID, publicID)
}

func (s *DirectoryService) List(ctx context.Context, ownerUID string) ([]domain.Project, error) {
	return s.projects.List(ctx, ownerUID)
}

func (s *DirectoryService) Rename(ctx context.Context, ownerUID, publicID, newName string) (*domain.Project, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("%w: name required", domain.ErrInvalid)
	}
	return s.updated(ctx, ownerUID)(s.projects.Rename(ctx, ownerUID, publicID, newName))
}

// Delete removes a project with everything it owns.
func (s *DirectoryService) Delete(ctx context.Context, ownerUID, publicID string) error {
	ok, err := s.projects.Delete(ctx, ownerUID, publicID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	for _, fn := range s.onDelete {
		fn(ctx, ownerUID, publicID)
	}
	s.publish(ctx, domain.Event{Type: domain.EventProjectDeleted, OwnerUID: ownerUID, ProjectID: publicID})
	return nil
}

// RemoteRef returns the project's source-control reference, or nil.
func (s *DirectoryService) RemoteRef(ctx context.Context, ownerUID, publicID string) (*domain.RemoteRef, error) {
	p, err := s.projects.Get(ctx, ownerUID, publicID)
	if err != nil {
		return nil, err
	}
	return p.Remote, nil
}

func (s *DirectoryService) LinkRemote(ctx context.Context, ownerUID, publicID string, ref domain.RemoteRef) (*domain.Project, error) {
	ref.URL = strings.TrimSpace(ref.URL)
	if ref.URL == "" {
		return nil, fmt.Errorf("%w: remote url required", domain.ErrInvalid)
	}
	return s.updated(ctx, ownerUID)(s.projects.SetRemote(ctx, ownerUID, publicID, &ref))
}

func (s *DirectoryService) UnlinkRemote(ctx context.Context, ownerUID, publicID string) (*domain.Project, error) {
	return s.updated(ctx, ownerUID)(s.projects.SetRemote(ctx, ownerUID, publicID, nil))
}

func (s *DirectoryService) RecordDeployment(ctx context.Context, ownerUID, publicID, url string) (*domain.Project, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: deployment url required", domain.ErrInvalid)
	}
	return s.updated(ctx, ownerUID)(s.projects.RecordDeployment(ctx, ownerUID, publicID, url, s.now().UTC()))
}

func (s *DirectoryService) SetVisibility(ctx context.Context, ownerUID, publicID string, v domain.Visibility, customDomain string) (*domain.Project, error) {
	return s.updated(ctx, ownerUID)(s.projects.SetVisibility(ctx, ownerUID, publicID, v, strings.TrimSpace(customDomain)))
}

// Touch bumps lastModified. No event is published; list views refresh on the next project event.
func (s *DirectoryService) Touch(ctx context.Context, publicID string) error {
	return s.projects.Touch(ctx, publicID)
}

func (s *DirectoryService) CreateConversation(ctx context.Context, ownerUID, projectID, title string) (*domain.Conversation, error) {
	if _, err := s.projects.Get(ctx, ownerUID, projectID); err != nil {
		return nil, err
	}
	c, err := s.convs.Create(ctx, projectID, title)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.Event{Type: domain.EventConversationCreated, OwnerUID: ownerUID, ProjectID: projectID, Conversation: c})
	return c, nil
}

func (s *DirectoryService) ListConversations(ctx context.Context, ownerUID, projectID string) ([]domain.Conversation, error) {
	if _, err := s.projects.Get(ctx, ownerUID, projectID); err != nil {
		return nil, err
	}
	return s.convs.List(ctx, projectID)
}

// AppendMessage stores an immutable message and publishes both the message
// and the refreshed conversation summary.
func (s *DirectoryService) AppendMessage(ctx context.Context, ownerUID, projectID string, msg domain.Message) (*domain.Message, error) {
	if _, err := s.projects.Get(ctx, ownerUID, projectID); err != nil {
		return nil, err
	}
	stored, conv, err := s.convs.AppendMessage(ctx, projectID, msg)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.Event{Type: domain.EventMessageCreated, OwnerUID: ownerUID, ProjectID: projectID, Message: stored})
	s.publish(ctx, domain.Event{Type: domain.EventConversationUpdated, OwnerUID: ownerUID, ProjectID: projectID, Conversation: conv})
	return stored, nil
}

func (s *DirectoryService) ListMessages(ctx context.Context, ownerUID, projectID, conversationID string) ([]domain.Message, error) {
	if _, err := s.projects.Get(ctx, ownerUID, projectID); err != nil {
		return nil, err
	}
	return s.convs.ListMessages(ctx, projectID, conversationID)
}

// Subscribe streams the owner's directory events.
func (s *DirectoryService) Subscribe(ctx context.Context, ownerUID string) (<-chan domain.Event, func(), error) {
	if s.events == nil {
		return nil, nil, errors.New("event bus not configured")
	}
	return s.events.Subscribe(ctx, ownerUID)
}

// updated publishes project.updated for a successful project mutation.
func (s *DirectoryService) updated(ctx context.Context, ownerUID string) func(*domain.Project, error) (*domain.Project, error) {
	return func(p *domain.Project, err error) (*domain.Project, error) {
		if err != nil {
			return nil, err
		}
		s.publish(ctx, domain.Event{Type: domain.EventProjectUpdated, OwnerUID: ownerUID, ProjectID: p.PublicID, Project: p})
		return p, nil
	}
}

func (s *DirectoryService) publish(ctx context.Context, ev domain.Event) {
	if s.events == nil {
		return
	}
	ev.At = s.now().UTC()
	if err := s.events.Publish(ctx, ev); err != nil {
		logging.NewLogger(ctx).Named("directory").LogWarnf("publish", "type=%s project_id=%s error=%v", ev.Type, ev.ProjectID, err)
	}
}
