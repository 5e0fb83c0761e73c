package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
	"github.com/bizconsole/console-backend/internal/workspace/filestore"
	"github.com/bizconsole/console-backend/internal/workspace/upstream"
)

type memPersister struct {
	mu    sync.Mutex
	files map[string]domain.FileMap
}

func (p *memPersister) LoadFiles(_ context.Context, id string) (domain.FileMap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.files[id].Clone(), nil
}

func (p *memPersister) WriteFiles(_ context.Context, id string, up domain.FileMap, del []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.files[id] == nil {
		p.files[id] = domain.FileMap{}
	}
	for k, v := range up {
		p.files[id][k] = v
	}
	for _, k := range del {
		delete(p.files[id], k)
	}
	return nil
}

func loadedStore(ctx context.Context) *filestore.Store {
	s := filestore.New(&memPersister{files: map[string]domain.FileMap{}})
	if _, err := s.Load(ctx, "proj-1"); err != nil {
		panic(err)
	}
	return s
}

type memConversations struct {
	mu    sync.Mutex
	convs map[string]*pdomain.Conversation
	msgs  map[string][]pdomain.Message
}

func newMemConversations() *memConversations {
	return &memConversations{convs: map[string]*pdomain.Conversation{}, msgs: map[string][]pdomain.Message{}}
}

func (m *memConversations) CreateConversation(_ context.Context, projectID, title string) (*pdomain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &pdomain.Conversation{ID: uuid.NewString(), ProjectID: projectID, Title: title}
	m.convs[c.ID] = c
	return c, nil
}

func (m *memConversations) AppendMessage(_ context.Context, _ string, msg pdomain.Message) (*pdomain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs[msg.ConversationID] = append(m.msgs[msg.ConversationID], msg)
	return &msg, nil
}

func (m *memConversations) ListMessages(_ context.Context, _ string, convID string) ([]pdomain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pdomain.Message(nil), m.msgs[convID]...), nil
}

func (m *memConversations) seed(convID string, msgs ...pdomain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[convID] = &pdomain.Conversation{ID: convID, ProjectID: "proj-1"}
	m.msgs[convID] = append(m.msgs[convID], msgs...)
}

func (m *memConversations) count(convID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs[convID])
}

type genFunc func(ctx context.Context, req upstream.GenerationRequest) (*upstream.GenerationResponse, error)

func (f genFunc) Generate(ctx context.Context, req upstream.GenerationRequest) (*upstream.GenerationResponse, error) {
	return f(ctx, req)
}

// recordingGen returns resp and keeps the last request.
type recordingGen struct {
	mu   sync.Mutex
	last upstream.GenerationRequest
	resp *upstream.GenerationResponse
	err  error
}

func (g *recordingGen) Generate(_ context.Context, req upstream.GenerationRequest) (*upstream.GenerationResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = req
	return g.resp, g.err
}

type recordingEditor struct {
	mu     sync.Mutex
	active string
}

func (e *recordingEditor) SetActiveFile(path string, _ int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = path
	return nil
}

// ctxConversations refuses calls made with a finished context, like a SQL
// store would.
type ctxConversations struct {
	*memConversations
}

func (c ctxConversations) CreateConversation(ctx context.Context, projectID, title string) (*pdomain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.memConversations.CreateConversation(ctx, projectID, title)
}

func (c ctxConversations) AppendMessage(ctx context.Context, projectID string, msg pdomain.Message) (*pdomain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.memConversations.AppendMessage(ctx, projectID, msg)
}

func (c ctxConversations) ListMessages(ctx context.Context, projectID, convID string) ([]pdomain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.memConversations.ListMessages(ctx, projectID, convID)
}

// failingReplies stores user messages but rejects AI replies.
type failingReplies struct {
	*memConversations
}

func (f failingReplies) AppendMessage(ctx context.Context, projectID string, msg pdomain.Message) (*pdomain.Message, error) {
	if msg.Role == pdomain.RoleAI {
		return nil, errors.New("connection reset")
	}
	return f.memConversations.AppendMessage(ctx, projectID, msg)
}
