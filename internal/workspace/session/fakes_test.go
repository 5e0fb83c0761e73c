package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bizconsole/console-backend/config"
	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
	"github.com/bizconsole/console-backend/internal/workspace/upstream"
)

type memPersister struct {
	mu    sync.Mutex
	files map[string]domain.FileMap
	loads int
}

func newMemPersister() *memPersister {
	return &memPersister{files: map[string]domain.FileMap{}}
}

func (p *memPersister) LoadFiles(_ context.Context, id string) (domain.FileMap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
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

func (p *memPersister) loadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads
}

// memDirectory knows a fixed set of projects per owner.
type memDirectory struct {
	mu       sync.Mutex
	projects map[string]string // public id -> owner
	remotes  map[string]pdomain.RemoteRef
	touched  map[string]int
	msgs     map[string][]pdomain.Message
}

func newMemDirectory(owner string, ids ...string) *memDirectory {
	d := &memDirectory{
		projects: map[string]string{},
		remotes:  map[string]pdomain.RemoteRef{},
		touched:  map[string]int{},
		msgs:     map[string][]pdomain.Message{},
	}
	for _, id := range ids {
		d.projects[id] = owner
	}
	return d
}

func (d *memDirectory) Get(_ context.Context, owner, id string) (*pdomain.Project, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.projects[id] != owner || owner == "" {
		return nil, pdomain.ErrNotFound
	}
	return &pdomain.Project{PublicID: id, Name: id}, nil
}

func (d *memDirectory) RemoteRef(_ context.Context, _, id string) (*pdomain.RemoteRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ref, ok := d.remotes[id]; ok {
		return &ref, nil
	}
	return nil, nil
}

func (d *memDirectory) LinkRemote(_ context.Context, _, id string, ref pdomain.RemoteRef) (*pdomain.Project, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remotes[id] = ref
	return &pdomain.Project{PublicID: id}, nil
}

func (d *memDirectory) Touch(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touched[id]++
	return nil
}

func (d *memDirectory) CreateConversation(_ context.Context, _, projectID, title string) (*pdomain.Conversation, error) {
	return &pdomain.Conversation{ID: uuid.NewString(), ProjectID: projectID, Title: title}, nil
}

func (d *memDirectory) AppendMessage(_ context.Context, _, _ string, msg pdomain.Message) (*pdomain.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs[msg.ConversationID] = append(d.msgs[msg.ConversationID], msg)
	return &msg, nil
}

func (d *memDirectory) ListMessages(_ context.Context, _, _, convID string) ([]pdomain.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]pdomain.Message(nil), d.msgs[convID]...), nil
}

type recordingGen struct {
	mu   sync.Mutex
	reqs []upstream.GenerationRequest
}

func (g *recordingGen) Generate(_ context.Context, req upstream.GenerationRequest) (*upstream.GenerationResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	return &upstream.GenerationResponse{Kind: upstream.KindMessage, Content: "Done."}, nil
}

func (g *recordingGen) requests() []upstream.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]upstream.GenerationRequest(nil), g.reqs...)
}

type okBuilder struct{}

func (okBuilder) Build(context.Context, domain.FileMap) (*upstream.BuildResult, error) {
	return &upstream.BuildResult{Bundle: "console.log('ok')"}, nil
}

type nopMirror struct{}

func (nopMirror) DryRun(context.Context, upstream.MirrorRequest) (*upstream.MirrorResult, error) {
	return &upstream.MirrorResult{OK: true}, nil
}

func (nopMirror) Push(context.Context, upstream.MirrorRequest) (*upstream.MirrorResult, error) {
	return &upstream.MirrorResult{OK: true}, nil
}

func testDeps(dir *memDirectory, persister *memPersister, gen *recordingGen) Deps {
	return Deps{
		Persister: persister,
		Directory: dir,
		Generator: gen,
		Builder:   okBuilder{},
		Mirror:    nopMirror{},
		Config: config.WorkspaceConfig{
			SyncDebounce:     time.Hour,
			PreviewSettle:    time.Hour,
			HistoryLimit:     50,
			SessionTTL:       30 * time.Minute,
			ProgressInterval: time.Second,
			DefaultModel:     "standard",
		},
	}
}

func (d *memDirectory) remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.projects, id)
}
