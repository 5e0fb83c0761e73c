package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bizconsole/console-backend/config"
	"github.com/bizconsole/console-backend/internal/logging"
	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
	"github.com/bizconsole/console-backend/internal/workspace/filestore"
	"github.com/bizconsole/console-backend/internal/workspace/orchestrator"
	"github.com/bizconsole/console-backend/internal/workspace/preview"
	"github.com/bizconsole/console-backend/internal/workspace/reconcile"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Persister filestore.Persister
	Directory Directory
	Generator orchestrator.Generator
	Builder   preview.Builder
	Mirror    reconcile.Mirror
	Config    config.WorkspaceConfig
}

// Session is one user's active workspace: the loaded project's files plus the
// sync, preview, bridge and AI components wired to them.
type Session struct {
	Owner   string
	Files   *filestore.Store
	Sync    *reconcile.Reconciler
	Preview *preview.Pipeline
	Bridge  *preview.Bridge
	AI      *orchestrator.Orchestrator
	Events  *Broadcaster

	dir    Directory
	stop   context.CancelFunc
	openMu sync.Mutex

	lastUsed atomic.Int64
	closed   atomic.Bool
}

type fixerFunc func(ctx context.Context, errText, file string) error

func (f fixerFunc) AskFix(ctx context.Context, errText, file string) error { return f(ctx, errText, file) }

// New builds and starts a session for owner. Close releases it.
func New(owner string, deps Deps) *Session {
	events := NewBroadcaster()
	bound := ownerDirectory{dir: deps.Directory, owner: owner}
	cfg := deps.Config

	store := filestore.New(deps.Persister,
		filestore.WithHistoryLimit(cfg.HistoryLimit),
		filestore.WithToucher(bound),
	)
	reconciler := reconcile.New(store, deps.Mirror, bound,
		reconcile.WithDebounce(cfg.SyncDebounce),
		reconcile.WithNotify(func(st reconcile.State) { events.Publish(EventSync, st) }),
	)
	pipeline := preview.NewPipeline(deps.Builder, store,
		preview.WithSettle(cfg.PreviewSettle),
		preview.WithNotify(func(st preview.State) { events.Publish(EventPreview, st) }),
	)

	s := &Session{
		Owner:   owner,
		Files:   store,
		Sync:    reconciler,
		Preview: pipeline,
		Events:  events,
		dir:     deps.Directory,
	}

	s.Bridge = preview.NewBridge(store,
		preview.WithFixer(fixerFunc(func(ctx context.Context, errText, file string) error {
			return s.AI.AskFix(ctx, errText, file)
		})),
		preview.WithEditorNotify(func(st preview.EditorState) { events.Publish(EventEditor, st) }),
	)
	s.AI = orchestrator.New(deps.Generator, store, bound,
		orchestrator.WithEditor(s.Bridge),
		orchestrator.WithDefaultModel(cfg.DefaultModel),
		orchestrator.WithProgressInterval(cfg.ProgressInterval),
		orchestrator.WithStatusNotify(func(st orchestrator.Status) { events.Publish(EventAI, st) }),
	)

	store.OnChange(reconciler.Listen)
	store.OnChange(pipeline.Listen)
	store.OnChange(s.Bridge.Listen)
	store.OnChange(func(c filestore.Change) { events.Publish(EventFiles, filesEvent(c)) })

	ctx, stop := context.WithCancel(context.Background())
	s.stop = stop
	go s.Bridge.Run(ctx)

	s.Touch()
	return s
}

// FilesEvent is the payload of a files event.
type FilesEvent struct {
	ProjectID string         `json:"project_id"`
	Op        filestore.Op   `json:"op"`
	Files     domain.FileMap `json:"files"`
}

func filesEvent(c filestore.Change) FilesEvent {
	return FilesEvent{ProjectID: c.ProjectID, Op: c.Op, Files: c.Files}
}

// Open makes projectID the active project. Re-opening the loaded project
// keeps an in-flight generation and the undo history. A project that no
// longer exists is unloaded.
func (s *Session) Open(ctx context.Context, projectID string) (domain.FileMap, error) {
	s.Touch()
	s.openMu.Lock()
	defer s.openMu.Unlock()

	if _, err := s.dir.Get(ctx, s.Owner, projectID); err != nil {
		if errors.Is(err, pdomain.ErrNotFound) {
			s.unloadLocked(ctx, projectID)
		}
		return nil, err
	}
	if projectID == s.Files.ProjectID() {
		return s.Files.Snapshot(), nil
	}

	logger := logging.NewLogger(ctx).Named("session")
	if s.AI.Cancel() {
		logger.LogInfof("open", "owner=%s cancelled generation before switching to %s", s.Owner, projectID)
	}
	s.AI.SetConversation("")

	files, err := s.Files.Load(ctx, projectID)
	if err != nil && files == nil {
		return nil, fmt.Errorf("open project %s: %w", projectID, err)
	}
	logger.LogInfof("open", "owner=%s project_id=%s files=%d", s.Owner, projectID, len(files))
	return files, err
}

// Unload drops projectID if it is the active project. It reports whether the
// project was loaded.
func (s *Session) Unload(ctx context.Context, projectID string) bool {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	return s.unloadLocked(ctx, projectID)
}

func (s *Session) unloadLocked(ctx context.Context, projectID string) bool {
	if !s.Files.Unload(projectID) {
		return false
	}
	logger := logging.NewLogger(ctx).Named("session")
	s.AI.Cancel()
	s.AI.SetConversation("")
	s.Sync.Close()
	s.Preview.Close()
	if err := s.Bridge.Reset(); err != nil {
		logger.LogWarnf("unload", "owner=%s reset editor: %v", s.Owner, err)
	}
	s.Events.Publish(EventFiles, FilesEvent{ProjectID: projectID, Op: filestore.OpUnload, Files: domain.FileMap{}})
	logger.LogInfof("unload", "owner=%s project_id=%s", s.Owner, projectID)
	return true
}

// Touch records activity for the idle sweep.
func (s *Session) Touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// IdleSince reports the last recorded activity.
func (s *Session) IdleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Busy reports whether the session has work that must not be evicted.
func (s *Session) Busy() bool {
	return s.AI.IsGenerating() || s.Events.Subscribers() > 0
}

// Close stops every component. It is safe to call more than once.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.AI.Cancel()
	s.Sync.Close()
	s.Preview.Close()
	s.stop()
	s.Events.Close()
}
