package filestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bizconsole/console-backend/internal/logging"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
)

// DefaultHistoryLimit bounds both the undo and redo stacks.
const DefaultHistoryLimit = 50

var (
	// ErrPersistence marks a write that failed after the in-memory map was
	// already updated. Callers surface it as a warning and keep going.
	ErrPersistence = errors.New("file persistence failed")
	// ErrNoProject is returned by mutations issued before Load.
	ErrNoProject = errors.New("no project loaded")
)

// Persister is the durable per-project document store.
type Persister interface {
	LoadFiles(ctx context.Context, projectID string) (domain.FileMap, error)
	// WriteFiles applies upserts and deletes as one atomic batch.
	WriteFiles(ctx context.Context, projectID string, upserts domain.FileMap, deletes []string) error
}

// Toucher bumps a project's lastModified marker.
type Toucher interface {
	Touch(ctx context.Context, projectID string) error
}

// Mutator computes the next file map from a private copy of the latest one.
type Mutator func(current domain.FileMap) domain.FileMap

// Replace returns a mutator that swaps in files wholesale.
func Replace(files domain.FileMap) Mutator {
	return func(domain.FileMap) domain.FileMap { return files.Clone() }
}

// Put returns a mutator that writes the given files over the current map.
func Put(files domain.FileMap) Mutator {
	return func(cur domain.FileMap) domain.FileMap {
		for p, c := range files {
			cur[p] = c
		}
		return cur
	}
}

// Op names what produced a Change.
type Op string

const (
	OpLoad   Op = "load"
	OpUpdate Op = "update"
	OpUndo   Op = "undo"
	OpRedo   Op = "redo"
	// OpUnload is reported by owners of a store when the project goes away.
	OpUnload Op = "unload"
)

// Change describes a new latest map.
type Change struct {
	ProjectID string
	Files     domain.FileMap
	Op        Op
}

// Mutation reports whether the change came from an edit rather than a load.
func (c Change) Mutation() bool { return c.Op != OpLoad && c.Op != OpUnload }

// Listener is notified after every change of the latest map.
type Listener func(Change)

// Store is the virtual file tree of the active project. The latest map is
// the single authoritative cell; every mutation derives from it, never from a
// snapshot a caller captured earlier.
type Store struct {
	mu        sync.Mutex
	projectID string
	files     domain.FileMap
	history   []domain.FileMap
	future    []domain.FileMap
	limit     int

	persister Persister
	toucher   Toucher
	listeners []Listener

	// persistMu orders writes; persisted is the map last known to be stored.
	persistMu sync.Mutex
	persisted domain.FileMap
}

// Option configures a Store.
type Option func(*Store)

// WithHistoryLimit overrides the undo/redo depth.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithToucher sets the project lastModified hook.
func WithToucher(t Toucher) Option {
	return func(s *Store) { s.toucher = t }
}

// New creates an empty store backed by p.
func New(p Persister, opts ...Option) *Store {
	s := &Store{
		files:     domain.FileMap{},
		limit:     DefaultHistoryLimit,
		persister: p,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnChange registers a listener. Listeners run synchronously after the
// in-memory swap and must not block.
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Load fetches the persisted files for projectID, seeding the starter set
// into an empty project and repairing missing mandatory files. History is reset.
func (s *Store) Load(ctx context.Context, projectID string) (domain.FileMap, error) {
	logger := logging.NewLogger(ctx).Named("filestore")

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.flushLocked(ctx)

	files, err := s.persister.LoadFiles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load files: %w", err)
	}
	if files == nil {
		files = domain.FileMap{}
	}
	stored := files.Clone()

	var repairErr error
	if len(files) == 0 {
		files = StarterFiles()
		logger.LogInfof("load", "project_id=%s seeding %d starter files", projectID, len(files))
		repairErr = s.persister.WriteFiles(ctx, projectID, files, nil)
	} else if missing := missingMandatory(files); len(missing) > 0 {
		logger.LogWarnf("load", "project_id=%s repairing %d missing mandatory files", projectID, len(missing))
		for p, c := range missing {
			files[p] = c
		}
		repairErr = s.persister.WriteFiles(ctx, projectID, missing, nil)
	}

	s.mu.Lock()
	s.projectID = projectID
	s.files = files
	s.history = nil
	s.future = nil
	snapshot := files.Clone()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(Change{ProjectID: projectID, Files: snapshot, Op: OpLoad})
	}

	if repairErr != nil {
		s.persisted = stored
		logger.LogError("load", repairErr)
		return snapshot, fmt.Errorf("%w: %v", ErrPersistence, repairErr)
	}
	s.persisted = files
	return snapshot, nil
}

// Update applies m to the latest map. The in-memory result is returned even
// when persisting it fails; in that case the error wraps ErrPersistence.
func (s *Store) Update(ctx context.Context, m Mutator) (domain.FileMap, error) {
	s.mu.Lock()
	if s.projectID == "" {
		s.mu.Unlock()
		return nil, ErrNoProject
	}
	prev := s.files
	next := normalize(m(prev.Clone()))
	s.pushHistory(prev)
	s.future = nil
	s.files = next
	projectID := s.projectID
	s.mu.Unlock()

	return s.commit(ctx, OpUpdate, projectID, next)
}

// Save writes a single file, defensively stripping wrapping code fences.
func (s *Store) Save(ctx context.Context, path, content string) (domain.FileMap, error) {
	p := domain.NormalizePath(path)
	if p == "" {
		return nil, fmt.Errorf("invalid path %q", path)
	}
	body := StripFences(content)
	return s.Update(ctx, func(cur domain.FileMap) domain.FileMap {
		cur[p] = body
		return cur
	})
}

// Undo restores the previous map. ok is false when there is nothing to undo.
func (s *Store) Undo(ctx context.Context) (files domain.FileMap, ok bool, err error) {
	s.mu.Lock()
	if len(s.history) == 0 {
		cur := s.files.Clone()
		s.mu.Unlock()
		return cur, false, nil
	}
	prev := s.files
	next := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.future = appendBounded(s.future, prev, s.limit)
	s.files = next
	projectID := s.projectID
	s.mu.Unlock()

	files, err = s.commit(ctx, OpUndo, projectID, next)
	return files, true, err
}

// Redo re-applies the most recently undone map. ok is false when there is
// nothing to redo.
func (s *Store) Redo(ctx context.Context) (files domain.FileMap, ok bool, err error) {
	s.mu.Lock()
	if len(s.future) == 0 {
		cur := s.files.Clone()
		s.mu.Unlock()
		return cur, false, nil
	}
	prev := s.files
	next := s.future[len(s.future)-1]
	s.future = s.future[:len(s.future)-1]
	s.pushHistory(prev)
	s.files = next
	projectID := s.projectID
	s.mu.Unlock()

	files, err = s.commit(ctx, OpRedo, projectID, next)
	return files, true, err
}

// Unload forgets projectID if it is the loaded project, discarding its
// history and any edits not stored yet. Listeners are not notified.
func (s *Store) Unload(projectID string) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if projectID == "" || s.projectID != projectID {
		return false
	}
	s.projectID = ""
	s.files = domain.FileMap{}
	s.history = nil
	s.future = nil
	s.persisted = nil
	return true
}

// ClearHistory drops both stacks without touching files.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.future = nil
}

// Snapshot returns a copy of the latest map.
func (s *Store) Snapshot() domain.FileMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files.Clone()
}

// Get returns one file from the latest map.
func (s *Store) Get(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.files[domain.NormalizePath(path)]
	return c, ok
}

// ProjectID returns the loaded project, or "".
func (s *Store) ProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}

func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history) > 0
}

func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.future) > 0
}

// commit notifies listeners and persists the latest map.
// Must be called without s.mu held.
func (s *Store) commit(ctx context.Context, op Op, projectID string, next domain.FileMap) (domain.FileMap, error) {
	s.mu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	snapshot := next.Clone()
	for _, l := range listeners {
		l(Change{ProjectID: projectID, Files: snapshot, Op: op})
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return snapshot, s.persistLocked(ctx, op, projectID)
}

// persistLocked writes the delta between the stored map and the latest one.
// Writes are serialized and always target the latest map, so storage
// converges on the last in-memory writer however commits interleave.
// Must be called with s.persistMu held.
func (s *Store) persistLocked(ctx context.Context, op Op, projectID string) error {
	s.mu.Lock()
	if s.projectID != projectID {
		// Load flushed this project before switching away from it.
		s.mu.Unlock()
		return nil
	}
	latest := s.files
	s.mu.Unlock()

	delta := domain.Diff(s.persisted, latest)
	if delta.Empty() {
		return nil
	}

	logger := logging.NewLogger(ctx).Named("filestore")
	if err := s.persister.WriteFiles(ctx, projectID, delta.Upserts, delta.Deletes); err != nil {
		logger.LogErrorf(string(op), "project_id=%s upserts=%d deletes=%d error=%v",
			projectID, len(delta.Upserts), len(delta.Deletes), err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.persisted = latest
	if s.toucher != nil {
		if err := s.toucher.Touch(ctx, projectID); err != nil {
			logger.LogWarnf(string(op), "project_id=%s touch failed: %v", projectID, err)
		}
	}
	return nil
}

// flushLocked makes a last attempt to store the outgoing project's pending
// edits. Must be called with s.persistMu held.
func (s *Store) flushLocked(ctx context.Context) {
	projectID := s.ProjectID()
	if projectID == "" {
		return
	}
	if err := s.persistLocked(ctx, OpLoad, projectID); err != nil {
		logging.NewLogger(ctx).Named("filestore").LogWarnf("load", "project_id=%s pending edits not stored: %v", projectID, err)
	}
}

func (s *Store) pushHistory(m domain.FileMap) {
	s.history = appendBounded(s.history, m, s.limit)
}

func appendBounded(stack []domain.FileMap, m domain.FileMap, limit int) []domain.FileMap {
	stack = append(stack, m)
	if len(stack) > limit {
		stack = stack[len(stack)-limit:]
	}
	return stack
}

// normalize rewrites keys into canonical form and drops unusable paths.
func normalize(files domain.FileMap) domain.FileMap {
	out := make(domain.FileMap, len(files))
	for p, c := range files {
		if np := domain.NormalizePath(p); np != "" {
			out[np] = c
		}
	}
	return out
}
