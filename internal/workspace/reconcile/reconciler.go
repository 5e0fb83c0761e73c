package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bizconsole/console-backend/internal/logging"
	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
	"github.com/bizconsole/console-backend/internal/workspace/filestore"
	"github.com/bizconsole/console-backend/internal/workspace/upstream"
)

const (
	DefaultDebounce = time.Second

	// backgroundTimeout bounds debounced dry runs, which have no caller context.
	backgroundTimeout = 30 * time.Second
)

var ErrNoProject = errors.New("no project loaded")

// Mirror is the remote source-control service.
type Mirror interface {
	DryRun(ctx context.Context, req upstream.MirrorRequest) (*upstream.MirrorResult, error)
	Push(ctx context.Context, req upstream.MirrorRequest) (*upstream.MirrorResult, error)
}

// Files is the always-current view of the active project.
type Files interface {
	ProjectID() string
	Snapshot() domain.FileMap
}

// Remotes reads and records the remote reference of a project.
type Remotes interface {
	RemoteRef(ctx context.Context, projectID string) (*pdomain.RemoteRef, error)
	LinkRemote(ctx context.Context, projectID string, ref pdomain.RemoteRef) error
}

// Mode selects between a non-mutating comparison and an authoritative push.
type Mode struct {
	Push          bool
	CommitMessage string
}

var (
	DryRun = Mode{}
	Push   = Mode{Push: true}
)

// Reconciler tracks sync status of the active project. Concurrent Reconcile
// calls are not coalesced; each reads the latest file map.
type Reconciler struct {
	files    Files
	mirror   Mirror
	remotes  Remotes
	debounce time.Duration
	onChange func(State)

	mu    sync.Mutex
	state State
	timer *time.Timer
	seq   uint64
}

type Option func(*Reconciler)

func WithDebounce(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// WithNotify registers a callback run after every state change.
func WithNotify(fn func(State)) Option {
	return func(r *Reconciler) { r.onChange = fn }
}

func New(files Files, mirror Mirror, remotes Remotes, opts ...Option) *Reconciler {
	r := &Reconciler{
		files:    files,
		mirror:   mirror,
		remotes:  remotes,
		debounce: DefaultDebounce,
		state:    State{Status: StatusSynced},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// State returns the current state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Listen adapts the reconciler to file store changes: loads reset it,
// mutations mark it dirty.
func (r *Reconciler) Listen(c filestore.Change) {
	if c.Mutation() {
		r.MarkDirty()
		return
	}
	r.Reset()
}

// Reset forgets the previous project and schedules a dry run for the new one.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.state = State{Status: StatusSynced}
	st := r.state
	r.arm()
	r.mu.Unlock()
	r.notify(st)
}

// MarkDirty records a local mutation and (re)arms the debounced dry run.
func (r *Reconciler) MarkDirty() {
	r.mu.Lock()
	st, changed := r.apply(eventMutated)
	r.arm()
	r.mu.Unlock()
	if changed {
		r.notify(st)
	}
}

// Close stops the pending dry run, if any.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// arm replaces any pending debounce timer. Must hold r.mu.
func (r *Reconciler) arm() {
	r.seq++
	seq := r.seq
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		r.mu.Lock()
		current := seq == r.seq
		r.mu.Unlock()
		if !current {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		_, _ = r.Reconcile(ctx, DryRun)
	})
}

// Reconcile is the single transition entry point. A dry run only updates
// HasChanges; a push moves through syncing to synced or error.
func (r *Reconciler) Reconcile(ctx context.Context, mode Mode) (State, error) {
	logger := logging.NewLogger(ctx).Named("reconcile")

	projectID := r.files.ProjectID()
	if projectID == "" {
		return r.State(), ErrNoProject
	}
	files := r.files.Snapshot()

	if mode.Push {
		r.mu.Lock()
		st, changed := r.apply(eventPushStarted)
		r.mu.Unlock()
		if changed {
			r.notify(st)
		}
	}

	ref, err := r.remotes.RemoteRef(ctx, projectID)
	if err != nil {
		logger.LogErrorf("remote_ref", "project_id=%s error=%v", projectID, err)
		if mode.Push {
			return r.fail(err), err
		}
		return r.State(), err
	}

	if !mode.Push {
		return r.dryRun(ctx, projectID, files, ref)
	}
	return r.push(ctx, projectID, files, ref, mode.CommitMessage)
}

func (r *Reconciler) dryRun(ctx context.Context, projectID string, files domain.FileMap, ref *pdomain.RemoteRef) (State, error) {
	if ref == nil {
		return r.setHasChanges(true), nil
	}
	res, err := r.mirror.DryRun(ctx, upstream.MirrorRequest{ProjectID: projectID, Files: files, RemoteRef: ref})
	if err != nil {
		logging.NewLogger(ctx).Named("reconcile").LogWarnf("dry_run", "project_id=%s error=%v", projectID, err)
		return r.State(), err
	}
	return r.setHasChanges(res.Changed), nil
}

func (r *Reconciler) push(ctx context.Context, projectID string, files domain.FileMap, ref *pdomain.RemoteRef, message string) (State, error) {
	logger := logging.NewLogger(ctx).Named("reconcile")

	if message == "" {
		message = fmt.Sprintf("Update %d files", len(files))
	}
	res, err := r.mirror.Push(ctx, upstream.MirrorRequest{
		ProjectID:     projectID,
		Files:         files,
		RemoteRef:     ref,
		CommitMessage: message,
		AutoCreate:    ref == nil,
	})
	if err != nil {
		logger.LogErrorf("push", "project_id=%s error=%v", projectID, err)
		return r.fail(err), err
	}

	if ref == nil && res.RemoteRef != nil {
		if err := r.remotes.LinkRemote(ctx, projectID, *res.RemoteRef); err != nil {
			logger.LogWarnf("push", "project_id=%s link remote failed: %v", projectID, err)
		}
	}

	r.mu.Lock()
	st, changed := r.apply(eventPushSucceeded)
	if changed {
		r.state.HasChanges = false
		r.state.LastError = ""
		r.state.LastSyncedAt = time.Now().UTC()
		st = r.state
	}
	r.mu.Unlock()
	if changed {
		r.notify(st)
	}
	logger.LogInfof("push", "project_id=%s files=%d status=%s", projectID, len(files), st.Status)
	return st, nil
}

func (r *Reconciler) fail(err error) State {
	r.mu.Lock()
	st, changed := r.apply(eventPushFailed)
	if changed {
		r.state.LastError = err.Error()
		st = r.state
	}
	r.mu.Unlock()
	if changed {
		r.notify(st)
	}
	return st
}

func (r *Reconciler) setHasChanges(v bool) State {
	r.mu.Lock()
	changed := r.state.HasChanges != v
	r.state.HasChanges = v
	st := r.state
	r.mu.Unlock()
	if changed {
		r.notify(st)
	}
	return st
}

// apply moves the state along ev. Must hold r.mu.
func (r *Reconciler) apply(ev event) (State, bool) {
	to, ok := next(r.state.Status, ev)
	if !ok || to == r.state.Status {
		return r.state, false
	}
	r.state.Status = to
	return r.state, true
}

func (r *Reconciler) notify(st State) {
	if r.onChange != nil {
		r.onChange(st)
	}
}
