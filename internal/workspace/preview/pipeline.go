package preview

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bizconsole/console-backend/internal/logging"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
	"github.com/bizconsole/console-backend/internal/workspace/filestore"
	"github.com/bizconsole/console-backend/internal/workspace/upstream"
)

const (
	DefaultSettle = 2 * time.Second

	buildTimeout = upstream.BuildTimeout
)

// Builder compiles a file map into a bundle.
type Builder interface {
	Build(ctx context.Context, files domain.FileMap) (*upstream.BuildResult, error)
}

// Files is the always-current view of the active project.
type Files interface {
	Snapshot() domain.FileMap
}

// State is the preview status shown to the UI. The bundle itself is served
// through the frame endpoint.
type State struct {
	Version     uint64                `json:"version"`
	Building    bool                  `json:"building"`
	Ready       bool                  `json:"ready"`
	Errors      []upstream.BuildError `json:"errors"`
	Notice      string                `json:"notice,omitempty"`
	LastBuiltAt time.Time             `json:"last_built_at,omitzero"`
}

// Pipeline rebuilds the preview a settle delay after the last trigger.
// Results of superseded builds are discarded.
type Pipeline struct {
	builder  Builder
	files    Files
	settle   time.Duration
	onChange func(State)

	mu       sync.Mutex
	timer    *time.Timer
	seq      uint64
	version  uint64
	building bool
	bundle   string
	errors   map[string]upstream.BuildError
	notice   string
	builtAt  time.Time
}

type Option func(*Pipeline)

func WithSettle(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.settle = d
		}
	}
}

func WithNotify(fn func(State)) Option {
	return func(p *Pipeline) { p.onChange = fn }
}

func NewPipeline(builder Builder, files Files, opts ...Option) *Pipeline {
	p := &Pipeline{
		builder: builder,
		files:   files,
		settle:  DefaultSettle,
		errors:  map[string]upstream.BuildError{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Listen triggers a rebuild on every file map change.
func (p *Pipeline) Listen(filestore.Change) { p.Trigger() }

// Trigger (re)arms the settle timer, replacing any pending one.
func (p *Pipeline) Trigger() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	seq := p.seq
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.settle, func() {
		p.mu.Lock()
		current := seq == p.seq
		p.mu.Unlock()
		if current {
			ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
			defer cancel()
			p.Build(ctx)
		}
	})
}

// Refresh is the manual refresh signal. It goes through the same settle delay.
func (p *Pipeline) Refresh() { p.Trigger() }

// Close stops any pending build.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Build compiles the latest file map now.
func (p *Pipeline) Build(ctx context.Context) State {
	logger := logging.NewLogger(ctx).Named("preview")

	p.mu.Lock()
	p.version++
	version := p.version
	p.building = true
	st := p.stateLocked()
	p.mu.Unlock()
	p.notify(st)

	res, err := p.builder.Build(ctx, p.files.Snapshot())

	p.mu.Lock()
	if version != p.version {
		p.mu.Unlock()
		logger.LogInfof("build", "discarding superseded build version=%d", version)
		return p.State()
	}
	p.building = false
	switch {
	case err != nil:
		logger.LogWarnf("build", "version=%d build service unavailable: %v", version, err)
		p.notice = "Preview could not be rebuilt: " + err.Error()
	case res.Error != nil:
		p.notice = ""
		p.errors = map[string]upstream.BuildError{res.Error.File: *res.Error}
	default:
		p.notice = ""
		p.bundle = res.Bundle
		p.errors = map[string]upstream.BuildError{}
		p.builtAt = time.Now().UTC()
	}
	st = p.stateLocked()
	p.mu.Unlock()
	p.notify(st)
	return st
}

// Bundle returns the last good bundle.
func (p *Pipeline) Bundle() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bundle, p.bundle != ""
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// ErrorFor returns the build error attributed to file, if any.
func (p *Pipeline) ErrorFor(file string) (upstream.BuildError, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.errors[file]
	return e, ok
}

func (p *Pipeline) stateLocked() State {
	errs := make([]upstream.BuildError, 0, len(p.errors))
	for _, e := range p.errors {
		errs = append(errs, e)
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].File < errs[j].File })
	return State{
		Version:     p.version,
		Building:    p.building,
		Ready:       p.bundle != "",
		Errors:      errs,
		Notice:      p.notice,
		LastBuiltAt: p.builtAt,
	}
}

func (p *Pipeline) notify(st State) {
	if p.onChange != nil {
		p.onChange(st)
	}
}
