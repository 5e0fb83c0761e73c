package preview

import (
	"context"
	"errors"

	"github.com/bizconsole/console-backend/internal/logging"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
	"github.com/bizconsole/console-backend/internal/workspace/filestore"
)

// Message types of the sandbox protocol.
const (
	TypeNavigateTo     = "navigate-to"
	TypeNavigation     = "navigation"
	TypeInspectElement = "inspect-element"
	TypeAskAIFix       = "ask-ai-fix"
)

// Envelope is one protocol message in either direction.
type Envelope struct {
	Type        string `json:"type"`
	Path        string `json:"path,omitempty"`
	Loc         string `json:"loc,omitempty"`
	TextContext string `json:"textContext,omitempty"`
	ClassName   string `json:"className,omitempty"`
	Error       string `json:"error,omitempty"`
	File        string `json:"file,omitempty"`
}

// EditorState is the host-side state owned by the bridge actor.
type EditorState struct {
	ActiveFile  string `json:"active_file"`
	Line        int    `json:"line,omitempty"`
	Column      int    `json:"column,omitempty"`
	PreviewPath string `json:"preview_path"`
}

// Fixer turns an ask-ai-fix request into an AI turn.
type Fixer interface {
	AskFix(ctx context.Context, errText, file string) error
}

type setActive struct {
	path string
	line int
}

type stateQuery chan EditorState

type resetState struct{}

func defaultEditorState() EditorState {
	return EditorState{ActiveFile: "src/app/page.tsx", PreviewPath: "/"}
}

const (
	mailboxSize = 64
	outboxSize  = 16
)

// Bridge is the host end of the sandbox protocol, run as an actor: its state
// is only touched by the Run goroutine, and everything else talks to it
// through the mailbox.
type Bridge struct {
	files    Files
	fixer    Fixer
	onChange func(EditorState)

	mailbox chan any
	outbox  chan Envelope
	done    chan struct{}

	state EditorState
}

type BridgeOption func(*Bridge)

func WithFixer(f Fixer) BridgeOption { return func(b *Bridge) { b.fixer = f } }

func WithEditorNotify(fn func(EditorState)) BridgeOption {
	return func(b *Bridge) { b.onChange = fn }
}

func NewBridge(files Files, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		files:   files,
		mailbox: make(chan any, mailboxSize),
		outbox:  make(chan Envelope, outboxSize),
		done:    make(chan struct{}),
		state:   defaultEditorState(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run processes the mailbox until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.mailbox:
			b.handle(ctx, msg)
		}
	}
}

// Deliver hands a sandbox→host message to the actor.
func (b *Bridge) Deliver(env Envelope) error {
	return b.send(env)
}

// SetActiveFile moves the editor to path.
func (b *Bridge) SetActiveFile(path string, line int) error {
	return b.send(setActive{path: domain.NormalizePath(path), line: line})
}

// Navigate asks the sandbox to show route without recompiling. The message is
// dropped when no frame is draining the outbox.
func (b *Bridge) Navigate(route string) bool {
	select {
	case b.outbox <- Envelope{Type: TypeNavigateTo, Path: route}:
		return true
	default:
		return false
	}
}

// Reset returns the editor to the default file and route.
func (b *Bridge) Reset() error {
	return b.send(resetState{})
}

// Listen resets the editor whenever another project is loaded.
func (b *Bridge) Listen(c filestore.Change) {
	if c.Mutation() {
		return
	}
	if err := b.Reset(); err != nil {
		logging.NewLogger(context.Background()).Named("bridge").LogWarnf("listen", "project_id=%s reset: %v", c.ProjectID, err)
	}
}

// Outbound carries host→sandbox messages for the transport.
func (b *Bridge) Outbound() <-chan Envelope { return b.outbox }

// State asks the actor for a copy of its state.
func (b *Bridge) State(ctx context.Context) (EditorState, error) {
	reply := make(stateQuery, 1)
	if err := b.send(reply); err != nil {
		return EditorState{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-b.done:
		return EditorState{}, errBridgeStopped
	case <-ctx.Done():
		return EditorState{}, ctx.Err()
	}
}

var errBridgeStopped = errors.New("preview bridge stopped")

func (b *Bridge) send(msg any) error {
	select {
	case b.mailbox <- msg:
		return nil
	case <-b.done:
		return errBridgeStopped
	}
}

func (b *Bridge) handle(ctx context.Context, msg any) {
	logger := logging.NewLogger(ctx).Named("bridge")
	before := b.state

	switch m := msg.(type) {
	case stateQuery:
		m <- b.state
		return
	case resetState:
		b.state = defaultEditorState()
	case setActive:
		if m.path != "" {
			b.state.ActiveFile = m.path
			b.state.Line = m.line
			b.state.Column = 0
		}
	case Envelope:
		switch m.Type {
		case TypeNavigation:
			b.onNavigation(m)
		case TypeInspectElement:
			b.onInspect(m)
		case TypeAskAIFix:
			b.onAskFix(ctx, m)
		default:
			logger.LogWarnf("handle", "ignoring message type=%q", m.Type)
		}
	}

	if b.state != before && b.onChange != nil {
		b.onChange(b.state)
	}
}

func (b *Bridge) onNavigation(m Envelope) {
	b.state.PreviewPath = "/" + NormalizeRoute(m.Path)
	if p, ok := ResolveRoute(b.files.Snapshot(), m.Path); ok {
		b.state.ActiveFile = p
		b.state.Line = 0
		b.state.Column = 0
	}
}

func (b *Bridge) onInspect(m Envelope) {
	files := b.files.Snapshot()
	if loc, ok := ParseLoc(m.Loc); ok {
		if _, exists := files[loc.File]; exists {
			b.jump(loc)
			return
		}
	}
	preferred, _ := ResolveRoute(files, m.Path)
	if loc, ok := FindText(files, m.TextContext, preferred); ok {
		b.jump(loc)
		return
	}
	if loc, ok := FindClass(files, m.ClassName, preferred); ok {
		b.jump(loc)
	}
}

func (b *Bridge) jump(loc Location) {
	b.state.ActiveFile = loc.File
	b.state.Line = loc.Line
	b.state.Column = loc.Column
}

func (b *Bridge) onAskFix(ctx context.Context, m Envelope) {
	if b.fixer == nil {
		return
	}
	file := domain.NormalizePath(m.File)
	if file == "" {
		file = b.state.ActiveFile
	}
	// Generation can run for minutes; the actor keeps serving meanwhile.
	go func(errText, file string) {
		if err := b.fixer.AskFix(context.WithoutCancel(ctx), errText, file); err != nil {
			logging.NewLogger(ctx).Named("bridge").LogWarnf("ask_ai_fix", "file=%s error=%v", file, err)
		}
	}(m.Error, file)
}
