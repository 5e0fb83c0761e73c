package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bizconsole/console-backend/internal/logging"
	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/workspace/changes"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
	"github.com/bizconsole/console-backend/internal/workspace/filestore"
	"github.com/bizconsole/console-backend/internal/workspace/upstream"
)

// ApprovalPhrase is the synthetic user turn sent when a plan is approved.
const ApprovalPhrase = "Approved. Please implement the plan."

const (
	DefaultProgressInterval = 3 * time.Second

	apologyText = "Sorry, something went wrong while generating a response. Please try again."
)

var (
	ErrBusy         = errors.New("a generation is already in progress")
	ErrNoProject    = errors.New("no project loaded")
	ErrEmptyInput   = errors.New("message text or image required")
	ErrNotAPlan     = errors.New("message does not carry a plan")
	ErrPlanResolved = errors.New("plan has already been approved or rejected")
)

var progressMessages = []string{
	"Reading your project files...",
	"Planning the changes...",
	"Drafting components...",
	"Refining layout and styles...",
	"Double-checking the result...",
}

// Generator is the generation service.
type Generator interface {
	Generate(ctx context.Context, req upstream.GenerationRequest) (*upstream.GenerationResponse, error)
}

// Workspace is the active project's file store.
type Workspace interface {
	ProjectID() string
	Snapshot() domain.FileMap
	Update(ctx context.Context, m filestore.Mutator) (domain.FileMap, error)
}

// Conversations persists chat threads for the workspace owner.
type Conversations interface {
	CreateConversation(ctx context.Context, projectID, title string) (*pdomain.Conversation, error)
	AppendMessage(ctx context.Context, projectID string, msg pdomain.Message) (*pdomain.Message, error)
	ListMessages(ctx context.Context, projectID, conversationID string) ([]pdomain.Message, error)
}

// Editor receives the file to focus after a code update.
type Editor interface {
	SetActiveFile(path string, line int) error
}

// Input is one user turn.
type Input struct {
	Text           string   `json:"text"`
	Images         []string `json:"images,omitempty"`
	HighEffort     bool     `json:"high_effort,omitempty"`
	Model          string   `json:"model,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
}

// Result is the outcome of a turn. Cancelled turns carry no reply.
type Result struct {
	Conversation *pdomain.Conversation `json:"conversation,omitempty"`
	UserMessage  *pdomain.Message      `json:"user_message,omitempty"`
	Reply        *pdomain.Message      `json:"reply,omitempty"`
	Kind         upstream.ResponseKind `json:"kind,omitempty"`
	Rescued      bool                  `json:"rescued,omitempty"`
	Model        string                `json:"model,omitempty"`
	Changes      []changes.FileChange  `json:"changes,omitempty"`
	Notice       string                `json:"notice,omitempty"`
	Warnings     []string              `json:"warnings,omitempty"`
	Cancelled    bool                  `json:"cancelled,omitempty"`
	Failed       bool                  `json:"failed,omitempty"`
}

// Status is the progress view shown while a turn runs.
type Status struct {
	Generating     bool   `json:"generating"`
	Message        string `json:"message,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Orchestrator runs one generation at a time for a workspace.
type Orchestrator struct {
	gen          Generator
	ws           Workspace
	convs        Conversations
	editor       Editor
	defaultModel string
	interval     time.Duration
	onStatus     func(Status)
	now          func() time.Time

	mu             sync.Mutex
	generating     bool
	cancel         context.CancelFunc
	status         string
	conversationID string
}

type Option func(*Orchestrator)

func WithEditor(e Editor) Option { return func(o *Orchestrator) { o.editor = e } }

func WithDefaultModel(m string) Option { return func(o *Orchestrator) { o.defaultModel = m } }

func WithProgressInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

func WithStatusNotify(fn func(Status)) Option { return func(o *Orchestrator) { o.onStatus = fn } }

func New(gen Generator, ws Workspace, convs Conversations, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:          gen,
		ws:           ws,
		convs:        convs,
		defaultModel: ModelStandard,
		interval:     DefaultProgressInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) IsGenerating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generating
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() Status {
	return Status{Generating: o.generating, Message: o.status, ConversationID: o.conversationID}
}

// SetConversation makes id the active conversation. An empty id starts a new
// one on the next turn.
func (o *Orchestrator) SetConversation(id string) {
	o.mu.Lock()
	o.conversationID = id
	st := o.statusLocked()
	o.mu.Unlock()
	o.notify(st)
}

// Cancel aborts the in-flight generation. It reports whether one was running.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// Generate runs one user turn. Only Cancel aborts it; the caller's context
// contributes values such as the request id.
func (o *Orchestrator) Generate(ctx context.Context, in Input) (*Result, error) {
	return o.run(ctx, in, false)
}

// AskFix turns a preview error into a repair request.
func (o *Orchestrator) AskFix(ctx context.Context, errText, file string) error {
	text := fmt.Sprintf("The preview reports an error in %s:\n\n%s\n\nPlease fix it.", file, strings.TrimSpace(errText))
	_, err := o.Generate(ctx, Input{Text: text})
	return err
}

// ApprovePlan sends the approval phrase for the plan carried by messageID.
func (o *Orchestrator) ApprovePlan(ctx context.Context, messageID string) (*Result, error) {
	convID, err := o.pendingPlan(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, Input{Text: ApprovalPhrase, ConversationID: convID}, true)
}

// RejectPlan asks for a revised plan, with optional feedback.
func (o *Orchestrator) RejectPlan(ctx context.Context, messageID, feedback string) (*Result, error) {
	convID, err := o.pendingPlan(ctx, messageID)
	if err != nil {
		return nil, err
	}
	text := "Rejected. Please revise the plan."
	if f := strings.TrimSpace(feedback); f != "" {
		text = "Rejected. Please revise the plan: " + f
	}
	return o.run(ctx, Input{Text: text, ConversationID: convID}, false)
}

func (o *Orchestrator) pendingPlan(ctx context.Context, messageID string) (string, error) {
	projectID := o.ws.ProjectID()
	if projectID == "" {
		return "", ErrNoProject
	}
	o.mu.Lock()
	convID := o.conversationID
	o.mu.Unlock()
	if convID == "" {
		return "", pdomain.ErrNotFound
	}
	msgs, err := o.convs.ListMessages(ctx, projectID, convID)
	if err != nil {
		return "", err
	}
	for i := range msgs {
		if msgs[i].ID != messageID {
			continue
		}
		switch pdomain.PlanStatusAt(msgs, i) {
		case "":
			return "", ErrNotAPlan
		case pdomain.PlanResolved:
			return "", ErrPlanResolved
		}
		return convID, nil
	}
	return "", pdomain.ErrNotFound
}

func (o *Orchestrator) run(ctx context.Context, in Input, approval bool) (*Result, error) {
	logger := logging.NewLogger(ctx).Named("orchestrator")

	projectID := o.ws.ProjectID()
	if projectID == "" {
		return nil, ErrNoProject
	}
	in.Text = strings.TrimSpace(in.Text)
	if in.Text == "" && len(in.Images) == 0 {
		return nil, ErrEmptyInput
	}

	// Conversation writes outlive the request so a dropped client never loses
	// a reply; only Cancel aborts the turn.
	persistCtx := context.WithoutCancel(ctx)
	genCtx, cancel := context.WithCancel(persistCtx)
	o.mu.Lock()
	if o.generating {
		o.mu.Unlock()
		cancel()
		return nil, ErrBusy
	}
	o.generating = true
	o.cancel = cancel
	o.status = "Thinking..."
	if in.ConversationID != "" {
		o.conversationID = in.ConversationID
	}
	convID := o.conversationID
	st := o.statusLocked()
	o.mu.Unlock()
	o.notify(st)

	defer func() {
		cancel()
		o.mu.Lock()
		o.generating = false
		o.cancel = nil
		o.status = ""
		st := o.statusLocked()
		o.mu.Unlock()
		o.notify(st)
	}()

	res := &Result{}
	start := o.now()

	if convID == "" {
		conv, err := o.convs.CreateConversation(persistCtx, projectID, pdomain.TitleFrom(in.Text))
		if err != nil {
			logger.LogError("create_conversation", err)
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		convID = conv.ID
		res.Conversation = conv
		o.mu.Lock()
		o.conversationID = convID
		o.mu.Unlock()
	}

	starterOnly := filestore.IsStarterOnly(o.ws.Snapshot())
	assets, warnings := o.ingestImages(genCtx, in.Images)
	res.Warnings = append(res.Warnings, warnings...)

	history, err := o.convs.ListMessages(persistCtx, projectID, convID)
	if err != nil {
		logger.LogWarnf("list_messages", "conversation_id=%s error=%v", convID, err)
		history = nil
	}

	userMsg := pdomain.Message{
		ID:             newMessageID(),
		ConversationID: convID,
		Role:           pdomain.RoleUser,
		Content:        in.Text,
		Images:         assets,
		CreatedAt:      start.UTC(),
	}
	if stored, err := o.convs.AppendMessage(persistCtx, projectID, userMsg); err != nil {
		logger.LogWarnf("append_user_message", "conversation_id=%s error=%v", convID, err)
		res.Warnings = append(res.Warnings, "Your message could not be saved.")
		res.UserMessage = &userMsg
	} else {
		res.UserMessage = stored
	}

	files := o.ws.Snapshot()
	sel := SelectModel(ModelInput{
		Text:         in.Text,
		HighEffort:   in.HighEffort,
		FirstTurn:    len(history) == 0,
		StarterOnly:  starterOnly,
		UserModel:    in.Model,
		DefaultModel: o.defaultModel,
	})
	res.Model = sel.Model
	if sel.MultiPass {
		stop := o.rotateProgress(genCtx)
		defer stop()
	}

	resp, genErr := o.gen.Generate(genCtx, upstream.GenerationRequest{
		Turns: append(turns(history), toTurn(userMsg)),
		Files: files,
		Model: sel.Model,
	})
	if genErr == nil && resp == nil {
		genErr = errors.New("empty generation response")
	}
	if genCtx.Err() != nil {
		logger.LogInfof("generate", "conversation_id=%s cancelled", convID)
		res.Cancelled = true
		return res, nil
	}
	if genErr != nil {
		logger.LogErrorf("generate", "conversation_id=%s model=%s error=%v", convID, sel.Model, genErr)
		res.Failed = true
		o.appendReply(persistCtx, projectID, pdomain.Message{
			ConversationID: convID,
			Content:        apologyText,
			Steps:          StepsFor(nil),
			ThinkingMs:     o.now().Sub(start).Milliseconds(),
		}, res)
		return res, nil
	}

	if resp.Kind == upstream.KindMessage {
		if rescued, ok := Rescue(resp.Content); ok {
			logger.LogInfof("rescue", "conversation_id=%s recovered kind=%s", convID, rescued.Kind)
			resp = rescued
			res.Rescued = true
		}
	}
	if approval && resp.Kind == upstream.KindPlan {
		// the plan being approved is already on screen
		resp = &upstream.GenerationResponse{Kind: upstream.KindMessage, Content: planAsText(resp)}
	}
	res.Kind = resp.Kind

	if resp.Kind == upstream.KindCodeUpdate {
		o.applyCode(genCtx, resp.Files, res)
	}
	if genCtx.Err() != nil {
		res.Cancelled = true
		return res, nil
	}

	reply := pdomain.Message{
		ConversationID: convID,
		Content:        resp.Content,
		Steps:          StepsFor(resp),
		ThinkingMs:     o.now().Sub(start).Milliseconds(),
	}
	if resp.Kind == upstream.KindPlan {
		reply.Plan = resp.Plan
	}
	if reply.Content == "" && res.Notice != "" {
		reply.Content = res.Notice
	}
	o.appendReply(persistCtx, projectID, reply, res)
	return res, nil
}

// applyCode writes every returned file in one mutation and focuses the first.
func (o *Orchestrator) applyCode(ctx context.Context, edits []upstream.FileEdit, res *Result) {
	logger := logging.NewLogger(ctx).Named("orchestrator")

	incoming := make(domain.FileMap, len(edits))
	first := ""
	for _, e := range edits {
		p := domain.NormalizePath(e.Path)
		if p == "" {
			continue
		}
		if first == "" {
			first = p
		}
		incoming[p] = filestore.StripFences(e.Content)
	}
	if len(incoming) == 0 {
		return
	}

	var before domain.FileMap
	after, err := o.ws.Update(ctx, func(cur domain.FileMap) domain.FileMap {
		before = cur.Clone()
		return filestore.Put(incoming)(cur)
	})
	if err != nil && !errors.Is(err, filestore.ErrPersistence) {
		logger.LogError("apply_code", err)
		res.Warnings = append(res.Warnings, "Generated files could not be applied: "+err.Error())
		return
	}
	if err != nil {
		res.Warnings = append(res.Warnings, "Changes are applied but could not be saved yet.")
	}

	scoped := make(domain.FileMap, len(incoming))
	for p := range incoming {
		scoped[p] = after[p]
	}
	prev := make(domain.FileMap, len(incoming))
	for p := range incoming {
		if c, ok := before[p]; ok {
			prev[p] = c
		}
	}
	res.Changes = changes.Between(prev, scoped)
	res.Notice = changes.Summary(len(incoming))

	if o.editor != nil {
		if err := o.editor.SetActiveFile(first, 0); err != nil {
			logger.LogWarnf("apply_code", "set active file %s: %v", first, err)
		}
	}
}

// ingestImages stores attachments as project assets before generation so the
// service can reference them.
func (o *Orchestrator) ingestImages(ctx context.Context, images []string) ([]string, []string) {
	if len(images) == 0 {
		return nil, nil
	}
	logger := logging.NewLogger(ctx).Named("orchestrator")
	var warnings []string
	assets := make(domain.FileMap, len(images))
	paths := make([]string, 0, len(images))
	for i, src := range images {
		a, err := NormalizeImage(src)
		if err != nil {
			logger.LogWarnf("ingest_images", "image=%d error=%v", i, err)
			warnings = append(warnings, fmt.Sprintf("Image %d was skipped: %v", i+1, err))
			continue
		}
		assets[a.Path] = a.DataURL
		paths = append(paths, a.Path)
	}
	if len(assets) == 0 {
		return nil, warnings
	}
	if _, err := o.ws.Update(ctx, filestore.Put(assets)); err != nil {
		logger.LogWarnf("ingest_images", "assets=%d error=%v", len(assets), err)
		if !errors.Is(err, filestore.ErrPersistence) {
			return nil, append(warnings, "Images could not be added to the project.")
		}
	}
	return paths, warnings
}

// appendReply stores the AI message and sets it on res. A failed write still
// returns the reply to the caller, with a warning.
func (o *Orchestrator) appendReply(ctx context.Context, projectID string, msg pdomain.Message, res *Result) {
	msg.ID = newMessageID()
	msg.Role = pdomain.RoleAI
	msg.CreatedAt = o.now().UTC()
	stored, err := o.convs.AppendMessage(ctx, projectID, msg)
	if err != nil {
		logging.NewLogger(ctx).Named("orchestrator").LogErrorf("append_reply", "conversation_id=%s error=%v", msg.ConversationID, err)
		res.Warnings = append(res.Warnings, "The reply could not be saved.")
		res.Reply = &msg
		return
	}
	res.Reply = stored
}

// rotateProgress cycles status messages until the returned stop is called.
func (o *Orchestrator) rotateProgress(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	o.setStatus(progressMessages[0])
	go func() {
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		for i := 1; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				o.setStatus(progressMessages[i%len(progressMessages)])
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

func (o *Orchestrator) setStatus(msg string) {
	o.mu.Lock()
	if !o.generating {
		o.mu.Unlock()
		return
	}
	o.status = msg
	st := o.statusLocked()
	o.mu.Unlock()
	o.notify(st)
}

func (o *Orchestrator) notify(st Status) {
	if o.onStatus != nil {
		o.onStatus(st)
	}
}

func turns(msgs []pdomain.Message) []upstream.Turn {
	out := make([]upstream.Turn, 0, len(msgs)+1)
	for _, m := range msgs {
		out = append(out, toTurn(m))
	}
	return out
}

func toTurn(m pdomain.Message) upstream.Turn {
	content := m.Content
	if m.Plan != nil && content == "" {
		content = m.Plan.Summary
	}
	return upstream.Turn{Role: string(m.Role), Content: content, Images: m.Images}
}

func planAsText(resp *upstream.GenerationResponse) string {
	if resp.Content != "" {
		return resp.Content
	}
	if resp.Plan != nil && resp.Plan.Summary != "" {
		return resp.Plan.Summary
	}
	return "Plan approved."
}

func newMessageID() string { return ulid.Make().String() }
