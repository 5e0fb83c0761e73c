package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizconsole/console-backend/config"
	"github.com/bizconsole/console-backend/internal/auth"
	authdomain "github.com/bizconsole/console-backend/internal/auth/domain"
	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
	"github.com/bizconsole/console-backend/internal/workspace/preview"
	"github.com/bizconsole/console-backend/internal/workspace/session"
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

// memDirectory owns project "site-1" for "uid-1".
type memDirectory struct {
	mu   sync.Mutex
	msgs map[string][]pdomain.Message
}

func (d *memDirectory) Get(_ context.Context, owner, id string) (*pdomain.Project, error) {
	if owner != "uid-1" || id != "site-1" {
		return nil, pdomain.ErrNotFound
	}
	return &pdomain.Project{PublicID: id, Name: "Bakery"}, nil
}

func (d *memDirectory) RemoteRef(context.Context, string, string) (*pdomain.RemoteRef, error) {
	return nil, nil
}

func (d *memDirectory) LinkRemote(_ context.Context, _, id string, _ pdomain.RemoteRef) (*pdomain.Project, error) {
	return &pdomain.Project{PublicID: id}, nil
}

func (d *memDirectory) Touch(context.Context, string) error { return nil }

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
	last upstream.GenerationRequest
}

func (g *recordingGen) Generate(_ context.Context, req upstream.GenerationRequest) (*upstream.GenerationResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = req
	return &upstream.GenerationResponse{Kind: upstream.KindMessage, Content: "Sure."}, nil
}

type bundleBuilder struct{}

func (bundleBuilder) Build(context.Context, domain.FileMap) (*upstream.BuildResult, error) {
	return &upstream.BuildResult{Bundle: "console.log('bakery')"}, nil
}

type okMirror struct{}

func (okMirror) DryRun(context.Context, upstream.MirrorRequest) (*upstream.MirrorResult, error) {
	return &upstream.MirrorResult{OK: true, Changed: true}, nil
}

func (okMirror) Push(context.Context, upstream.MirrorRequest) (*upstream.MirrorResult, error) {
	return &upstream.MirrorResult{OK: true}, nil
}

type fixedPrefs authdomain.Preferences

func (p fixedPrefs) Preferences(context.Context, string) authdomain.Preferences {
	return authdomain.Preferences(p)
}

type testEnv struct {
	router   *gin.Engine
	sessions *session.Manager
	gen      *recordingGen
}

func setupRouter(t *testing.T, prefs Preferences) *testEnv {
	gin.SetMode(gin.TestMode)

	gen := &recordingGen{}
	sessions := session.NewManager(session.Deps{
		Persister: &memPersister{files: map[string]domain.FileMap{}},
		Directory: &memDirectory{msgs: map[string][]pdomain.Message{}},
		Generator: gen,
		Builder:   bundleBuilder{},
		Mirror:    okMirror{},
		Config: config.WorkspaceConfig{
			SyncDebounce:     time.Hour,
			PreviewSettle:    time.Hour,
			HistoryLimit:     50,
			ProgressInterval: time.Second,
			DefaultModel:     "standard",
		},
	})
	t.Cleanup(sessions.Stop)

	router := gin.New()
	group := router.Group("/workspace")
	group.Use(func(c *gin.Context) {
		c.Set(auth.CtxFirebaseUID, "uid-1")
		c.Next()
	})
	New(sessions, prefs).Register(group)
	return &testEnv{router: router, sessions: sessions, gen: gen}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

type workspaceBody struct {
	OK        bool      `json:"ok"`
	Moved     bool      `json:"moved"`
	Workspace filesView `json:"workspace"`
}

func decodeWorkspace(t *testing.T, rr *httptest.ResponseRecorder) workspaceBody {
	t.Helper()
	var body workspaceBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestOpenSaveUndo(t *testing.T) {
	env := setupRouter(t, nil)

	rr := env.do(t, http.MethodPost, "/workspace/open", `{"project_id":"site-1"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	opened := decodeWorkspace(t, rr)
	assert.Equal(t, "site-1", opened.Workspace.ProjectID)
	assert.Contains(t, opened.Workspace.Files, "src/app/page.tsx")
	assert.False(t, opened.Workspace.CanUndo)

	rr = env.do(t, http.MethodPut, "/workspace/files", `{"path":"src/app/about/page.tsx","content":"about"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	saved := decodeWorkspace(t, rr)
	assert.Equal(t, "about", saved.Workspace.Files["src/app/about/page.tsx"])
	assert.True(t, saved.Workspace.CanUndo)

	rr = env.do(t, http.MethodPost, "/workspace/undo", "")
	require.Equal(t, http.StatusOK, rr.Code)
	undone := decodeWorkspace(t, rr)
	assert.True(t, undone.Moved)
	assert.NotContains(t, undone.Workspace.Files, "src/app/about/page.tsx")
	assert.True(t, undone.Workspace.CanRedo)

	rr = env.do(t, http.MethodPost, "/workspace/cache/clear", "")
	require.Equal(t, http.StatusOK, rr.Code)
	cleared := decodeWorkspace(t, rr)
	assert.False(t, cleared.Workspace.CanRedo)
}

func TestOpen_UnknownProject(t *testing.T) {
	env := setupRouter(t, nil)

	rr := env.do(t, http.MethodPost, "/workspace/open", `{"project_id":"site-other"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok":false`)
}

func TestFiles_NoProjectOpen(t *testing.T) {
	env := setupRouter(t, nil)

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodGet, "/workspace/files", "").Code)
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPut, "/workspace/files", `{"files":{"a.txt":"x"}}`).Code)
}

func TestPutFiles_RejectsEscapingPath(t *testing.T) {
	env := setupRouter(t, nil)
	env.do(t, http.MethodPost, "/workspace/open", `{"project_id":"site-1"}`)

	rr := env.do(t, http.MethodPut, "/workspace/files", `{"path":"../etc/passwd","content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSync_DryRunWithoutRemoteReportsChanges(t *testing.T) {
	env := setupRouter(t, nil)
	env.do(t, http.MethodPost, "/workspace/open", `{"project_id":"site-1"}`)

	rr := env.do(t, http.MethodPost, "/workspace/sync", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Sync struct {
			Status     string `json:"status"`
			HasChanges bool   `json:"has_changes"`
		} `json:"sync"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "synced", body.Sync.Status)
	assert.True(t, body.Sync.HasChanges)
}

func TestFrame_IsSandboxed(t *testing.T) {
	env := setupRouter(t, nil)
	env.do(t, http.MethodPost, "/workspace/open", `{"project_id":"site-1"}`)

	rr := env.do(t, http.MethodGet, "/workspace/preview/frame", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, preview.FrameCSP, rr.Header().Get("Content-Security-Policy"))
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), `<div id="root"></div>`)
}

func TestChat_AppliesStoredPreferences(t *testing.T) {
	env := setupRouter(t, fixedPrefs{Model: "fast"})
	env.do(t, http.MethodPost, "/workspace/open", `{"project_id":"site-1"}`)
	env.do(t, http.MethodPut, "/workspace/files", `{"path":"src/app/about/page.tsx","content":"about"}`)

	rr := env.do(t, http.MethodPost, "/workspace/chat", `{"text":"Add a header"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	env.gen.mu.Lock()
	defer env.gen.mu.Unlock()
	assert.Equal(t, "fast", env.gen.last.Model)
}

func TestChat_EmptyInput(t *testing.T) {
	env := setupRouter(t, nil)
	env.do(t, http.MethodPost, "/workspace/open", `{"project_id":"site-1"}`)

	rr := env.do(t, http.MethodPost, "/workspace/chat", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApprovePlan_UnknownMessage(t *testing.T) {
	env := setupRouter(t, nil)
	env.do(t, http.MethodPost, "/workspace/open", `{"project_id":"site-1"}`)

	rr := env.do(t, http.MethodPost, "/workspace/chat/plans/missing/approve", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBridge_RelaysBothDirections(t *testing.T) {
	env := setupRouter(t, nil)
	env.do(t, http.MethodPost, "/workspace/open", `{"project_id":"site-1"}`)
	env.do(t, http.MethodPut, "/workspace/files", `{"path":"src/app/about/page.tsx","content":"about"}`)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/workspace/bridge", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(preview.Envelope{Type: preview.TypeNavigation, Path: "/about"}))

	s, ok := env.sessions.Lookup("uid-1")
	require.True(t, ok)
	require.Eventually(t, func() bool {
		st, err := s.Bridge.State(context.Background())
		return err == nil && st.ActiveFile == "src/app/about/page.tsx"
	}, 2*time.Second, 10*time.Millisecond)

	rr := env.do(t, http.MethodPost, "/workspace/preview/navigate", `{"route":"contact"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env2 preview.Envelope
	require.NoError(t, conn.ReadJSON(&env2))
	assert.Equal(t, preview.TypeNavigateTo, env2.Type)
	assert.Equal(t, "/contact", env2.Path)
}
