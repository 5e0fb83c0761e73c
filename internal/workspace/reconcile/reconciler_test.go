package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/workspace/domain"
	"github.com/bizconsole/console-backend/internal/workspace/filestore"
	"github.com/bizconsole/console-backend/internal/workspace/upstream"
)

type fakeFiles struct {
	mu    sync.Mutex
	id    string
	files domain.FileMap
}

func (f *fakeFiles) ProjectID() string { return f.id }

func (f *fakeFiles) Snapshot() domain.FileMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files.Clone()
}

type fakeMirror struct {
	dryRuns  atomic.Int32
	pushes   atomic.Int32
	changed  bool
	pushErr  error
	lastPush upstream.MirrorRequest
	onPush   func()
}

func (m *fakeMirror) DryRun(_ context.Context, req upstream.MirrorRequest) (*upstream.MirrorResult, error) {
	m.dryRuns.Add(1)
	return &upstream.MirrorResult{OK: true, Changed: m.changed}, nil
}

func (m *fakeMirror) Push(_ context.Context, req upstream.MirrorRequest) (*upstream.MirrorResult, error) {
	m.pushes.Add(1)
	m.lastPush = req
	if m.onPush != nil {
		m.onPush()
	}
	if m.pushErr != nil {
		return nil, m.pushErr
	}
	res := &upstream.MirrorResult{OK: true}
	if req.AutoCreate {
		res.RemoteRef = &pdomain.RemoteRef{URL: "https://git.example/acme/site", Branch: "main"}
	}
	return res, nil
}

type fakeRemotes struct {
	ref    *pdomain.RemoteRef
	linked []pdomain.RemoteRef
}

func (r *fakeRemotes) RemoteRef(context.Context, string) (*pdomain.RemoteRef, error) { return r.ref, nil }

func (r *fakeRemotes) LinkRemote(_ context.Context, _ string, ref pdomain.RemoteRef) error {
	r.linked = append(r.linked, ref)
	r.ref = &ref
	return nil
}

func linked() *fakeRemotes {
	return &fakeRemotes{ref: &pdomain.RemoteRef{URL: "https://git.example/acme/site", Branch: "main"}}
}

func newFiles() *fakeFiles {
	return &fakeFiles{id: "proj-1", files: domain.FileMap{"src/app/page.tsx": "x"}}
}

func TestTransitions(t *testing.T) {
	cases := []struct {
		from Status
		ev   event
		to   Status
		ok   bool
	}{
		{StatusSynced, eventMutated, StatusPending, true},
		{StatusPending, eventPushStarted, StatusSyncing, true},
		{StatusSyncing, eventPushSucceeded, StatusSynced, true},
		{StatusSyncing, eventPushFailed, StatusError, true},
		{StatusError, eventMutated, StatusPending, true},
		{StatusError, eventPushStarted, StatusSyncing, true},
		{StatusPending, eventPushSucceeded, "", false},
		{StatusSynced, eventPushFailed, "", false},
	}
	for _, tc := range cases {
		to, ok := next(tc.from, tc.ev)
		assert.Equal(t, tc.ok, ok, "%s --%s-->", tc.from, tc.ev)
		if tc.ok {
			assert.Equal(t, tc.to, to)
		}
	}
}

func TestDryRun_IsIdempotentAndKeepsStatus(t *testing.T) {
	mirror := &fakeMirror{changed: true}
	r := New(newFiles(), mirror, linked(), WithDebounce(time.Hour))
	defer r.Close()
	r.MarkDirty()

	for i := 0; i < 3; i++ {
		st, err := r.Reconcile(context.Background(), DryRun)
		require.NoError(t, err)
		assert.True(t, st.HasChanges)
		assert.Equal(t, StatusPending, st.Status)
	}
	assert.Equal(t, int32(3), mirror.dryRuns.Load())
}

func TestDryRun_WithoutRemoteSkipsNetwork(t *testing.T) {
	mirror := &fakeMirror{}
	r := New(newFiles(), mirror, &fakeRemotes{})

	st, err := r.Reconcile(context.Background(), DryRun)
	require.NoError(t, err)
	assert.True(t, st.HasChanges)
	assert.Zero(t, mirror.dryRuns.Load())
}

func TestPush_Success(t *testing.T) {
	mirror := &fakeMirror{changed: true}
	var seen []Status
	var mu sync.Mutex
	r := New(newFiles(), mirror, linked(), WithDebounce(time.Hour), WithNotify(func(s State) {
		mu.Lock()
		seen = append(seen, s.Status)
		mu.Unlock()
	}))
	defer r.Close()
	r.MarkDirty()
	_, err := r.Reconcile(context.Background(), DryRun)
	require.NoError(t, err)

	st, err := r.Reconcile(context.Background(), Mode{Push: true, CommitMessage: "Add contact button"})
	require.NoError(t, err)
	assert.Equal(t, StatusSynced, st.Status)
	assert.False(t, st.HasChanges)
	assert.False(t, st.LastSyncedAt.IsZero())
	assert.Equal(t, "Add contact button", mirror.lastPush.CommitMessage)
	assert.False(t, mirror.lastPush.AutoCreate)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusPending, StatusPending, StatusSyncing, StatusSynced}, seen)
}

func TestPush_WithoutRemoteAutoCreatesAndLinks(t *testing.T) {
	remotes := &fakeRemotes{}
	mirror := &fakeMirror{}
	r := New(newFiles(), mirror, remotes)

	st, err := r.Reconcile(context.Background(), Push)
	require.NoError(t, err)
	assert.Equal(t, StatusSynced, st.Status)
	assert.True(t, mirror.lastPush.AutoCreate)
	require.Len(t, remotes.linked, 1)
	assert.Equal(t, "https://git.example/acme/site", remotes.linked[0].URL)
}

func TestPush_FailureIsStickyUntilMutation(t *testing.T) {
	mirror := &fakeMirror{pushErr: errors.New("remote rejected")}
	r := New(newFiles(), mirror, linked(), WithDebounce(time.Hour))
	defer r.Close()

	st, err := r.Reconcile(context.Background(), Push)
	require.Error(t, err)
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, "remote rejected", st.LastError)

	st, err = r.Reconcile(context.Background(), DryRun)
	require.NoError(t, err)
	assert.Equal(t, StatusError, st.Status, "dry runs never move the status")

	r.MarkDirty()
	assert.Equal(t, StatusPending, r.State().Status)
}

func TestPush_MutationDuringPushStaysPending(t *testing.T) {
	mirror := &fakeMirror{}
	r := New(newFiles(), mirror, linked(), WithDebounce(time.Hour))
	defer r.Close()
	mirror.onPush = r.MarkDirty

	st, err := r.Reconcile(context.Background(), Push)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, st.Status)
}

func TestMarkDirty_DebouncesToOneDryRun(t *testing.T) {
	mirror := &fakeMirror{changed: true}
	r := New(newFiles(), mirror, linked(), WithDebounce(30*time.Millisecond))
	defer r.Close()

	for i := 0; i < 5; i++ {
		r.MarkDirty()
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, StatusPending, r.State().Status)
	assert.Eventually(t, func() bool { return mirror.dryRuns.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), mirror.dryRuns.Load())
	assert.True(t, r.State().HasChanges)
}

func TestListen_LoadResetsAndMutationMarksDirty(t *testing.T) {
	r := New(newFiles(), &fakeMirror{}, linked(), WithDebounce(time.Hour))
	defer r.Close()

	r.Listen(filestore.Change{ProjectID: "proj-1", Op: filestore.OpUpdate})
	assert.Equal(t, StatusPending, r.State().Status)

	r.Listen(filestore.Change{ProjectID: "proj-2", Op: filestore.OpLoad})
	assert.Equal(t, StatusSynced, r.State().Status)
}

func TestReconcile_NoProject(t *testing.T) {
	r := New(&fakeFiles{}, &fakeMirror{}, linked())
	_, err := r.Reconcile(context.Background(), DryRun)
	assert.ErrorIs(t, err, ErrNoProject)
}
