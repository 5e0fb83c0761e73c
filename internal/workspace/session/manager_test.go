package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(testDeps(newMemDirectory("uid-1", "site-1"), newMemPersister(), &recordingGen{}))
	t.Cleanup(m.Stop)
	return m
}

func TestManager_GetReusesSession(t *testing.T) {
	m := newTestManager(t)

	a := m.Get("uid-1")
	b := m.Get("uid-1")
	c := m.Get("uid-2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, m.Len())
}

func TestManager_SweepEvictsIdleSessions(t *testing.T) {
	m := newTestManager(t)
	m.Get("uid-1")
	busy := m.Get("uid-2")
	_, cancel := busy.Events.Subscribe()
	defer cancel()

	assert.Zero(t, m.Sweep(context.Background()))

	m.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, m.Sweep(context.Background()))

	_, ok := m.Lookup("uid-1")
	assert.False(t, ok)
	_, ok = m.Lookup("uid-2")
	assert.True(t, ok, "sessions with an open stream are kept")
}

func TestManager_StartAndStop(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Start())
	s := m.Get("uid-1")

	m.Stop()

	assert.Zero(t, m.Len())
	events, _ := s.Events.Subscribe()
	_, ok := <-events
	assert.False(t, ok, "stopped manager closes its sessions")
}

func TestManager_ProjectDeletedUnloadsSession(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	s := m.Get("uid-1")
	_, err := s.Open(ctx, "site-1")
	require.NoError(t, err)

	m.ProjectDeleted(ctx, "uid-2", "site-1")
	assert.Equal(t, "site-1", s.Files.ProjectID(), "other owners are untouched")

	m.ProjectDeleted(ctx, "uid-1", "site-1")
	assert.Empty(t, s.Files.ProjectID())
	assert.Equal(t, 1, m.Len(), "the session itself stays")
}
