package session

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bizconsole/console-backend/internal/logging"
)

const sweepSchedule = "@every 1m"

// Manager owns one Session per user and evicts sessions left idle longer than
// the configured TTL.
type Manager struct {
	deps Deps
	ttl  time.Duration
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	cron     *cron.Cron
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		ttl:      deps.Config.SessionTTL,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
}

// Get returns the owner's session, creating it on first use.
func (m *Manager) Get(owner string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[owner]
	if !ok {
		s = New(owner, m.deps)
		m.sessions[owner] = s
	}
	s.Touch()
	return s
}

// Lookup returns the owner's session without creating one.
func (m *Manager) Lookup(owner string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[owner]
	return s, ok
}

// ProjectDeleted unloads projectID from the owner's session, if loaded.
func (m *Manager) ProjectDeleted(ctx context.Context, owner, projectID string) {
	if s, ok := m.Lookup(owner); ok {
		s.Unload(ctx, projectID)
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Start schedules the idle sweep.
func (m *Manager) Start() error {
	if m.ttl <= 0 {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(sweepSchedule, func() { m.Sweep(context.Background()) }); err != nil {
		return err
	}
	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()
	c.Start()
	return nil
}

// Sweep closes idle sessions and returns how many were evicted. Sessions with
// a running generation or an open event stream are kept.
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var idle []*Session
	for owner, s := range m.sessions {
		if s.Busy() || s.IdleSince().After(cutoff) {
			continue
		}
		delete(m.sessions, owner)
		idle = append(idle, s)
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		logging.NewLogger(ctx).Named("session").LogInfof("sweep", "evicted %d idle sessions", len(idle))
	}
	return len(idle)
}

// Stop halts the sweep and closes every session.
func (m *Manager) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	for _, s := range sessions {
		s.Close()
	}
}
