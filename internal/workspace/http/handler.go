package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bizconsole/console-backend/internal/auth"
	authdomain "github.com/bizconsole/console-backend/internal/auth/domain"
	"github.com/bizconsole/console-backend/internal/logging"
	pdomain "github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/workspace/filestore"
	"github.com/bizconsole/console-backend/internal/workspace/orchestrator"
	"github.com/bizconsole/console-backend/internal/workspace/reconcile"
	"github.com/bizconsole/console-backend/internal/workspace/session"
)

// Preferences supplies per-user chat defaults.
type Preferences interface {
	Preferences(ctx context.Context, uid string) authdomain.Preferences
}

// Handler serves the caller's active workspace.
type Handler struct {
	sessions *session.Manager
	prefs    Preferences
	origins  []string
}

type Option func(*Handler)

// WithAllowedOrigins restricts the bridge websocket to the given origins.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) { h.origins = origins }
}

func New(sessions *session.Manager, prefs Preferences, opts ...Option) *Handler {
	h := &Handler{sessions: sessions, prefs: prefs}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) session(c *gin.Context) *session.Session {
	return h.sessions.Get(auth.UserFirebaseUID(c))
}

// writeError maps workspace errors onto status codes.
func writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, pdomain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "not found"})
	case errors.Is(err, pdomain.ErrInvalid),
		errors.Is(err, orchestrator.ErrEmptyInput),
		errors.Is(err, orchestrator.ErrNotAPlan):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, filestore.ErrNoProject),
		errors.Is(err, reconcile.ErrNoProject),
		errors.Is(err, orchestrator.ErrNoProject):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "no project open"})
	case errors.Is(err, orchestrator.ErrBusy),
		errors.Is(err, orchestrator.ErrPlanResolved):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	default:
		logging.NewLogger(c.Request.Context()).Named("workspace").LogError(op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}

// persistWarning reports a failed write without failing the request: the
// in-memory files are authoritative.
func persistWarning(c *gin.Context, op string, err error) (string, bool) {
	if err == nil {
		return "", true
	}
	if errors.Is(err, filestore.ErrPersistence) {
		logging.NewLogger(c.Request.Context()).Named("workspace").LogWarnf(op, "%v", err)
		return "changes are kept in this session but could not be saved", true
	}
	return "", false
}
