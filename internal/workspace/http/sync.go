package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bizconsole/console-backend/internal/logging"
	"github.com/bizconsole/console-backend/internal/workspace/reconcile"
)

func (h *Handler) getSync(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "sync": h.session(c).Sync.State()})
}

type reconcileReq struct {
	Push          bool   `json:"push"`
	CommitMessage string `json:"commit_message"`
}

// reconcile runs a dry run by default; push=true performs the authoritative
// sync. Upstream failures still return the resulting state.
func (h *Handler) reconcile(c *gin.Context) {
	var req reconcileReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
			return
		}
	}

	s := h.session(c)
	st, err := s.Sync.Reconcile(c.Request.Context(), reconcile.Mode{Push: req.Push, CommitMessage: req.CommitMessage})
	if errors.Is(err, reconcile.ErrNoProject) {
		writeError(c, "reconcile", err)
		return
	}
	if err != nil {
		logging.NewLogger(c.Request.Context()).Named("workspace").LogWarnf("reconcile", "push=%t error=%v", req.Push, err)
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error(), "sync": st})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "sync": st})
}
