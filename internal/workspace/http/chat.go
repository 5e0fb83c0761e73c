package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bizconsole/console-backend/internal/auth"
	"github.com/bizconsole/console-backend/internal/workspace/orchestrator"
)

type chatReq struct {
	Text           string   `json:"text"`
	Images         []string `json:"images"`
	HighEffort     *bool    `json:"high_effort"`
	Model          string   `json:"model"`
	ConversationID string   `json:"conversation_id"`
}

// chat runs one AI turn. The response arrives when the turn completes;
// progress is streamed as ai events in the meantime.
func (h *Handler) chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	in := orchestrator.Input{
		Text:           req.Text,
		Images:         req.Images,
		Model:          req.Model,
		ConversationID: req.ConversationID,
	}
	if req.HighEffort != nil {
		in.HighEffort = *req.HighEffort
	}
	if h.prefs != nil && (in.Model == "" || req.HighEffort == nil) {
		prefs := h.prefs.Preferences(c.Request.Context(), auth.UserFirebaseUID(c))
		if in.Model == "" {
			in.Model = prefs.Model
		}
		if req.HighEffort == nil {
			in.HighEffort = prefs.HighEffort
		}
	}

	res, err := h.session(c).AI.Generate(c.Request.Context(), in)
	if err != nil {
		writeError(c, "chat", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": res})
}

func (h *Handler) cancelChat(c *gin.Context) {
	cancelled := h.session(c).AI.Cancel()
	c.JSON(http.StatusOK, gin.H{"ok": true, "cancelled": cancelled})
}

func (h *Handler) approvePlan(c *gin.Context) {
	res, err := h.session(c).AI.ApprovePlan(c.Request.Context(), c.Param("message_id"))
	if err != nil {
		writeError(c, "approve_plan", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": res})
}

type rejectReq struct {
	Feedback string `json:"feedback"`
}

func (h *Handler) rejectPlan(c *gin.Context) {
	var req rejectReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
			return
		}
	}

	res, err := h.session(c).AI.RejectPlan(c.Request.Context(), c.Param("message_id"), req.Feedback)
	if err != nil {
		writeError(c, "reject_plan", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": res})
}
