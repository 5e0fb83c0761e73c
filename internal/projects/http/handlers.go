package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bizconsole/console-backend/internal/auth"
	"github.com/bizconsole/console-backend/internal/projects/domain"
)

type createReq struct {
	Name string `json:"name"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.svc.Create(c.Request.Context(), auth.UserFirebaseUID(c), req.Name)
	if err != nil {
		writeError(c, "create_project", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), auth.UserFirebaseUID(c))
	if err != nil {
		writeError(c, "list_projects", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("public_id"))
	if err != nil {
		writeError(c, "get_project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

type renameReq struct {
	Name string `json:"name"`
}

func (h *Handler) rename(c *gin.Context) {
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.svc.Rename(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("public_id"), req.Name)
	if err != nil {
		writeError(c, "rename_project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("public_id")); err != nil {
		writeError(c, "delete_project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) linkRemote(c *gin.Context) {
	var req domain.RemoteRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.svc.LinkRemote(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("public_id"), req)
	if err != nil {
		writeError(c, "link_remote", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) unlinkRemote(c *gin.Context) {
	p, err := h.svc.UnlinkRemote(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("public_id"))
	if err != nil {
		writeError(c, "unlink_remote", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

type deploymentReq struct {
	URL string `json:"url"`
}

func (h *Handler) recordDeployment(c *gin.Context) {
	var req deploymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.svc.RecordDeployment(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("public_id"), req.URL)
	if err != nil {
		writeError(c, "record_deployment", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

type visibilityReq struct {
	Visibility   domain.Visibility `json:"visibility"`
	CustomDomain string            `json:"custom_domain"`
}

func (h *Handler) setVisibility(c *gin.Context) {
	var req visibilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.svc.SetVisibility(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("public_id"), req.Visibility, req.CustomDomain)
	if err != nil {
		writeError(c, "set_visibility", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

type createConversationReq struct {
	Title string `json:"title"`
}

func (h *Handler) createConversation(c *gin.Context) {
	var req createConversationReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
			return
		}
	}

	title := domain.DefaultTitle
	if strings.TrimSpace(req.Title) != "" {
		title = domain.TitleFrom(req.Title)
	}
	conv, err := h.svc.CreateConversation(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("public_id"), title)
	if err != nil {
		writeError(c, "create_conversation", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "conversation": conv})
}

func (h *Handler) listConversations(c *gin.Context) {
	items, err := h.svc.ListConversations(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("public_id"))
	if err != nil {
		writeError(c, "list_conversations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "conversations": items})
}

// messageView adds the derived plan status to stored messages.
type messageView struct {
	domain.Message
	PlanStatus domain.PlanStatus `json:"plan_status,omitempty"`
}

func (h *Handler) listMessages(c *gin.Context) {
	items, err := h.svc.ListMessages(c.Request.Context(), auth.UserFirebaseUID(c), c.Param("public_id"), c.Param("conversation_id"))
	if err != nil {
		writeError(c, "list_messages", err)
		return
	}

	out := make([]messageView, len(items))
	for i := range items {
		out[i] = messageView{Message: items[i], PlanStatus: domain.PlanStatusAt(items, i)}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "messages": out})
}
