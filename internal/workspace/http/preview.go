package http

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bizconsole/console-backend/internal/workspace/preview"
)

func (h *Handler) getPreview(c *gin.Context) {
	s := h.session(c)
	editor, err := s.Bridge.State(c.Request.Context())
	if err != nil {
		writeError(c, "get_preview", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "preview": s.Preview.State(), "editor": editor})
}

func (h *Handler) refreshPreview(c *gin.Context) {
	h.session(c).Preview.Refresh()
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

// frame serves the isolated preview document. The CSP sandbox gives it an
// opaque origin, so it can neither read host storage nor call the API.
func (h *Handler) frame(c *gin.Context) {
	s := h.session(c)
	editor, err := s.Bridge.State(c.Request.Context())
	if err != nil {
		writeError(c, "preview_frame", err)
		return
	}
	bundle, _ := s.Preview.Bundle()

	var buf bytes.Buffer
	if err := preview.RenderFrame(&buf, preview.FrameData{
		Title:      s.Files.ProjectID(),
		ActiveFile: editor.ActiveFile,
		Bundle:     bundle,
	}); err != nil {
		writeError(c, "preview_frame", err)
		return
	}

	c.Header("Content-Security-Policy", preview.FrameCSP)
	c.Header("Cache-Control", "no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

type navigateReq struct {
	Route string `json:"route"`
}

func (h *Handler) navigate(c *gin.Context) {
	var req navigateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}
	route := "/" + strings.TrimLeft(strings.TrimSpace(req.Route), "/")
	delivered := h.session(c).Bridge.Navigate(route)
	c.JSON(http.StatusOK, gin.H{"ok": true, "delivered": delivered})
}
