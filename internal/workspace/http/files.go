package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bizconsole/console-backend/internal/workspace/domain"
	"github.com/bizconsole/console-backend/internal/workspace/filestore"
	"github.com/bizconsole/console-backend/internal/workspace/session"
)

type filesView struct {
	ProjectID string         `json:"project_id"`
	Files     domain.FileMap `json:"files"`
	CanUndo   bool           `json:"can_undo"`
	CanRedo   bool           `json:"can_redo"`
}

func viewOf(s *session.Session, files domain.FileMap) filesView {
	if files == nil {
		files = s.Files.Snapshot()
	}
	return filesView{
		ProjectID: s.Files.ProjectID(),
		Files:     files,
		CanUndo:   s.Files.CanUndo(),
		CanRedo:   s.Files.CanRedo(),
	}
}

func respondFiles(c *gin.Context, s *session.Session, files domain.FileMap, warning string) {
	body := gin.H{"ok": true, "workspace": viewOf(s, files)}
	if warning != "" {
		body["warning"] = warning
	}
	c.JSON(http.StatusOK, body)
}

type openReq struct {
	ProjectID string `json:"project_id"`
}

func (h *Handler) open(c *gin.Context) {
	var req openReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ProjectID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "project_id is required"})
		return
	}

	s := h.session(c)
	files, err := s.Open(c.Request.Context(), strings.TrimSpace(req.ProjectID))
	warning, ok := persistWarning(c, "open", err)
	if !ok {
		writeError(c, "open_workspace", err)
		return
	}
	respondFiles(c, s, files, warning)
}

func (h *Handler) getFiles(c *gin.Context) {
	s := h.session(c)
	if s.Files.ProjectID() == "" {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "no project open"})
		return
	}
	respondFiles(c, s, nil, "")
}

// putFilesReq saves one file when Path is set. Otherwise Files is merged into
// the workspace, or replaces it entirely when Replace is true.
type putFilesReq struct {
	Path    string         `json:"path"`
	Content string         `json:"content"`
	Files   domain.FileMap `json:"files"`
	Replace bool           `json:"replace"`
}

func (h *Handler) putFiles(c *gin.Context) {
	var req putFilesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	s := h.session(c)
	ctx := c.Request.Context()

	var files domain.FileMap
	var err error
	switch {
	case req.Path != "":
		if domain.NormalizePath(req.Path) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid path"})
			return
		}
		files, err = s.Files.Save(ctx, req.Path, req.Content)
	case req.Replace:
		files, err = s.Files.Update(ctx, filestore.Replace(req.Files))
	case len(req.Files) > 0:
		files, err = s.Files.Update(ctx, filestore.Put(req.Files))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "path or files required"})
		return
	}

	warning, ok := persistWarning(c, "put_files", err)
	if !ok {
		writeError(c, "put_files", err)
		return
	}
	respondFiles(c, s, files, warning)
}

func (h *Handler) undo(c *gin.Context) {
	s := h.session(c)
	files, moved, err := s.Files.Undo(c.Request.Context())
	h.respondHistory(c, s, "undo", files, moved, err)
}

func (h *Handler) redo(c *gin.Context) {
	s := h.session(c)
	files, moved, err := s.Files.Redo(c.Request.Context())
	h.respondHistory(c, s, "redo", files, moved, err)
}

func (h *Handler) respondHistory(c *gin.Context, s *session.Session, op string, files domain.FileMap, moved bool, err error) {
	warning, ok := persistWarning(c, op, err)
	if !ok {
		writeError(c, op, err)
		return
	}
	body := gin.H{"ok": true, "moved": moved, "workspace": viewOf(s, files)}
	if warning != "" {
		body["warning"] = warning
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) clearCache(c *gin.Context) {
	s := h.session(c)
	s.Files.ClearHistory()
	respondFiles(c, s, nil, "")
}
