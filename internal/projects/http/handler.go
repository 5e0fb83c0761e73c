package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bizconsole/console-backend/internal/logging"
	"github.com/bizconsole/console-backend/internal/projects/domain"
	"github.com/bizconsole/console-backend/internal/projects/service"
)

// Handler bundles the dependencies for project directory endpoints.
type Handler struct {
	svc *service.DirectoryService
}

func New(svc *service.DirectoryService) *Handler {
	return &Handler{svc: svc}
}

// writeError maps directory errors onto status codes.
func writeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "not found"})
	case errors.Is(err, domain.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	default:
		logging.NewLogger(c.Request.Context()).Named("projects").LogError(op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}
