package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bizconsole/console-backend/internal/auth"
	"github.com/bizconsole/console-backend/internal/auth/domain"
	"github.com/bizconsole/console-backend/internal/logging"
)

// Users is the account service behind the user routes.
type Users interface {
	GetUserByFirebaseUID(ctx context.Context, uid string) (*domain.User, error)
	SyncUser(ctx context.Context, req domain.SyncUserRequest) (*domain.User, error)
	UpdatePreferences(ctx context.Context, uid string, req domain.UpdatePreferencesRequest) (*domain.User, error)
}

type Handler struct {
	users Users
}

func New(users Users) *Handler {
	return &Handler{users: users}
}

// currentUser answers 401 when the request carries no identity.
func currentUser(c *gin.Context) (string, bool) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return "", false
	}
	return uid, true
}

func writeError(c *gin.Context, op, msg string, err error) {
	if errors.Is(err, domain.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "user not found"})
		return
	}
	logging.NewLogger(c.Request.Context()).Named("auth").LogError(op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": msg})
}
