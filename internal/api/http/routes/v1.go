package routes

import (
	"github.com/gin-gonic/gin"

	authhttp "github.com/bizconsole/console-backend/internal/auth/http"
	authservice "github.com/bizconsole/console-backend/internal/auth/service"
	projectshttp "github.com/bizconsole/console-backend/internal/projects/http"
	"github.com/bizconsole/console-backend/internal/projects/service"
	workspacehttp "github.com/bizconsole/console-backend/internal/workspace/http"
	"github.com/bizconsole/console-backend/internal/workspace/session"
)

type V1Deps struct {
	Auth           gin.HandlerFunc
	Directory      *service.DirectoryService
	Users          *authservice.AuthService
	Sessions       *session.Manager
	AllowedOrigins []string
}

// RegisterV1 mounts the authenticated API.
func RegisterV1(r *gin.Engine, dep V1Deps) {
	api := r.Group("/api/v1")
	api.Use(dep.Auth)

	authhttp.New(dep.Users).Register(api.Group("/users"))
	projectshttp.New(dep.Directory).Register(api.Group("/projects"))

	workspace := workspacehttp.New(dep.Sessions, dep.Users,
		workspacehttp.WithAllowedOrigins(dep.AllowedOrigins))
	workspace.Register(api.Group("/workspace"))
}
