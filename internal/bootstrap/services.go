package bootstrap

import (
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/bizconsole/console-backend/config"
	authrepo "github.com/bizconsole/console-backend/internal/auth/repository"
	authservice "github.com/bizconsole/console-backend/internal/auth/service"
	"github.com/bizconsole/console-backend/internal/projects/repository"
	"github.com/bizconsole/console-backend/internal/projects/service"
	"github.com/bizconsole/console-backend/internal/workspace/session"
	"github.com/bizconsole/console-backend/internal/workspace/upstream"
)

// Services are the long-lived application services shared by the router and
// the process lifecycle.
type Services struct {
	Directory *service.DirectoryService
	Auth      *authservice.AuthService
	Sessions  *session.Manager
}

func BuildServices(cfg *config.Config, db *sql.DB, rdb *redis.Client) *Services {
	files := repository.NewFileRepository(db)
	directory := service.NewDirectoryService(
		repository.NewProjectRepository(db),
		files,
		repository.NewConversationRepository(db),
		repository.NewEventBus(rdb),
	)

	sessions := session.NewManager(session.Deps{
		Persister: files,
		Directory: directory,
		Generator: upstream.NewGenerationClient(cfg.Services.GenerationURL, cfg.Services.GenerationRPS, cfg.Services.GenerationBurst),
		Builder:   upstream.NewBuildClient(cfg.Services.BuildURL),
		Mirror: upstream.NewMirrorClient(cfg.Services.MirrorURL, upstream.MirrorCredentials{
			ClientID:     cfg.Services.MirrorClientID,
			ClientSecret: cfg.Services.MirrorClientSecret,
			TokenURL:     cfg.Services.MirrorTokenURL,
		}),
		Config: cfg.Workspace,
	})
	directory.OnDelete(sessions.ProjectDeleted)

	return &Services{
		Directory: directory,
		Auth:      authservice.NewAuthService(authrepo.NewUserRepository(db)),
		Sessions:  sessions,
	}
}
