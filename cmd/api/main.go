package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bizconsole/console-backend/config"
	"github.com/bizconsole/console-backend/internal/auth"
	authmw "github.com/bizconsole/console-backend/internal/auth/middleware"
	"github.com/bizconsole/console-backend/internal/bootstrap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{
		DSN:      cfg.Database.DSN,
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()
	db := bootstrap.SQLDB(pool)
	defer db.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	var authMiddleware gin.HandlerFunc
	if cfg.Firebase.Disabled {
		log.Println("AUTH_DISABLED=true: trusting X-User-Id headers")
		authMiddleware = auth.OptionalUser()
	} else {
		client, err := auth.InitializeFirebase(ctx, &cfg.Firebase)
		if err != nil {
			log.Fatalf("firebase: %v", err)
		}
		authMiddleware = authmw.FirebaseAuthMiddleware(client)
	}

	services := bootstrap.BuildServices(cfg, db, rdb)
	if err := services.Sessions.Start(); err != nil {
		log.Fatalf("session sweep: %v", err)
	}
	defer services.Sessions.Stop()

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    cfg.App.ServiceName,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		DB:             pool,
		Redis:          rdb,
		Auth:           authMiddleware,
		Services:       services,
	})

	// Request contexts derive from ctx so open streams end on shutdown.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Printf("%s %s listening on :%s", cfg.App.ServiceName, cfg.App.Version, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
