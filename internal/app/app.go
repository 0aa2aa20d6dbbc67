// Package app boots the server: config, database, migrations, image storage,
// rate limiting, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vireo-social/vireo/internal/config"
	"github.com/vireo-social/vireo/internal/db"
	"github.com/vireo-social/vireo/internal/http/api"
	"github.com/vireo-social/vireo/internal/ratelimit"
	"github.com/vireo-social/vireo/internal/storage"
)

// shutdownGrace bounds how long in-flight requests may run after a stop
// signal.
const shutdownGrace = 10 * time.Second

// Migrate opens the database and runs schema migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	conn, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the API server and blocks until ctx is cancelled or the
// listener fails.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	if errValidate := cfg.Validate(); errValidate != nil {
		return errValidate
	}

	conn, err := db.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	images, errStore := storage.NewImageStore(cfg.UploadDir)
	if errStore != nil {
		return errStore
	}
	media, errMedia := storage.NewMediaStore(filepath.Join(cfg.UploadDir, "posts"))
	if errMedia != nil {
		return errMedia
	}
	limiter := ratelimit.NewManager(cfg.RateLimit, nil, nil)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterRoutes(engine, conn, cfg, limiter, images, media)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}
