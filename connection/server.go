package connection

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknotify/config"
	"tasknotify/controller/notification"
	"tasknotify/controller/scan"
	"tasknotify/middleware"
	"tasknotify/services"
)

const shutdownTimeout = 30 * time.Second

func NewRouter(cfg config.Config, log *zap.SugaredLogger, store services.NotificationStore, sched scan.Trigger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log), cors.Default())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Api is running!"})
	})

	notification.NotificationController(router, store, cfg.JWTSecret, log)
	scan.ScanController(router, sched, cfg.JWTSecret, log)

	return router
}

// StartServer serves handler until ctx is done, then shuts down gracefully.
func StartServer(ctx context.Context, cfg config.Config, handler http.Handler, log *zap.SugaredLogger) error {
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server listening", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Infow("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
