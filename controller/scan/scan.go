package scan

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknotify/dto"
	"tasknotify/middleware"
	"tasknotify/scanner"
	"tasknotify/scheduler"
)

// Trigger is the part of the scheduler the admin routes drive.
type Trigger interface {
	Trigger(ctx context.Context) (scanner.Report, error)
	LastReport() (scanner.Report, bool)
}

func ScanController(router *gin.Engine, sched Trigger, secret string, log *zap.SugaredLogger) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	group := router.Group("/admin/scan", middleware.AccessTokenMiddleware(secret), middleware.AdminMiddleware())
	group.POST("", func(c *gin.Context) {
		RunScan(c, sched, log)
	})
	group.GET("", func(c *gin.Context) {
		LastScan(c, sched)
	})
}

func RunScan(c *gin.Context, sched Trigger, log *zap.SugaredLogger) {
	report, err := sched.Trigger(c.Request.Context())
	if errors.Is(err, scheduler.ErrNotRunning) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is not running"})
		return
	}
	if err != nil {
		log.Warnw("manual scan did not complete", "error", err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Scan did not complete"})
		return
	}

	log.Infow("manual scan finished", "userId", c.GetString("userId"), "created", report.Created(), "failed", report.Failed())
	c.JSON(http.StatusOK, dto.NewScanResponse(report))
}

func LastScan(c *gin.Context, sched Trigger) {
	report, ok := sched.LastReport()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No scan has run yet"})
		return
	}
	c.JSON(http.StatusOK, dto.NewScanResponse(report))
}
