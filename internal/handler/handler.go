// Package handler exposes the triage service over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"inbox-sentinel/internal/digest"
	"inbox-sentinel/internal/feedback"
	metricsPkg "inbox-sentinel/internal/metrics"
	"inbox-sentinel/internal/notify"
	"inbox-sentinel/internal/scheduler"
	"inbox-sentinel/internal/suppression"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db          *gorm.DB
	ledger      *feedback.Ledger
	aggregator  *digest.Aggregator
	entryParser *suppression.EntryParser
	transport   notify.Transport
	scheduler   *scheduler.Scheduler
	metrics     *metricsPkg.Metrics
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, ledger *feedback.Ledger, aggregator *digest.Aggregator,
	entryParser *suppression.EntryParser, transport notify.Transport,
	sched *scheduler.Scheduler, metrics *metricsPkg.Metrics) *Handlers {
	return &Handlers{
		db:          db,
		ledger:      ledger,
		aggregator:  aggregator,
		entryParser: entryParser,
		transport:   transport,
		scheduler:   sched,
		metrics:     metrics,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/triage/run", h.RunTriage)

		api.GET("/emails", h.GetRecentEmails)
		api.POST("/emails/:id/feedback", h.SubmitFeedback)

		api.POST("/digest/send", h.SendDigest)
		api.GET("/digest/stats", h.GetDigestStats)

		api.GET("/stats", h.GetStats)
		api.GET("/feedback/stats", h.GetFeedbackStats)
		api.GET("/patterns", h.GetPatterns)

		api.GET("/lists/:list", h.GetListEntries)
		api.POST("/lists/:list", h.CreateListEntry)
		api.POST("/lists/:list/parse", h.ParseListEntries)
		api.DELETE("/lists/:list/:id", h.DeleteListEntry)

		api.POST("/notifications/test", h.TestNotification)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Metrics:   make(map[string]string),
	}

	if err := h.db.Raw("SELECT 1").Error; err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.scheduler.IsRunning() {
		response.Metrics["scheduler"] = "running"
		response.Metrics["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
		response.Metrics["next_digest"] = h.scheduler.GetNextDigest().Format(time.RFC3339)
	} else {
		response.Metrics["scheduler"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
