package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Optional dependencies left nil in cfg disable their routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	if cfg.ImportService != nil {
		imports := NewImportsController(cfg.ImportService, cfg.SettingsStore, cfg.TaskClient)
		api.GET("/tables", imports.ListTables)
		api.GET("/keys", imports.GetKeys)
		api.POST("/imports", imports.StartImport)
		api.GET("/imports/status", imports.GetStatus)
		api.GET("/imports/runs", imports.ListRuns)
		api.GET("/imports/runs/:run_id", imports.GetRun)
	}

	if cfg.SettingsStore != nil {
		settings := NewSettingsController(cfg.SettingsStore, cfg.Scheduler, cfg.AuditService)
		api.GET("/settings/import", settings.GetSettings)
		api.PUT("/settings/import", settings.UpdateSettings)
		api.DELETE("/settings/import", settings.ResetSettings)
		if cfg.Scheduler != nil {
			api.POST("/settings/import/run-now", settings.RunNow)
		}
	}

	if cfg.AuditService != nil {
		auditController := NewAuditController(cfg.AuditService)
		api.GET("/audit", auditController.GetAuditEvents)
	}

	// Task management endpoints
	if cfg.TaskClient != nil {
		tasksController := NewTasksController(cfg.TaskClient, cfg.AuditRetentionDays)
		api.GET("/tasks/types", tasksController.ListTaskTypes)
		api.POST("/tasks/cleanup-audit", tasksController.EnqueueAuditCleanup)
		api.GET("/tasks/:id", tasksController.GetTaskStatus)
	}

	return router
}

// requestLogger logs each request through logrus.
func requestLogger() gin.HandlerFunc {
	log := logrus.WithField("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request served")
	}
}
