package entrypoint

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/congregate/internal/audit"
	"github.com/mrlokans/congregate/internal/config"
	"github.com/mrlokans/congregate/internal/database"
	dbaudit "github.com/mrlokans/congregate/internal/database/audit"
	"github.com/mrlokans/congregate/internal/database/settings"
	http_controllers "github.com/mrlokans/congregate/internal/http"
	"github.com/mrlokans/congregate/internal/scheduler"
	"github.com/mrlokans/congregate/internal/services"
	"github.com/mrlokans/congregate/internal/settingsstore"
	"github.com/mrlokans/congregate/internal/tasks"
)

// DefaultTasksPath holds the task queue when the destination is not SQLite.
const DefaultTasksPath = "./congregate-tasks.db"

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs router until ctx is done or SIGINT/SIGTERM arrives, then shuts
// down within the configured timeout.
func Serve(ctx context.Context, router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return errors.Wrap(err, "listen")
		}
	case <-ctx.Done():
	}
	logrus.WithField("timeout", timeout).Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown")
	}
	logrus.Info("Server exiting")
	return nil
}

// Run wires the destination, the import service, the task queue and the
// scheduler behind the HTTP API and serves until interrupted.
func Run(ctx context.Context, cfg *config.Config, version string) error {
	if err := ConfigureLogging(cfg.Logging); err != nil {
		return err
	}
	logrus.WithField("version", version).Info("Starting congregate")

	db, err := database.Open(cfg.Database, logger.Warn)
	if err != nil {
		return errors.Wrap(err, "failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Error closing database")
		}
	}()

	auditService := audit.NewService(dbaudit.NewRepository(db.DB))
	store := settingsstore.New(settings.NewRepository(db.DB), cfg)
	importService := services.NewImportService(db, cfg, auditService, store)

	var taskClient *tasks.Client
	var taskCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		tasksPath := DefaultTasksPath
		if cfg.Database.Driver == "sqlite" {
			tasksPath = tasks.TasksPath(cfg.Database.DSN)
		}
		taskCfg := tasks.FromConfig(cfg.Tasks)
		taskClient, err = tasks.NewClient(tasksPath, taskCfg)
		if err != nil {
			return errors.Wrap(err, "failed to initialize task queue")
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logrus.WithError(err).Warn("Error closing task client")
			}
		}()

		taskClient.Register(
			tasks.NewImportQueue(importService, taskCfg.TaskTimeout),
			tasks.NewCleanupAuditEventsQueue(auditService),
		)

		var taskCtx context.Context
		taskCtx, taskCancel = context.WithCancel(ctx)
		go taskClient.Start(taskCtx)

		if _, err := taskClient.Add(tasks.CleanupAuditEventsTask{RetentionDays: cfg.Audit.RetentionDays}).Save(); err != nil {
			logrus.WithError(err).Warn("Failed to enqueue audit cleanup")
		}
	}

	importScheduler := scheduler.NewImportScheduler(store, importService, auditService, cfg.Tasks.TaskTimeout)
	if err := importScheduler.Start(ctx); err != nil {
		logrus.WithError(err).Warn("Import schedule not started")
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:      db,
		ImportService: importService,
		AuditService:  auditService,
		SettingsStore: store,
		Scheduler:     importScheduler,
		TaskClient:    taskClient,
		Version:       version,

		AuditRetentionDays: cfg.Audit.RetentionDays,
	})

	onShutdown := func(ctx context.Context) {
		importScheduler.Stop()
		if taskClient != nil {
			taskClient.Stop(ctx)
			taskCancel()
		}
	}

	return Serve(ctx, router, cfg, onShutdown)
}

// Exit logs err and terminates the process with status 1.
func Exit(err error) {
	logrus.WithError(err).Error("congregate failed")
	os.Exit(1)
}
