package http

import (
	"github.com/mrlokans/congregate/internal/audit"
	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/scheduler"
	"github.com/mrlokans/congregate/internal/services"
	"github.com/mrlokans/congregate/internal/settingsstore"
	"github.com/mrlokans/congregate/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	Database      *database.Database
	ImportService *services.ImportService
	AuditService  *audit.Service

	// Settings overrides and the scheduler that reads them (optional)
	SettingsStore *settingsstore.SettingsStore
	Scheduler     *scheduler.ImportScheduler

	// Task queue client (optional). Without it imports run in a goroutine.
	TaskClient *tasks.Client
	// AuditRetentionDays is the default age limit of queued audit cleanups
	AuditRetentionDays int

	// Application info
	Version string
}
