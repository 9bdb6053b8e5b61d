package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/congregate/internal/audit"
	"github.com/mrlokans/congregate/internal/scheduler"
	"github.com/mrlokans/congregate/internal/settingsstore"
)

// SettingsController reads and edits the stored import settings.
type SettingsController struct {
	store     *settingsstore.SettingsStore
	scheduler *scheduler.ImportScheduler
	audit     *audit.Service
}

// NewSettingsController creates the controller. scheduler and auditService
// may be nil.
func NewSettingsController(store *settingsstore.SettingsStore, scheduler *scheduler.ImportScheduler, auditService *audit.Service) *SettingsController {
	return &SettingsController{store: store, scheduler: scheduler, audit: auditService}
}

// ImportSettingsResponse is the body of GET /api/settings/import.
type ImportSettingsResponse struct {
	settingsstore.ImportConfigInfo
	SchedulerRunning bool                       `json:"scheduler_running"`
	NextRun          *time.Time                 `json:"next_run,omitempty"`
	LastImport       settingsstore.ImportStatus `json:"last_import"`
}

func (sc *SettingsController) response() ImportSettingsResponse {
	resp := ImportSettingsResponse{
		ImportConfigInfo: sc.store.GetImportConfigInfo(),
		LastImport:       sc.store.GetImportStatus(),
	}
	if sc.scheduler != nil {
		resp.SchedulerRunning = sc.scheduler.IsRunning()
		resp.NextRun = sc.scheduler.GetNextRunTime()
	}
	return resp
}

// GetSettings handles GET /api/settings/import
func (sc *SettingsController) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, sc.response())
}

// UpdateSettings handles PUT /api/settings/import
// Stores the given fields as overrides and reschedules the recurring import.
func (sc *SettingsController) UpdateSettings(c *gin.Context) {
	var update settingsstore.ImportConfigUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBadRequest(c, "invalid request: "+err.Error())
		return
	}

	if err := sc.store.UpdateImportConfig(update); err != nil {
		sc.logAudit("import_settings_update", "Rejected import settings", err)
		respondBadRequest(c, err.Error())
		return
	}
	sc.logAudit("import_settings_update", "Updated import settings", nil)

	if sc.scheduler != nil {
		if err := sc.scheduler.Reschedule(); err != nil {
			respondInternalError(c, err, "reschedule import")
			return
		}
	}
	c.JSON(http.StatusOK, sc.response())
}

// ResetSettings handles DELETE /api/settings/import
// Drops every override so configuration applies again.
func (sc *SettingsController) ResetSettings(c *gin.Context) {
	if err := sc.store.ClearImportConfig(); err != nil {
		respondInternalError(c, err, "reset settings")
		return
	}
	sc.logAudit("import_settings_reset", "Reset import settings", nil)

	if sc.scheduler != nil {
		if err := sc.scheduler.Reschedule(); err != nil {
			respondInternalError(c, err, "reschedule import")
			return
		}
	}
	c.JSON(http.StatusOK, sc.response())
}

// RunNow handles POST /api/settings/import/run-now
func (sc *SettingsController) RunNow(c *gin.Context) {
	if sc.scheduler.IsImporting() {
		respondError(c, http.StatusConflict, "import_running", "a scheduled import is already running")
		return
	}
	sc.scheduler.RunNow()
	respondAccepted(c, "scheduled import triggered", nil)
}

func (sc *SettingsController) logAudit(action, description string, err error) {
	if sc.audit == nil {
		return
	}
	sc.audit.LogSettings(action, description, err)
}
