package http

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/services"
	"github.com/mrlokans/congregate/internal/settingsstore"
)

// Health statuses. A degraded service can still answer but cannot import.
const (
	HealthOK        = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

type HealthResponse struct {
	Status     string            `json:"status"`
	Time       string            `json:"time"`
	Version    string            `json:"version,omitempty"`
	Checks     map[string]string `json:"checks"`
	LastImport string            `json:"last_import,omitempty"`
}

type HealthController struct {
	db       *database.Database
	imports  *services.ImportService
	settings *settingsstore.SettingsStore
	version  string
}

func NewHealthController(cfg RouterConfig) *HealthController {
	return &HealthController{
		db:       cfg.Database,
		imports:  cfg.ImportService,
		settings: cfg.SettingsStore,
		version:  cfg.Version,
	}
}

func (h *HealthController) checkDatabase() (string, bool) {
	if h.db == nil {
		return "not configured", false
	}
	sqlDB, err := h.db.DB.DB()
	if err != nil {
		return "error: " + err.Error(), false
	}
	if err := sqlDB.Ping(); err != nil {
		return "error: " + err.Error(), false
	}
	return "ok", true
}

// checkLegacy reports whether the configured legacy dataset can be read.
// An unset path is not a failure: imports may pass their own.
func (h *HealthController) checkLegacy() (string, bool) {
	if h.settings == nil {
		return "not configured", true
	}
	path := h.settings.GetImportConfig().LegacyPath
	if path == "" {
		return "not configured", true
	}
	if _, err := os.Stat(path); err != nil {
		return "unreachable: " + path, false
	}
	return "ok", true
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := HealthOK

	dbCheck, dbOK := h.checkDatabase()
	checks["database"] = dbCheck

	legacyCheck, legacyOK := h.checkLegacy()
	checks["legacy"] = legacyCheck

	switch {
	case !dbOK:
		status = HealthUnhealthy
	case !legacyOK:
		status = HealthDegraded
	}

	checks["import"] = "idle"
	if h.imports != nil && h.imports.IsRunning() {
		checks["import"] = "running"
	}

	resp := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}
	if h.settings != nil {
		resp.LastImport = h.settings.GetImportStatus().Status
	}

	code := http.StatusOK
	if status == HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.IndentedJSON(code, resp)
}
