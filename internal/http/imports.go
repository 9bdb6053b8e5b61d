package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/congregate/internal/config"
	"github.com/mrlokans/congregate/internal/progress"
	"github.com/mrlokans/congregate/internal/services"
	"github.com/mrlokans/congregate/internal/settingsstore"
	"github.com/mrlokans/congregate/internal/tasks"
)

// ImportsController starts imports and reports their progress.
type ImportsController struct {
	service  *services.ImportService
	settings *settingsstore.SettingsStore
	client   *tasks.Client
	log      *logrus.Entry
}

func NewImportsController(service *services.ImportService, settings *settingsstore.SettingsStore, client *tasks.Client) *ImportsController {
	return &ImportsController{
		service:  service,
		settings: settings,
		client:   client,
		log:      logrus.WithField("component", "http"),
	}
}

// StartImportRequest is the body of POST /api/imports. Every field is
// optional.
type StartImportRequest struct {
	LegacyPath string   `json:"legacy_path"`
	Tables     []string `json:"tables"`
	Threshold  int      `json:"threshold" binding:"omitempty,gte=1"`
}

// StartImport handles POST /api/imports
// Enqueues an import on the task queue, or starts it in the background
// when no queue is configured.
func (ic *ImportsController) StartImport(c *gin.Context) {
	var req StartImportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request: "+err.Error())
			return
		}
	}

	if ic.service.IsRunning() {
		respondError(c, http.StatusConflict, "import_running", services.ErrImportRunning.Error())
		return
	}

	if ic.client != nil {
		ids, err := ic.client.Add(tasks.ImportTask{
			LegacyPath: req.LegacyPath,
			Tables:     req.Tables,
			Threshold:  req.Threshold,
			Trigger:    services.TriggerAPI,
		}).Save()
		if err != nil {
			respondInternalError(c, err, "enqueue import")
			return
		}
		respondAccepted(c, "import enqueued", gin.H{"task_id": ids[0]})
		return
	}

	request := services.ImportRequest{
		LegacyPath: req.LegacyPath,
		Tables:     req.Tables,
		Threshold:  req.Threshold,
		Trigger:    services.TriggerAPI,
	}
	go func() {
		if _, err := ic.service.Run(context.Background(), request, progress.NewLogReporter(ic.log)); err != nil {
			ic.log.WithError(err).Error("Background import failed")
		}
	}()
	respondAccepted(c, "import started", nil)
}

// GetStatus handles GET /api/imports/status
func (ic *ImportsController) GetStatus(c *gin.Context) {
	running, err := ic.service.Runs().IsRunning()
	if err != nil {
		respondInternalError(c, err, "import status")
		return
	}

	resp := gin.H{"running": running || ic.service.IsRunning()}
	if ic.settings != nil {
		resp["last"] = ic.settings.GetImportStatus()
	}
	c.JSON(http.StatusOK, resp)
}

// ListRuns handles GET /api/imports/runs?limit=N
// Returns the latest mapper runs, newest first.
func (ic *ImportsController) ListRuns(c *gin.Context) {
	limit := queryInt(c, "limit", 50, 500)
	runs, err := ic.service.Runs().Recent(limit)
	if err != nil {
		respondInternalError(c, err, "list runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun handles GET /api/imports/runs/:run_id
// Returns the mapper runs of one import in execution order.
func (ic *ImportsController) GetRun(c *gin.Context) {
	runID := c.Param("run_id")
	runs, err := ic.service.Runs().ListByRunID(runID)
	if err != nil {
		respondInternalError(c, err, "get run")
		return
	}
	if len(runs) == 0 {
		respondNotFound(c, "run")
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "tables": runs})
}

// ListTables handles GET /api/tables?legacy_path=...&tables=a,b
// Lists the legacy tables an import would read, with row counts.
func (ic *ImportsController) ListTables(c *gin.Context) {
	req := services.ImportRequest{LegacyPath: c.Query("legacy_path")}
	if tables := c.QueryArray("tables"); len(tables) > 0 {
		req.Tables = splitTables(tables)
	}

	plans, err := ic.service.Plan(c.Request.Context(), req)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"tables": plans})
}

// GetKeys handles GET /api/keys
func (ic *ImportsController) GetKeys(c *gin.Context) {
	stats, err := ic.service.Keys(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "key index")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// splitTables accepts both repeated parameters and comma separated lists.
func splitTables(values []string) []string {
	return config.SplitList(strings.Join(values, ","))
}
