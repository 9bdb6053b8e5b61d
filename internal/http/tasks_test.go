package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/congregate/internal/audit"
	"github.com/mrlokans/congregate/internal/database"
	dbaudit "github.com/mrlokans/congregate/internal/database/audit"
	"github.com/mrlokans/congregate/internal/tasks"
)

func setupTasksRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	db, err := database.NewDatabase(filepath.Join(dir, "dest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client, err := tasks.NewClient(tasks.TasksPath(filepath.Join(dir, "dest.db")), tasks.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	auditService := audit.NewService(dbaudit.NewRepository(db.DB))
	client.Register(tasks.NewCleanupAuditEventsQueue(auditService))

	return NewRouter(RouterConfig{
		Database:           db,
		AuditService:       auditService,
		TaskClient:         client,
		AuditRetentionDays: 30,
	})
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestTasks_ListTypes(t *testing.T) {
	router := setupTasksRouter(t)

	w := serve(router, http.MethodGet, "/api/tasks/types")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), tasks.ImportQueueName)
	assert.Contains(t, w.Body.String(), "cleanup_audit_events")
}

func TestTasks_EnqueueAuditCleanup(t *testing.T) {
	router := setupTasksRouter(t)

	for _, tc := range []struct {
		query string
		days  float64
	}{
		{"", 30},
		{"?retention_days=7", 7},
		{"?retention_days=nope", 30},
	} {
		w := serve(router, http.MethodPost, "/api/tasks/cleanup-audit"+tc.query)
		require.Equal(t, http.StatusAccepted, w.Code, tc.query)

		var resp struct {
			Data map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, tc.days, resp.Data["retention_days"], tc.query)

		taskID, _ := resp.Data["task_id"].(string)
		require.NotEmpty(t, taskID)

		status := serve(router, http.MethodGet, "/api/tasks/"+taskID)
		require.Equal(t, http.StatusOK, status.Code)
		assert.Contains(t, status.Body.String(), `"pending"`)
	}
}
