package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/congregate/internal/tasks"
)

// TasksController handles task queue management endpoints.
type TasksController struct {
	client        *tasks.Client
	retentionDays int
}

// NewTasksController creates a new TasksController. retentionDays is the
// default age limit of audit cleanups.
func NewTasksController(client *tasks.Client, retentionDays int) *TasksController {
	return &TasksController{client: client, retentionDays: retentionDays}
}

// TaskTypeInfo describes an available task type.
type TaskTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Queue       string `json:"queue"`
}

// ListTaskTypes handles GET /api/tasks/types
// Returns the task types the queue runs.
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	types := []TaskTypeInfo{
		{
			Type:        "legacy_import",
			Description: "Import the legacy dataset into the destination",
			Queue:       tasks.ImportQueueName,
		},
		{
			Type:        "cleanup_audit_events",
			Description: "Remove audit events past their retention",
			Queue:       tasks.CleanupAuditEventsTask{}.Config().Name,
		},
	}

	c.JSON(http.StatusOK, gin.H{
		"task_types": types,
	})
}

// EnqueueAuditCleanup handles POST /api/tasks/cleanup-audit
// Queues removal of audit events older than ?retention_days, or the
// configured retention.
func (tc *TasksController) EnqueueAuditCleanup(c *gin.Context) {
	days := queryInt(c, "retention_days", tc.retentionDays, 3650)
	if days <= 0 {
		days = tasks.DefaultAuditRetentionDays
	}

	ids, err := tc.client.Add(tasks.CleanupAuditEventsTask{RetentionDays: days}).Save()
	if err != nil {
		respondInternalError(c, err, "enqueue audit cleanup")
		return
	}
	respondAccepted(c, "audit cleanup enqueued", gin.H{"task_id": ids[0], "retention_days": days})
}

// GetTaskStatus handles GET /api/tasks/:id
// Returns the status of a specific task.
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "task ID is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	statusStr := taskStatusToString(status)

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": statusStr,
	})
}

func taskStatusToString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
