package tasks

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/mikestefanello/backlite"
	"github.com/sirupsen/logrus"
)

// DefaultAuditRetentionDays applies when a cleanup task carries no retention.
const DefaultAuditRetentionDays = 90

// AuditEventCleaner deletes old audit events and records that it did.
type AuditEventCleaner interface {
	LatestImportRun() (string, error)
	DeleteOldEvents(retention time.Duration, keepRunID string) (int64, error)
	LogCleanup(deleted int64, retentionDays int, keptRunID string, err error)
}

// CleanupAuditEventsTask removes audit events older than the retention period.
// The events of the latest import run are kept so its per-table history stays
// readable however long ago it ran.
type CleanupAuditEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for audit cleanup tasks.
func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_audit_events",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupAuditEventsProcessor creates a processor function for CleanupAuditEventsTask.
func CleanupAuditEventsProcessor(cleaner AuditEventCleaner) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		if cleaner == nil {
			return errors.New("audit event cleaner not configured")
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = DefaultAuditRetentionDays
		}
		retention := time.Duration(retentionDays) * 24 * time.Hour

		keep, err := cleaner.LatestImportRun()
		if err != nil {
			return errors.Wrap(err, "find latest import run")
		}

		deleted, err := cleaner.DeleteOldEvents(retention, keep)
		cleaner.LogCleanup(deleted, retentionDays, keep, err)
		if err != nil {
			return errors.Wrap(err, "cleanup audit events")
		}

		logrus.WithFields(logrus.Fields{
			"component":      "tasks",
			"deleted":        deleted,
			"retention_days": retentionDays,
			"kept_run_id":    keep,
		}).Info("Cleaned up audit events")
		return nil
	}
}

// NewCleanupAuditEventsQueue creates a backlite queue for audit cleanup tasks.
func NewCleanupAuditEventsQueue(cleaner AuditEventCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupAuditEventsProcessor(cleaner))
}
