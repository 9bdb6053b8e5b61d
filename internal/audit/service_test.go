package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	auditRepo "github.com/mrlokans/congregate/internal/database/audit"
	"github.com/mrlokans/congregate/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	repo := auditRepo.NewRepository(db)
	svc := NewService(repo)

	return svc, db
}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		RunID:       "run-1",
		EventType:   entities.AuditEventImport,
		Action:      "test_import",
		Description: "Test import event",
		Status:      entities.AuditStatusSuccess,
	}

	err := svc.Log(event)
	require.NoError(t, err)

	var saved entities.AuditEvent
	err = db.First(&saved, event.ID).Error
	require.NoError(t, err)
	assert.Equal(t, "test_import", saved.Action)
}

func TestService_LogImport(t *testing.T) {
	svc, db := setupTestService(t)

	t.Run("successful import", func(t *testing.T) {
		svc.LogImport("run-1", "Contribution", 120, 4, 2*time.Second, nil)

		var event entities.AuditEvent
		err := db.Where("action = ?", "contribution_import").First(&event).Error
		require.NoError(t, err)
		assert.Equal(t, entities.AuditStatusSuccess, event.Status)
		assert.Equal(t, "Contribution", event.LegacyTable)
		assert.Contains(t, event.Metadata, `"completed":120`)
		assert.Contains(t, event.Metadata, `"skipped":4`)
	})

	t.Run("failed import", func(t *testing.T) {
		svc.LogImport("run-1", "Individual_Household", 0, 0, time.Second, errors.New("missing column"))

		var event entities.AuditEvent
		err := db.Where("action = ?", "individual_household_import").First(&event).Error
		require.NoError(t, err)
		assert.Equal(t, entities.AuditStatusFailed, event.Status)
		assert.Equal(t, "missing column", event.ErrorMsg)
	})
}

func TestService_GetEvents(t *testing.T) {
	svc, _ := setupTestService(t)

	svc.LogImport("run-1", "Batch", 1, 0, 0, nil)
	svc.LogImport("run-2", "Batch", 1, 0, 0, nil)

	events, total, err := svc.GetEvents("run-2", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "run-2", events[0].RunID)
}

func TestActionName(t *testing.T) {
	assert.Equal(t, "batch_import", ActionName("Batch"))
	assert.Equal(t, "contact_form_data_import", ActionName("Contact Form-Data"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestService_LogCleanup(t *testing.T) {
	svc, _ := setupTestService(t)

	svc.LogCleanup(4, 30, "run-9", nil)
	svc.LogCleanup(0, 30, "", errors.New("database is locked"))

	events, err := svc.GetEventsByType(entities.AuditEventMaintenance, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	var ok, failed entities.AuditEvent
	for _, e := range events {
		if e.Status == entities.AuditStatusFailed {
			failed = e
		} else {
			ok = e
		}
	}
	assert.Equal(t, "Removed 4 audit events older than 30 days", ok.Description)
	assert.Contains(t, ok.Metadata, `"kept_run_id":"run-9"`)
	assert.Equal(t, "database is locked", failed.ErrorMsg)
}

func TestService_LogSettings(t *testing.T) {
	svc, _ := setupTestService(t)

	svc.LogSettings("import_settings_update", "Updated import settings", nil)
	svc.LogSettings("import_settings_update", "Rejected import settings", errors.New("invalid cron schedule"))

	events, err := svc.GetEventsByType(entities.AuditEventSettings, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	statuses := []entities.AuditStatus{events[0].Status, events[1].Status}
	assert.ElementsMatch(t, []entities.AuditStatus{entities.AuditStatusSuccess, entities.AuditStatusFailed}, statuses)
}
