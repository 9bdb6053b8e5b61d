package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/congregate/internal/database/audit"
	"github.com/mrlokans/congregate/internal/entities"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
	log  *logrus.Entry
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo, log: logrus.WithField("component", "audit")}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	go func() {
		if err := s.repo.LogEvent(event); err != nil {
			s.log.WithError(err).Warn("Failed to log audit event")
		}
	}()
}

// LogImport records the outcome of one mapper run. It writes synchronously so
// it never competes with the import for the destination connection.
func (s *Service) LogImport(runID, table string, completed, skipped int, elapsed time.Duration, err error) {
	event := &entities.AuditEvent{
		RunID:       runID,
		EventType:   entities.AuditEventImport,
		Action:      ActionName(table),
		Description: "Imported " + table,
		LegacyTable: table,
		Status:      entities.AuditStatusSuccess,
	}

	metadata := map[string]any{
		"completed":  completed,
		"skipped":    skipped,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	if mdBytes, e := json.Marshal(metadata); e == nil {
		event.Metadata = string(mdBytes)
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	if e := s.repo.LogEvent(event); e != nil {
		s.log.WithError(e).Warn("Failed to log import audit event")
	}
}

// LogSchedule records a scheduled import trigger.
func (s *Service) LogSchedule(action, description string, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventSchedule,
		Action:      action,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// LogSettings records a change of the stored import settings.
func (s *Service) LogSettings(action, description string, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventSettings,
		Action:      action,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	if e := s.repo.LogEvent(event); e != nil {
		s.log.WithError(e).Warn("Failed to log settings audit event")
	}
}

// GetEventsByType retrieves the latest events of one type.
func (s *Service) GetEventsByType(eventType entities.AuditEventType, limit int) ([]entities.AuditEvent, error) {
	return s.repo.GetEventsByType(eventType, limit)
}

// GetEvents retrieves paginated audit events of one run, or of all runs.
func (s *Service) GetEvents(runID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(runID, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration. Events of
// keepRunID survive regardless of age.
func (s *Service) DeleteOldEvents(retention time.Duration, keepRunID string) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff, keepRunID)
}

// LatestImportRun returns the run id of the most recent import.
func (s *Service) LatestImportRun() (string, error) {
	return s.repo.LatestImportRun()
}

// LogCleanup records the outcome of an audit retention sweep.
func (s *Service) LogCleanup(deleted int64, retentionDays int, keptRunID string, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventMaintenance,
		Action:      "audit_cleanup",
		Description: fmt.Sprintf("Removed %d audit events older than %d days", deleted, retentionDays),
		Status:      entities.AuditStatusSuccess,
	}

	metadata := map[string]any{
		"deleted":        deleted,
		"retention_days": retentionDays,
		"kept_run_id":    keptRunID,
	}
	if mdBytes, e := json.Marshal(metadata); e == nil {
		event.Metadata = string(mdBytes)
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	if e := s.repo.LogEvent(event); e != nil {
		s.log.WithError(e).Warn("Failed to log cleanup audit event")
	}
}

// ActionName turns a legacy table name into an audit action, e.g.
// "Individual_Household" becomes "individual_household_import".
func ActionName(table string) string {
	out := make([]byte, 0, len(table)+7)
	for i := 0; i < len(table); i++ {
		c := table[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c+'a'-'A')
		case c == ' ' || c == '-':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out) + "_import"
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
