package audit

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent saves an audit event to the database.
func (r *Repository) LogEvent(event *entities.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.Create(event).Error
}

// GetEvents retrieves paginated audit events, most recent first. An empty
// runID returns events of every run.
func (r *Repository) GetEvents(runID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	var events []entities.AuditEvent
	var total int64

	query := r.db.Model(&entities.AuditEvent{})
	if runID != "" {
		query = query.Where("run_id = ?", runID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// GetEventsByType retrieves audit events filtered by type.
func (r *Repository) GetEventsByType(eventType entities.AuditEventType, limit int) ([]entities.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []entities.AuditEvent
	err := r.db.Where("event_type = ?", eventType).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// DeleteOldEvents removes audit events older than the specified time, except
// those of keepRunID. Returns the number of deleted events.
func (r *Repository) DeleteOldEvents(olderThan time.Time, keepRunID string) (int64, error) {
	query := r.db.Where("created_at < ?", olderThan)
	if keepRunID != "" {
		query = query.Where("run_id <> ?", keepRunID)
	}
	result := query.Delete(&entities.AuditEvent{})
	return result.RowsAffected, result.Error
}

// LatestImportRun returns the run id of the most recent import event, or ""
// when nothing was imported yet.
func (r *Repository) LatestImportRun() (string, error) {
	var runIDs []string
	err := r.db.Model(&entities.AuditEvent{}).
		Where("event_type = ? AND run_id <> ''", entities.AuditEventImport).
		Order("created_at DESC, id DESC").
		Limit(1).
		Pluck("run_id", &runIDs).Error
	if err != nil || len(runIDs) == 0 {
		return "", err
	}
	return runIDs[0], nil
}
