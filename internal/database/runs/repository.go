// Package runs provides database operations for import run tracking.
//
// Each mapper execution is one ImportRun row. The Reporter returned by
// Repository.Reporter persists the latest progress message of a run and
// implements progress.Reporter.
//
// # Usage
//
//	repo := runs.NewRepository(db)
//	run, err := repo.Start(runID, "Contribution")
//	reporter := repo.Reporter(run, log)
package runs

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/progress"
)

var _ progress.Reporter = (*Reporter)(nil)

// staleAfter marks a running record as interrupted when it has not been
// updated for this long.
const staleAfter = 10 * time.Minute

// Repository handles all import run database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new runs repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Start creates a running record for one legacy table of an import.
func (r *Repository) Start(runID, table string) (*entities.ImportRun, error) {
	now := time.Now()
	run := &entities.ImportRun{
		RunID:       runID,
		LegacyTable: table,
		Status:      entities.RunStatusRunning,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.db.Create(run).Error; err != nil {
		return nil, errors.Wrap(err, "failed to start import run")
	}
	return run, nil
}

// Update stores the latest progress message of a run.
func (r *Repository) Update(id uint, percent int, message string) error {
	return r.db.Model(&entities.ImportRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"percent":      percent,
			"last_message": truncate(message, 512),
			"updated_at":   time.Now(),
		}).Error
}

// Complete marks a run as completed or failed and stores its final counts.
func (r *Repository) Complete(id uint, completed, skipped, flushes int, runErr error) error {
	now := time.Now()
	status := entities.RunStatusCompleted
	if runErr != nil {
		status = entities.RunStatusFailed
	}

	updates := map[string]any{
		"status":       status,
		"completed":    completed,
		"skipped":      skipped,
		"flushes":      flushes,
		"updated_at":   now,
		"completed_at": now,
	}
	if runErr != nil {
		updates["error"] = runErr.Error()
	} else {
		updates["percent"] = 100
	}
	return r.db.Model(&entities.ImportRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Get returns one run by id.
func (r *Repository) Get(id uint) (*entities.ImportRun, error) {
	var run entities.ImportRun
	if err := r.db.First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListByRunID returns the mapper runs of one import in execution order.
func (r *Repository) ListByRunID(runID string) ([]entities.ImportRun, error) {
	var out []entities.ImportRun
	err := r.db.Where("run_id = ?", runID).Order("id").Find(&out).Error
	return out, err
}

// Recent returns the latest mapper runs, newest first.
func (r *Repository) Recent(limit int) ([]entities.ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []entities.ImportRun
	err := r.db.Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// IsRunning checks if any import is currently in progress.
// Runs not updated within staleAfter are marked failed.
func (r *Repository) IsRunning() (bool, error) {
	var running []entities.ImportRun
	err := r.db.Where("status = ?", entities.RunStatusRunning).Find(&running).Error
	if err != nil {
		return false, err
	}

	threshold := time.Now().Add(-staleAfter)
	active := false
	for _, run := range running {
		if run.UpdatedAt.Before(threshold) {
			_ = r.Complete(run.ID, run.Completed, run.Skipped, run.Flushes, errors.New("import was interrupted"))
			continue
		}
		active = true
	}
	return active, nil
}

// Reporter returns a progress sink bound to run.
func (r *Repository) Reporter(run *entities.ImportRun, log *logrus.Entry) *Reporter {
	return &Reporter{repo: r, id: run.ID, log: log}
}

// Reporter persists progress events of one run. Storage failures are logged
// and otherwise ignored.
type Reporter struct {
	repo *Repository
	id   uint
	log  *logrus.Entry
}

func (rp *Reporter) Report(percent int, message string) {
	if err := rp.repo.Update(rp.id, percent, message); err != nil && rp.log != nil {
		rp.log.WithError(err).Warn("Failed to persist import progress")
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
