package entities

import (
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ImportRun tracks one mapper execution within an import. RunID groups the
// mapper runs of a single import invocation.
type ImportRun struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	RunID       string     `gorm:"size:36;index" json:"run_id"`
	LegacyTable string     `gorm:"size:100;index" json:"legacy_table"`
	Status      RunStatus  `gorm:"size:20;index" json:"status"`
	Percent     int        `json:"percent"`
	Completed   int        `json:"completed"`
	Skipped     int        `json:"skipped"`
	Flushes     int        `json:"flushes"`
	LastMessage string     `gorm:"size:512" json:"last_message,omitempty"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (ImportRun) TableName() string {
	return "import_runs"
}
