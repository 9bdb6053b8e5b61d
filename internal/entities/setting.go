package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// SettingKeyImportUser names the person stamped as creator of imported rows
	SettingKeyImportUser = "import_user"

	// SettingKeyLegacyPath overrides LEGACY_PATH
	SettingKeyLegacyPath = "legacy_path"

	// SettingKeyImportTables is the comma separated table selection of scheduled runs
	SettingKeyImportTables = "import_tables"

	SettingKeyImportScheduleEnabled = "import_schedule_enabled"
	SettingKeyImportSchedule        = "import_schedule"

	// SettingKeyLastImportRun holds the run id of the most recent import
	SettingKeyLastImportRun     = "last_import_run"
	SettingKeyLastImportAt      = "last_import_at"
	SettingKeyLastImportStatus  = "last_import_status"
	SettingKeyLastImportMessage = "last_import_message"
)
