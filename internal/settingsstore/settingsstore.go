package settingsstore

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/mrlokans/congregate/internal/config"
	"github.com/mrlokans/congregate/internal/database/settings"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/schedules"
)

// Setting sources, in priority order.
const (
	SourceDatabase    = "database"
	SourceEnvironment = "environment"
	SourceDefault     = "default"
)

// Priority: database > environment > default
type SettingsStore struct {
	repo *settings.Repository
	cfg  *config.Config
}

func New(repo *settings.Repository, cfg *config.Config) *SettingsStore {
	return &SettingsStore{repo: repo, cfg: cfg}
}

// ImportConfig is the effective configuration of API and scheduled imports.
type ImportConfig struct {
	LegacyPath      string   `json:"legacy_path"`
	Tables          []string `json:"tables"`
	ImportUser      string   `json:"import_user"`
	ScheduleEnabled bool     `json:"schedule_enabled"`
	Schedule        string   `json:"schedule"`
}

// ImportConfigInfo includes source information for each field
type ImportConfigInfo struct {
	ImportConfig
	LegacyPathSource      string `json:"legacy_path_source"`
	TablesSource          string `json:"tables_source"`
	ImportUserSource      string `json:"import_user_source"`
	ScheduleEnabledSource string `json:"schedule_enabled_source"`
	ScheduleSource        string `json:"schedule_source"`
	ScheduleDescription   string `json:"schedule_description"`
}

// ImportStatus is the outcome of the most recent import.
type ImportStatus struct {
	RunID   string     `json:"run_id,omitempty"`
	LastAt  *time.Time `json:"last_at,omitempty"`
	Status  string     `json:"status,omitempty"` // "success", "failed", ""
	Message string     `json:"message,omitempty"`
}

// lookup returns the stored override for key, the environment value or the
// default, along with where it came from.
func (s *SettingsStore) lookup(key, envKey, configured string) (string, string) {
	if v, err := s.repo.Get(key); err == nil && v != "" {
		return v, SourceDatabase
	}
	if os.Getenv(envKey) != "" {
		return configured, SourceEnvironment
	}
	return configured, SourceDefault
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

// GetImportConfig returns the effective import settings.
func (s *SettingsStore) GetImportConfig() ImportConfig {
	return s.GetImportConfigInfo().ImportConfig
}

// GetImportConfigInfo returns the effective import settings with their sources.
func (s *SettingsStore) GetImportConfigInfo() ImportConfigInfo {
	var info ImportConfigInfo

	info.LegacyPath, info.LegacyPathSource = s.lookup(entities.SettingKeyLegacyPath, "LEGACY_PATH", s.cfg.Legacy.Path)

	tables, src := s.lookup(entities.SettingKeyImportTables, "IMPORT_TABLES", strings.Join(s.cfg.Import.Tables, ","))
	info.Tables, info.TablesSource = config.SplitList(tables), src

	info.ImportUser, info.ImportUserSource = s.lookup(entities.SettingKeyImportUser, "IMPORT_USER", s.cfg.Import.User)

	enabled, src := s.lookup(entities.SettingKeyImportScheduleEnabled, "IMPORT_SCHEDULE_ENABLED", strconv.FormatBool(s.cfg.Schedule.Enabled))
	info.ScheduleEnabled, info.ScheduleEnabledSource = parseBool(enabled), src

	info.Schedule, info.ScheduleSource = s.lookup(entities.SettingKeyImportSchedule, "IMPORT_SCHEDULE", s.cfg.Schedule.Cron)
	info.ScheduleDescription = schedules.Describe(info.Schedule)
	return info
}

// ImportConfigUpdate holds the fields of a settings change. Nil fields are
// left alone.
type ImportConfigUpdate struct {
	LegacyPath      *string  `json:"legacy_path"`
	Tables          []string `json:"tables"`
	ImportUser      *string  `json:"import_user"`
	ScheduleEnabled *bool    `json:"schedule_enabled"`
	Schedule        *string  `json:"schedule"`
}

// UpdateImportConfig validates and stores overrides.
func (s *SettingsStore) UpdateImportConfig(u ImportConfigUpdate) error {
	values := make(map[string]string)
	if u.Schedule != nil {
		if err := schedules.Validate(*u.Schedule); err != nil {
			return errors.Wrap(err, "invalid cron schedule")
		}
		values[entities.SettingKeyImportSchedule] = *u.Schedule
	}
	if u.LegacyPath != nil {
		values[entities.SettingKeyLegacyPath] = strings.TrimSpace(*u.LegacyPath)
	}
	if u.Tables != nil {
		values[entities.SettingKeyImportTables] = strings.Join(u.Tables, ",")
	}
	if u.ImportUser != nil {
		values[entities.SettingKeyImportUser] = strings.TrimSpace(*u.ImportUser)
	}
	if u.ScheduleEnabled != nil {
		values[entities.SettingKeyImportScheduleEnabled] = strconv.FormatBool(*u.ScheduleEnabled)
	}
	return s.repo.SetMany(values)
}

// ClearImportConfig clears all database overrides, reverting to env/default
func (s *SettingsStore) ClearImportConfig() error {
	return s.repo.Delete(
		entities.SettingKeyLegacyPath,
		entities.SettingKeyImportTables,
		entities.SettingKeyImportUser,
		entities.SettingKeyImportScheduleEnabled,
		entities.SettingKeyImportSchedule,
	)
}

// GetImportStatus returns the last import status
func (s *SettingsStore) GetImportStatus() ImportStatus {
	var status ImportStatus
	status.RunID, _ = s.repo.Get(entities.SettingKeyLastImportRun)
	if v, err := s.repo.Get(entities.SettingKeyLastImportAt); err == nil && v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			status.LastAt = &ts
		}
	}
	status.Status, _ = s.repo.Get(entities.SettingKeyLastImportStatus)
	status.Message, _ = s.repo.Get(entities.SettingKeyLastImportMessage)
	return status
}

// SetImportStatus records the outcome of an import.
func (s *SettingsStore) SetImportStatus(runID, status, message string) error {
	return s.repo.SetMany(map[string]string{
		entities.SettingKeyLastImportRun:     runID,
		entities.SettingKeyLastImportAt:      time.Now().UTC().Format(time.RFC3339),
		entities.SettingKeyLastImportStatus:  status,
		entities.SettingKeyLastImportMessage: message,
	})
}
