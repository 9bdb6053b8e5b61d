package config

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Legacy
		Import
		Rules
		Schedule
		Tasks
		Logging
		Security
		Audit
	}

	HTTP struct {
		Port int32 `validate:"gte=0,lte=65535"`
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int `validate:"gte=0"`
	}
	Database struct {
		Driver string `validate:"oneof=sqlite postgres"`
		DSN    string `validate:"required"`
	}
	Legacy struct {
		Path string // SQLite snapshot or directory of CSV/TSV/XLSX extracts
	}
	Import struct {
		Threshold     int `validate:"gte=1"`
		User          string
		StopOnError   bool
		Tables        []string
		DefaultCampus string
	}
	Rules struct {
		AttributesPath   string // Empty uses the embedded defaults
		RequirementsPath string
	}
	Schedule struct {
		Enabled bool
		Cron    string // Cron format: "0 2 * * *" = nightly at 02:00
	}
	Tasks struct {
		Enabled           bool
		Workers           int `validate:"gte=1"`
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Logging struct {
		Level  string `validate:"oneof=trace debug info warn warning error fatal panic"`
		Format string `validate:"oneof=text json"`
	}
	Security struct {
		AccountHashKey string // Keys the bank account hash; empty means unkeyed
	}
	Audit struct {
		RetentionDays int    // Days to keep audit events (default: 90)
		ReportDir     string // JSON run summaries; empty disables them
	}
)

// NewConfig builds the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables win.
func NewConfig() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_dsn", DefaultDatabasePath)
	v.SetDefault("legacy_path", "")

	v.SetDefault("import_threshold", DefaultThreshold)
	v.SetDefault("import_user", "")
	v.SetDefault("import_stop_on_error", false)
	v.SetDefault("import_tables", "")
	v.SetDefault("import_default_campus", "")
	v.SetDefault("rules_attributes_path", "")
	v.SetDefault("rules_requirements_path", "")

	v.SetDefault("import_schedule_enabled", false)
	v.SetDefault("import_schedule", "0 2 * * *")

	// Task queue defaults. Imports are single-threaded so one worker is enough.
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1)
	v.SetDefault("task_max_retries", 1)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "6h")
	v.SetDefault("task_release_after", "7h")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "168h")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("account_hash_key", "")
	v.SetDefault("audit_retention_days", 90)
	v.SetDefault("audit_report_dir", "./reports")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Driver: v.GetString("DATABASE_DRIVER"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Legacy: Legacy{
			Path: v.GetString("LEGACY_PATH"),
		},
		Import: Import{
			Threshold:     v.GetInt("IMPORT_THRESHOLD"),
			User:          v.GetString("IMPORT_USER"),
			StopOnError:   v.GetBool("IMPORT_STOP_ON_ERROR"),
			Tables:        SplitList(v.GetString("IMPORT_TABLES")),
			DefaultCampus: v.GetString("IMPORT_DEFAULT_CAMPUS"),
		},
		Rules: Rules{
			AttributesPath:   v.GetString("RULES_ATTRIBUTES_PATH"),
			RequirementsPath: v.GetString("RULES_REQUIREMENTS_PATH"),
		},
		Schedule: Schedule{
			Enabled: v.GetBool("IMPORT_SCHEDULE_ENABLED"),
			Cron:    v.GetString("IMPORT_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Logging: Logging{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Security: Security{
			AccountHashKey: v.GetString("ACCOUNT_HASH_KEY"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
			ReportDir:     v.GetString("AUDIT_REPORT_DIR"),
		},
	}
}

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// SplitList parses a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
