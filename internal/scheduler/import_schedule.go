// Package scheduler runs recurring imports on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/congregate/internal/audit"
	"github.com/mrlokans/congregate/internal/importers"
	"github.com/mrlokans/congregate/internal/progress"
	"github.com/mrlokans/congregate/internal/schedules"
	"github.com/mrlokans/congregate/internal/services"
	"github.com/mrlokans/congregate/internal/settingsstore"
)

const auditAction = "scheduled_import"

// Importer runs one import.
type Importer interface {
	Run(ctx context.Context, req services.ImportRequest, reporter progress.Reporter) (importers.Summary, error)
}

// ImportScheduler triggers imports of the configured legacy dataset.
type ImportScheduler struct {
	settingsStore *settingsstore.SettingsStore
	importer      Importer
	auditService  *audit.Service
	timeout       time.Duration
	log           *logrus.Entry

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	importing  atomic.Bool
	cancelFunc context.CancelFunc
}

// NewImportScheduler creates a new scheduler instance. timeout bounds each
// scheduled import; auditService may be nil.
func NewImportScheduler(settingsStore *settingsstore.SettingsStore, importer Importer, auditService *audit.Service, timeout time.Duration) *ImportScheduler {
	return &ImportScheduler{
		settingsStore: settingsStore,
		importer:      importer,
		auditService:  auditService,
		timeout:       timeout,
		log:           logrus.WithField("component", "scheduler"),
	}
}

// Start begins the scheduler if scheduled imports are enabled.
func (s *ImportScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	config := s.settingsStore.GetImportConfig()
	if !config.ScheduleEnabled {
		s.log.Info("Import scheduler disabled")
		return nil
	}
	if config.LegacyPath == "" {
		s.log.Warn("Import scheduler: legacy path not configured, skipping")
		return nil
	}

	if err := schedules.Validate(config.Schedule); err != nil {
		return errors.Wrapf(err, "invalid cron schedule '%s'", config.Schedule)
	}

	// Entries are not removed on Stop, so each start gets a fresh cron.
	s.cron = cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
	entryID, err := s.cron.AddFunc(config.Schedule, s.runImport)
	if err != nil {
		return errors.Wrap(err, "failed to schedule import job")
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	nextRun, _ := schedules.NextRun(config.Schedule, time.Now())
	s.log.WithFields(logrus.Fields{
		"schedule":    config.Schedule,
		"description": schedules.Describe(config.Schedule),
		"next_run":    nextRun,
	}).Info("Import scheduler started")

	c := s.cron
	go func() {
		<-cancelCtx.Done()
		s.stop(c)
	}()

	return nil
}

// Stop stops the scheduler and waits for a running import to finish.
func (s *ImportScheduler) Stop() {
	s.stop(nil)
}

// stop stops the scheduler if it still runs on only, or unconditionally when
// only is nil.
func (s *ImportScheduler) stop(only *cron.Cron) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning || (only != nil && only != s.cron) {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	s.log.Info("Import scheduler stopped")
}

// Reschedule applies changed settings.
func (s *ImportScheduler) Reschedule() error {
	s.Stop()
	return s.Start(context.Background())
}

// RunNow triggers an immediate import in the background.
func (s *ImportScheduler) RunNow() {
	go s.runImport()
}

// IsRunning returns whether the scheduler is active
func (s *ImportScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// IsImporting returns whether a scheduled import is in progress.
func (s *ImportScheduler) IsImporting() bool {
	return s.importing.Load()
}

// GetNextRunTime returns when the next import will occur
func (s *ImportScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *ImportScheduler) runImport() {
	if !s.importing.CompareAndSwap(false, true) {
		s.log.Info("Scheduled import skipped, already importing")
		return
	}
	defer s.importing.Store(false)

	config := s.settingsStore.GetImportConfig()
	if !config.ScheduleEnabled {
		s.log.Info("Scheduled import skipped, disabled")
		return
	}

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.log.WithField("legacy_path", config.LegacyPath).Info("Scheduled import starting")
	summary, err := s.importer.Run(ctx, services.ImportRequest{Trigger: services.TriggerSchedule}, progress.NewLogReporter(s.log))
	if err != nil {
		s.log.WithError(err).Error("Scheduled import failed")
		s.logAudit("Scheduled import failed", err)
		return
	}

	s.logAudit(fmt.Sprintf("Imported %d records from %d tables in %v",
		summary.Completed(), len(summary.Tables), summary.Duration.Round(time.Millisecond)), nil)
}

func (s *ImportScheduler) logAudit(description string, err error) {
	if s.auditService == nil {
		return
	}
	s.auditService.LogSchedule(auditAction, description, err)
}
