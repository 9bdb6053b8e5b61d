package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/congregate/internal/audit"
	"github.com/mrlokans/congregate/internal/config"
	"github.com/mrlokans/congregate/internal/crypto"
	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/database/runs"
	"github.com/mrlokans/congregate/internal/importers"
	"github.com/mrlokans/congregate/internal/keyindex"
	"github.com/mrlokans/congregate/internal/legacy"
	"github.com/mrlokans/congregate/internal/progress"
	"github.com/mrlokans/congregate/internal/rules"
	"github.com/mrlokans/congregate/internal/settingsstore"
)

// ErrImportRunning is returned when an import is requested while another one
// is still in progress.
var ErrImportRunning = errors.New("an import is already running")

// Import triggers.
const (
	TriggerCLI      = "cli"
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
)

// Statuses stored as the last import outcome.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ImportRequest selects what one import reads. Empty fields fall back to the
// stored settings and then to configuration.
type ImportRequest struct {
	LegacyPath string   `json:"legacy_path"`
	Tables     []string `json:"tables"`
	Threshold  int      `json:"threshold"`
	Trigger    string   `json:"trigger"`
}

// TablePlan describes one table of a planned import.
type TablePlan struct {
	Table     string `json:"table"`
	Rows      int    `json:"rows"`
	Supported bool   `json:"supported"`
	Present   bool   `json:"present"`
}

// KeyStats summarizes the person key index of the destination.
type KeyStats struct {
	People     int `json:"people"`
	Households int `json:"households"`
	Visitors   int `json:"visitors"`
}

// ImportService runs imports of a legacy dataset into the destination. Only
// one import runs at a time.
type ImportService struct {
	db       *database.Database
	cfg      *config.Config
	runs     *runs.Repository
	audit    *audit.Service
	settings *settingsstore.SettingsStore
	reports  *audit.ReportWriter
	registry *importers.Registry
	log      *logrus.Entry

	// OpenCatalog opens the legacy dataset at path.
	OpenCatalog func(path string) (legacy.Catalog, error)

	mu      sync.Mutex
	running bool
}

// NewImportService creates the service. settings may be nil, in which case
// only configuration is consulted.
func NewImportService(db *database.Database, cfg *config.Config, auditService *audit.Service, settings *settingsstore.SettingsStore) *ImportService {
	s := &ImportService{
		db:       db,
		cfg:      cfg,
		runs:     runs.NewRepository(db.DB),
		audit:    auditService,
		settings: settings,
		registry: importers.NewRegistry(importers.DefaultMappers()...),
		log:      logrus.WithField("component", "import_service"),
		OpenCatalog: func(path string) (legacy.Catalog, error) {
			return legacy.Open(path, legacy.DefaultColumnLayouts)
		},
	}
	if cfg.Audit.ReportDir != "" {
		s.reports = audit.NewReportWriter(cfg.Audit.ReportDir)
	}
	return s
}

// Runs exposes the run repository for status queries.
func (s *ImportService) Runs() *runs.Repository {
	return s.runs
}

// IsRunning reports whether an import is in progress in this process.
func (s *ImportService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *ImportService) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *ImportService) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// resolve fills the blanks of req from settings and configuration.
func (s *ImportService) resolve(req ImportRequest) (ImportRequest, string) {
	importUser := s.cfg.Import.User
	if s.settings != nil {
		stored := s.settings.GetImportConfig()
		if req.LegacyPath == "" {
			req.LegacyPath = stored.LegacyPath
		}
		if len(req.Tables) == 0 {
			req.Tables = stored.Tables
		}
		importUser = stored.ImportUser
	}
	if req.LegacyPath == "" {
		req.LegacyPath = s.cfg.Legacy.Path
	}
	if len(req.Tables) == 0 {
		req.Tables = s.cfg.Import.Tables
	}
	if req.Threshold <= 0 {
		req.Threshold = s.cfg.Import.Threshold
	}
	if req.Trigger == "" {
		req.Trigger = TriggerCLI
	}
	return req, importUser
}

// selection returns the tables to import: the requested ones, or every
// supported table present in the catalog.
func (s *ImportService) selection(ctx context.Context, catalog legacy.Catalog, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return importers.Order(requested), nil
	}
	present, err := catalog.Tables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list legacy tables")
	}
	var tables []string
	for _, t := range present {
		if _, ok := s.registry.Lookup(t); ok {
			tables = append(tables, t)
		}
	}
	return importers.Order(tables), nil
}

func (s *ImportService) options(importUser string, threshold int) (importers.Options, error) {
	attributes, err := rules.Load(s.cfg.Rules.AttributesPath, rules.DefaultAttributes)
	if err != nil {
		return importers.Options{}, errors.Wrap(err, "failed to load attribute rules")
	}
	requirements, err := rules.Load(s.cfg.Rules.RequirementsPath, rules.DefaultRequirements)
	if err != nil {
		return importers.Options{}, errors.Wrap(err, "failed to load requirement rules")
	}
	hasher, err := crypto.NewAccountHasherFromString(s.cfg.Security.AccountHashKey)
	if err != nil {
		return importers.Options{}, errors.Wrap(err, "failed to create account hasher")
	}
	return importers.Options{
		Threshold:     threshold,
		ImportUser:    importUser,
		StopOnError:   s.cfg.Import.StopOnError,
		DefaultCampus: s.cfg.Import.DefaultCampus,
		Attributes:    attributes,
		Requirements:  requirements,
		Hasher:        hasher,
	}, nil
}

// Run performs one import. The summary is returned even when the import
// fails part way.
func (s *ImportService) Run(ctx context.Context, req ImportRequest, reporter progress.Reporter) (importers.Summary, error) {
	if !s.acquire() {
		return importers.Summary{}, ErrImportRunning
	}
	defer s.release()

	req, importUser := s.resolve(req)
	log := s.log.WithFields(logrus.Fields{"trigger": req.Trigger, "legacy_path": req.LegacyPath})

	summary, err := s.run(ctx, req, importUser, reporter)
	if err != nil {
		log.WithError(err).Error("Import failed")
	}
	s.finish(summary, err, log)
	return summary, err
}

func (s *ImportService) run(ctx context.Context, req ImportRequest, importUser string, reporter progress.Reporter) (importers.Summary, error) {
	catalog, err := s.OpenCatalog(req.LegacyPath)
	if err != nil {
		return importers.Summary{}, errors.Wrap(err, "failed to open legacy dataset")
	}
	defer catalog.Close()

	tables, err := s.selection(ctx, catalog, req.Tables)
	if err != nil {
		return importers.Summary{}, err
	}
	if len(tables) == 0 {
		return importers.Summary{}, errors.New("no importable tables found")
	}

	opts, err := s.options(importUser, req.Threshold)
	if err != nil {
		return importers.Summary{}, err
	}

	driver := importers.NewDriver(database.NewGateway(s.db.DB), s.registry, s.runs, s.audit, reporter, opts)
	return driver.Run(ctx, catalog, tables)
}

// finish writes the run report and stores the outcome.
func (s *ImportService) finish(summary importers.Summary, runErr error, log *logrus.Entry) {
	if s.reports != nil && summary.RunID != "" {
		path, err := s.reports.Write(summary.RunID, summary)
		if err != nil {
			log.WithError(err).Warn("Failed to write import report")
		} else {
			log.WithField("path", path).Info("Wrote import report")
		}
	}

	if s.settings == nil {
		return
	}
	status, message := StatusSuccess, fmt.Sprintf("Imported %d records from %d tables", summary.Completed(), len(summary.Tables))
	switch {
	case runErr != nil:
		status, message = StatusFailed, runErr.Error()
	case summary.Failed > 0:
		status = StatusFailed
		message = fmt.Sprintf("%s; %d tables failed", message, summary.Failed)
	}
	if err := s.settings.SetImportStatus(summary.RunID, status, message); err != nil {
		log.WithError(err).Warn("Failed to save import status")
	}
}

// Plan lists what an import of req would read without writing anything.
func (s *ImportService) Plan(ctx context.Context, req ImportRequest) ([]TablePlan, error) {
	req, _ = s.resolve(req)
	catalog, err := s.OpenCatalog(req.LegacyPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open legacy dataset")
	}
	defer catalog.Close()

	present, err := catalog.Tables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list legacy tables")
	}
	available := make(map[string]string, len(present))
	for _, t := range present {
		available[strings.ToLower(t)] = t
	}

	tables := req.Tables
	if len(tables) == 0 {
		tables = present
	}

	counter, _ := catalog.(legacy.Counter)
	plans := make([]TablePlan, 0, len(tables))
	for _, table := range importers.Order(tables) {
		plan := TablePlan{Table: table}
		_, plan.Supported = s.registry.Lookup(table)
		if name, ok := available[strings.ToLower(table)]; ok {
			plan.Present = true
			if counter != nil {
				if plan.Rows, err = counter.Count(ctx, name); err != nil {
					return nil, errors.Wrapf(err, "failed to count %s", name)
				}
			}
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// Keys summarizes the person key index of the destination.
func (s *ImportService) Keys(ctx context.Context) (KeyStats, error) {
	idx, err := keyindex.Build(ctx, s.db.DB.WithContext(ctx))
	if err != nil {
		return KeyStats{}, errors.Wrap(err, "failed to build person key index")
	}
	stats := KeyStats{People: idx.Len(), Households: idx.Households()}
	for _, k := range idx.Keys() {
		if k.Role() == keyindex.RoleVisitor {
			stats.Visitors++
		}
	}
	return stats, nil
}
