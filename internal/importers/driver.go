package importers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/audit"
	"github.com/mrlokans/congregate/internal/crypto"
	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/database/runs"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/keyindex"
	"github.com/mrlokans/congregate/internal/legacy"
	"github.com/mrlokans/congregate/internal/metrics"
	"github.com/mrlokans/congregate/internal/progress"
	"github.com/mrlokans/congregate/internal/rules"
)

// dependencyOrder lists the tables other tables reference. They always run
// first, in this order, when selected.
var dependencyOrder = []string{
	TableIndividualHousehold,
	TableCompany,
	TableUsers,
	TableBatch,
	TableGroups,
}

// MessageNoPeople is reported when an import would reference people that
// were never imported.
const MessageNoPeople = "No imported people exist. Please include the Individual_Household table during the import."

// Options tune one import run.
type Options struct {
	Threshold   int
	ImportUser  string
	StopOnError bool

	DefaultCampus string
	Attributes    *rules.Table
	Requirements  *rules.Table
	Hasher        *crypto.AccountHasher
}

// TableResult is the outcome of one selected table.
type TableResult struct {
	Table string `json:"table"`
	Stats
	// NotSupported is set for tables without a mapper.
	NotSupported bool          `json:"not_supported,omitempty"`
	Error        string        `json:"error,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Summary describes a whole import.
type Summary struct {
	RunID    string        `json:"run_id"`
	Tables   []TableResult `json:"tables"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Completed sums the imported rows of every table.
func (s Summary) Completed() int {
	total := 0
	for _, t := range s.Tables {
		total += t.Completed
	}
	return total
}

// Driver runs the mappers of the selected legacy tables against one
// destination, sequentially and in dependency order.
type Driver struct {
	gateway  *database.Gateway
	registry *Registry
	runs     *runs.Repository
	audit    *audit.Service
	reporter progress.Reporter
	log      *logrus.Entry
	opts     Options
}

// NewDriver creates a driver. runsRepo and auditService may be nil.
func NewDriver(gateway *database.Gateway, registry *Registry, runsRepo *runs.Repository, auditService *audit.Service, reporter progress.Reporter, opts Options) *Driver {
	if registry == nil {
		registry = NewRegistry()
	}
	if reporter == nil {
		reporter = progress.Discard
	}
	return &Driver{
		gateway:  gateway,
		registry: registry,
		runs:     runsRepo,
		audit:    auditService,
		reporter: reporter,
		log:      logrus.WithField("component", "importers"),
		opts:     opts,
	}
}

// Order returns selection with the dependency tables first. Duplicates are
// dropped; names compare case-insensitively.
func Order(selection []string) []string {
	seen := make(map[string]bool, len(selection))
	picked := make(map[string]string, len(selection))
	for _, t := range selection {
		picked[strings.ToLower(t)] = t
	}

	var out []string
	for _, dep := range dependencyOrder {
		if t, ok := picked[strings.ToLower(dep)]; ok {
			out = append(out, t)
			seen[strings.ToLower(dep)] = true
		}
	}
	for _, t := range selection {
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

func selects(tables []string, table string) bool {
	for _, t := range tables {
		if strings.EqualFold(t, table) {
			return true
		}
	}
	return false
}

// Run imports the selected tables of catalog. With StopOnError unset a
// failing mapper is logged and recorded in the summary and the remaining
// tables still run.
func (d *Driver) Run(ctx context.Context, catalog legacy.Catalog, selection []string) (Summary, error) {
	started := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	tables := Order(selection)
	log := d.log.WithField("run_id", summary.RunID)

	db := d.gateway.Session(ctx)
	people, err := keyindex.Build(ctx, db)
	if err != nil {
		return summary, errors.Wrap(err, "failed to build person key index")
	}
	if !people.HasPeople() && !selects(tables, TableIndividualHousehold) {
		d.reporter.Report(0, MessageNoPeople)
		return summary, &PreconditionError{Table: TableIndividualHousehold, Requirement: MessageNoPeople}
	}
	if _, err := database.EnsureLegacyAttributes(db); err != nil {
		return summary, err
	}

	actor, err := resolveActor(db, d.opts.ImportUser)
	if err != nil {
		return summary, err
	}

	env := &Env{
		Gateway:       d.gateway,
		People:        people,
		Actor:         actor,
		ImportedAt:    time.Now(),
		Threshold:     d.opts.Threshold,
		Log:           log,
		Attributes:    d.opts.Attributes,
		Requirements:  d.opts.Requirements,
		Hasher:        d.opts.Hasher,
		DefaultCampus: d.opts.DefaultCampus,
	}
	log.WithFields(logrus.Fields{
		"tables": strings.Join(tables, ","),
		"people": people.Len(),
	}).Info("Starting import")

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		mapper, ok := d.registry.Lookup(table)
		if !ok {
			d.reporter.Report(0, fmt.Sprintf("Skipping %s: no importer for this table.", table))
			summary.Tables = append(summary.Tables, TableResult{Table: table, NotSupported: true})
			continue
		}

		result, err := d.runTable(ctx, catalog, mapper, env, summary.RunID)
		summary.Tables = append(summary.Tables, result)
		if err != nil {
			summary.Failed++
			log.WithError(err).WithField("table", mapper.Table()).Error("Import of table failed")
			if d.opts.StopOnError {
				summary.Duration = time.Since(started)
				return summary, errors.Wrapf(err, "import of %s failed", mapper.Table())
			}
			continue
		}

		if p, ok := mapper.(PeopleProducer); ok && p.ProducesPeople() {
			if env.People, err = keyindex.Build(ctx, d.gateway.Session(ctx)); err != nil {
				return summary, errors.Wrap(err, "failed to rebuild person key index")
			}
			if env.Actor == nil {
				if env.Actor, err = resolveActor(d.gateway.Session(ctx), d.opts.ImportUser); err != nil {
					return summary, err
				}
			}
		}
	}

	summary.Duration = time.Since(started)
	d.reporter.Report(100, "Import completed.")
	log.WithFields(logrus.Fields{
		"completed": summary.Completed(),
		"failed":    summary.Failed,
		"duration":  summary.Duration.String(),
	}).Info("Import completed")
	return summary, nil
}

func (d *Driver) runTable(ctx context.Context, catalog legacy.Catalog, mapper Mapper, env *Env, runID string) (TableResult, error) {
	table := mapper.Table()
	result := TableResult{Table: table}
	log := env.Log.WithField("table", table)

	reporter := progress.Multi{d.reporter}
	var run *entities.ImportRun
	if d.runs != nil {
		var err error
		if run, err = d.runs.Start(runID, table); err != nil {
			log.WithError(err).Warn("Failed to record import run")
		} else {
			reporter = append(reporter, d.runs.Reporter(run, log))
		}
	}
	env.Reporter = reporter
	env.Total = 0
	if counter, ok := catalog.(legacy.Counter); ok {
		if n, err := counter.Count(ctx, table); err == nil {
			env.Total = n
		} else {
			log.WithError(err).Debug("Row count unavailable")
		}
	}

	started := time.Now()
	stats, err := d.mapTable(ctx, catalog, mapper, env)
	result.Stats = stats
	result.Elapsed = time.Since(started)
	if err != nil {
		result.Error = err.Error()
	}

	metrics.RecordRun(table, result.Elapsed, err)
	if d.audit != nil {
		d.audit.LogImport(runID, table, stats.Completed, stats.Skipped, result.Elapsed, err)
	}
	if run != nil {
		if cerr := d.runs.Complete(run.ID, stats.Completed, stats.Skipped, stats.Flushes, err); cerr != nil {
			log.WithError(cerr).Warn("Failed to complete import run")
		}
	}
	log.WithFields(logrus.Fields{
		"completed": stats.Completed,
		"skipped":   stats.Skipped,
		"flushes":   stats.Flushes,
		"elapsed":   result.Elapsed.String(),
	}).Info("Finished table")
	return result, err
}

func (d *Driver) mapTable(ctx context.Context, catalog legacy.Catalog, mapper Mapper, env *Env) (Stats, error) {
	src, err := catalog.Open(ctx, mapper.Table())
	if err != nil {
		return Stats{}, errors.Wrapf(err, "failed to open %s", mapper.Table())
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			env.logger().WithError(cerr).Warn("Failed to close legacy table")
		}
	}()
	return mapper.Map(ctx, env, src)
}

// resolveActor returns the primary alias of the person whose full name is
// name, falling back to the first person. Nil when nobody exists yet.
func resolveActor(db *gorm.DB, name string) (*uint, error) {
	var person entities.Person
	err := gorm.ErrRecordNotFound
	if name = strings.TrimSpace(name); name != "" {
		err = db.Where("LOWER(first_name || ' ' || last_name) = LOWER(?) OR LOWER(nick_name || ' ' || last_name) = LOWER(?)", name, name).
			Order("id").First(&person).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Order("id").First(&person).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load import user")
	}

	var alias entities.PersonAlias
	err = db.Where("person_id = ?", person.ID).Order("id").First(&alias).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load import user alias")
	}
	return entities.UintPtr(alias.ID), nil
}
