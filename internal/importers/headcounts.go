package importers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
	"github.com/mrlokans/congregate/internal/schedules"
)

// Categories used by the headcount import.
const (
	CategoryServiceTimes = "Service Times"
	CategoryMetrics      = "Metrics"
)

// HeadcountMapper imports the positional headcount extract as metric values.
// Each activity becomes a metric; each value is tied to the service time
// schedule that was open at the counted time.
type HeadcountMapper struct{}

func (m *HeadcountMapper) Table() string { return TableMetrics }

func (m *HeadcountMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	db := env.Gateway.Session(ctx)
	serviceTimes, err := database.FindCategory(db, CategoryServiceTimes, entities.EntityTypeSchedule)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load service times category")
	}
	if serviceTimes == nil {
		return Stats{}, &PreconditionError{Table: m.Table(), Requirement: "schedule category " + CategoryServiceTimes + " is missing"}
	}
	metricsCategory, err := database.GetOrCreateCategory(db, CategoryMetrics, entities.EntityTypeMetric)
	if err != nil {
		return Stats{}, err
	}

	var services []entities.Schedule
	if err := db.Where("category_id = ?", serviceTimes.ID).Order("id").Find(&services).Error; err != nil {
		return Stats{}, errors.Wrap(err, "failed to load service times")
	}
	var existing []*entities.Metric
	if err := db.Find(&existing).Error; err != nil {
		return Stats{}, errors.Wrap(err, "failed to load metrics")
	}
	metrics := make(map[string]*entities.Metric, len(existing))
	for _, mt := range existing {
		metrics[mt.Title] = mt
	}
	imported, err := database.ForeignKeys[entities.MetricValue](db)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load imported metric values")
	}
	env.report(0, fmt.Sprintf("Starting metrics import (%d already exist).", len(imported)))

	batch := NewBatch(ctx, m.Table(), "metrics", env, func(tx *gorm.DB, items []*entities.MetricValue) error {
		return database.BulkInsert(tx, items)
	})

	for {
		rec, ok, err := src.Next()
		if err != nil {
			return batch.Stats(), errors.Wrap(err, "failed to read Metrics")
		}
		if !ok {
			break
		}

		title := rec.String("Activity")
		if title == "" {
			batch.Skip()
			continue
		}
		rowKey := "Activity " + title
		count, err := rec.Decimal("Count")
		if err != nil {
			return batch.Stats(), &ParseError{Table: m.Table(), Key: rowKey, Field: "Count", Value: rec.String("Count"), Err: err}
		}
		at, err := legacy.ParseDateClock(rec.String("Start_Date"), rec.String("Start_Time"))
		if err != nil {
			return batch.Stats(), &ParseError{
				Table: m.Table(),
				Key:   rowKey,
				Field: "Start_Date",
				Value: strings.TrimSpace(rec.String("Start_Date") + " " + rec.String("Start_Time")),
				Err:   err,
			}
		}

		metric, ok := metrics[title]
		if !ok {
			metric = &entities.Metric{
				Title:      truncate(title, 100),
				CategoryID: &metricsCategory.ID,
				EntityType: entities.EntityTypeSchedule,
				Provenance: env.Stamp(nil),
			}
			if err := batch.Session().Create(metric).Error; err != nil {
				return batch.Stats(), errors.Wrapf(err, "failed to create metric %s", title)
			}
			metrics[title] = metric
		}

		key := fmt.Sprintf("%d|%s", metric.ID, at.Format(foreignKeyTime))
		if _, done := imported[key]; done {
			batch.Skip()
			continue
		}
		imported[key] = struct{}{}

		value := &entities.MetricValue{
			MetricID:            metric.ID,
			Type:                entities.MetricValueMeasure,
			YValue:              count,
			MetricValueDateTime: at,
			Provenance:          env.Stamp(nil),
		}
		value.ForeignKey = key
		if s := schedules.FirstActive(services, at); s != nil {
			value.EntityID = entities.UintPtr(s.ID)
		}

		if err := batch.Add(ctx, value); err != nil {
			return batch.Stats(), err
		}
	}

	stats, err := batch.Finish(ctx)
	if err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished metrics import: %d metrics added or updated.", stats.Completed))
	return stats, nil
}
