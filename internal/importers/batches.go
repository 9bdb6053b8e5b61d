package importers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
)

// DefaultBatchID is the legacy id of the batch that collects contributions
// whose own batch was never imported.
const DefaultBatchID = 0

// BatchMapper imports financial batches keyed by BatchID and makes sure the
// default batch exists.
type BatchMapper struct{}

func (m *BatchMapper) Table() string { return TableBatch }

func (m *BatchMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	db := env.Gateway.Session(ctx)
	campuses, err := loadCampuses(db, env.DefaultCampus)
	if err != nil {
		return Stats{}, err
	}
	imported, err := database.ForeignIDs[entities.FinancialBatch](db)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load imported batches")
	}
	env.report(0, fmt.Sprintf("Verifying batch import (%d found, %d already exist).", env.Total, len(imported)))

	batch := NewBatch(ctx, m.Table(), "batches", env, func(tx *gorm.DB, items []*entities.FinancialBatch) error {
		return database.BulkInsert(tx, items)
	})

	for {
		rec, ok, err := src.Next()
		if err != nil {
			return batch.Stats(), errors.Wrap(err, "failed to read Batch")
		}
		if !ok {
			break
		}

		id := rec.Int("BatchID")
		if id == nil {
			batch.Skip()
			continue
		}
		if _, done := imported[*id]; done {
			batch.Skip()
			continue
		}
		imported[*id] = 0

		fb := &entities.FinancialBatch{
			Status:     entities.BatchStatusClosed,
			Provenance: env.Stamp(id),
		}
		fb.ForeignKey = strconv.Itoa(*id)

		if name := rec.String("BatchName"); name != "" {
			fb.Name = truncate(name, 50)
			fb.CampusID = campuses.prefixID(name)
		}

		date, err := rec.Time("BatchDate")
		if err != nil {
			env.logger().WithField("batch_id", *id).Warnf("Ignoring batch date: %v", err)
		} else if date != nil {
			fb.StartDateTime = date
			fb.EndDateTime = date
		}

		amount, err := rec.Decimal("BatchAmount")
		if err != nil {
			return batch.Stats(), &ParseError{Table: m.Table(), Key: keyOf("BatchID", id), Field: "BatchAmount", Value: rec.String("BatchAmount"), Err: err}
		}
		fb.ControlAmount = amount

		if err := batch.Add(ctx, fb); err != nil {
			return batch.Stats(), err
		}
	}

	stats, err := batch.Finish(ctx)
	if err != nil {
		return stats, err
	}
	if err := ensureDefaultBatch(ctx, env); err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished batch import: %d batches imported.", stats.Completed))
	return stats, nil
}

// ensureDefaultBatch creates the default batch unless one was imported before.
func ensureDefaultBatch(ctx context.Context, env *Env) error {
	existing, err := database.GetByForeignID[entities.FinancialBatch](env.Gateway.Session(ctx), DefaultBatchID)
	if err != nil {
		return errors.Wrap(err, "failed to load default batch")
	}
	if existing != nil {
		return nil
	}
	fb := &entities.FinancialBatch{
		Name:       truncate(fmt.Sprintf("Default Batch (Imported %s)", env.ImportedAt.Format(displayTime)), 50),
		Status:     entities.BatchStatusClosed,
		Provenance: env.Stamp(entities.IntPtr(DefaultBatchID)),
	}
	fb.ForeignKey = strconv.Itoa(DefaultBatchID)
	return env.Gateway.UnitOfWork(ctx, func(tx *gorm.DB) error {
		return tx.Create(fb).Error
	})
}
