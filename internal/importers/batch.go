package importers

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/metrics"
	"github.com/mrlokans/congregate/internal/progress"
)

// coarseFactor is how many flushes pass between "imported so far" messages.
const coarseFactor = 10

// FlushFunc writes one batch inside a unit of work.
type FlushFunc[T any] func(tx *gorm.DB, items []T) error

// Batch buffers the entities produced by accepted records and writes them in
// one transaction every Threshold records. Mappers own one Batch per run:
//
//	b := NewBatch(ctx, TableContribution, "contributions", env, func(tx *gorm.DB, items []*entities.FinancialTransaction) error {
//		return database.BulkInsert(tx, items)
//	})
//	for each row {
//		if skip { b.Skip(); continue }
//		if err := b.Add(ctx, tx); err != nil { return b.Stats(), err }
//	}
//	return b.Finish(ctx)
type Batch[T any] struct {
	table     string
	name      string
	env       *Env
	threshold int
	flush     FlushFunc[T]

	buffer    []T
	session   *gorm.DB
	completed int
	skipped   int
	flushes   int
	closed    bool

	afterFlush []func()
}

// NewBatch starts a batch for the mapper of table. name is the plural noun
// used in progress messages.
func NewBatch[T any](ctx context.Context, table, name string, env *Env, flush FlushFunc[T]) *Batch[T] {
	return &Batch[T]{
		table:     table,
		name:      name,
		env:       env,
		threshold: env.threshold(),
		flush:     flush,
		session:   env.Gateway.Session(ctx),
	}
}

// Session is the lookup session of the current batch. It is replaced after
// every flush, so callers must not hold on to it.
func (b *Batch[T]) Session() *gorm.DB {
	return b.session
}

// Pending returns the entities buffered since the last flush.
func (b *Batch[T]) Pending() []T {
	return b.buffer
}

// AfterFlush registers fn to run after every successful flush, including the
// final one. Mappers use it to clear per-batch state.
func (b *Batch[T]) AfterFlush(fn func()) {
	b.afterFlush = append(b.afterFlush, fn)
}

// Add records one accepted legacy row together with the entities it produced.
// A row may produce none, e.g. when it only updates attributes.
func (b *Batch[T]) Add(ctx context.Context, items ...T) error {
	b.buffer = append(b.buffer, items...)
	b.completed++
	metrics.RecordRow(b.table, metrics.OutcomeImported)

	if b.completed%(coarseFactor*b.threshold) == 0 {
		b.env.report(progress.Percent(b.completed, b.env.Total),
			fmt.Sprintf("%d %s imported so far", b.completed, b.name))
	}
	if b.completed%b.threshold == 0 {
		return b.save(ctx)
	}
	return nil
}

// Skip counts a row that was read but not imported.
func (b *Batch[T]) Skip() {
	b.skipped++
	metrics.RecordRow(b.table, metrics.OutcomeSkipped)
}

// Close writes whatever is left in the buffer and returns the number of
// accepted rows. The final write always runs, even for an empty buffer.
func (b *Batch[T]) Close(ctx context.Context) (int, error) {
	if b.closed {
		return b.completed, nil
	}
	b.closed = true
	return b.completed, b.save(ctx)
}

func (b *Batch[T]) save(ctx context.Context) error {
	b.flushes++
	items := b.buffer
	err := b.env.Gateway.UnitOfWork(ctx, func(tx *gorm.DB) error {
		return b.flush(tx, items)
	})
	metrics.RecordFlush(b.table, err)
	if err != nil {
		return &FlushError{Table: b.table, Batch: b.flushes, Err: err}
	}

	b.buffer = nil
	b.session = b.env.Gateway.Session(ctx)
	for _, fn := range b.afterFlush {
		fn()
	}
	b.env.report(progress.Percent(b.completed, b.env.Total),
		fmt.Sprintf("Saved batch %d (%d records)", b.flushes, len(items)))
	return nil
}

func (b *Batch[T]) Completed() int { return b.completed }

// Stats returns the counters of the batch so far.
func (b *Batch[T]) Stats() Stats {
	return Stats{Completed: b.completed, Skipped: b.skipped, Flushes: b.flushes}
}

// Finish closes the batch and returns its counters.
func (b *Batch[T]) Finish(ctx context.Context) (Stats, error) {
	_, err := b.Close(ctx)
	return b.Stats(), err
}
