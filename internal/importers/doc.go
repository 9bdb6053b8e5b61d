// Package importers moves legacy tables into the destination schema.
//
// # Architecture
//
// An import flows through three layers:
//
//	legacy.Catalog → Source → Mapper → Batch → database.Gateway
//
// The Driver orders the selected tables, builds the person key index and runs
// one Mapper per table. Each Mapper reads its Source to the end, turns
// accepted rows into entities and hands them to a Batch, which writes them in
// one transaction every Threshold rows.
//
// # Idempotency
//
// Every imported row carries its legacy natural key in ForeignID (single
// integer keys) or ForeignKey (composite keys). Mappers load the keys already
// present at start and skip rows whose key was imported before, so a failed
// or interrupted import can simply be run again.
//
// # Failure model
//
//   - A row that references a person, group or batch that does not exist is
//     skipped silently.
//   - A required value that cannot be parsed stops the mapper with a
//     *ParseError naming the row.
//   - A shared lookup missing at start (a category, a seeded defined value)
//     stops the mapper with a *PreconditionError before anything is written.
//   - A failed batch write is a *FlushError. Batches written before it stay
//     committed.
//
// # Adding a New Legacy Table
//
//  1. Create a new file: communications.go
//
//  2. Implement Mapper:
//
//     type CommunicationMapper struct{}
//
//     func (m *CommunicationMapper) Table() string { return "Communication" }
//
//     func (m *CommunicationMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
//     batch := NewBatch(ctx, m.Table(), "communications", env, flush)
//     // read rows, batch.Add or batch.Skip
//     return batch.Finish(ctx)
//     }
//
//  3. Register it in DefaultMappers.
package importers
