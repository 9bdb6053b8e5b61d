// Package database provides the destination data access layer.
//
// # Architecture
//
//	database/
//	├── database.go      # Connection setup, migrations, lookup seeding, settings
//	├── gateway.go       # Unit of work, bulk insert, natural-key and attribute lookups
//	├── runs/            # Import run progress tracking
//	└── audit/           # Audit event storage
//
// # Gateway
//
// Importers never hold a long-lived session. They read through Gateway.Session,
// replace that session at every flush boundary, and write each batch inside
// Gateway.UnitOfWork:
//
//	db, err := database.NewDatabase("./congregate.db")
//	gw := database.NewGateway(db.DB)
//
//	existing, err := database.GetByForeignID[entities.FinancialBatch](gw.Session(ctx), 1042)
//	err = gw.UnitOfWork(ctx, func(tx *gorm.DB) error {
//		return database.BulkInsert(tx, batches)
//	})
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Add compile-time interface check: var _ SomeInterface = (*Repository)(nil)
package database
