package database

import (
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/congregate/internal/config"
	"github.com/mrlokans/congregate/internal/entities"
)

var defaultCampuses = []entities.Campus{
	{Name: "Main Campus", ShortCode: "MAIN", IsActive: true},
}

var defaultDefinedValues = []entities.DefinedValue{
	{Type: entities.DefinedTypeCurrency, Value: entities.CurrencyCash, Order: 1},
	{Type: entities.DefinedTypeCurrency, Value: entities.CurrencyCheck, Order: 2},
	{Type: entities.DefinedTypeCurrency, Value: entities.CurrencyACH, Order: 3},
	{Type: entities.DefinedTypeCurrency, Value: entities.CurrencyCreditCard, Order: 4},
	{Type: entities.DefinedTypeCurrency, Value: entities.CurrencyNonCash, Order: 5},
	{Type: entities.DefinedTypeCurrency, Value: entities.CurrencyUnknown, Order: 6},

	{Type: entities.DefinedTypeSource, Value: entities.SourceOnsite, Order: 1},
	{Type: entities.DefinedTypeSource, Value: entities.SourceWebsite, Order: 2},
	{Type: entities.DefinedTypeSource, Value: entities.SourceKiosk, Order: 3},

	{Type: entities.DefinedTypeTransaction, Value: entities.TransactionTypeContribution, Order: 1},

	{Type: entities.DefinedTypeFrequency, Value: entities.FrequencyOneTime, Description: "One Time", Order: 1},
	{Type: entities.DefinedTypeFrequency, Value: "Weekly", Description: "Every Week", Order: 2},
	{Type: entities.DefinedTypeFrequency, Value: "Bi-Weekly", Description: "Every Two Weeks", Order: 3},
	{Type: entities.DefinedTypeFrequency, Value: "Twice a Month", Description: "Twice a Month", Order: 4},
	{Type: entities.DefinedTypeFrequency, Value: "Monthly", Description: "Once a Month", Order: 5},
	{Type: entities.DefinedTypeFrequency, Value: "Quarterly", Description: "Every Quarter", Order: 6},
	{Type: entities.DefinedTypeFrequency, Value: "Twice a Year", Description: "Twice a Year", Order: 7},
	{Type: entities.DefinedTypeFrequency, Value: "Yearly", Description: "Annually", Order: 8},

	{Type: entities.DefinedTypeCreditCard, Value: "Visa", Order: 1},
	{Type: entities.DefinedTypeCreditCard, Value: "MasterCard", Order: 2},
	{Type: entities.DefinedTypeCreditCard, Value: "American Express", Order: 3},
	{Type: entities.DefinedTypeCreditCard, Value: "Discover", Order: 4},
	{Type: entities.DefinedTypeCreditCard, Value: "Diners Club", Order: 5},
	{Type: entities.DefinedTypeCreditCard, Value: "JCB", Order: 6},

	{Type: entities.DefinedTypeRefundReason, Value: "Duplicate", Order: 1},
	{Type: entities.DefinedTypeRefundReason, Value: "Returned Check", Order: 2},
	{Type: entities.DefinedTypeRefundReason, Value: "NSF", Order: 3},
	{Type: entities.DefinedTypeRefundReason, Value: "Other", Order: 4},
}

var defaultCategories = []entities.Category{
	{Name: CategoryGroupMembership, EntityType: entities.EntityTypePerson},
}

// CategoryGroupMembership holds history rows for group joins and departures.
const CategoryGroupMembership = "Group Membership"

type Database struct {
	DB *gorm.DB
}

// NewDatabase opens a SQLite destination at dbPath.
func NewDatabase(dbPath string) (*Database, error) {
	return Open(config.Database{Driver: "sqlite", DSN: dbPath}, logger.Warn)
}

// Open connects to the configured destination, migrates the schema and seeds
// lookup values the importers depend on.
func Open(cfg config.Database, level logger.LogLevel) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	// Auto-migrate all entities
	err = db.AutoMigrate(
		&entities.Campus{},
		&entities.DefinedValue{},
		&entities.Category{},
		&entities.Person{},
		&entities.PersonAlias{},
		&entities.Attribute{},
		&entities.AttributeValue{},
		&entities.History{},
		&entities.GroupType{},
		&entities.GroupTypeRole{},
		&entities.Group{},
		&entities.GroupMember{},
		&entities.Location{},
		&entities.Schedule{},
		&entities.GroupLocation{},
		&entities.Attendance{},
		&entities.Metric{},
		&entities.MetricValue{},
		&entities.FinancialBatch{},
		&entities.FinancialAccount{},
		&entities.FinancialTransaction{},
		&entities.FinancialTransactionDetail{},
		&entities.FinancialPaymentDetail{},
		&entities.FinancialTransactionRefund{},
		&entities.FinancialPledge{},
		&entities.FinancialPersonBankAccount{},
		&entities.NoteType{},
		&entities.Note{},
		&entities.Setting{},
		&entities.ImportRun{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	database := &Database{DB: db}

	if err := database.seed(); err != nil {
		return nil, errors.Wrap(err, "failed to seed lookup values")
	}

	logrus.WithFields(logrus.Fields{
		"component": "database",
		"driver":    cfg.Driver,
	}).Debug("Destination database initialized")

	return database, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) seed() error {
	for _, campus := range defaultCampuses {
		if err := d.DB.Where(entities.Campus{Name: campus.Name}).FirstOrCreate(&campus).Error; err != nil {
			return errors.Wrapf(err, "failed to create campus %s", campus.Name)
		}
	}
	for _, value := range defaultDefinedValues {
		if err := d.DB.Where(entities.DefinedValue{Type: value.Type, Value: value.Value}).FirstOrCreate(&value).Error; err != nil {
			return errors.Wrapf(err, "failed to create %s %s", value.Type, value.Value)
		}
	}
	for _, category := range defaultCategories {
		if err := d.DB.Where(entities.Category{Name: category.Name, EntityType: category.EntityType}).FirstOrCreate(&category).Error; err != nil {
			return errors.Wrapf(err, "failed to create category %s", category.Name)
		}
	}
	return nil
}
