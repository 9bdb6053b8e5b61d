// Package settings stores key/value overrides edited through the API.
//
// # Usage
//
//	repo := settings.NewRepository(db)
//	path, err := repo.Get(entities.SettingKeyLegacyPath)
package settings

import (
	"time"

	"github.com/go-faster/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/congregate/internal/entities"
)

// Repository handles all settings database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new settings repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the value stored under key. A missing key is "" and no error.
func (r *Repository) Get(key string) (string, error) {
	var setting entities.Setting
	err := r.db.Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to load setting %s", key)
	}
	return setting.Value, nil
}

// Set creates or updates a setting.
func (r *Repository) Set(key, value string) error {
	now := time.Now()
	setting := entities.Setting{Key: key, Value: value, CreatedAt: now, UpdatedAt: now}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return errors.Wrapf(err, "failed to save setting %s", key)
	}
	return nil
}

// SetMany stores every pair in one transaction.
func (r *Repository) SetMany(values map[string]string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		for k, v := range values {
			if err := repo.Set(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the settings stored under keys. Missing keys are ignored.
func (r *Repository) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.db.Where("key IN ?", keys).Delete(&entities.Setting{}).Error
}
