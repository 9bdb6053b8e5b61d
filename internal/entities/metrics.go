package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type MetricValueType string

const (
	MetricValueMeasure MetricValueType = "measure"
	MetricValueGoal    MetricValueType = "goal"
)

type Metric struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:100;uniqueIndex" json:"title"`
	Description string `gorm:"size:255" json:"description,omitempty"`
	CategoryID  *uint  `gorm:"index" json:"category_id,omitempty"`
	EntityType  string `gorm:"size:50" json:"entity_type"`
	Provenance
}

func (Metric) TableName() string {
	return "metrics"
}

type MetricValue struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	MetricID            uint            `gorm:"index" json:"metric_id"`
	Type                MetricValueType `gorm:"size:20" json:"type"`
	YValue              decimal.Decimal `gorm:"type:decimal(18,2)" json:"y_value"`
	MetricValueDateTime time.Time       `json:"metric_value_date_time"`
	EntityID            *uint           `json:"entity_id,omitempty"`
	Note                string          `gorm:"size:255" json:"note,omitempty"`
	Provenance
}

func (MetricValue) TableName() string {
	return "metric_values"
}
