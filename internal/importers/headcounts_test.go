package importers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
)

var metricColumns = legacy.DefaultColumnLayouts.Lookup(TableMetrics)

func TestHeadcountMapper_RequiresServiceTimes(t *testing.T) {
	env, _, _ := setupTestEnv(t)

	_, err := mapRows(t, env, &HeadcountMapper{}, metricColumns)
	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Contains(t, pre.Requirement, CategoryServiceTimes)
}

func TestHeadcountMapper_ImportsMetricValues(t *testing.T) {
	env, db, recorder := setupTestEnv(t)
	category, err := database.GetOrCreateCategory(db, CategoryServiceTimes, entities.EntityTypeSchedule)
	require.NoError(t, err)
	service := entities.Schedule{Name: "Sunday 9AM", CategoryID: &category.ID, CronExpression: "0 9 * * 0", CheckInStartOffsetMinutes: 30, CheckInEndOffsetMinutes: 60, IsActive: true}
	require.NoError(t, db.Create(&service).Error)

	stats, err := mapRows(t, env, &HeadcountMapper{}, metricColumns,
		[]any{"Worship", "", "", "03/03/2024", "9:05 AM", "250"},
		[]any{"Worship", "", "", "03/03/2024", "9:05 AM", "250"},
		[]any{"Kids", "", "", "03/05/2024", "", "12"},
		[]any{"", "", "", "03/05/2024", "", "12"},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 2, stats.Skipped)

	var metrics []entities.Metric
	require.NoError(t, db.Order("id").Find(&metrics).Error)
	require.Len(t, metrics, 2)
	assert.Equal(t, "Worship", metrics[0].Title)

	var values []entities.MetricValue
	require.NoError(t, db.Order("id").Find(&values).Error)
	require.Len(t, values, 2)
	assert.True(t, decimal.NewFromInt(250).Equal(values[0].YValue))
	require.NotNil(t, values[0].EntityID)
	assert.Equal(t, service.ID, *values[0].EntityID)
	assert.Nil(t, values[1].EntityID, "no service time covers a Tuesday")
	assert.Equal(t, entities.MetricValueMeasure, values[0].Type)

	assert.Contains(t, recorder.Messages(), "Finished metrics import: 2 metrics added or updated.")
}

func TestHeadcountMapper_BadCountIsFatal(t *testing.T) {
	env, db, _ := setupTestEnv(t)
	_, err := database.GetOrCreateCategory(db, CategoryServiceTimes, entities.EntityTypeSchedule)
	require.NoError(t, err)

	_, err = mapRows(t, env, &HeadcountMapper{}, metricColumns,
		[]any{"Worship", "", "", "03/03/2024", "9:05 AM", "lots"},
	)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "Count", parseErr.Field)
	assert.Equal(t, "Activity Worship", parseErr.Key)
}
