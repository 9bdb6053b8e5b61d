package schedules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/congregate/internal/entities"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		expr  string
		valid bool
	}{
		{"0 * * * *", true},
		{"*/15 * * * *", true},
		{"0 9 * * 5", true},
		{"0 0 * * 0", true},
		{"invalid", false},
		{"* * * *", false},
		{"60 * * * *", false},
		{"0 25 * * *", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := Validate(tt.expr)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Every hour at :00", Describe("0 * * * *"))
	assert.Equal(t, "Custom schedule: 5 4 * * *", Describe("5 4 * * *"))
}

func TestNextRun(t *testing.T) {
	from := time.Date(2021, 3, 5, 8, 30, 0, 0, time.UTC)
	next, err := NextRun("0 9 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 5, 9, 0, 0, 0, time.UTC), *next)

	_, err = NextRun("invalid", from)
	assert.Error(t, err)
}

func TestWasCheckInActive(t *testing.T) {
	// 2021-03-05 is a Friday.
	friday9 := entities.Schedule{
		Name:                      "Friday 9AM",
		CronExpression:            "0 9 * * 5",
		CheckInStartOffsetMinutes: 30,
		CheckInEndOffsetMinutes:   60,
	}

	tests := []struct {
		name   string
		at     time.Time
		active bool
	}{
		{"at start", time.Date(2021, 3, 5, 9, 0, 0, 0, time.UTC), true},
		{"window opens", time.Date(2021, 3, 5, 8, 30, 0, 0, time.UTC), true},
		{"too early", time.Date(2021, 3, 5, 8, 29, 0, 0, time.UTC), false},
		{"window closes", time.Date(2021, 3, 5, 10, 0, 0, 0, time.UTC), true},
		{"too late", time.Date(2021, 3, 5, 10, 1, 0, 0, time.UTC), false},
		{"wrong weekday", time.Date(2021, 3, 6, 9, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, WasCheckInActive(friday9, tt.at))
		})
	}
}

func TestWasCheckInActive_ExactOccurrenceWithoutOffsets(t *testing.T) {
	s := entities.Schedule{CronExpression: "0 9 * * *"}
	assert.True(t, WasCheckInActive(s, time.Date(2021, 3, 5, 9, 0, 0, 0, time.UTC)))
	assert.False(t, WasCheckInActive(s, time.Date(2021, 3, 5, 9, 1, 0, 0, time.UTC)))
}

func TestWasCheckInActive_InvalidExpression(t *testing.T) {
	at := time.Date(2021, 3, 5, 9, 0, 0, 0, time.UTC)
	assert.False(t, WasCheckInActive(entities.Schedule{}, at))
	assert.False(t, WasCheckInActive(entities.Schedule{CronExpression: "whenever"}, at))
}

func TestFirstActive(t *testing.T) {
	at := time.Date(2021, 3, 7, 11, 0, 0, 0, time.UTC)
	list := []entities.Schedule{
		{ID: 1, CronExpression: "0 9 * * 0"},
		{ID: 2, CronExpression: "0 11 * * 0"},
		{ID: 3, CronExpression: "0 11 * * *"},
	}

	got := FirstActive(list, at)
	require.NotNil(t, got)
	assert.Equal(t, uint(2), got.ID)
	assert.Nil(t, FirstActive(list[:1], at))
}
