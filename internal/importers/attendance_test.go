package importers

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
)

var attendanceColumns = legacy.DefaultColumnLayouts.Lookup(TableAttendance)

// sundayService attaches a location with a Sunday 9 AM schedule to group.
func sundayService(t *testing.T, db *gorm.DB, groupID uint) entities.Schedule {
	t.Helper()
	location := entities.Location{Name: "Sanctuary", IsActive: true}
	require.NoError(t, db.Create(&location).Error)
	test := entities.Schedule{Name: "Test Sunday", CronExpression: "0 9 * * 0", CheckInStartOffsetMinutes: 30, CheckInEndOffsetMinutes: 60, IsActive: true}
	service := entities.Schedule{Name: "Sunday 9AM", CronExpression: "0 9 * * 0", CheckInStartOffsetMinutes: 30, CheckInEndOffsetMinutes: 60, IsActive: true}
	require.NoError(t, db.Create(&test).Error)
	require.NoError(t, db.Create(&service).Error)
	gl := entities.GroupLocation{GroupID: groupID, LocationID: location.ID, Schedules: []entities.Schedule{test, service}}
	require.NoError(t, db.Create(&gl).Error)
	return service
}

func attendanceRow(individualID, groupID int64, date, clock string) []any {
	return []any{individualID, "Worship", "Sunday", "Adults", "", date, clock, "Member", groupID}
}

func TestAttendanceMapper_MatchesActiveSchedule(t *testing.T) {
	env, db, recorder := setupTestEnv(t)
	seedFamily(t, env)
	_, err := mapRows(t, env, &GroupMapper{}, groupColumns,
		[]any{int64(10), "Service", "Main Campus", "Worship", "true", nil, ""},
		[]any{int64(20), "Service", "", "Youth", "true", nil, ""},
	)
	require.NoError(t, err)
	worship := groupByForeignID(t, db, 10)
	service := sundayService(t, db, worship.ID)

	stats, err := mapRows(t, env, &AttendanceMapper{}, attendanceColumns,
		attendanceRow(101, 10, "03/03/2024", "9:15 AM"),
		attendanceRow(101, 10, "03/03/2024", "9:15 AM"),
		attendanceRow(201, 20, "3/5/2024", "7:00 PM"),
		attendanceRow(999, 10, "03/03/2024", "9:15 AM"),
		attendanceRow(0, 10, "03/03/2024", "9:15 AM"),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 3, stats.Skipped)

	var rows []entities.Attendance
	require.NoError(t, db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, worship.ID, first.GroupID)
	require.NotNil(t, first.ScheduleID)
	assert.Equal(t, service.ID, *first.ScheduleID, "test schedules are never picked")
	assert.NotNil(t, first.LocationID)
	assert.Equal(t, worship.CampusID, first.CampusID)
	assert.True(t, first.DidAttend)
	assert.Equal(t, entities.RSVPYes, first.RSVP)
	assert.Equal(t, time.Date(2024, 3, 3, 9, 15, 0, 0, time.UTC), first.StartDateTime)
	assert.Equal(t, fmt.Sprintf("101|%d|2024-03-03T09:15:00", worship.ID), first.ForeignKey)

	second := rows[1]
	assert.Nil(t, second.ScheduleID, "the youth group has no scheduled location")
	assert.Equal(t, groupByForeignID(t, db, 20).CampusID, second.CampusID)

	var diagnostics []string
	for _, m := range recorder.Messages() {
		if strings.Contains(m, "attended Group") {
			diagnostics = append(diagnostics, m)
		}
	}
	require.Len(t, diagnostics, 1)
	assert.Contains(t, diagnostics[0], "Val Guest")
	assert.Contains(t, diagnostics[0], "attended Group Youth")

	again, err := mapRows(t, env, &AttendanceMapper{}, attendanceColumns,
		attendanceRow(101, 10, "03/03/2024", "9:15 AM"),
	)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Completed)
	assert.Equal(t, 1, again.Skipped)
}

func TestAttendanceMapper_BadDateIsFatal(t *testing.T) {
	env, _, _ := setupTestEnv(t)

	_, err := mapRows(t, env, &AttendanceMapper{}, attendanceColumns,
		attendanceRow(101, 10, "the third", "9:15 AM"),
	)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "Individual_ID 101", parseErr.Key)
	assert.ErrorIs(t, err, legacy.ErrUnparseableDate)
}

func TestPickSchedule(t *testing.T) {
	at := time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC)
	inactive := entities.Schedule{ID: 1, Name: "Saturday", CronExpression: "0 18 * * 6"}
	test := entities.Schedule{ID: 2, Name: "TEST", CronExpression: "0 9 * * 0"}

	s, active := pickSchedule([]entities.Schedule{inactive, test}, at)
	require.NotNil(t, s)
	assert.False(t, active)
	assert.Equal(t, uint(1), s.ID, "falls back to the first schedule")

	s, active = pickSchedule(nil, at)
	assert.Nil(t, s)
	assert.False(t, active)
}
