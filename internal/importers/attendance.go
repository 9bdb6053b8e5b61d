package importers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
	"github.com/mrlokans/congregate/internal/schedules"
)

// AttendanceMapper imports the positional attendance extract. Each row is
// one check-in of an individual into a group at a date and time.
type AttendanceMapper struct{}

func (m *AttendanceMapper) Table() string { return TableAttendance }

const (
	foreignKeyTime = "2006-01-02T15:04:05"
	displayTime    = "1/2/2006 3:04:05 PM"
)

func attendanceKey(individualID int, groupID uint, at time.Time) string {
	return fmt.Sprintf("%d|%d|%s", individualID, groupID, at.Format(foreignKeyTime))
}

// groupLocations caches the first scheduled location of each group.
type groupLocations struct {
	byGroup map[uint]*entities.GroupLocation
}

func (g *groupLocations) scheduled(db *gorm.DB, groupID uint) (*entities.GroupLocation, error) {
	if gl, ok := g.byGroup[groupID]; ok {
		return gl, nil
	}
	var list []entities.GroupLocation
	err := db.Preload("Schedules", func(tx *gorm.DB) *gorm.DB { return tx.Order("schedules.id") }).
		Where("group_id = ?", groupID).
		Order(`"order", id`).
		Find(&list).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load locations of group %d", groupID)
	}
	var found *entities.GroupLocation
	for i := range list {
		if len(list[i].Schedules) > 0 {
			found = &list[i]
			break
		}
	}
	g.byGroup[groupID] = found
	return found, nil
}

// pickSchedule returns the first check-in-active schedule whose name does not
// mark it as a test, falling back to the first schedule of the location.
func pickSchedule(list []entities.Schedule, at time.Time) (*entities.Schedule, bool) {
	for i := range list {
		if strings.Contains(strings.ToLower(list[i].Name), "test") {
			continue
		}
		if schedules.WasCheckInActive(list[i], at) {
			return &list[i], true
		}
	}
	if len(list) > 0 {
		return &list[0], false
	}
	return nil, false
}

func (m *AttendanceMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	db := env.Gateway.Session(ctx)
	groups, err := newGroupResolver(db)
	if err != nil {
		return Stats{}, err
	}
	campuses, err := loadCampuses(db, env.DefaultCampus)
	if err != nil {
		return Stats{}, err
	}
	imported, err := database.ForeignKeys[entities.Attendance](db)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load imported attendance")
	}
	locations := &groupLocations{byGroup: make(map[uint]*entities.GroupLocation)}
	env.report(0, "Starting Attendance import")

	batch := NewBatch(ctx, m.Table(), "attendance", env, func(tx *gorm.DB, items []*entities.Attendance) error {
		return database.BulkInsert(tx, items)
	})

	for {
		rec, ok, err := src.Next()
		if err != nil {
			return batch.Stats(), errors.Wrap(err, "failed to read Attendance")
		}
		if !ok {
			break
		}

		groupID, individualID := rec.Int("Group_ID"), rec.Int("Individual_ID")
		at, err := legacy.ParseDateClock(rec.String("Start_Date"), rec.String("Start_Time"))
		if err != nil {
			return batch.Stats(), &ParseError{
				Table: m.Table(),
				Key:   keyOf("Individual_ID", individualID),
				Field: "Start_Date",
				Value: strings.TrimSpace(rec.String("Start_Date") + " " + rec.String("Start_Time")),
				Err:   err,
			}
		}
		if groupID == nil || individualID == nil || *groupID == 0 || *individualID == 0 {
			batch.Skip()
			continue
		}

		group, err := groups.resolve(batch.Session(), *groupID)
		if err != nil {
			return batch.Stats(), err
		}
		person := env.People.GetPersonKeys(individualID, nil, true)
		if group == nil || person == nil || person.PersonAliasID == 0 {
			batch.Skip()
			continue
		}

		key := attendanceKey(*individualID, group.ID, at)
		if _, done := imported[key]; done {
			batch.Skip()
			continue
		}
		imported[key] = struct{}{}

		gl, err := locations.scheduled(batch.Session(), group.ID)
		if err != nil {
			return batch.Stats(), err
		}

		attendance := &entities.Attendance{
			PersonAliasID: person.PersonAliasID,
			GroupID:       group.ID,
			StartDateTime: at,
			DidAttend:     true,
			RSVP:          entities.RSVPYes,
			Provenance:    env.Stamp(nil),
		}
		attendance.ForeignKey = key

		var active bool
		if gl != nil {
			attendance.LocationID = entities.UintPtr(gl.LocationID)
			var schedule *entities.Schedule
			schedule, active = pickSchedule(gl.Schedules, at)
			if schedule != nil {
				attendance.ScheduleID = entities.UintPtr(schedule.ID)
			}
		}
		if !active {
			env.report(0, fmt.Sprintf("%s (%d) attended Group %s (%d) on %s",
				personName(batch.Session(), person.PersonID), person.PersonID, group.Name, group.ID, at.Format(displayTime)))
		}

		switch {
		case group.CampusID != nil:
			attendance.CampusID = group.CampusID
		case campuses.mentionedID(group.Name) != nil:
			attendance.CampusID = campuses.mentionedID(group.Name)
		default:
			attendance.CampusID = campuses.fallback()
		}

		if err := batch.Add(ctx, attendance); err != nil {
			return batch.Stats(), err
		}
	}

	stats, err := batch.Finish(ctx)
	if err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished attendance import: %d rows processed", stats.Completed))
	return stats, nil
}

func personName(db *gorm.DB, personID uint) string {
	var p entities.Person
	if err := db.Select("id, first_name, nick_name, last_name").First(&p, personID).Error; err != nil {
		return ""
	}
	return p.FullName()
}
