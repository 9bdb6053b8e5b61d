package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GroupMemberStatus string

const (
	GroupMemberActive   GroupMemberStatus = "active"
	GroupMemberInactive GroupMemberStatus = "inactive"
	GroupMemberPending  GroupMemberStatus = "pending"
)

type RSVP string

const (
	RSVPNo      RSVP = "no"
	RSVPYes     RSVP = "yes"
	RSVPUnknown RSVP = "unknown"
)

// Well-known group type names.
const (
	GroupTypeFamily = "Family"
)

type GroupType struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Name          string `gorm:"uniqueIndex;size:100" json:"name"`
	DefaultRoleID *uint  `json:"default_role_id,omitempty"`
}

func (GroupType) TableName() string {
	return "group_types"
}

type GroupTypeRole struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	GroupTypeID uint   `gorm:"uniqueIndex:idx_group_type_role" json:"group_type_id"`
	Name        string `gorm:"size:100;uniqueIndex:idx_group_type_role" json:"name"`
	IsLeader    bool   `json:"is_leader"`
}

func (GroupTypeRole) TableName() string {
	return "group_type_roles"
}

type Group struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Guid          uuid.UUID `gorm:"type:char(36);uniqueIndex" json:"guid"`
	GroupTypeID   uint      `gorm:"index" json:"group_type_id"`
	ParentGroupID *uint     `json:"parent_group_id,omitempty"`
	CampusID      *uint     `json:"campus_id,omitempty"`
	Name          string    `gorm:"size:100;index" json:"name"`
	Description   string    `gorm:"type:text" json:"description,omitempty"`
	IsActive      bool      `json:"is_active"`
	Provenance
}

func (Group) TableName() string {
	return "groups"
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.Guid == uuid.Nil {
		g.Guid = uuid.New()
	}
	return nil
}

type GroupMember struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	GroupID       uint              `gorm:"uniqueIndex:idx_group_member" json:"group_id"`
	PersonID      uint              `gorm:"uniqueIndex:idx_group_member" json:"person_id"`
	GroupRoleID   uint              `json:"group_role_id"`
	Status        GroupMemberStatus `gorm:"size:20" json:"status"`
	DateTimeAdded *time.Time        `json:"date_time_added,omitempty"`
	Provenance
}

func (GroupMember) TableName() string {
	return "group_members"
}

type Location struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:100" json:"name"`
	IsActive bool   `json:"is_active"`
}

func (Location) TableName() string {
	return "locations"
}

// GroupLocation ties a group to a location and the schedules held there.
type GroupLocation struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	GroupID    uint       `gorm:"index" json:"group_id"`
	LocationID uint       `json:"location_id"`
	Order      int        `json:"order"`
	Schedules  []Schedule `gorm:"many2many:group_location_schedules" json:"schedules,omitempty"`
}

func (GroupLocation) TableName() string {
	return "group_locations"
}

// Schedule is a recurring time window expressed as a five-field cron
// expression. Check-in opens CheckInStartOffsetMinutes before each occurrence
// and closes CheckInEndOffsetMinutes after it.
type Schedule struct {
	ID                        uint   `gorm:"primaryKey" json:"id"`
	Name                      string `gorm:"size:50" json:"name"`
	CategoryID                *uint  `gorm:"index" json:"category_id,omitempty"`
	CronExpression            string `gorm:"size:100" json:"cron_expression"`
	CheckInStartOffsetMinutes int    `json:"check_in_start_offset_minutes"`
	CheckInEndOffsetMinutes   int    `json:"check_in_end_offset_minutes"`
	IsActive                  bool   `json:"is_active"`
}

func (Schedule) TableName() string {
	return "schedules"
}

type Attendance struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PersonAliasID uint      `gorm:"index" json:"person_alias_id"`
	GroupID       uint      `gorm:"index" json:"group_id"`
	LocationID    *uint     `json:"location_id,omitempty"`
	ScheduleID    *uint     `json:"schedule_id,omitempty"`
	CampusID      *uint     `json:"campus_id,omitempty"`
	StartDateTime time.Time `gorm:"index" json:"start_date_time"`
	DidAttend     bool      `json:"did_attend"`
	RSVP          RSVP      `gorm:"size:10" json:"rsvp"`
	Note          string    `gorm:"size:200" json:"note,omitempty"`
	Provenance
}

func (Attendance) TableName() string {
	return "attendance"
}
