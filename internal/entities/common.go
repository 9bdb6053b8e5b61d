package entities

import "time"

// Provenance is embedded in every imported entity. ForeignID carries the legacy
// natural key so a later run can detect rows that were already imported;
// ForeignKey holds composite keys for rows without a single integer id.
type Provenance struct {
	ForeignID              *int      `gorm:"index" json:"foreign_id,omitempty"`
	ForeignKey             string    `gorm:"size:200;index" json:"foreign_key,omitempty"`
	CreatedByPersonAliasID *uint     `json:"created_by_person_alias_id,omitempty"`
	CreatedDateTime        time.Time `json:"created_date_time"`
}

// Stamp fills the provenance fields shared by every imported row.
func Stamp(foreignID *int, actor *uint, at time.Time) Provenance {
	return Provenance{
		ForeignID:              foreignID,
		CreatedByPersonAliasID: actor,
		CreatedDateTime:        at,
	}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// UintPtr returns a pointer to v, or nil for zero.
func UintPtr(v uint) *uint {
	if v == 0 {
		return nil
	}
	return &v
}
