package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FamilyRole string

const (
	FamilyRoleAdult   FamilyRole = "adult"
	FamilyRoleChild   FamilyRole = "child"
	FamilyRoleVisitor FamilyRole = "visitor"
)

type RecordStatus string

const (
	RecordStatusActive   RecordStatus = "active"
	RecordStatusInactive RecordStatus = "inactive"
)

// Entity type names used by attributes, notes and history rows.
const (
	EntityTypePerson      = "person"
	EntityTypeGroup       = "group"
	EntityTypeGroupMember = "group_member"
	EntityTypeSchedule    = "schedule"
	EntityTypeMetric      = "metric"
)

type Campus struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"uniqueIndex;size:100" json:"name"`
	ShortCode string `gorm:"size:20" json:"short_code"`
	IsActive  bool   `json:"is_active"`
}

func (Campus) TableName() string {
	return "campuses"
}

type Person struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Guid         uuid.UUID    `gorm:"type:char(36);uniqueIndex" json:"guid"`
	FirstName    string       `gorm:"size:50;index" json:"first_name"`
	NickName     string       `gorm:"size:50" json:"nick_name"`
	LastName     string       `gorm:"size:50;index" json:"last_name"`
	Email        string       `gorm:"size:75" json:"email,omitempty"`
	Gender       string       `gorm:"size:10" json:"gender,omitempty"`
	BirthDate    *time.Time   `json:"birth_date,omitempty"`
	FamilyRole   FamilyRole   `gorm:"size:20" json:"family_role"`
	RecordStatus RecordStatus `gorm:"size:20" json:"record_status"`
	Provenance
}

func (Person) TableName() string {
	return "people"
}

func (p *Person) BeforeCreate(tx *gorm.DB) error {
	if p.Guid == uuid.Nil {
		p.Guid = uuid.New()
	}
	return nil
}

// FullName joins the nick name (or first name) and last name.
func (p Person) FullName() string {
	first := p.NickName
	if first == "" {
		first = p.FirstName
	}
	if p.LastName == "" {
		return first
	}
	return first + " " + p.LastName
}

// PersonAlias is the stable identity other entities reference. The alias of an
// imported person carries the legacy individual id in ForeignID.
type PersonAlias struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PersonID  uint      `gorm:"index" json:"person_id"`
	AliasGuid uuid.UUID `gorm:"type:char(36)" json:"alias_guid"`
	ForeignID *int      `gorm:"index" json:"foreign_id,omitempty"`
}

func (PersonAlias) TableName() string {
	return "person_aliases"
}

func (a *PersonAlias) BeforeCreate(tx *gorm.DB) error {
	if a.AliasGuid == uuid.Nil {
		a.AliasGuid = uuid.New()
	}
	return nil
}

// DefinedValue is a lookup value of a named type such as a currency type or a
// pledge frequency.
type DefinedValue struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Type        string `gorm:"size:50;uniqueIndex:idx_defined_value" json:"type"`
	Value       string `gorm:"size:100;uniqueIndex:idx_defined_value" json:"value"`
	Description string `gorm:"size:255" json:"description,omitempty"`
	Order       int    `json:"order"`
}

func (DefinedValue) TableName() string {
	return "defined_values"
}

// Defined value types.
const (
	DefinedTypeCurrency     = "currency_type"
	DefinedTypeSource       = "transaction_source"
	DefinedTypeTransaction  = "transaction_type"
	DefinedTypeFrequency    = "pledge_frequency"
	DefinedTypeCreditCard   = "credit_card_type"
	DefinedTypeRefundReason = "refund_reason"
)

// Seeded defined values looked up by the importers.
const (
	CurrencyCash       = "Cash"
	CurrencyCheck      = "Check"
	CurrencyACH        = "ACH"
	CurrencyCreditCard = "Credit Card"
	CurrencyNonCash    = "Non-Cash"
	CurrencyUnknown    = "Unknown"

	SourceOnsite  = "Onsite Collection"
	SourceWebsite = "Website"
	SourceKiosk   = "Kiosk"

	TransactionTypeContribution = "Contribution"

	FrequencyOneTime = "One-Time"
)

type Category struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"size:100;uniqueIndex:idx_category" json:"name"`
	EntityType string `gorm:"size:50;uniqueIndex:idx_category" json:"entity_type"`
}

func (Category) TableName() string {
	return "categories"
}

// Attribute describes an extensible key/value property of an entity type.
type Attribute struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	EntityType   string `gorm:"size:50;uniqueIndex:idx_attribute_key" json:"entity_type"`
	Key          string `gorm:"size:100;uniqueIndex:idx_attribute_key" json:"key"`
	Name         string `gorm:"size:100" json:"name"`
	FieldType    string `gorm:"size:20" json:"field_type"`
	Description  string `gorm:"size:255" json:"description,omitempty"`
	IsMultiValue bool   `json:"is_multi_value"`
}

func (Attribute) TableName() string {
	return "attributes"
}

// Person attribute keys written by the household import and read by the key index.
const (
	AttributeKeyHouseholdPosition = "HouseHoldPosition"
	AttributeKeyHouseholdID       = "F1HouseholdId"
	AttributeKeyIndividualID      = "F1IndividualId"
	AttributeKeySecondaryEmail    = "SecondaryEmail"
	AttributeKeyLogin             = "InFellowshipLogin"
)

// Attribute field types.
const (
	FieldTypeText    = "text"
	FieldTypeInteger = "integer"
	FieldTypeDate    = "date"
	FieldTypeBoolean = "boolean"
)

type AttributeValue struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AttributeID uint      `gorm:"uniqueIndex:idx_attribute_entity" json:"attribute_id"`
	EntityID    uint      `gorm:"uniqueIndex:idx_attribute_entity;index" json:"entity_id"`
	Value       string    `gorm:"type:text" json:"value"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (AttributeValue) TableName() string {
	return "attribute_values"
}

// History records a dated change against an entity.
type History struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	CategoryID        uint   `gorm:"index" json:"category_id"`
	EntityType        string `gorm:"size:50;index:idx_history_entity" json:"entity_type"`
	EntityID          uint   `gorm:"index:idx_history_entity" json:"entity_id"`
	RelatedEntityType string `gorm:"size:50" json:"related_entity_type,omitempty"`
	RelatedEntityID   *uint  `json:"related_entity_id,omitempty"`
	Verb              string `gorm:"size:20" json:"verb"`
	Caption           string `gorm:"size:200" json:"caption"`
	Summary           string `gorm:"size:500" json:"summary"`
	Provenance
}

func (History) TableName() string {
	return "history"
}
