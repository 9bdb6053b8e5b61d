package entities

type NoteType struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	Name           string `gorm:"size:100;uniqueIndex:idx_note_type" json:"name"`
	EntityType     string `gorm:"size:50;uniqueIndex:idx_note_type" json:"entity_type"`
	UserSelectable bool   `json:"user_selectable"`
}

func (NoteType) TableName() string {
	return "note_types"
}

type Note struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	NoteTypeID uint   `gorm:"index" json:"note_type_id"`
	EntityID   uint   `gorm:"index" json:"entity_id"`
	Caption    string `gorm:"size:200" json:"caption,omitempty"`
	Text       string `gorm:"type:text" json:"text"`
	IsAlert    bool   `json:"is_alert"`
	IsPrivate  bool   `json:"is_private"`
	Provenance
}

func (Note) TableName() string {
	return "notes"
}
