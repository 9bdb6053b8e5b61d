package importers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
)

// NoteMapper imports free-text person notes keyed by Note_ID. Note types are
// created on first use.
type NoteMapper struct{}

func (m *NoteMapper) Table() string { return TableNotes }

// DefaultNoteType is used for notes whose type column is blank.
const DefaultNoteType = "Personal Note"

// noteTypes caches person note types by name.
type noteTypes struct {
	byName map[string]*entities.NoteType
}

func (n *noteTypes) get(db *gorm.DB, name string) (*entities.NoteType, error) {
	if nt, ok := n.byName[name]; ok {
		return nt, nil
	}
	nt := &entities.NoteType{}
	err := db.Where(entities.NoteType{Name: name, EntityType: entities.EntityTypePerson}).
		Attrs(entities.NoteType{UserSelectable: true}).
		FirstOrCreate(nt).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create note type %s", name)
	}
	n.byName[name] = nt
	return nt, nil
}

func (m *NoteMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	imported, err := database.ForeignIDs[entities.Note](env.Gateway.Session(ctx))
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load imported notes")
	}
	types := &noteTypes{byName: make(map[string]*entities.NoteType)}
	env.report(0, fmt.Sprintf("Verifying note import (%d found, %d already exist).", env.Total, len(imported)))

	batch := NewBatch(ctx, m.Table(), "notes", env, func(tx *gorm.DB, items []*entities.Note) error {
		return database.BulkInsert(tx, items)
	})

	for {
		rec, ok, err := src.Next()
		if err != nil {
			return batch.Stats(), errors.Wrap(err, "failed to read Notes")
		}
		if !ok {
			break
		}

		id := rec.Int("Note_ID")
		text := rec.String("Note_Text")
		if id == nil || text == "" {
			batch.Skip()
			continue
		}
		if _, done := imported[*id]; done {
			batch.Skip()
			continue
		}
		person := env.People.GetPersonKeys(rec.Int("Individual_ID"), rec.Int("Household_ID"), false)
		if person == nil {
			batch.Skip()
			continue
		}
		imported[*id] = 0

		typeName := rec.String("Note_Type_Name")
		if typeName == "" {
			typeName = DefaultNoteType
		}
		nt, err := types.get(batch.Session(), truncate(typeName, 100))
		if err != nil {
			return batch.Stats(), err
		}

		note := &entities.Note{
			NoteTypeID: nt.ID,
			EntityID:   person.PersonID,
			Text:       text,
			Provenance: env.Stamp(id),
		}
		note.ForeignKey = strconv.Itoa(*id)
		created, err := rec.Time("Created_Date")
		if err != nil {
			env.logger().WithField("note_id", *id).Warnf("Ignoring note date: %v", err)
		} else if created != nil {
			note.CreatedDateTime = *created
		}

		if err := batch.Add(ctx, note); err != nil {
			return batch.Stats(), err
		}
	}

	stats, err := batch.Finish(ctx)
	if err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished note import: %d notes imported.", stats.Completed))
	return stats, nil
}
