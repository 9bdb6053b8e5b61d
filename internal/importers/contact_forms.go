package importers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
)

// NoteTypeContact is the note type of imported contact forms.
const NoteTypeContact = "F1 Contact"

// contactFormKeyPrefix separates contact form notes from plain notes.
const contactFormKeyPrefix = "ContactFormData|"

// ContactFormMapper turns contact form submissions into person notes, one per
// form instance. Email forms are not imported.
type ContactFormMapper struct{}

func (m *ContactFormMapper) Table() string { return TableContactFormData }

var entityCleaner = strings.NewReplacer(
	"\t", " ",
	"&nbsp;", " ",
	"&#45;", "-",
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", `"`,
	"&#x0D;", "",
	"&#x0D", "",
)

// contactFormText renders the note body of one submission.
func contactFormText(instanceID int, formName, note, disposition string, start, end string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Contact Form (id: %d) %s submitted with original contents of %s on %s", instanceID, formName, note, start)
	if end != "" {
		fmt.Fprintf(&sb, " closed on %s", end)
	}
	fmt.Fprintf(&sb, " with disposition %s", disposition)
	return strings.TrimSpace(entityCleaner.Replace(sb.String()))
}

func (m *ContactFormMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	db := env.Gateway.Session(ctx)
	types := &noteTypes{byName: make(map[string]*entities.NoteType)}
	noteType, err := types.get(db, NoteTypeContact)
	if err != nil {
		return Stats{}, err
	}
	imported, err := database.ForeignKeys[entities.Note](db)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load imported contact forms")
	}
	env.report(0, fmt.Sprintf("Counting Contact Form Data import (%d found to import in total).", env.Total))

	batch := NewBatch(ctx, m.Table(), "contact form data", env, func(tx *gorm.DB, items []*entities.Note) error {
		return database.BulkInsert(tx, items)
	})

	for {
		rec, ok, err := src.Next()
		if err != nil {
			return batch.Stats(), errors.Wrap(err, "failed to read ContactFormData")
		}
		if !ok {
			break
		}

		formName := rec.String("ContactFormName")
		instanceID := rec.Int("ContactInstanceID")
		if formName == "Email" || instanceID == nil {
			batch.Skip()
			continue
		}
		foreignKey := contactFormKeyPrefix + strconv.Itoa(*instanceID)
		if _, done := imported[foreignKey]; done {
			batch.Skip()
			continue
		}
		person := env.People.GetPersonKeys(rec.Int("ContactIndividualID"), rec.Int("HouseholdID"), false)
		if person == nil {
			batch.Skip()
			continue
		}
		imported[foreignKey] = struct{}{}

		key := keyOf("ContactInstanceID", instanceID)
		start, err := rec.Time("ContactDatetime")
		if err != nil {
			return batch.Stats(), &ParseError{Table: m.Table(), Key: key, Field: "ContactDatetime", Value: rec.String("ContactDatetime"), Err: err}
		}
		end, err := rec.Time("ContactItemLastUpdatedDate")
		if err != nil {
			return batch.Stats(), &ParseError{Table: m.Table(), Key: key, Field: "ContactItemLastUpdatedDate", Value: rec.String("ContactItemLastUpdatedDate"), Err: err}
		}

		var startText, endText string
		if start != nil {
			startText = start.Format(displayTime)
		}
		if end != nil {
			endText = end.Format(displayTime)
		}

		note := &entities.Note{
			NoteTypeID: noteType.ID,
			EntityID:   person.PersonID,
			Text: contactFormText(*instanceID, formName, rec.String("ContactNote"),
				rec.String("ContactDispositionName"), startText, endText),
			Provenance: env.Stamp(nil),
		}
		note.ForeignKey = foreignKey
		if start != nil {
			note.CreatedDateTime = *start
		}

		if err := batch.Add(ctx, note); err != nil {
			return batch.Stats(), err
		}
	}

	stats, err := batch.Finish(ctx)
	if err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished contact form data import: %d records imported.", stats.Completed))
	return stats, nil
}
