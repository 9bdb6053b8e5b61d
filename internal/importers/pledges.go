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

// PledgeMapper imports pledges. Rows carry a Pledge_ID in newer extracts;
// older ones are keyed by person, fund, period and amount.
type PledgeMapper struct{}

func (m *PledgeMapper) Table() string { return TablePledge }

// pledgeFrequency maps the legacy frequency label onto a frequency value.
func pledgeFrequency(values definedValues, label string) *uint {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return nil
	}
	if label == "one time" || label == "as can" {
		return values.id(entities.FrequencyOneTime)
	}
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v.Value), label) || strings.HasPrefix(strings.ToLower(v.Description), label) {
			return entities.UintPtr(v.ID)
		}
	}
	return nil
}

func pledgeKey(rec legacy.Record, aliasID uint, p *entities.FinancialPledge) string {
	if id := rec.Int("Pledge_ID"); id != nil {
		return strconv.Itoa(*id)
	}
	return fmt.Sprintf("%d|%s|%s|%s|%s|%s",
		aliasID,
		rec.String("Fund_Name"),
		rec.String("Sub_Fund_Name"),
		p.StartDate.Format(foreignKeyTime),
		p.EndDate.Format(foreignKeyTime),
		p.TotalAmount.StringFixed(2),
	)
}

func (m *PledgeMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	db := env.Gateway.Session(ctx)
	frequencies, err := loadDefinedValues(db, m.Table(), entities.DefinedTypeFrequency, entities.FrequencyOneTime)
	if err != nil {
		return Stats{}, err
	}
	campuses, err := loadCampuses(db, env.DefaultCampus)
	if err != nil {
		return Stats{}, err
	}
	funds, err := newFundResolver(db, env, campuses, false)
	if err != nil {
		return Stats{}, err
	}
	imported, err := database.ForeignKeys[entities.FinancialPledge](db)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load imported pledges")
	}
	env.report(0, fmt.Sprintf("Verifying pledge import (%d found).", env.Total))

	batch := NewBatch(ctx, m.Table(), "pledges", env, func(tx *gorm.DB, items []*entities.FinancialPledge) error {
		return database.BulkInsert(tx, items)
	})

	for {
		rec, ok, err := src.Next()
		if err != nil {
			return batch.Stats(), errors.Wrap(err, "failed to read Pledge")
		}
		if !ok {
			break
		}

		individualID := rec.Int("Individual_ID")
		key := keyOf("Individual_ID", individualID)
		if id := rec.Int("Pledge_ID"); id != nil {
			key = keyOf("Pledge_ID", id)
		}

		amount, present, err := rec.DecimalOrNil("Total_Pledge")
		if err != nil {
			return batch.Stats(), &ParseError{Table: m.Table(), Key: key, Field: "Total_Pledge", Value: rec.String("Total_Pledge"), Err: err}
		}
		start, err := rec.Time("Start_Date")
		if err != nil {
			return batch.Stats(), &ParseError{Table: m.Table(), Key: key, Field: "Start_Date", Value: rec.String("Start_Date"), Err: err}
		}
		end, err := rec.Time("End_Date")
		if err != nil {
			return batch.Stats(), &ParseError{Table: m.Table(), Key: key, Field: "End_Date", Value: rec.String("End_Date"), Err: err}
		}
		if !present || start == nil || end == nil {
			batch.Skip()
			continue
		}

		person := env.People.GetPersonKeys(individualID, rec.Int("Household_ID"), false)
		if person == nil || person.PersonAliasID == 0 {
			batch.Skip()
			continue
		}

		pledge := &entities.FinancialPledge{
			PersonAliasID:          person.AliasID(),
			TotalAmount:            amount,
			StartDate:              *start,
			EndDate:                *end,
			PledgeFrequencyValueID: pledgeFrequency(frequencies, rec.String("Pledge_Frequency_Name")),
			Provenance:             env.Stamp(rec.Int("Pledge_ID")),
		}
		pledge.ForeignKey = pledgeKey(rec, person.PersonAliasID, pledge)
		if _, done := imported[pledge.ForeignKey]; done {
			batch.Skip()
			continue
		}
		imported[pledge.ForeignKey] = struct{}{}

		accountID, err := funds.resolve(batch.Session(), readFundRow(rec))
		if err != nil {
			return batch.Stats(), err
		}
		pledge.AccountID = accountID

		if err := batch.Add(ctx, pledge); err != nil {
			return batch.Stats(), err
		}
	}

	stats, err := batch.Finish(ctx)
	if err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished pledge import: %d pledges imported.", stats.Completed))
	return stats, nil
}
