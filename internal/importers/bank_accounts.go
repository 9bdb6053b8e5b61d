package importers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/crypto"
	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
)

// BankAccountMapper imports the check numbers on file for a person as secured
// bank accounts. Clear account numbers never reach the destination.
type BankAccountMapper struct{}

func (m *BankAccountMapper) Table() string { return TableAccount }

type bankAccountKey struct {
	alias   uint
	secured string
}

func (m *BankAccountMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	hasher := env.Hasher
	if hasher == nil {
		h, err := crypto.NewAccountHasher(nil)
		if err != nil {
			return Stats{}, err
		}
		hasher = h
	}

	var existing []entities.FinancialPersonBankAccount
	if err := env.Gateway.Session(ctx).Select("person_alias_id, account_number_secured").Find(&existing).Error; err != nil {
		return Stats{}, errors.Wrap(err, "failed to load bank accounts")
	}
	known := make(map[bankAccountKey]struct{}, len(existing))
	for _, a := range existing {
		known[bankAccountKey{a.PersonAliasID, a.AccountNumberSecured}] = struct{}{}
	}
	env.report(0, fmt.Sprintf("Verifying check number import (%d found, %d already exist).", env.Total, len(existing)))

	batch := NewBatch(ctx, m.Table(), "numbers", env, func(tx *gorm.DB, items []*entities.FinancialPersonBankAccount) error {
		return database.BulkInsert(tx, items)
	})

	for {
		rec, ok, err := src.Next()
		if err != nil {
			return batch.Stats(), errors.Wrap(err, "failed to read Account")
		}
		if !ok {
			break
		}

		person := env.People.GetPersonKeys(rec.Int("Individual_ID"), rec.Int("Household_ID"), false)
		routing := rec.Int("Routing_Number")
		account := crypto.NormalizeAccount(rec.String("Account"))
		if person == nil || person.PersonAliasID == 0 || routing == nil || account == "" {
			batch.Skip()
			continue
		}

		secured, err := hasher.Secure(crypto.NormalizeRouting(strconv.Itoa(*routing)), account)
		if err != nil {
			return batch.Stats(), err
		}
		key := bankAccountKey{person.PersonAliasID, secured}
		if _, done := known[key]; done {
			batch.Skip()
			continue
		}
		known[key] = struct{}{}

		if err := batch.Add(ctx, &entities.FinancialPersonBankAccount{
			PersonAliasID:        person.PersonAliasID,
			AccountNumberSecured: secured,
			AccountNumberMasked:  crypto.Mask(account),
			Provenance:           env.Stamp(nil),
		}); err != nil {
			return batch.Stats(), err
		}
	}

	stats, err := batch.Finish(ctx)
	if err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished check number import: %d numbers imported.", stats.Completed))
	return stats, nil
}
