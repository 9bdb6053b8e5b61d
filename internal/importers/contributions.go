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

// ContributionMapper imports contributions as transactions with one payment
// detail, at most one account detail and a refund for negative amounts.
type ContributionMapper struct{}

func (m *ContributionMapper) Table() string { return TableContribution }

// contributionLookups holds the defined values a contribution row resolves.
type contributionLookups struct {
	currency     definedValues
	source       definedValues
	cardTypes    definedValues
	refunds      definedValues
	contribution *uint
}

func loadContributionLookups(db *gorm.DB, table string) (*contributionLookups, error) {
	var (
		l   contributionLookups
		err error
	)
	if l.currency, err = loadDefinedValues(db, table, entities.DefinedTypeCurrency,
		entities.CurrencyCash, entities.CurrencyCheck, entities.CurrencyACH, entities.CurrencyCreditCard, entities.CurrencyNonCash); err != nil {
		return nil, err
	}
	if l.source, err = loadDefinedValues(db, table, entities.DefinedTypeSource,
		entities.SourceOnsite, entities.SourceWebsite, entities.SourceKiosk); err != nil {
		return nil, err
	}
	types, err := loadDefinedValues(db, table, entities.DefinedTypeTransaction, entities.TransactionTypeContribution)
	if err != nil {
		return nil, err
	}
	l.contribution = types.id(entities.TransactionTypeContribution)
	if l.cardTypes, err = loadDefinedValues(db, table, entities.DefinedTypeCreditCard); err != nil {
		return nil, err
	}
	if l.refunds, err = loadDefinedValues(db, table, entities.DefinedTypeRefundReason); err != nil {
		return nil, err
	}
	return &l, nil
}

// payment returns the currency and source for a legacy contribution type.
func (l *contributionLookups) payment(contributionType string, hasCheckNumber bool) (currency, source *uint) {
	source = l.source.id(entities.SourceOnsite)
	switch strings.ToLower(strings.TrimSpace(contributionType)) {
	case "cash":
		currency = l.currency.id(entities.CurrencyCash)
	case "check":
		currency = l.currency.id(entities.CurrencyCheck)
	case "ach":
		currency = l.currency.id(entities.CurrencyACH)
		if hasCheckNumber {
			source = l.source.id(entities.SourceWebsite)
		}
	case "credit card":
		currency = l.currency.id(entities.CurrencyCreditCard)
		source = l.source.id(entities.SourceWebsite)
	default:
		currency = l.currency.id(entities.CurrencyNonCash)
	}
	return currency, source
}

// refundReason returns the first refund reason whose value contains memo.
func (l *contributionLookups) refundReason(memo string) *uint {
	if memo == "" {
		return nil
	}
	for _, v := range l.refunds {
		if strings.Contains(v.Value, memo) {
			return entities.UintPtr(v.ID)
		}
	}
	return nil
}

func (m *ContributionMapper) Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error) {
	db := env.Gateway.Session(ctx)
	lookups, err := loadContributionLookups(db, m.Table())
	if err != nil {
		return Stats{}, err
	}
	campuses, err := loadCampuses(db, env.DefaultCampus)
	if err != nil {
		return Stats{}, err
	}
	funds, err := newFundResolver(db, env, campuses, true)
	if err != nil {
		return Stats{}, err
	}
	batches, err := database.ForeignIDs[entities.FinancialBatch](db)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load imported batches")
	}
	imported, err := database.ForeignIDs[entities.FinancialTransaction](db)
	if err != nil {
		return Stats{}, errors.Wrap(err, "failed to load imported contributions")
	}
	env.report(0, fmt.Sprintf("Verifying contribution import (%d found, %d already exist).", env.Total, len(imported)))

	batch := NewBatch(ctx, m.Table(), "contributions", env, func(tx *gorm.DB, items []*entities.FinancialTransaction) error {
		return database.BulkInsert(tx, items)
	})

	for {
		rec, ok, err := src.Next()
		if err != nil {
			return batch.Stats(), errors.Wrap(err, "failed to read Contribution")
		}
		if !ok {
			break
		}

		id := rec.Int("ContributionID")
		if id == nil {
			batch.Skip()
			continue
		}
		if _, done := imported[*id]; done {
			batch.Skip()
			continue
		}
		imported[*id] = 0

		key := keyOf("ContributionID", id)
		tr, err := m.transaction(batch.Session(), env, lookups, funds, batches, rec, id, key)
		if err != nil {
			return batch.Stats(), err
		}
		if err := batch.Add(ctx, tr); err != nil {
			return batch.Stats(), err
		}
	}

	stats, err := batch.Finish(ctx)
	if err != nil {
		return stats, err
	}
	env.report(100, fmt.Sprintf("Finished contribution import: %d contributions imported.", stats.Completed))
	return stats, nil
}

func (m *ContributionMapper) transaction(
	db *gorm.DB,
	env *Env,
	lookups *contributionLookups,
	funds *fundResolver,
	batches map[int]uint,
	rec legacy.Record,
	id *int,
	key string,
) (*entities.FinancialTransaction, error) {
	tr := &entities.FinancialTransaction{
		TransactionTypeValueID: lookups.contribution,
		Summary:                rec.String("Memo"),
		Provenance:             env.Stamp(id),
	}
	tr.ForeignKey = strconv.Itoa(*id)

	if person := env.People.GetPersonKeys(rec.Int("Individual_ID"), rec.Int("Household_ID"), true); person != nil {
		tr.AuthorizedPersonAliasID = person.AliasID()
	}

	if legacyBatch := rec.Int("BatchID"); legacyBatch != nil {
		if batchID, ok := batches[*legacyBatch]; ok {
			tr.BatchID = entities.UintPtr(batchID)
		}
	}
	if tr.BatchID == nil {
		if batchID, ok := batches[DefaultBatchID]; ok {
			tr.BatchID = entities.UintPtr(batchID)
		}
	}

	received, err := rec.Time("Received_Date")
	if err != nil {
		return nil, &ParseError{Table: m.Table(), Key: key, Field: "Received_Date", Value: rec.String("Received_Date"), Err: err}
	}
	tr.TransactionDateTime = received

	checkNumber := rec.String("Check_Number")
	currency, source := lookups.payment(rec.String("Contribution_Type_Name"), checkNumber != "")
	payment := &entities.FinancialPaymentDetail{
		CurrencyTypeValueID:    currency,
		AccountNumberMasked:    rec.String("Last_Four"),
		CreatedByPersonAliasID: env.Actor,
	}
	if strings.EqualFold(strings.TrimSpace(rec.String("Contribution_Type_Name")), "credit card") {
		payment.CreditCardTypeValueID = lookups.cardTypes.id(rec.String("Card_Type"))
	}
	tr.PaymentDetail = payment

	if n := rec.Int("Check_Number"); n != nil {
		tr.TransactionCode = strconv.Itoa(*n)
	} else if strings.HasPrefix(checkNumber, "SG") {
		source = lookups.source.id(entities.SourceKiosk)
	}
	tr.SourceTypeValueID = source

	amount, present, err := rec.DecimalOrNil("Amount")
	if err != nil {
		return nil, &ParseError{Table: m.Table(), Key: key, Field: "Amount", Value: rec.String("Amount"), Err: err}
	}
	fund := readFundRow(rec)
	if fund.Fund == "" || !present {
		return tr, nil
	}

	accountID, err := funds.resolve(db, fund)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		stated, err := rec.Decimal("Stated_Value")
		if err != nil {
			return nil, &ParseError{Table: m.Table(), Key: key, Field: "Stated_Value", Value: rec.String("Stated_Value"), Err: err}
		}
		if !stated.IsZero() {
			amount = stated
		}
	}
	if accountID != nil {
		tr.Details = []entities.FinancialTransactionDetail{{
			AccountID:  *accountID,
			Amount:     amount,
			Provenance: env.Stamp(nil),
		}}
	}
	if amount.IsNegative() {
		tr.Refund = &entities.FinancialTransactionRefund{
			RefundReasonValueID:    lookups.refundReason(tr.Summary),
			RefundReasonSummary:    tr.Summary,
			CreatedByPersonAliasID: env.Actor,
		}
	}
	return tr, nil
}
