package importers

import (
	"strings"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/mrlokans/congregate/internal/database"
	"github.com/mrlokans/congregate/internal/entities"
	"github.com/mrlokans/congregate/internal/legacy"
)

// campusMatcher resolves campuses from legacy names.
type campusMatcher struct {
	campuses  []entities.Campus
	defaultID *uint
}

func loadCampuses(db *gorm.DB, defaultCampus string) (*campusMatcher, error) {
	campuses, err := database.Campuses(db)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load campuses")
	}
	m := &campusMatcher{campuses: campuses}
	if defaultCampus != "" {
		for _, c := range campuses {
			if strings.EqualFold(c.Name, defaultCampus) || strings.EqualFold(c.ShortCode, defaultCampus) {
				m.defaultID = entities.UintPtr(c.ID)
				break
			}
		}
	}
	if m.defaultID == nil && len(campuses) > 0 {
		m.defaultID = entities.UintPtr(campuses[0].ID)
	}
	return m, nil
}

// byName returns the campus named name.
func (m *campusMatcher) byName(name string) *entities.Campus {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for i := range m.campuses {
		if strings.EqualFold(m.campuses[i].Name, name) || strings.EqualFold(m.campuses[i].ShortCode, name) {
			return &m.campuses[i]
		}
	}
	return nil
}

// byPrefix returns the first campus whose name or short code starts text.
func (m *campusMatcher) byPrefix(text string) *entities.Campus {
	if text == "" {
		return nil
	}
	for i := range m.campuses {
		c := &m.campuses[i]
		if (c.Name != "" && strings.HasPrefix(text, c.Name)) || (c.ShortCode != "" && strings.HasPrefix(text, c.ShortCode)) {
			return c
		}
	}
	return nil
}

func (m *campusMatcher) prefixID(text string) *uint {
	if c := m.byPrefix(text); c != nil {
		return entities.UintPtr(c.ID)
	}
	return nil
}

// mentionedID returns the first campus whose short code appears in text.
func (m *campusMatcher) mentionedID(text string) *uint {
	for _, c := range m.campuses {
		if c.ShortCode != "" && strings.Contains(text, c.ShortCode) {
			return entities.UintPtr(c.ID)
		}
	}
	return nil
}

// fallback is the campus used when a row names none.
func (m *campusMatcher) fallback() *uint {
	return m.defaultID
}

// definedValues caches the defined values of one type.
type definedValues []entities.DefinedValue

func loadDefinedValues(db *gorm.DB, table, definedType string, required ...string) (definedValues, error) {
	values, err := database.DefinedValues(db, definedType)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s values", definedType)
	}
	for _, r := range required {
		if database.DefinedValueID(values, r) == nil {
			return nil, &PreconditionError{Table: table, Requirement: definedType + " " + r + " is not defined"}
		}
	}
	return values, nil
}

func (v definedValues) id(value string) *uint {
	return database.DefinedValueID(v, value)
}

// fundRow holds the fund columns shared by contributions and pledges.
type fundRow struct {
	Fund       string
	FundGL     string
	SubFund    string
	SubFundGL  string
	FundType   string
	FundActive *bool
	SubActive  *bool
}

func readFundRow(rec legacy.Record) fundRow {
	f := fundRow{
		Fund:      rec.String("Fund_Name"),
		FundGL:    rec.String("Fund_GL_Account"),
		SubFund:   rec.String("Sub_Fund_Name"),
		SubFundGL: rec.String("Sub_Fund_GL_Account"),
		FundType:  rec.String("FundType"),
	}
	if !rec.IsBlank("Fund_Is_active") {
		v := rec.Bool("Fund_Is_active")
		f.FundActive = &v
	}
	if !rec.IsBlank("Sub_Fund_Is_active") {
		v := rec.Bool("Sub_Fund_Is_active")
		f.SubActive = &v
	}
	return f
}

// active derives the account state: a sub-fund row is active when both levels
// are. A fund-only row is always active.
func (f fundRow) active() bool {
	fund := f.FundActive != nil && *f.FundActive
	sub := f.SubActive != nil && *f.SubActive
	return fund && sub || (!sub && f.SubFund == "")
}

// fundResolver finds or creates the financial accounts named by fund columns.
// Accounts are shared lookups and are written as soon as they are created.
type fundResolver struct {
	env        *Env
	campuses   *campusMatcher
	accounts   []*entities.FinancialAccount
	reactivate bool
}

func newFundResolver(db *gorm.DB, env *Env, campuses *campusMatcher, reactivate bool) (*fundResolver, error) {
	var accounts []*entities.FinancialAccount
	if err := db.Order("id").Find(&accounts).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load financial accounts")
	}
	return &fundResolver{env: env, campuses: campuses, accounts: accounts, reactivate: reactivate}, nil
}

// resolve returns the account id for the row, or nil when no fund is named.
func (r *fundResolver) resolve(db *gorm.DB, f fundRow) (*uint, error) {
	if f.Fund == "" {
		return nil, nil
	}
	isActive := f.active()

	var activeFlag *bool
	if r.reactivate {
		activeFlag = &isActive
	} else {
		activeFlag = f.FundActive
	}

	parent := r.find(truncate(f.Fund, 50), nil)
	if parent == nil {
		created, err := r.add(db, f.Fund, f.FundGL, nil, nil, activeFlag, f.FundType)
		if err != nil {
			return nil, err
		}
		parent = created
	} else if r.reactivate && !parent.IsActive && isActive {
		if err := r.activate(db, parent); err != nil {
			return nil, err
		}
	}

	if f.SubFund == "" {
		return entities.UintPtr(parent.ID), nil
	}

	subName := f.SubFund
	var campusID *uint
	if c := r.campuses.byPrefix(subName); c != nil {
		subName = c.Name
		campusID = entities.UintPtr(c.ID)
	}
	subName = truncate(subName, 50)

	if !r.reactivate {
		activeFlag = f.SubActive
	}
	child := r.find(subName, &parent.ID)
	if child == nil {
		created, err := r.add(db, subName, f.SubFundGL, campusID, &parent.ID, activeFlag, f.FundType)
		if err != nil {
			return nil, err
		}
		child = created
	} else if r.reactivate && !child.IsActive && isActive {
		if err := r.activate(db, child); err != nil {
			return nil, err
		}
	}
	return entities.UintPtr(child.ID), nil
}

func (r *fundResolver) find(name string, parentID *uint) *entities.FinancialAccount {
	for _, a := range r.accounts {
		if a.Name != name {
			continue
		}
		if parentID == nil && a.ParentAccountID == nil {
			return a
		}
		if parentID != nil && a.ParentAccountID != nil && *a.ParentAccountID == *parentID {
			return a
		}
	}
	return nil
}

func (r *fundResolver) add(db *gorm.DB, name, gl string, campusID, parentID *uint, isActive *bool, fundType string) (*entities.FinancialAccount, error) {
	name = truncate(name, 50)
	if campusID == nil {
		campusID = r.campuses.prefixID(name)
	}
	if campusID == nil {
		campusID = r.campuses.fallback()
	}
	account := &entities.FinancialAccount{
		Name:            name,
		PublicName:      name,
		GlCode:          truncate(gl, 50),
		ParentAccountID: parentID,
		CampusID:        campusID,
		IsActive:        isActive == nil || *isActive,
		IsTaxDeductible: fundType == "" || !strings.EqualFold(fundType, "Receipt"),
		Provenance:      r.env.Stamp(nil),
	}
	if err := db.Create(account).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to create account %s", name)
	}
	r.accounts = append(r.accounts, account)
	return account, nil
}

func (r *fundResolver) activate(db *gorm.DB, account *entities.FinancialAccount) error {
	if err := db.Model(account).Update("is_active", true).Error; err != nil {
		return errors.Wrapf(err, "failed to activate account %s", account.Name)
	}
	account.IsActive = true
	return nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}

// groupResolver finds groups named by legacy group ids: first by imported
// legacy id, then by destination id.
type groupResolver struct {
	byForeign map[int]uint
	cache     map[uint]*entities.Group
}

func newGroupResolver(db *gorm.DB) (*groupResolver, error) {
	ids, err := database.ForeignIDs[entities.Group](db)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load imported groups")
	}
	return &groupResolver{byForeign: ids, cache: make(map[uint]*entities.Group)}, nil
}

func (r *groupResolver) resolve(db *gorm.DB, legacyID int) (*entities.Group, error) {
	id, ok := r.byForeign[legacyID]
	if !ok {
		if legacyID <= 0 {
			return nil, nil
		}
		id = uint(legacyID)
	}
	if g, ok := r.cache[id]; ok {
		return g, nil
	}

	var g entities.Group
	err := db.First(&g, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.cache[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load group %d", legacyID)
	}
	r.cache[id] = &g
	return &g, nil
}
