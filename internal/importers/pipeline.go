package importers

import (
	"context"
	"strings"

	"github.com/mrlokans/congregate/internal/legacy"
)

// Stats counts what a mapper did with its table.
type Stats struct {
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Flushes   int `json:"flushes"`
}

// Mapper converts the rows of one legacy table into destination entities.
// Each mapper reads its source to the end, writes through a Batch and
// returns the counters of the run.
//
// Implementations:
//   - HouseholdMapper (households.go) - Individual_Household
//   - GroupMapper (groups.go) - Groups
//   - GroupMemberMapper (group_members.go) - GroupMember
//   - AttendanceMapper (attendance.go) - Attendance
//   - HeadcountMapper (headcounts.go) - Metrics
//   - BatchMapper (batches.go) - Batch
//   - ContributionMapper (contributions.go) - Contribution
//   - PledgeMapper (pledges.go) - Pledge
//   - BankAccountMapper (bank_accounts.go) - Account
//   - AttributeMapper (attributes.go) - Attribute
//   - RequirementMapper (requirements.go) - Requirement
//   - NoteMapper (notes.go) - Notes
//   - ContactFormMapper (contact_forms.go) - ContactFormData
//
// Adding a new legacy table:
//  1. Create a new file (e.g., communications.go)
//  2. Implement Mapper, using NewBatch for writes
//  3. Register it in DefaultMappers
type Mapper interface {
	// Table is the legacy table name the mapper reads.
	Table() string
	// Map imports every row of src. Missing references are skipped; required
	// values that cannot be parsed stop the mapper with a *ParseError.
	Map(ctx context.Context, env *Env, src legacy.Source) (Stats, error)
}

// PeopleProducer is implemented by mappers that create people. The driver
// rebuilds the person key index after they run.
type PeopleProducer interface {
	ProducesPeople() bool
}

// DefaultMappers returns one mapper per supported legacy table.
func DefaultMappers() []Mapper {
	return []Mapper{
		&HouseholdMapper{},
		&GroupMapper{},
		&GroupMemberMapper{},
		&AttendanceMapper{},
		&HeadcountMapper{},
		&BatchMapper{},
		&ContributionMapper{},
		&PledgeMapper{},
		&BankAccountMapper{},
		&AttributeMapper{},
		&RequirementMapper{},
		&NoteMapper{},
		&ContactFormMapper{},
	}
}

// Registry looks mappers up by table name.
type Registry struct {
	mappers []Mapper
}

func NewRegistry(mappers ...Mapper) *Registry {
	if len(mappers) == 0 {
		mappers = DefaultMappers()
	}
	return &Registry{mappers: mappers}
}

// Lookup returns the mapper for table, matching case-insensitively.
func (r *Registry) Lookup(table string) (Mapper, bool) {
	for _, m := range r.mappers {
		if strings.EqualFold(m.Table(), table) {
			return m, true
		}
	}
	return nil, false
}

// Tables lists the supported table names in registration order.
func (r *Registry) Tables() []string {
	out := make([]string, len(r.mappers))
	for i, m := range r.mappers {
		out[i] = m.Table()
	}
	return out
}

// Legacy table names.
const (
	TableIndividualHousehold = "Individual_Household"
	TableCompany             = "Company"
	TableUsers               = "Users"
	TableGroups              = "Groups"
	TableGroupMember         = "GroupMember"
	TableAttendance          = "Attendance"
	TableMetrics             = "Metrics"
	TableBatch               = "Batch"
	TableContribution        = "Contribution"
	TablePledge              = "Pledge"
	TableAccount             = "Account"
	TableAttribute           = "Attribute"
	TableRequirement         = "Requirement"
	TableNotes               = "Notes"
	TableContactFormData     = "ContactFormData"
)
