package importers

import (
	"fmt"
)

// ParseError reports a required legacy field that could not be parsed. It
// names the record's natural key so the offending row can be found in the
// extract.
type ParseError struct {
	Table string
	Key   string // e.g. "ContributionID 1042"
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: cannot parse %s %q: %v", e.Table, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("%s %s: cannot parse %s %q: %v", e.Table, e.Key, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PreconditionError reports a shared lookup that must exist before a mapper
// can run, such as a category or a seeded defined value.
type PreconditionError struct {
	Table       string
	Requirement string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition failed: %s", e.Table, e.Requirement)
}

// FlushError reports a failed batch write. Earlier batches of the same mapper
// remain committed.
type FlushError struct {
	Table string
	Batch int
	Err   error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("%s: failed to save batch %d: %v", e.Table, e.Batch, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

func keyOf(field string, id *int) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%s %d", field, *id)
}
