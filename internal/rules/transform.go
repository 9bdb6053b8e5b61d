package rules

import (
	"strconv"
	"strings"

	"github.com/mrlokans/congregate/internal/legacy"
)

// Transform turns a raw legacy value into the stored attribute value.
type Transform string

const (
	TransformIdentity Transform = "identity"
	// TransformDate stores the field as an ISO 8601 timestamp.
	TransformDate Transform = "date"
	// TransformTrue stores "True" whenever the rule matches.
	TransformTrue Transform = "true"
	// TransformStatus maps Approved to Completed.
	TransformStatus Transform = "status"
	// TransformPassFail maps Approved or Completed to Pass, anything else to Fail.
	TransformPassFail Transform = "pass_fail"
	// TransformSuffix stores the part of the matched name after the rule source.
	TransformSuffix Transform = "suffix"
	// TransformPerson resolves a legacy individual id to a person reference.
	TransformPerson Transform = "person"
)

// DateLayout is the layout of stored date attributes.
const DateLayout = "2006-01-02T15:04:05"

type transformInput struct {
	raw    string
	field  string
	rec    legacy.Record
	name   string
	source string
	people People
}

func (t Transform) apply(in transformInput) (string, bool, error) {
	switch t {
	case TransformTrue:
		return "True", true, nil
	case TransformSuffix:
		rest := in.name
		if i := strings.Index(strings.ToLower(in.name), strings.ToLower(in.source)); i >= 0 {
			rest = in.name[i+len(in.source):]
		}
		rest = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(rest), "-:"))
		return rest, rest != "", nil
	case TransformDate:
		if in.field == "" {
			return "", false, nil
		}
		d, err := in.rec.Time(in.field)
		if err != nil {
			return "", false, err
		}
		if d == nil {
			return "", false, nil
		}
		return d.Format(DateLayout), true, nil
	case TransformStatus:
		if in.raw == "" {
			return "", false, nil
		}
		if in.raw == "Approved" {
			return "Completed", true, nil
		}
		return in.raw, true, nil
	case TransformPassFail:
		if in.raw == "Approved" || in.raw == "Completed" {
			return "Pass", true, nil
		}
		return "Fail", true, nil
	case TransformPerson:
		if in.people == nil {
			return "", false, nil
		}
		id, err := strconv.Atoi(in.raw)
		if err != nil {
			return "", false, nil
		}
		ref, ok := in.people.PersonReference(id)
		return ref, ok, nil
	default:
		return in.raw, in.raw != "", nil
	}
}
