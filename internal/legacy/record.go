package legacy

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Record is one legacy row: named, ordered, loosely typed fields. Values are
// whatever the source produced (string, int64, float64, []byte, bool,
// time.Time, decimal.Decimal or nil). Field names match case-insensitively.
type Record struct {
	Table  string
	names  []string
	values []any
	index  map[string]int
}

// NewRecord builds a record. values shorter than names are padded with nil.
func NewRecord(table string, names []string, values []any) Record {
	index := make(map[string]int, len(names))
	for i, n := range names {
		key := normalize(n)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	if len(values) < len(names) {
		padded := make([]any, len(names))
		copy(padded, values)
		values = padded
	}
	return Record{Table: table, names: names, values: values, index: index}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Fields returns the field names in source order.
func (r Record) Fields() []string {
	return r.names
}

// Value returns the raw value of a field and whether the field exists.
func (r Record) Value(name string) (any, bool) {
	i, ok := r.index[normalize(name)]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// IsBlank reports whether a field is absent, null or whitespace.
func (r Record) IsBlank(name string) bool {
	return r.String(name) == ""
}

// String returns the trimmed text form of a field, or "" when null or absent.
func (r Record) String(name string) string {
	v, _ := r.Value(name)
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case decimal.Decimal:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Int returns the field as an integer, or nil when it is null, blank, absent
// or not a whole number. Legacy natural keys are read this way.
func (r Record) Int(name string) *int {
	v, _ := r.Value(name)
	var out int
	switch t := v.(type) {
	case int64:
		out = int(t)
	case int:
		out = t
	case float64:
		if t != math.Trunc(t) {
			return nil
		}
		out = int(t)
	case decimal.Decimal:
		if !t.IsInteger() {
			return nil
		}
		out = int(t.IntPart())
	default:
		s := strings.TrimSpace(r.String(name))
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || f != math.Trunc(f) {
				return nil
			}
			n = int(f)
		}
		out = n
	}
	return &out
}

// Decimal returns the field as a decimal. Blank values are zero; currency
// symbols and thousands separators are ignored.
func (r Record) Decimal(name string) (decimal.Decimal, error) {
	d, _, err := r.DecimalOrNil(name)
	return d, err
}

// DecimalOrNil is Decimal that also reports whether a value was present.
func (r Record) DecimalOrNil(name string) (decimal.Decimal, bool, error) {
	v, _ := r.Value(name)
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false, nil
	case decimal.Decimal:
		return t, true, nil
	case int64:
		return decimal.NewFromInt(t), true, nil
	case int:
		return decimal.NewFromInt(int64(t)), true, nil
	case float64:
		return decimal.NewFromFloat(t), true, nil
	}

	s := r.String(name)
	if s == "" {
		return decimal.Zero, false, nil
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	if negative {
		s = strings.Trim(s, "()")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, errors.Wrapf(err, "field %s: invalid number %q", name, r.String(name))
	}
	if negative {
		d = d.Neg()
	}
	return d, true, nil
}

// Time returns the field as a time. Blank values are nil. Text is parsed with
// layouts, or DateLayouts when none are given.
func (r Record) Time(name string, layouts ...string) (*time.Time, error) {
	v, _ := r.Value(name)
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return nil, nil
		}
		return &t, nil
	}

	s := r.String(name)
	if s == "" {
		return nil, nil
	}
	if len(layouts) == 0 {
		layouts = DateLayouts
	}
	t, err := ParseDate(s, layouts)
	if err != nil {
		return nil, errors.Wrapf(err, "field %s", name)
	}
	return &t, nil
}

// Bool interprets the field as a flag. Unrecognized text is false.
func (r Record) Bool(name string) bool {
	v, _ := r.Value(name)
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	}
	switch strings.ToLower(r.String(name)) {
	case "true", "t", "yes", "y", "1", "-1", "on", "active":
		return true
	}
	return false
}
