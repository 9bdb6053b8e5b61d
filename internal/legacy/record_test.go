package legacy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() Record {
	return NewRecord("Contribution",
		[]string{"Individual_ID", "Household_Id", "Amount", "Memo", "Received_Date", "Fund_Is_active", "Stated_Value", "Check_Number"},
		[]any{int64(42), " 7 ", "$1,250.50", []byte(" Building fund "), time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC), "True", nil, "(12.00)"},
	)
}

func TestRecord_CaseInsensitiveLookup(t *testing.T) {
	rec := testRecord()

	v, ok := rec.Value("individual_id")
	require.True(t, ok)
	assert.Equal(t, int64(42), v)

	_, ok = rec.Value("Missing")
	assert.False(t, ok)
	assert.Len(t, rec.Fields(), 8)
}

func TestRecord_Int(t *testing.T) {
	rec := testRecord()

	require.NotNil(t, rec.Int("Individual_ID"))
	assert.Equal(t, 42, *rec.Int("Individual_ID"))
	require.NotNil(t, rec.Int("HOUSEHOLD_ID"))
	assert.Equal(t, 7, *rec.Int("Household_ID"))

	assert.Nil(t, rec.Int("Memo"))
	assert.Nil(t, rec.Int("Stated_Value"))
	assert.Nil(t, rec.Int("Nope"))

	floats := NewRecord("t", []string{"a", "b"}, []any{float64(3), "4.5"})
	assert.Equal(t, 3, *floats.Int("a"))
	assert.Nil(t, floats.Int("b"))
}

func TestRecord_String(t *testing.T) {
	rec := testRecord()

	assert.Equal(t, "Building fund", rec.String("Memo"))
	assert.Equal(t, "42", rec.String("Individual_ID"))
	assert.Equal(t, "", rec.String("Stated_Value"))
	assert.True(t, rec.IsBlank("Stated_Value"))
	assert.False(t, rec.IsBlank("Memo"))
}

func TestRecord_Decimal(t *testing.T) {
	rec := testRecord()

	amount, err := rec.Decimal("Amount")
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("1250.50")))

	stated, present, err := rec.DecimalOrNil("Stated_Value")
	require.NoError(t, err)
	assert.False(t, present)
	assert.True(t, stated.IsZero())

	negative, err := rec.Decimal("Check_Number")
	require.NoError(t, err)
	assert.True(t, negative.Equal(decimal.NewFromInt(-12)))

	_, err = rec.Decimal("Memo")
	assert.Error(t, err)
}

func TestRecord_Time(t *testing.T) {
	rec := testRecord()

	received, err := rec.Time("Received_Date")
	require.NoError(t, err)
	require.NotNil(t, received)
	assert.Equal(t, 2021, received.Year())

	blank, err := rec.Time("Stated_Value")
	require.NoError(t, err)
	assert.Nil(t, blank)

	_, err = rec.Time("Memo")
	assert.ErrorIs(t, err, ErrUnparseableDate)

	text := NewRecord("t", []string{"d"}, []any{"3/5/2021"})
	d, err := text.Time("d")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC), *d)
}

func TestRecord_Bool(t *testing.T) {
	rec := NewRecord("t", []string{"a", "b", "c", "d", "e"}, []any{"True", "no", int64(1), true, nil})

	assert.True(t, rec.Bool("a"))
	assert.False(t, rec.Bool("b"))
	assert.True(t, rec.Bool("c"))
	assert.True(t, rec.Bool("d"))
	assert.False(t, rec.Bool("e"))
}

func TestNewRecord_PadsShortRows(t *testing.T) {
	rec := NewRecord("t", []string{"a", "b"}, []any{"x"})
	v, ok := rec.Value("b")
	assert.True(t, ok)
	assert.Nil(t, v)
}
