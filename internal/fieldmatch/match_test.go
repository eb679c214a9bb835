package fieldmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akhanna222/email2kg/internal/model"
)

func TestMatch_FloatWithCurrencyAndSeparators(t *testing.T) {
	text := "Grand Total: $1,250.50\n"

	v, conf, ok := Match(text, []string{"Grand Total"}, model.FieldTypeFloat)

	assert.True(t, ok)
	assert.Equal(t, 1250.50, v)
	assert.Equal(t, 0.9, conf)
}

func TestMatch_LabelIsSubstringSearch(t *testing.T) {
	// Labels are plain substring anchors, not word-bounded: "Total" also
	// matches inside "Subtotal", and the earliest occurrence wins.
	text := "Subtotal: $100.00\nTotal: $1,250.50\n"

	v, _, ok := Match(text, []string{"Total"}, model.FieldTypeFloat)

	assert.True(t, ok)
	assert.Equal(t, 100.00, v)
}

func TestMatch_FloatFallsThroughToSecondLabel(t *testing.T) {
	// First-match policy: "Total:" is absent, so the matcher must fall
	// through to "Amount:" and stop there.
	text := "Order summary\nAmount: 50.00\nThanks"

	v, conf, ok := Match(text, []string{"Total:", "Amount:"}, model.FieldTypeFloat)

	assert.True(t, ok)
	assert.Equal(t, 50.00, v)
	assert.Equal(t, 0.9, conf)
}

func TestMatch_FirstLabelWinsEvenWithBetterLater(t *testing.T) {
	text := "Amount: 50.00\nGrand Total: 75.00"

	v, _, ok := Match(text, []string{"Amount", "Grand Total"}, model.FieldTypeFloat)

	assert.True(t, ok)
	assert.Equal(t, 50.00, v)
}

func TestMatch_CaseInsensitive(t *testing.T) {
	text := "TOTAL DUE: $42.00"

	v, _, ok := Match(text, []string{"total due"}, model.FieldTypeFloat)

	assert.True(t, ok)
	assert.Equal(t, 42.00, v)
}

func TestMatch_Date(t *testing.T) {
	text := "Invoice Date: 01/15/2024\n"

	v, conf, ok := Match(text, []string{"Invoice Date"}, model.FieldTypeDate)

	assert.True(t, ok)
	assert.Equal(t, "01/15/2024", v)
	assert.Equal(t, 0.9, conf)
}

func TestMatch_DateDashSeparated(t *testing.T) {
	text := "Due 3-4-22 sharp"

	v, _, ok := Match(text, []string{"Due"}, model.FieldTypeDate)

	assert.True(t, ok)
	assert.Equal(t, "3-4-22", v)
}

func TestMatch_StringToEndOfLine(t *testing.T) {
	text := "Vendor: Acme Corp Ltd\nNext line"

	v, conf, ok := Match(text, []string{"Vendor"}, model.FieldTypeString)

	assert.True(t, ok)
	assert.Equal(t, "Acme Corp Ltd", v)
	assert.Equal(t, 0.8, conf)
}

func TestMatch_NotFound(t *testing.T) {
	v, conf, ok := Match("nothing relevant here", []string{"Total", "Amount"}, model.FieldTypeFloat)

	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, 0.0, conf)
}

func TestMatch_EmptyLabelsSkipped(t *testing.T) {
	text := "Amount: 12.50"

	v, _, ok := Match(text, []string{"", "Amount"}, model.FieldTypeFloat)

	assert.True(t, ok)
	assert.Equal(t, 12.50, v)
}

func TestMatch_FloatParseFailureTriesNextLabel(t *testing.T) {
	// "Ref" is followed by a bare comma run which matches the shape but
	// fails numeric parsing; the matcher must move on to "Amount".
	text := "Ref: ,,\nAmount: 7.25"

	v, _, ok := Match(text, []string{"Ref", "Amount"}, model.FieldTypeFloat)

	assert.True(t, ok)
	assert.Equal(t, 7.25, v)
}

func TestMatch_LabelWithRegexMetaChars(t *testing.T) {
	text := "Total (USD): 19.99"

	v, _, ok := Match(text, []string{"Total (USD)"}, model.FieldTypeFloat)

	assert.True(t, ok)
	assert.Equal(t, 19.99, v)
}
