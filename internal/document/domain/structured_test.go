package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructuredData(t *testing.T) {
	data := ParseStructuredData(map[string]any{
		FieldVendorName:    "Acme",
		FieldInvoiceNumber: json.Number("1001"),
		FieldTotalAmount:   "120.50",
		FieldTaxAmount:     20.5,
		FieldSubtotal:      "n/a",
		FieldDueDate:       nil,
		FieldLineItems:     []any{map[string]any{"description": "x"}},
		"currency":         "EUR",
	})

	require.NotNil(t, data.VendorName)
	assert.Equal(t, "Acme", *data.VendorName)
	require.NotNil(t, data.InvoiceNumber)
	assert.Equal(t, "1001", *data.InvoiceNumber)
	assert.True(t, data.TotalAmount.Equal(decimal.RequireFromString("120.5")))
	assert.True(t, data.TaxAmount.Equal(decimal.RequireFromString("20.5")))
	require.NotNil(t, data.Subtotal)
	assert.True(t, data.Subtotal.IsZero())
	assert.Nil(t, data.DueDate)
	assert.Len(t, data.LineItems, 1)
	assert.Equal(t, map[string]any{"currency": "EUR"}, data.Extras)
}

func TestFilled(t *testing.T) {
	blank := "   "
	value := "INV-1"
	assert.False(t, Filled(nil))
	assert.False(t, Filled(&blank))
	assert.True(t, Filled(&value))
}

func TestLineItemAmountIncludingTax(t *testing.T) {
	item := LineItem{TotalAmount: decimal.NewFromInt(90), TaxAmount: decimal.NewFromInt(18)}
	assert.True(t, item.AmountIncludingTax().Equal(decimal.NewFromInt(108)))
}

func TestParseDocumentType(t *testing.T) {
	got, ok := ParseDocumentType("purchase_order")
	assert.True(t, ok)
	assert.Equal(t, TypePurchaseOrder, got)
	_, ok = ParseDocumentType("memo")
	assert.False(t, ok)
}
