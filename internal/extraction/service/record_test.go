package service

import (
	"encoding/json"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docflow/internal/config"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	extractiondomain "github.com/smallbiznis/docflow/internal/extraction/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{name: "plain", in: `{"vendor_name":"Acme","total_amount":12.5}`, want: 2},
		{name: "fenced json", in: "```json\n{\"vendor_name\":\"Acme\"}\n```", want: 1},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: 1},
		{name: "garbage", in: "sorry, I cannot read this", want: 0},
		{name: "array", in: `[1,2,3]`, want: 0},
		{name: "empty", in: "", want: 0},
		{name: "trailing text", in: `{"vendor_name":"A","invoice_number":"1"} garbage`, want: 0},
		{name: "second object", in: `{"vendor_name":"A"} {"invoice_number":"1"}`, want: 0},
		{name: "trailing whitespace", in: "{\"vendor_name\":\"A\"}\n\n", want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, parseRecord(tc.in), tc.want)
		})
	}
}

func TestParseRecordKeepsNumbersExact(t *testing.T) {
	record := parseRecord(`{"total_amount": 1234.10}`)
	assert.Equal(t, json.Number("1234.10"), record["total_amount"])
}

func TestAccept(t *testing.T) {
	cfg := config.DefaultExtractionConfig()

	err := accept(map[string]any{}, documentdomain.TypeInvoice, cfg)
	assert.ErrorIs(t, err, extractiondomain.ErrRejected)

	err = accept(map[string]any{"vendor_name": "Acme"}, documentdomain.TypeInvoice, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field invoice_number")

	err = accept(map[string]any{"vendor_name": "Acme", "invoice_number": "  "}, documentdomain.TypeInvoice, cfg)
	assert.ErrorIs(t, err, extractiondomain.ErrRejected)

	err = accept(map[string]any{
		"vendor_name": "Acme", "invoice_number": "INV-1", "total_amount": "twelve",
	}, documentdomain.TypeInvoice, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total_amount is not numeric")

	err = accept(map[string]any{
		"vendor_name": "Acme", "invoice_number": "INV-1", "line_items": "none",
	}, documentdomain.TypeInvoice, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line_items must be a list")

	assert.NoError(t, accept(map[string]any{
		"vendor_name": "Acme", "invoice_number": "INV-1", "total_amount": json.Number("10"), "tax_amount": nil,
	}, documentdomain.TypeInvoice, cfg))

	assert.NoError(t, accept(genericRecord([]byte("hello"), 10), documentdomain.TypeReceipt, cfg))
}

func TestGenericRecordTruncates(t *testing.T) {
	content := make([]byte, 1500)
	for i := range content {
		content[i] = 'a'
	}
	record := genericRecord(content, 1000)
	assert.Equal(t, "generic", record["document_type"])
	assert.Len(t, record["extracted_text"], 1000)
	assert.Equal(t, 1500, record["file_size"])
}

func TestLineItemsFromDefaults(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	items := lineItemsFrom([]any{
		map[string]any{"description": "Widget", "unit_price": json.Number("2.50"), "total_amount": "5"},
		map[string]any{"quantity": "abc"},
		"not an object",
	}, node)

	require.Len(t, items, 3)
	assert.Equal(t, "Widget", items[0].Description)
	assert.True(t, items[0].Quantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, items[0].UnitPrice.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, items[0].TotalAmount.Equal(decimal.NewFromInt(5)))
	assert.True(t, items[0].TaxRate.IsZero())
	assert.True(t, items[1].Quantity.IsZero())
	assert.True(t, items[2].Quantity.Equal(decimal.NewFromInt(1)))
}

func TestMergeRecordNewKeysWin(t *testing.T) {
	merged := mergeRecord(
		map[string]any{"vendor_name": "Old", "notes": "kept"},
		map[string]any{"vendor_name": "New"},
	)
	assert.Equal(t, "New", merged["vendor_name"])
	assert.Equal(t, "kept", merged["notes"])
}
