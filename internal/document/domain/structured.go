package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Keys used inside a document's structured-data blob.
const (
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceDate   = "invoice_date"
	FieldDueDate       = "due_date"
	FieldVendorName    = "vendor_name"
	FieldVendorAddress = "vendor_address"
	FieldTotalAmount   = "total_amount"
	FieldTaxAmount     = "tax_amount"
	FieldSubtotal      = "subtotal"
	FieldLineItems     = "line_items"

	FieldDocumentType  = "document_type"
	FieldExtractedText = "extracted_text"
	FieldFileSize      = "file_size"

	FieldValidationResults = "validation_results"
	FieldValidatedAt       = "validated_at"
)

// Line item keys.
const (
	LineDescription = "description"
	LineQuantity    = "quantity"
	LineUnitPrice   = "unit_price"
	LineTotalAmount = "total_amount"
	LineTaxRate     = "tax_rate"
	LineTaxAmount   = "tax_amount"
)

var knownFields = map[string]struct{}{
	FieldInvoiceNumber:     {},
	FieldInvoiceDate:       {},
	FieldDueDate:           {},
	FieldVendorName:        {},
	FieldVendorAddress:     {},
	FieldTotalAmount:       {},
	FieldTaxAmount:         {},
	FieldSubtotal:          {},
	FieldLineItems:         {},
	FieldValidationResults: {},
	FieldValidatedAt:       {},
}

// StructuredData is a typed view over the extracted-field blob. A nil pointer
// means the key is absent or null.
type StructuredData struct {
	InvoiceNumber *string
	InvoiceDate   *string
	DueDate       *string
	VendorName    *string
	VendorAddress *string
	TotalAmount   *decimal.Decimal
	TaxAmount     *decimal.Decimal
	Subtotal      *decimal.Decimal
	LineItems     []any
	Extras        map[string]any
}

// ParseStructuredData builds the typed view. Present amounts that do not
// parse as numbers read as zero.
func ParseStructuredData(raw map[string]any) StructuredData {
	data := StructuredData{Extras: map[string]any{}}
	if raw == nil {
		return data
	}

	data.InvoiceNumber = stringField(raw, FieldInvoiceNumber)
	data.InvoiceDate = stringField(raw, FieldInvoiceDate)
	data.DueDate = stringField(raw, FieldDueDate)
	data.VendorName = stringField(raw, FieldVendorName)
	data.VendorAddress = stringField(raw, FieldVendorAddress)
	data.TotalAmount = amountField(raw, FieldTotalAmount)
	data.TaxAmount = amountField(raw, FieldTaxAmount)
	data.Subtotal = amountField(raw, FieldSubtotal)
	if items, ok := raw[FieldLineItems].([]any); ok {
		data.LineItems = items
	}

	for key, value := range raw {
		if _, known := knownFields[key]; known {
			continue
		}
		data.Extras[key] = value
	}
	return data
}

// Filled reports whether a string field is present and not blank.
func Filled(value *string) bool {
	return value != nil && strings.TrimSpace(*value) != ""
}

// AmountOrZero dereferences an optional amount.
func AmountOrZero(value *decimal.Decimal) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return *value
}

func stringField(raw map[string]any, key string) *string {
	value, ok := raw[key]
	if !ok || value == nil {
		return nil
	}
	var out string
	switch v := value.(type) {
	case string:
		out = v
	case json.Number:
		out = v.String()
	default:
		out = fmt.Sprint(v)
	}
	return &out
}

func amountField(raw map[string]any, key string) *decimal.Decimal {
	value, ok := raw[key]
	if !ok || value == nil {
		return nil
	}
	amount, ok := DecimalFrom(value)
	if !ok {
		amount = decimal.Zero
	}
	return &amount
}

// DecimalFrom coerces a JSON-decoded value into a decimal.
func DecimalFrom(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case int32:
		return decimal.NewFromInt32(v), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	}
	return decimal.Zero, false
}
