package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	validationdomain "github.com/smallbiznis/docflow/internal/validation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(description, quantity, unitPrice, total, rate, tax string) documentdomain.LineItem {
	return documentdomain.LineItem{
		Description: description,
		Quantity:    d(quantity),
		UnitPrice:   d(unitPrice),
		TotalAmount: d(total),
		TaxRate:     d(rate),
		TaxAmount:   d(tax),
	}
}

func validData(extra map[string]any) documentdomain.StructuredData {
	raw := map[string]any{
		"vendor_name":    "Acme",
		"invoice_number": "INV-1",
		"invoice_date":   "2024-05-01",
		"due_date":       "2024-05-31",
		"total_amount":   "120.00",
		"subtotal":       "100.00",
		"tax_amount":     "20.00",
	}
	for k, v := range extra {
		raw[k] = v
	}
	return documentdomain.ParseStructuredData(raw)
}

func validLines() []documentdomain.LineItem {
	return []documentdomain.LineItem{
		line("Consulting", "2", "25", "50", "20", "10"),
		line("Support", "1", "50", "50", "20", "10"),
	}
}

func TestEvaluateValidInvoice(t *testing.T) {
	report := evaluate(validData(nil), validLines(), testNow)
	assert.True(t, report.IsValid)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)
}

func TestEvaluateAlwaysHasFiveRulesInOrder(t *testing.T) {
	inputs := []struct {
		data  documentdomain.StructuredData
		lines []documentdomain.LineItem
	}{
		{documentdomain.ParseStructuredData(nil), nil},
		{validData(nil), validLines()},
		{validData(map[string]any{"invoice_date": "garbage"}), []documentdomain.LineItem{line("", "-1", "-5", "-5", "-10", "3")}},
	}
	for _, in := range inputs {
		report := evaluate(in.data, in.lines, testNow)
		require.Len(t, report.Validations, 5)
		for i, rule := range validationdomain.RuleOrder {
			assert.Equal(t, rule, report.Validations[i].Rule)
		}
	}
}

func TestTotalsMismatch(t *testing.T) {
	data := documentdomain.ParseStructuredData(map[string]any{"total_amount": "100.00"})
	lines := []documentdomain.LineItem{
		line("A", "1", "90", "90.00", "20", "18.00"),
		line("B", "1", "20", "20.00", "20", "4.00"),
	}

	report := evaluate(data, lines, testNow)
	assert.False(t, report.IsValid)
	require.True(t, report.HasError(validationdomain.KindTotalMismatch))

	issue := report.Errors[0]
	assert.Equal(t, validationdomain.KindTotalMismatch, issue.Type)
	require.NotNil(t, issue.Extracted)
	require.NotNil(t, issue.Calculated)
	assert.InDelta(t, 100.0, *issue.Extracted, 1e-9)
	assert.InDelta(t, 132.0, *issue.Calculated, 1e-9)
	assert.Equal(t, "Invoice total does not match line items. Extracted: 100.00, Calculated: 132.00", issue.Message)
	assert.True(t, report.HasError(validationdomain.KindSubtotalMismatch))
	assert.True(t, report.HasError(validationdomain.KindTaxMismatch))
}

func TestTotalsWithinToleranceWarnsOnMinorDifference(t *testing.T) {
	result := checkTotals(validData(map[string]any{"total_amount": "120.005"}), validLines())
	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, validationdomain.KindMinorTotalDifference, result.Warnings[0].Type)
	assert.Equal(t, "Minor difference in total calculations (0.005)", result.Warnings[0].Message)

	result = checkTotals(validData(map[string]any{"total_amount": "120.0005"}), validLines())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestTotalsAbsentFieldsDefaultToZero(t *testing.T) {
	result := checkTotals(documentdomain.ParseStructuredData(map[string]any{}), nil)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestTaxCalculationError(t *testing.T) {
	lines := []documentdomain.LineItem{
		line("Ok", "1", "100", "100", "20", "20"),
		line("Wrong", "1", "100", "100", "20", "15"),
	}
	result := checkTaxCalculations(lines)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)

	issue := result.Errors[0]
	assert.Equal(t, validationdomain.KindLineTaxCalculationError, issue.Type)
	assert.Equal(t, 2, issue.LineNumber)
	require.NotNil(t, issue.Description)
	assert.Equal(t, "Wrong", *issue.Description)
	assert.InDelta(t, 20.0, *issue.ExpectedTax, 1e-9)
	assert.InDelta(t, 15.0, *issue.ActualTax, 1e-9)
}

func TestHighTaxRateWarningOnlyWhenRulePasses(t *testing.T) {
	passing := checkTaxCalculations([]documentdomain.LineItem{line("Luxury", "1", "100", "100", "30", "30")})
	assert.True(t, passing.Valid)
	require.Len(t, passing.Warnings, 1)
	assert.Equal(t, validationdomain.KindHighTaxRate, passing.Warnings[0].Type)

	report := evaluate(validData(nil), []documentdomain.LineItem{
		line("Luxury", "1", "100", "100", "30", "29"),
	}, testNow)
	assert.True(t, report.HasError(validationdomain.KindLineTaxCalculationError))
	assert.False(t, report.HasWarning(validationdomain.KindHighTaxRate))
}

func TestNegativeTaxRateWithPositiveAmount(t *testing.T) {
	result := checkTaxCalculations([]documentdomain.LineItem{line("Refund", "1", "0", "0", "-5", "0.001")})
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, validationdomain.KindNegativeTaxRateWithPositive, result.Errors[0].Type)
}

func TestNoLineItems(t *testing.T) {
	result := checkLineItems(nil)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, validationdomain.KindNoLineItems, result.Errors[0].Type)

	report := evaluate(validData(nil), nil, testNow)
	lineRule := report.Validations[2]
	require.Len(t, lineRule.Errors, 1)
	assert.Equal(t, validationdomain.KindNoLineItems, lineRule.Errors[0].Type)
}

func TestLineItemSanity(t *testing.T) {
	result := checkLineItems([]documentdomain.LineItem{
		line("   ", "0", "-1", "10", "0", "0"),
	})
	assert.False(t, result.Valid)
	kinds := []validationdomain.IssueKind{}
	for _, e := range result.Errors {
		kinds = append(kinds, e.Type)
		assert.Equal(t, 1, e.LineNumber)
	}
	assert.Equal(t, []validationdomain.IssueKind{
		validationdomain.KindEmptyDescription,
		validationdomain.KindInvalidQuantity,
		validationdomain.KindNegativePrice,
	}, kinds)
}

func TestLineItemWarningsSurviveFailingRule(t *testing.T) {
	report := evaluate(validData(nil), []documentdomain.LineItem{
		line("", "20000", "15000", "100", "0", "0"),
	}, testNow)

	assert.False(t, report.Validations[2].Valid)
	assert.True(t, report.HasError(validationdomain.KindEmptyDescription))
	assert.True(t, report.HasWarning(validationdomain.KindHighUnitPrice))
	assert.True(t, report.HasWarning(validationdomain.KindHighQuantity))
}

func TestTotalsWarningSuppressedWhenRuleFails(t *testing.T) {
	// total within 0.01 of the lines but subtotal wrong: rule 1 fails, its
	// minor difference warning must not surface
	data := validData(map[string]any{"total_amount": "120.005", "subtotal": "90"})
	rule := checkTotals(data, validLines())
	assert.False(t, rule.Valid)

	report := evaluate(data, validLines(), testNow)
	assert.False(t, report.HasWarning(validationdomain.KindMinorTotalDifference))
	assert.True(t, report.HasError(validationdomain.KindSubtotalMismatch))
}

func TestRequiredFields(t *testing.T) {
	result := checkRequiredFields(documentdomain.ParseStructuredData(map[string]any{
		"vendor_name": "  ",
	}))
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, "vendor_name", result.Errors[0].Field)
	assert.Equal(t, "invoice_number", result.Errors[1].Field)
	assert.Equal(t, validationdomain.KindMissingFinancialData, result.Errors[2].Type)
	assert.Equal(t, []string{"invoice_date", "due_date", "total_amount"}, result.Errors[2].FieldsNeeded)

	result = checkRequiredFields(documentdomain.ParseStructuredData(map[string]any{
		"vendor_name": "Acme", "invoice_number": "INV-1", "due_date": "2024-01-01",
	}))
	assert.True(t, result.Valid)
}

func TestDateRoundTrip(t *testing.T) {
	invalid := checkDates(documentdomain.ParseStructuredData(map[string]any{"invoice_date": "2024-02-30"}), testNow)
	assert.False(t, invalid.Valid)
	require.Len(t, invalid.Errors, 1)
	assert.Equal(t, validationdomain.KindInvalidInvoiceDate, invalid.Errors[0].Type)

	leap := checkDates(documentdomain.ParseStructuredData(map[string]any{"invoice_date": "2024-02-29"}), testNow)
	assert.True(t, leap.Valid)
	assert.Empty(t, leap.Errors)

	loose := checkDates(documentdomain.ParseStructuredData(map[string]any{"due_date": "2024-5-01"}), testNow)
	require.Len(t, loose.Errors, 1)
	assert.Equal(t, validationdomain.KindInvalidDueDate, loose.Errors[0].Type)
}

func TestFutureInvoiceDateWarns(t *testing.T) {
	result := checkDates(documentdomain.ParseStructuredData(map[string]any{"invoice_date": "2024-06-02"}), testNow)
	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, validationdomain.KindFutureInvoiceDate, result.Warnings[0].Type)

	today := checkDates(documentdomain.ParseStructuredData(map[string]any{"invoice_date": "2024-06-01"}), testNow)
	assert.Empty(t, today.Warnings)
}

func TestDueDateBeforeInvoiceDate(t *testing.T) {
	result := checkDates(documentdomain.ParseStructuredData(map[string]any{
		"invoice_date": "2024-05-10",
		"due_date":     "2024-05-01",
	}), testNow)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	issue := result.Errors[0]
	assert.Equal(t, validationdomain.KindDueDateBeforeInvoiceDate, issue.Type)
	assert.Equal(t, "2024-05-10", issue.InvoiceDate)
	assert.Equal(t, "2024-05-01", issue.DueDate)
}

func TestErrorsKeepRuleOrder(t *testing.T) {
	report := evaluate(documentdomain.ParseStructuredData(map[string]any{
		"total_amount": "5",
		"invoice_date": "nope",
	}), nil, testNow)

	kinds := make([]validationdomain.IssueKind, 0, len(report.Errors))
	for _, e := range report.Errors {
		kinds = append(kinds, e.Type)
	}
	assert.Equal(t, []validationdomain.IssueKind{
		validationdomain.KindTotalMismatch,
		validationdomain.KindNoLineItems,
		validationdomain.KindMissingRequiredField,
		validationdomain.KindMissingRequiredField,
		validationdomain.KindInvalidInvoiceDate,
	}, kinds)
}
