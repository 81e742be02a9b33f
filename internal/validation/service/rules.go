package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	validationdomain "github.com/smallbiznis/docflow/internal/validation/domain"
)

const dateLayout = "2006-01-02"

var (
	tolerance          = decimal.RequireFromString("0.01")
	minorTolerance     = decimal.RequireFromString("0.001")
	highTaxRate        = decimal.NewFromInt(25)
	highLineMagnitude  = decimal.NewFromInt(10000)
	hundred            = decimal.NewFromInt(100)
	financialFieldKeys = []string{
		documentdomain.FieldInvoiceDate,
		documentdomain.FieldDueDate,
		documentdomain.FieldTotalAmount,
	}
)

// evaluate runs every rule group in order. None of them short-circuits another.
func evaluate(data documentdomain.StructuredData, lines []documentdomain.LineItem, now time.Time) validationdomain.Report {
	return validationdomain.Aggregate(
		checkTotals(data, lines),
		checkTaxCalculations(lines),
		checkLineItems(lines),
		checkRequiredFields(data),
		checkDates(data, now),
	)
}

func checkTotals(data documentdomain.StructuredData, lines []documentdomain.LineItem) validationdomain.RuleResult {
	result := validationdomain.NewRuleResult(validationdomain.RuleTotals)

	var calculatedTotal, calculatedSubtotal, calculatedTax decimal.Decimal
	for _, line := range lines {
		calculatedTotal = calculatedTotal.Add(line.AmountIncludingTax())
		calculatedSubtotal = calculatedSubtotal.Add(line.TotalAmount)
		calculatedTax = calculatedTax.Add(line.TaxAmount)
	}

	extractedTotal := documentdomain.AmountOrZero(data.TotalAmount)
	extractedSubtotal := documentdomain.AmountOrZero(data.Subtotal)
	extractedTax := documentdomain.AmountOrZero(data.TaxAmount)

	compare := func(kind validationdomain.IssueKind, label string, extracted, calculated decimal.Decimal) {
		if extracted.Sub(calculated).Abs().LessThanOrEqual(tolerance) {
			return
		}
		result.AddError(validationdomain.Issue{
			Type: kind,
			Message: fmt.Sprintf("%s does not match line items. Extracted: %s, Calculated: %s",
				label, extracted.StringFixed(2), calculated.StringFixed(2)),
			Extracted:  float(extracted),
			Calculated: float(calculated),
		})
	}
	compare(validationdomain.KindTotalMismatch, "Invoice total", extractedTotal, calculatedTotal)
	compare(validationdomain.KindSubtotalMismatch, "Subtotal", extractedSubtotal, calculatedSubtotal)
	compare(validationdomain.KindTaxMismatch, "Tax amount", extractedTax, calculatedTax)

	if result.Valid {
		if diff := extractedTotal.Sub(calculatedTotal).Abs(); diff.GreaterThan(minorTolerance) {
			result.AddWarning(validationdomain.Issue{
				Type:       validationdomain.KindMinorTotalDifference,
				Message:    fmt.Sprintf("Minor difference in total calculations (%s)", diff.StringFixed(3)),
				Extracted:  float(extractedTotal),
				Calculated: float(calculatedTotal),
			})
		}
	}
	return result
}

func checkTaxCalculations(lines []documentdomain.LineItem) validationdomain.RuleResult {
	result := validationdomain.NewRuleResult(validationdomain.RuleTax)

	for i, line := range lines {
		number := i + 1
		expected := line.TotalAmount.Mul(line.TaxRate.Div(hundred))
		if expected.Sub(line.TaxAmount).Abs().GreaterThan(tolerance) {
			description := line.Description
			result.AddError(validationdomain.Issue{
				Type: validationdomain.KindLineTaxCalculationError,
				Message: fmt.Sprintf("Tax calculation error on line %d. Expected: %s, Actual: %s",
					number, expected.StringFixed(2), line.TaxAmount.StringFixed(2)),
				LineNumber:  number,
				Description: &description,
				ExpectedTax: float(expected),
				ActualTax:   float(line.TaxAmount),
			})
		}

		if line.TaxRate.GreaterThan(highTaxRate) {
			result.AddWarning(validationdomain.Issue{
				Type:       validationdomain.KindHighTaxRate,
				Message:    fmt.Sprintf("Unusually high tax rate (%s%%) on line %d", line.TaxRate.String(), number),
				LineNumber: number,
				TaxRate:    float(line.TaxRate),
			})
		}

		if line.TaxRate.IsNegative() && line.TaxAmount.IsPositive() {
			result.AddError(validationdomain.Issue{
				Type:       validationdomain.KindNegativeTaxRateWithPositive,
				Message:    fmt.Sprintf("Negative tax rate with positive tax amount on line %d", number),
				LineNumber: number,
				TaxRate:    float(line.TaxRate),
			})
		}
	}
	return result
}

func checkLineItems(lines []documentdomain.LineItem) validationdomain.RuleResult {
	result := validationdomain.NewRuleResult(validationdomain.RuleLineItems)

	if len(lines) == 0 {
		result.AddError(validationdomain.Issue{
			Type:    validationdomain.KindNoLineItems,
			Message: "Invoice has no line items",
		})
		return result
	}

	for i, line := range lines {
		number := i + 1
		if strings.TrimSpace(line.Description) == "" {
			result.AddError(validationdomain.Issue{
				Type:       validationdomain.KindEmptyDescription,
				Message:    fmt.Sprintf("Line %d has empty description", number),
				LineNumber: number,
			})
		}

		if !line.Quantity.IsPositive() {
			result.AddError(validationdomain.Issue{
				Type:       validationdomain.KindInvalidQuantity,
				Message:    fmt.Sprintf("Line %d has invalid quantity (%s)", number, line.Quantity.String()),
				LineNumber: number,
				Quantity:   float(line.Quantity),
			})
		}

		if line.UnitPrice.IsNegative() || line.TotalAmount.IsNegative() {
			result.AddError(validationdomain.Issue{
				Type:        validationdomain.KindNegativePrice,
				Message:     fmt.Sprintf("Line %d has negative price", number),
				LineNumber:  number,
				UnitPrice:   float(line.UnitPrice),
				TotalAmount: float(line.TotalAmount),
			})
		}

		if line.UnitPrice.GreaterThan(highLineMagnitude) {
			result.AddWarning(validationdomain.Issue{
				Type:       validationdomain.KindHighUnitPrice,
				Message:    fmt.Sprintf("Unusually high unit price (%s) on line %d", line.UnitPrice.StringFixed(2), number),
				LineNumber: number,
				UnitPrice:  float(line.UnitPrice),
			})
		}

		if line.Quantity.GreaterThan(highLineMagnitude) {
			result.AddWarning(validationdomain.Issue{
				Type:       validationdomain.KindHighQuantity,
				Message:    fmt.Sprintf("Unusually high quantity (%s) on line %d", line.Quantity.String(), number),
				LineNumber: number,
				Quantity:   float(line.Quantity),
			})
		}
	}
	return result
}

func checkRequiredFields(data documentdomain.StructuredData) validationdomain.RuleResult {
	result := validationdomain.NewRuleResult(validationdomain.RuleRequiredFields)

	required := []struct {
		field string
		value *string
	}{
		{documentdomain.FieldVendorName, data.VendorName},
		{documentdomain.FieldInvoiceNumber, data.InvoiceNumber},
	}
	for _, r := range required {
		if documentdomain.Filled(r.value) {
			continue
		}
		result.AddError(validationdomain.Issue{
			Type:    validationdomain.KindMissingRequiredField,
			Message: fmt.Sprintf("Missing required field: %s", r.field),
			Field:   r.field,
		})
	}

	if data.InvoiceDate == nil && data.DueDate == nil && data.TotalAmount == nil {
		result.AddError(validationdomain.Issue{
			Type:         validationdomain.KindMissingFinancialData,
			Message:      "Missing financial data (invoice date, due date, or total amount)",
			FieldsNeeded: append([]string(nil), financialFieldKeys...),
		})
	}
	return result
}

func checkDates(data documentdomain.StructuredData, now time.Time) validationdomain.RuleResult {
	result := validationdomain.NewRuleResult(validationdomain.RuleDates)

	var invoiceDate, dueDate time.Time
	var invoiceOK, dueOK bool

	if documentdomain.Filled(data.InvoiceDate) {
		raw := *data.InvoiceDate
		invoiceDate, invoiceOK = parseStrictDate(raw)
		if !invoiceOK {
			result.AddError(validationdomain.Issue{
				Type:        validationdomain.KindInvalidInvoiceDate,
				Message:     fmt.Sprintf("Invalid invoice date format: %s", raw),
				InvoiceDate: raw,
			})
		} else if invoiceDate.After(now) {
			result.AddWarning(validationdomain.Issue{
				Type:        validationdomain.KindFutureInvoiceDate,
				Message:     fmt.Sprintf("Invoice date is in the future: %s", raw),
				InvoiceDate: raw,
			})
		}
	}

	if documentdomain.Filled(data.DueDate) {
		raw := *data.DueDate
		dueDate, dueOK = parseStrictDate(raw)
		if !dueOK {
			result.AddError(validationdomain.Issue{
				Type:    validationdomain.KindInvalidDueDate,
				Message: fmt.Sprintf("Invalid due date format: %s", raw),
				DueDate: raw,
			})
		}
	}

	if invoiceOK && dueOK && dueDate.Before(invoiceDate) {
		result.AddError(validationdomain.Issue{
			Type:        validationdomain.KindDueDateBeforeInvoiceDate,
			Message:     fmt.Sprintf("Due date (%s) is before invoice date (%s)", *data.DueDate, *data.InvoiceDate),
			InvoiceDate: *data.InvoiceDate,
			DueDate:     *data.DueDate,
		})
	}
	return result
}

// parseStrictDate accepts only dates that format back to the same string.
func parseStrictDate(raw string) (time.Time, bool) {
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil || parsed.Format(dateLayout) != raw {
		return time.Time{}, false
	}
	return parsed, true
}

func float(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	return &f
}
