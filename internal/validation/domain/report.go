// Package domain defines the invoice validation report.
package domain

import (
	"context"

	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
)

// Service evaluates a document's extracted invoice data and persists the report.
type Service interface {
	Validate(ctx context.Context, doc *documentdomain.Document) (Report, error)
}

// Rule names a rule group. Reports always carry all five, in this order.
type Rule string

const (
	RuleTotals         Rule = "totals"
	RuleTax            Rule = "tax_calculations"
	RuleLineItems      Rule = "line_items"
	RuleRequiredFields Rule = "required_fields"
	RuleDates          Rule = "dates"
)

var RuleOrder = []Rule{RuleTotals, RuleTax, RuleLineItems, RuleRequiredFields, RuleDates}

// IssueKind tags an error or warning.
type IssueKind string

// Errors.
const (
	KindTotalMismatch               IssueKind = "total_mismatch"
	KindSubtotalMismatch            IssueKind = "subtotal_mismatch"
	KindTaxMismatch                 IssueKind = "tax_mismatch"
	KindLineTaxCalculationError     IssueKind = "line_tax_calculation_error"
	KindNegativeTaxRateWithPositive IssueKind = "negative_tax_rate_with_positive_amount"
	KindNoLineItems                 IssueKind = "no_line_items"
	KindEmptyDescription            IssueKind = "empty_description"
	KindInvalidQuantity             IssueKind = "invalid_quantity"
	KindNegativePrice               IssueKind = "negative_price"
	KindMissingRequiredField        IssueKind = "missing_required_field"
	KindMissingFinancialData        IssueKind = "missing_financial_data"
	KindInvalidInvoiceDate          IssueKind = "invalid_invoice_date"
	KindInvalidDueDate              IssueKind = "invalid_due_date"
	KindDueDateBeforeInvoiceDate    IssueKind = "due_date_before_invoice_date"
)

// Warnings.
const (
	KindMinorTotalDifference IssueKind = "minor_total_difference"
	KindHighTaxRate          IssueKind = "high_tax_rate"
	KindHighUnitPrice        IssueKind = "high_unit_price"
	KindHighQuantity         IssueKind = "high_quantity"
	KindFutureInvoiceDate    IssueKind = "future_invoice_date"
)

// Issue is one error or warning with the figures that produced it.
type Issue struct {
	Type         IssueKind `json:"type"`
	Message      string    `json:"message"`
	Extracted    *float64  `json:"extracted,omitempty"`
	Calculated   *float64  `json:"calculated,omitempty"`
	LineNumber   int       `json:"line_number,omitempty"`
	Description  *string   `json:"description,omitempty"`
	ExpectedTax  *float64  `json:"expected_tax,omitempty"`
	ActualTax    *float64  `json:"actual_tax,omitempty"`
	TaxRate      *float64  `json:"tax_rate,omitempty"`
	Quantity     *float64  `json:"quantity,omitempty"`
	UnitPrice    *float64  `json:"unit_price,omitempty"`
	TotalAmount  *float64  `json:"total_amount,omitempty"`
	Field        string    `json:"field,omitempty"`
	FieldsNeeded []string  `json:"fields_needed,omitempty"`
	InvoiceDate  string    `json:"invoice_date,omitempty"`
	DueDate      string    `json:"due_date,omitempty"`
}

// RuleResult is the outcome of a single rule group.
type RuleResult struct {
	Rule     Rule    `json:"rule"`
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// NewRuleResult starts a passing result for rule.
func NewRuleResult(rule Rule) RuleResult {
	return RuleResult{Rule: rule, Valid: true, Errors: []Issue{}, Warnings: []Issue{}}
}

func (r *RuleResult) AddError(issue Issue) {
	r.Valid = false
	r.Errors = append(r.Errors, issue)
}

func (r *RuleResult) AddWarning(issue Issue) {
	r.Warnings = append(r.Warnings, issue)
}

// Report aggregates the five rule results.
type Report struct {
	IsValid     bool         `json:"is_valid"`
	Errors      []Issue      `json:"errors"`
	Warnings    []Issue      `json:"warnings"`
	Validations []RuleResult `json:"validations"`
}

// warningsOnlyWhenValid lists rules whose warnings are dropped when the rule fails.
var warningsOnlyWhenValid = map[Rule]bool{
	RuleTotals: true,
	RuleTax:    true,
}

// Aggregate builds the report from rule results in the order given.
func Aggregate(results ...RuleResult) Report {
	report := Report{
		IsValid:     true,
		Errors:      []Issue{},
		Warnings:    []Issue{},
		Validations: make([]RuleResult, 0, len(results)),
	}
	for _, result := range results {
		report.Validations = append(report.Validations, result)
		if !result.Valid {
			report.IsValid = false
			report.Errors = append(report.Errors, result.Errors...)
		}
		if result.Valid || !warningsOnlyWhenValid[result.Rule] {
			report.Warnings = append(report.Warnings, result.Warnings...)
		}
	}
	return report
}

// HasError reports whether the report carries an error of kind.
func (r Report) HasError(kind IssueKind) bool {
	for _, issue := range r.Errors {
		if issue.Type == kind {
			return true
		}
	}
	return false
}

// HasWarning reports whether the report carries a warning of kind.
func (r Report) HasWarning(kind IssueKind) bool {
	for _, issue := range r.Warnings {
		if issue.Type == kind {
			return true
		}
	}
	return false
}
