package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/docflow/internal/clock"
	"github.com/smallbiznis/docflow/internal/document/documenttest"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	documentrepo "github.com/smallbiznis/docflow/internal/document/repository"
	validationdomain "github.com/smallbiznis/docflow/internal/validation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidatePersistsReport(t *testing.T) {
	db := documenttest.NewDB(t)
	node := documenttest.NewNode(t)
	repo := documentrepo.Provide()
	ctx := documenttest.Context()

	doc := documenttest.SeedDocument(t, db, node, documentdomain.TypeInvoice, map[string]any{
		"vendor_name":    "Acme",
		"invoice_number": "INV-1",
		"total_amount":   100.0,
		"notes":          "keep me",
	})
	require.NoError(t, repo.ReplaceLineItems(ctx, db, doc.ID, []documentdomain.LineItem{
		{ID: node.Generate(), Description: "A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(90), TotalAmount: decimal.NewFromInt(90), TaxRate: decimal.NewFromInt(20), TaxAmount: decimal.NewFromInt(18)},
		{ID: node.Generate(), Description: "B", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(20), TotalAmount: decimal.NewFromInt(20), TaxRate: decimal.NewFromInt(20), TaxAmount: decimal.NewFromInt(4)},
	}))

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Repo:  repo,
		Clock: clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
	})

	report, err := svc.Validate(ctx, doc)
	require.NoError(t, err)
	assert.False(t, report.IsValid)
	assert.True(t, report.HasError(validationdomain.KindTotalMismatch))
	assert.Len(t, report.Validations, 5)

	stored, err := repo.FindByID(ctx, db, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "keep me", stored.ProcessedData["notes"])
	assert.Equal(t, "2024-06-01T00:00:00Z", stored.ProcessedData[documentdomain.FieldValidatedAt])

	results, ok := stored.ProcessedData[documentdomain.FieldValidationResults].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, results["is_valid"])
	assert.Len(t, results["validations"], 5)
	errs, ok := results["errors"].([]any)
	require.True(t, ok)
	first := errs[0].(map[string]any)
	assert.Equal(t, "total_mismatch", first["type"])
	assert.InDelta(t, 132.0, first["calculated"], 1e-9)
}

func TestValidateOverwritesPreviousReport(t *testing.T) {
	db := documenttest.NewDB(t)
	node := documenttest.NewNode(t)
	repo := documentrepo.Provide()
	ctx := documenttest.Context()

	doc := documenttest.SeedDocument(t, db, node, documentdomain.TypeInvoice, map[string]any{
		"vendor_name":    "Acme",
		"invoice_number": "INV-1",
		"total_amount":   "10",
		"subtotal":       "10",
		"validation_results": map[string]any{
			"is_valid": false,
			"errors":   []any{map[string]any{"type": "stale"}},
		},
	})
	require.NoError(t, repo.ReplaceLineItems(ctx, db, doc.ID, []documentdomain.LineItem{
		{ID: node.Generate(), Description: "A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10), TotalAmount: decimal.NewFromInt(10)},
	}))

	svc := New(Params{DB: db, Log: zap.NewNop(), Repo: repo, Clock: clock.NewSystemClock()})
	report, err := svc.Validate(ctx, doc)
	require.NoError(t, err)
	assert.True(t, report.IsValid)

	stored, err := repo.FindByID(ctx, db, doc.ID)
	require.NoError(t, err)
	results := stored.ProcessedData[documentdomain.FieldValidationResults].(map[string]any)
	assert.Equal(t, true, results["is_valid"])
	assert.Empty(t, results["errors"])
}
