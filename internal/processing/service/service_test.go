package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/docflow/internal/document/documenttest"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	documentrepo "github.com/smallbiznis/docflow/internal/document/repository"
	processingdomain "github.com/smallbiznis/docflow/internal/processing/domain"
	validationdomain "github.com/smallbiznis/docflow/internal/validation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockExtraction struct {
	mock.Mock
}

func (m *mockExtraction) Process(ctx context.Context, doc *documentdomain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

type mockValidation struct {
	mock.Mock
}

func (m *mockValidation) Validate(ctx context.Context, doc *documentdomain.Document) (validationdomain.Report, error) {
	args := m.Called(ctx, doc)
	return args.Get(0).(validationdomain.Report), args.Error(1)
}

func markProcessed(args mock.Arguments) {
	doc := args.Get(1).(*documentdomain.Document)
	now := time.Now().UTC()
	doc.Status = documentdomain.StatusProcessed
	doc.ProcessedAt = &now
	doc.ProcessingError = nil
}

func markFailed(args mock.Arguments) {
	doc := args.Get(1).(*documentdomain.Document)
	message := "content unavailable"
	doc.Status = documentdomain.StatusFailed
	doc.ProcessingError = &message
}

type fixture struct {
	db         *gorm.DB
	repo       documentdomain.Repository
	extraction *mockExtraction
	validation *mockValidation
	svc        processingdomain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := documenttest.NewDB(t)
	repo := documentrepo.Provide()
	extraction := &mockExtraction{}
	validation := &mockValidation{}
	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Repo:       repo,
		Extraction: extraction,
		Validation: validation,
	})
	t.Cleanup(func() {
		extraction.AssertExpectations(t)
		validation.AssertExpectations(t)
	})
	return fixture{db: db, repo: repo, extraction: extraction, validation: validation, svc: svc}
}

func TestRunValidatesProcessedInvoice(t *testing.T) {
	f := newFixture(t)
	doc := documenttest.SeedDocument(t, f.db, documenttest.NewNode(t), documentdomain.TypeInvoice, nil)

	f.extraction.On("Process", mock.Anything, mock.MatchedBy(func(d *documentdomain.Document) bool {
		return d.ID == doc.ID && d.Status == documentdomain.StatusProcessing
	})).Run(markProcessed).Return(nil).Once()
	f.validation.On("Validate", mock.Anything, mock.Anything).Return(validationdomain.Report{IsValid: true}, nil).Once()

	got, err := f.svc.Run(documenttest.Context(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, documentdomain.StatusProcessed, got.Status)
}

func TestRunMarksDocumentProcessingBeforeExtraction(t *testing.T) {
	f := newFixture(t)
	doc := documenttest.SeedDocument(t, f.db, documenttest.NewNode(t), documentdomain.TypeReceipt, nil)

	f.extraction.On("Process", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored, err := f.repo.FindByID(documenttest.Context(), f.db, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, documentdomain.StatusProcessing, stored.Status)
	}).Return(nil).Once()

	_, err := f.svc.Run(documenttest.Context(), doc.ID)
	require.NoError(t, err)
}

func TestRunSkipsValidationForOtherTypes(t *testing.T) {
	f := newFixture(t)
	doc := documenttest.SeedDocument(t, f.db, documenttest.NewNode(t), documentdomain.TypeReceipt, nil)

	f.extraction.On("Process", mock.Anything, mock.Anything).Run(markProcessed).Return(nil).Once()

	got, err := f.svc.Run(documenttest.Context(), doc.ID)
	require.NoError(t, err)
	assert.True(t, got.IsProcessed())
	f.validation.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}

func TestRunSkipsValidationWhenExtractionFailed(t *testing.T) {
	f := newFixture(t)
	doc := documenttest.SeedDocument(t, f.db, documenttest.NewNode(t), documentdomain.TypeInvoice, nil)

	f.extraction.On("Process", mock.Anything, mock.Anything).Run(markFailed).Return(nil).Once()

	got, err := f.svc.Run(documenttest.Context(), doc.ID)
	require.NoError(t, err)
	assert.True(t, got.HasFailed())
	f.validation.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}

func TestRunPropagatesInfrastructureError(t *testing.T) {
	f := newFixture(t)
	doc := documenttest.SeedDocument(t, f.db, documenttest.NewNode(t), documentdomain.TypeInvoice, nil)
	boom := errors.New("attempt insert failed")

	f.extraction.On("Process", mock.Anything, mock.Anything).Return(boom).Once()

	_, err := f.svc.Run(documenttest.Context(), doc.ID)
	assert.ErrorIs(t, err, boom)

	stored, err := f.repo.FindByID(documenttest.Context(), f.db, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, documentdomain.StatusFailed, stored.Status)
	require.NotNil(t, stored.ProcessingError)
	assert.Equal(t, "attempt insert failed", *stored.ProcessingError)

	f.extraction.On("Process", mock.Anything, mock.Anything).Run(markProcessed).Return(nil).Once()
	f.validation.On("Validate", mock.Anything, mock.Anything).Return(validationdomain.Report{IsValid: true}, nil).Once()

	got, err := f.svc.Retry(documenttest.Context(), doc.ID)
	require.NoError(t, err)
	assert.True(t, got.IsProcessed())
}

func TestRunReleasesDocumentWhenRequestCanceled(t *testing.T) {
	f := newFixture(t)
	doc := documenttest.SeedDocument(t, f.db, documenttest.NewNode(t), documentdomain.TypeReceipt, nil)

	ctx, cancel := context.WithCancel(documenttest.Context())
	f.extraction.On("Process", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		cancel()
	}).Return(context.Canceled).Once()

	_, err := f.svc.Run(ctx, doc.ID)
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := f.repo.FindByID(documenttest.Context(), f.db, doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasFailed())
}

func TestRunUnknownDocument(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Run(documenttest.Context(), documenttest.NewNode(t).Generate())
	assert.ErrorIs(t, err, documentdomain.ErrNotFound)
}

func TestRunRequiresTenant(t *testing.T) {
	f := newFixture(t)
	doc := documenttest.SeedDocument(t, f.db, documenttest.NewNode(t), documentdomain.TypeInvoice, nil)

	_, err := f.svc.Run(context.Background(), doc.ID)
	assert.ErrorIs(t, err, documentdomain.ErrTenantRequired)
}

func TestRetryOnlyFailedDocuments(t *testing.T) {
	f := newFixture(t)
	node := documenttest.NewNode(t)
	pending := documenttest.SeedDocument(t, f.db, node, documentdomain.TypeInvoice, nil)

	_, err := f.svc.Retry(documenttest.Context(), pending.ID)
	assert.ErrorIs(t, err, processingdomain.ErrNotRetryable)

	failed := documenttest.SeedDocument(t, f.db, node, documentdomain.TypeReceipt, nil)
	failed.Status = documentdomain.StatusFailed
	require.NoError(t, f.repo.UpdateStatus(documenttest.Context(), f.db, failed))

	f.extraction.On("Process", mock.Anything, mock.Anything).Run(markProcessed).Return(nil).Once()

	got, err := f.svc.Retry(documenttest.Context(), failed.ID)
	require.NoError(t, err)
	assert.True(t, got.IsProcessed())
}

func TestValidateRequiresProcessedDocument(t *testing.T) {
	f := newFixture(t)
	doc := documenttest.SeedDocument(t, f.db, documenttest.NewNode(t), documentdomain.TypeInvoice, nil)

	_, err := f.svc.Validate(documenttest.Context(), doc.ID)
	assert.ErrorIs(t, err, processingdomain.ErrNotProcessed)

	now := time.Now().UTC()
	doc.Status = documentdomain.StatusProcessed
	doc.ProcessedAt = &now
	require.NoError(t, f.repo.UpdateStatus(documenttest.Context(), f.db, doc))

	f.validation.On("Validate", mock.Anything, mock.Anything).Return(validationdomain.Report{IsValid: false}, nil).Once()

	report, err := f.svc.Validate(documenttest.Context(), doc.ID)
	require.NoError(t, err)
	assert.False(t, report.IsValid)
}

func TestListAttemptsClampsLimit(t *testing.T) {
	f := newFixture(t)
	node := documenttest.NewNode(t)
	doc := documenttest.SeedDocument(t, f.db, node, documentdomain.TypeInvoice, nil)

	ctx := documenttest.Context()
	for i := 1; i <= 3; i++ {
		require.NoError(t, f.repo.InsertAttempt(ctx, f.db, &documentdomain.ProcessingAttempt{
			ID:            node.Generate(),
			TenantID:      documenttest.TenantID,
			DocumentID:    doc.ID,
			AttemptNumber: i,
			Status:        documentdomain.AttemptPending,
		}))
	}

	attempts, err := f.svc.ListAttempts(ctx, doc.ID, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, 3, attempts[0].AttemptNumber)

	attempts, err = f.svc.ListAttempts(ctx, doc.ID, 1)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	_, err = f.svc.ListAttempts(ctx, node.Generate(), 10)
	assert.ErrorIs(t, err, documentdomain.ErrNotFound)
}

func TestStatsCountsByStatus(t *testing.T) {
	f := newFixture(t)
	node := documenttest.NewNode(t)
	documenttest.SeedDocument(t, f.db, node, documentdomain.TypeInvoice, nil)
	failed := documenttest.SeedDocument(t, f.db, node, documentdomain.TypeInvoice, nil)
	failed.Status = documentdomain.StatusFailed
	require.NoError(t, f.repo.UpdateStatus(documenttest.Context(), f.db, failed))

	counts, err := f.svc.Stats(documenttest.Context(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Pending)
	assert.Equal(t, int64(1), counts.Failed)
	assert.Equal(t, int64(2), counts.Total)
}
