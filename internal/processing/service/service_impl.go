package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	extractiondomain "github.com/smallbiznis/docflow/internal/extraction/domain"
	obscontext "github.com/smallbiznis/docflow/internal/observability/context"
	"github.com/smallbiznis/docflow/internal/observability/logger"
	"github.com/smallbiznis/docflow/internal/observability/tracing"
	processingdomain "github.com/smallbiznis/docflow/internal/processing/domain"
	validationdomain "github.com/smallbiznis/docflow/internal/validation/domain"
	"github.com/smallbiznis/docflow/pkg/db/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       documentdomain.Repository
	Extraction extractiondomain.Service
	Validation validationdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       documentdomain.Repository
	extraction extractiondomain.Service
	validation validationdomain.Service
	tracer     trace.Tracer
}

func New(p Params) processingdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("processing.service"),
		repo:       p.Repo,
		extraction: p.Extraction,
		validation: p.Validation,
		tracer:     otel.Tracer("docflow/processing"),
	}
}

// Run marks the document as processing, extracts it and validates invoices
// that extracted cleanly. Extraction failures are reported on the returned
// document rather than as an error.
func (s *Service) Run(ctx context.Context, documentID snowflake.ID) (*documentdomain.Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, doc)
}

// Retry reprocesses a failed document once.
func (s *Service) Retry(ctx context.Context, documentID snowflake.ID) (*documentdomain.Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.HasFailed() {
		return nil, processingdomain.ErrNotRetryable
	}
	logger.WithContext(ctx, s.log).Info("retrying document", zap.String("document_id", doc.IDString()))
	return s.run(ctx, doc)
}

func (s *Service) Validate(ctx context.Context, documentID snowflake.ID) (validationdomain.Report, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return validationdomain.Report{}, err
	}
	if !doc.IsProcessed() {
		return validationdomain.Report{}, processingdomain.ErrNotProcessed
	}
	return s.validation.Validate(ctx, doc)
}

func (s *Service) Stats(ctx context.Context, userID string) (documentdomain.StatusCounts, error) {
	return s.repo.CountByStatus(ctx, s.db, userID)
}

func (s *Service) ListAttempts(ctx context.Context, documentID snowflake.ID, limit int) ([]documentdomain.ProcessingAttempt, error) {
	if _, err := s.load(ctx, documentID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = processingdomain.DefaultAttemptLimit
	case limit > processingdomain.MaxAttemptLimit:
		limit = processingdomain.MaxAttemptLimit
	}
	return s.repo.ListAttempts(ctx, s.db, documentID, option.WithLimit(limit))
}

func (s *Service) run(ctx context.Context, doc *documentdomain.Document) (*documentdomain.Document, error) {
	ctx = obscontext.WithDocumentID(ctx, doc.IDString())
	ctx, span := s.tracer.Start(ctx, "processing.Run", trace.WithAttributes(
		attribute.String("document_type", string(doc.Type)),
	))
	defer span.End()

	doc.Status = documentdomain.StatusProcessing
	if err := s.repo.UpdateStatus(ctx, s.db, doc); err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "mark processing")
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	if err := s.extraction.Process(ctx, doc); err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "extraction")
		s.markFailed(ctx, doc, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("status", string(doc.Status)))
	if !doc.IsProcessed() || doc.Type != documentdomain.TypeInvoice {
		return doc, nil
	}

	if _, err := s.validation.Validate(ctx, doc); err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "validation")
		return nil, err
	}
	return doc, nil
}

// markFailed releases a document left in processing so Retry can pick it up.
func (s *Service) markFailed(ctx context.Context, doc *documentdomain.Document, cause error) {
	message := cause.Error()
	doc.Status = documentdomain.StatusFailed
	doc.ProcessingError = &message
	if err := s.repo.UpdateStatus(context.WithoutCancel(ctx), s.db, doc); err != nil {
		logger.WithContext(ctx, s.log).Error("failed to mark document failed",
			zap.String("document_id", doc.IDString()),
			zap.Error(err),
		)
	}
}

func (s *Service) load(ctx context.Context, documentID snowflake.ID) (*documentdomain.Document, error) {
	doc, err := s.repo.FindByID(ctx, s.db, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, documentdomain.ErrNotFound
	}
	return doc, nil
}
