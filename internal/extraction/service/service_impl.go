package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docflow/internal/clock"
	"github.com/smallbiznis/docflow/internal/config"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	extractiondomain "github.com/smallbiznis/docflow/internal/extraction/domain"
	"github.com/smallbiznis/docflow/internal/lock"
	obscontext "github.com/smallbiznis/docflow/internal/observability/context"
	"github.com/smallbiznis/docflow/internal/observability/logger"
	"github.com/smallbiznis/docflow/internal/observability/metrics"
	"github.com/smallbiznis/docflow/internal/observability/tracing"
	pkgdb "github.com/smallbiznis/docflow/pkg/db"
	"github.com/smallbiznis/docflow/pkg/tenantctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxAttemptInsertRetries = 3

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          documentdomain.Repository
	Content       extractiondomain.ContentProvider
	Understanding extractiondomain.Understanding
	Locker        lock.Locker
	Config        *config.ExtractionConfigHolder
	Clock         clock.Clock
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          documentdomain.Repository
	content       extractiondomain.ContentProvider
	understanding extractiondomain.Understanding
	locker        lock.Locker
	cfg           *config.ExtractionConfigHolder
	clock         clock.Clock
	metrics       *metrics.Metrics
	tracer        trace.Tracer
}

func New(p Params) extractiondomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("extraction.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		content:       p.Content,
		understanding: p.Understanding,
		locker:        p.Locker,
		cfg:           p.Config,
		clock:         p.Clock,
		metrics:       p.Metrics,
		tracer:        otel.Tracer("docflow/extraction"),
	}
}

func (s *Service) Process(ctx context.Context, doc *documentdomain.Document) error {
	if _, ok := tenantctx.TenantID(ctx); !ok {
		ctx = tenantctx.WithTenantID(ctx, doc.TenantID)
	}
	ctx = obscontext.WithDocumentID(ctx, doc.IDString())
	ctx, span := s.tracer.Start(ctx, "extraction.Process", trace.WithAttributes(
		tracing.SafeAttributes(attribute.String("document_type", string(doc.Type)))...,
	))
	defer span.End()

	cfg := s.cfg.Get()
	started := time.Now()

	attempt, err := s.createAttempt(ctx, doc.ID)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "attempt creation failed")
		return fmt.Errorf("create processing attempt: %w", err)
	}
	span.SetAttributes(attribute.Int("attempt_number", attempt.AttemptNumber))

	record, err := s.extract(ctx, doc, cfg)
	if err == nil {
		err = s.succeed(ctx, doc, attempt, record, time.Since(started))
		if err == nil {
			return nil
		}
		err = fmt.Errorf("persist extraction result: %w", err)
	}

	span.RecordError(tracing.SafeError(err))
	span.SetStatus(codes.Error, "extraction failed")
	if failErr := s.fail(ctx, doc, attempt, err, time.Since(started)); failErr != nil {
		return fmt.Errorf("record extraction failure: %w", failErr)
	}
	return nil
}

// createAttempt numbers the attempt max+1 under a per-document lock. The
// unique index on (document_id, attempt_number) catches writers that bypass
// the lock.
func (s *Service) createAttempt(ctx context.Context, documentID snowflake.ID) (*documentdomain.ProcessingAttempt, error) {
	unlock, err := s.locker.Acquire(ctx, "attempt:"+documentID.String())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.WithContext(ctx, s.log).Warn("release attempt lock", zap.Error(err))
		}
	}()

	for try := 0; try < maxAttemptInsertRetries; try++ {
		attempt := &documentdomain.ProcessingAttempt{
			ID:         s.genID.Generate(),
			DocumentID: documentID,
			Status:     documentdomain.AttemptPending,
		}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			max, err := s.repo.MaxAttemptNumber(ctx, tx, documentID)
			if err != nil {
				return err
			}
			attempt.AttemptNumber = max + 1
			return s.repo.InsertAttempt(ctx, tx, attempt)
		})
		if err == nil {
			return attempt, nil
		}
		if !pkgdb.IsDuplicateKeyErr(err) {
			return nil, err
		}
	}
	return nil, extractiondomain.ErrAttemptConflict
}

func (s *Service) extract(ctx context.Context, doc *documentdomain.Document, cfg config.ExtractionConfig) (map[string]any, error) {
	content, err := s.fetch(ctx, doc.FilePath, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("fetch document content: %w", err)
	}

	var record map[string]any
	if doc.Type == documentdomain.TypeInvoice {
		text, err := s.complete(ctx, content, mimeTypeOf(doc), cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("document understanding request failed: %w", err)
		}
		record = parseRecord(text)
	} else {
		record = genericRecord(content, cfg.PreviewLength)
	}

	if err := accept(record, doc.Type, cfg); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) fetch(ctx context.Context, path string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.content.Fetch(ctx, path)
}

func (s *Service) complete(ctx context.Context, content []byte, mimeType string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.understanding.Complete(ctx, invoicePrompt, content, mimeType)
}

func (s *Service) succeed(ctx context.Context, doc *documentdomain.Document, attempt *documentdomain.ProcessingAttempt, record map[string]any, elapsed time.Duration) error {
	now := s.clock.Now().UTC()
	merged := mergeRecord(doc.ProcessedData, record)
	merged[documentdomain.FieldValidatedAt] = now.Format(time.RFC3339)

	updated := *doc
	updated.ProcessedData = datatypes.JSONMap(merged)
	updated.Status = documentdomain.StatusProcessed
	updated.ProcessedAt = &now
	updated.ProcessingError = nil

	elapsedMs := elapsed.Milliseconds()
	completed := *attempt
	completed.Status = documentdomain.AttemptSuccess
	completed.ProcessingTimeMs = &elapsedMs
	completed.ResultData = datatypes.JSONMap(record)

	var lineCount int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateProcessedData(ctx, tx, &updated); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, tx, &updated); err != nil {
			return err
		}
		if raw, ok := record[documentdomain.FieldLineItems].([]any); ok {
			items := lineItemsFrom(raw, s.genID)
			lineCount = len(items)
			if err := s.repo.ReplaceLineItems(ctx, tx, doc.ID, items); err != nil {
				return err
			}
		}
		return s.repo.CompleteAttempt(ctx, tx, &completed)
	})
	if err != nil {
		return err
	}

	*doc = updated
	*attempt = completed
	s.metrics.RecordExtractionAttempt(ctx, string(documentdomain.AttemptSuccess), string(doc.Type))
	s.metrics.ObserveExtractionDuration(ctx, string(documentdomain.AttemptSuccess), elapsed)
	logger.WithContext(ctx, s.log).Info("document processed",
		zap.Int("attempt_number", attempt.AttemptNumber),
		zap.Int("line_items", lineCount),
		zap.Int64("processing_time_ms", elapsedMs),
	)
	return nil
}

func (s *Service) fail(ctx context.Context, doc *documentdomain.Document, attempt *documentdomain.ProcessingAttempt, cause error, elapsed time.Duration) error {
	message := cause.Error()
	elapsedMs := elapsed.Milliseconds()

	doc.Status = documentdomain.StatusFailed
	doc.ProcessingError = &message

	attempt.Status = documentdomain.AttemptFailed
	attempt.ErrorMessage = &message
	attempt.ProcessingTimeMs = &elapsedMs
	attempt.ResultData = nil

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateStatus(ctx, tx, doc); err != nil {
			return err
		}
		return s.repo.CompleteAttempt(ctx, tx, attempt)
	})

	s.metrics.RecordExtractionAttempt(ctx, string(documentdomain.AttemptFailed), string(doc.Type))
	s.metrics.ObserveExtractionDuration(ctx, string(documentdomain.AttemptFailed), elapsed)
	log := logger.WithContext(ctx, s.log)
	fields := []zap.Field{
		zap.Int("attempt_number", attempt.AttemptNumber),
		zap.Int64("processing_time_ms", elapsedMs),
		zap.Error(cause),
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		fields = append(fields, zap.Bool("timeout", true))
	}
	log.Error("document processing failed", fields...)
	return err
}

func mimeTypeOf(doc *documentdomain.Document) string {
	if doc.MimeType != "" {
		return doc.MimeType
	}
	return "application/pdf"
}
