package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/docflow/internal/clock"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	obscontext "github.com/smallbiznis/docflow/internal/observability/context"
	"github.com/smallbiznis/docflow/internal/observability/logger"
	"github.com/smallbiznis/docflow/internal/observability/metrics"
	"github.com/smallbiznis/docflow/internal/observability/tracing"
	validationdomain "github.com/smallbiznis/docflow/internal/validation/domain"
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

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    documentdomain.Repository
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    documentdomain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func New(p Params) validationdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("validation.service"),
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
		tracer:  otel.Tracer("docflow/validation"),
	}
}

// Validate evaluates the document against its current line items and writes
// the report under validation_results. Rule violations are report data; only
// persistence failures return an error.
func (s *Service) Validate(ctx context.Context, doc *documentdomain.Document) (validationdomain.Report, error) {
	if _, ok := tenantctx.TenantID(ctx); !ok {
		ctx = tenantctx.WithTenantID(ctx, doc.TenantID)
	}
	ctx = obscontext.WithDocumentID(ctx, doc.IDString())
	ctx, span := s.tracer.Start(ctx, "validation.Validate")
	defer span.End()

	lines, err := s.repo.ListLineItems(ctx, s.db, doc.ID)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "load line items")
		return validationdomain.Report{}, fmt.Errorf("load line items: %w", err)
	}

	now := s.clock.Now().UTC()
	report := evaluate(doc.StructuredData(), lines, now)

	data := make(datatypes.JSONMap, len(doc.ProcessedData)+2)
	for k, v := range doc.ProcessedData {
		data[k] = v
	}
	data[documentdomain.FieldValidationResults] = report
	data[documentdomain.FieldValidatedAt] = now.Format(time.RFC3339)

	updated := *doc
	updated.ProcessedData = data
	if err := s.repo.UpdateProcessedData(ctx, s.db, &updated); err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "persist report")
		return validationdomain.Report{}, fmt.Errorf("persist validation report: %w", err)
	}
	*doc = updated

	s.record(ctx, report)
	span.SetAttributes(
		attribute.Bool("is_valid", report.IsValid),
		attribute.Int("error_count", len(report.Errors)),
		attribute.Int("warning_count", len(report.Warnings)),
	)
	logger.WithContext(ctx, s.log).Info("invoice validated",
		zap.Bool("is_valid", report.IsValid),
		zap.Int("errors", len(report.Errors)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Int("line_items", len(lines)),
	)
	return report, nil
}

func (s *Service) record(ctx context.Context, report validationdomain.Report) {
	status := "valid"
	if !report.IsValid {
		status = "invalid"
	}
	s.metrics.RecordValidationRun(ctx, status)
	for _, issue := range report.Errors {
		s.metrics.RecordValidationIssue(ctx, string(issue.Type), "error")
	}
	for _, issue := range report.Warnings {
		s.metrics.RecordValidationIssue(ctx, string(issue.Type), "warning")
	}
}
