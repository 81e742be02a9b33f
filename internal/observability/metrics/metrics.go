package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	extractionAttempts metric.Int64Counter
	extractionDuration metric.Int64Histogram
	validationRuns     metric.Int64Counter
	validationIssues   metric.Int64Counter
	ingestedDocuments  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "docflow"
	}
	meter := provider.Meter(name)

	extractionAttempts, err := meter.Int64Counter("docflow_extraction_attempts_total")
	if err != nil {
		return nil, err
	}
	extractionDuration, err := meter.Int64Histogram("docflow_extraction_duration_ms", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	validationRuns, err := meter.Int64Counter("docflow_validation_runs_total")
	if err != nil {
		return nil, err
	}
	validationIssues, err := meter.Int64Counter("docflow_validation_issues_total")
	if err != nil {
		return nil, err
	}
	ingestedDocuments, err := meter.Int64Counter("docflow_ingested_documents_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		extractionAttempts: extractionAttempts,
		extractionDuration: extractionDuration,
		validationRuns:     validationRuns,
		validationIssues:   validationIssues,
		ingestedDocuments:  ingestedDocuments,
	}, nil
}

// RecordExtractionAttempt increments extraction attempt counts.
func (m *Metrics) RecordExtractionAttempt(ctx context.Context, status, documentType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("status", strings.TrimSpace(status)),
		attribute.String("document_type", strings.TrimSpace(documentType)),
	)
	m.extractionAttempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// ObserveExtractionDuration records how long a single extraction run took.
func (m *Metrics) ObserveExtractionDuration(ctx context.Context, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.extractionDuration.Record(ctx, elapsed.Milliseconds(), metric.WithAttributes(attrs...))
}

// RecordValidationRun increments validation run counts.
func (m *Metrics) RecordValidationRun(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.validationRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordValidationIssue counts an error or warning by kind.
func (m *Metrics) RecordValidationIssue(ctx context.Context, kind, severity string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("severity", strings.TrimSpace(severity)),
	)
	m.validationIssues.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordIngestedDocument counts documents created by ingestion.
func (m *Metrics) RecordIngestedDocument(ctx context.Context, source, documentType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("document_type", strings.TrimSpace(documentType)),
	)
	m.ingestedDocuments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"status":        {},
	"document_type": {},
	"kind":          {},
	"severity":      {},
	"source":        {},
	"reason":        {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
