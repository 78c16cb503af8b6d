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

// Metrics exposes lab workflow instruments.
type Metrics struct {
	basketAssignments  metric.Int64Counter
	basketReturns      metric.Int64Counter
	basketTransitions  metric.Int64Counter
	purgeNotices       metric.Int64Counter
	notificationErrors metric.Int64Counter
	usageRowsSkipped   metric.Int64Counter
	quizResults        metric.Int64Counter
	formSubmissions    metric.Int64Counter
	activeUsers        metric.Int64Gauge
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
		name = "labdesk"
	}
	meter := provider.Meter(name)

	basketAssignments, err := meter.Int64Counter("labdesk_basket_assignments_total")
	if err != nil {
		return nil, err
	}
	basketReturns, err := meter.Int64Counter("labdesk_basket_returns_total")
	if err != nil {
		return nil, err
	}
	basketTransitions, err := meter.Int64Counter("labdesk_basket_status_changes_total")
	if err != nil {
		return nil, err
	}
	purgeNotices, err := meter.Int64Counter("labdesk_purge_notices_total")
	if err != nil {
		return nil, err
	}
	notificationErrors, err := meter.Int64Counter("labdesk_notification_failures_total")
	if err != nil {
		return nil, err
	}
	usageRowsSkipped, err := meter.Int64Counter("labdesk_usage_rows_skipped_total")
	if err != nil {
		return nil, err
	}
	quizResults, err := meter.Int64Counter("labdesk_quiz_results_total")
	if err != nil {
		return nil, err
	}
	formSubmissions, err := meter.Int64Counter("labdesk_form_submissions_total")
	if err != nil {
		return nil, err
	}
	activeUsers, err := meter.Int64Gauge("labdesk_active_users")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		basketAssignments:  basketAssignments,
		basketReturns:      basketReturns,
		basketTransitions:  basketTransitions,
		purgeNotices:       purgeNotices,
		notificationErrors: notificationErrors,
		usageRowsSkipped:   usageRowsSkipped,
		quizResults:        quizResults,
		formSubmissions:    formSubmissions,
		activeUsers:        activeUsers,
	}, nil
}

// RecordBasketAssignment counts assignments by zone and outcome.
func (m *Metrics) RecordBasketAssignment(ctx context.Context, zone, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("zone", strings.TrimSpace(zone)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.basketAssignments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordBasketReturn(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.basketReturns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStatusChange counts reconciler transitions of the active flag.
func (m *Metrics) RecordStatusChange(ctx context.Context, to bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.Bool("active", to))
	m.basketTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPurgeNotice(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.purgeNotices.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNotificationFailure counts undelivered messages by template.
func (m *Metrics) RecordNotificationFailure(ctx context.Context, template string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("template", strings.TrimSpace(template)))
	m.notificationErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordUsageRowsSkipped(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.usageRowsSkipped.Add(ctx, int64(count))
}

func (m *Metrics) RecordQuizResult(ctx context.Context, passed bool) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.Bool("passed", passed))
	m.quizResults.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFormSubmission counts intake submissions by form and outcome.
func (m *Metrics) RecordFormSubmission(ctx context.Context, form, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("form", strings.TrimSpace(form)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.formSubmissions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordActiveUsers(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.activeUsers.Record(ctx, int64(count))
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
	"zone":        {},
	"outcome":     {},
	"active":      {},
	"template":    {},
	"route":       {},
	"status_code": {},
	"reason":      {},
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
