package observe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/morezero/components/pkg/config"
)

const logPrefix = "observe:otel"

// OTelTracer records traces as OpenTelemetry spans.
//
// When built with NewOTelTracer it owns a TracerProvider created on Open from its
// configuration: exporter "otlp", "stdout" or "none", endpoint, insecure and
// service_name. NewOTelTracerWith wraps an existing tracer instead.
type OTelTracer struct {
	serviceName string
	exporter    string
	endpoint    string
	insecure    bool
	external    bool

	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewOTelTracer creates a tracer that builds its own provider on Open.
func NewOTelTracer() *OTelTracer {
	return &OTelTracer{
		serviceName: "components",
		exporter:    "none",
		endpoint:    "localhost:4317",
		insecure:    true,
		tracer:      noop.NewTracerProvider().Tracer("components"),
	}
}

// NewOTelTracerWith wraps an existing tracer.
func NewOTelTracerWith(tracer trace.Tracer) *OTelTracer {
	return &OTelTracer{tracer: tracer, external: true}
}

// Configure reads service_name, exporter, endpoint and insecure.
func (t *OTelTracer) Configure(params config.Params) error {
	t.serviceName = params.GetStringWithDefault("service_name", t.serviceName)
	t.exporter = params.GetStringWithDefault("exporter", t.exporter)
	t.endpoint = params.GetStringWithDefault("endpoint", t.endpoint)
	t.insecure = params.GetBoolWithDefault("insecure", t.insecure)
	return nil
}

// IsOpen reports whether the tracer owns a running provider.
func (t *OTelTracer) IsOpen() bool {
	return t.external || t.provider != nil
}

// Open creates the TracerProvider and exporter.
func (t *OTelTracer) Open(ctx context.Context, traceID string) error {
	if t.IsOpen() {
		return nil
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes("",
			attribute.String("service.name", t.serviceName),
		)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}

	switch t.exporter {
	case "otlp":
		exOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.endpoint)}
		if t.insecure {
			exOpts = append(exOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, exOpts...)
		if err != nil {
			return fmt.Errorf("%s - failed to create otlp exporter: %w", logPrefix, err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("%s - failed to create stdout exporter: %w", logPrefix, err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	case "none", "":
	default:
		return fmt.Errorf("%s - unknown trace exporter %q", logPrefix, t.exporter)
	}

	t.provider = sdktrace.NewTracerProvider(opts...)
	t.tracer = t.provider.Tracer(t.serviceName)
	slog.Info(fmt.Sprintf("%s - tracer opened exporter=%s trace_id=%s", logPrefix, t.exporter, traceID))
	return nil
}

// Close flushes and shuts down the provider.
func (t *OTelTracer) Close(ctx context.Context, traceID string) error {
	if t.provider == nil {
		return nil
	}
	err := t.provider.Shutdown(ctx)
	t.provider = nil
	if err != nil {
		return fmt.Errorf("%s - failed to shut down tracer provider: %w", logPrefix, err)
	}
	return nil
}

// Trace records a finished span of the given duration.
func (t *OTelTracer) Trace(ctx context.Context, traceID, component, operation string, duration time.Duration) {
	_, span := t.start(ctx, traceID, component, operation, time.Now().Add(-duration))
	span.End()
}

// Failure records a finished span with err.
func (t *OTelTracer) Failure(ctx context.Context, traceID, component, operation string, err error, duration time.Duration) {
	_, span := t.start(ctx, traceID, component, operation, time.Now().Add(-duration))
	recordFailure(span, err)
	span.End()
}

// BeginTrace starts a span that ends when the returned timing ends.
func (t *OTelTracer) BeginTrace(ctx context.Context, traceID, component, operation string) *TraceTiming {
	_, span := t.start(ctx, traceID, component, operation, time.Now())
	return NewTraceTiming(
		func(time.Duration) { span.End() },
		func(err error, _ time.Duration) {
			recordFailure(span, err)
			span.End()
		},
	)
}

func (t *OTelTracer) start(ctx context.Context, traceID, component, operation string, at time.Time) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, component+"."+operation,
		trace.WithTimestamp(at),
		trace.WithAttributes(
			attribute.String("trace_id", traceID),
			attribute.String("component", component),
			attribute.String("operation", operation),
		),
	)
}

func recordFailure(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Error, "failed")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
