// Package tracing emits one OpenTelemetry span per job execution. The
// weaver opens a span when it hands a job to a worker and parents it into
// the thread's context, so job bodies and the Wrapper decorator can hang
// child spans off it via Thread.Context. Until Init is called the global
// tracer provider is a no-op, which keeps untraced schedulers free of
// overhead.
package tracing

import (
	"context"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var setupOnce sync.Once

// Init configures the stdout exporter. When outputFile is empty the spans
// go to os.Stdout, otherwise to the named file. The first successful
// initialisation wins; later calls are no-ops.
func Init(serviceName, serviceVersion, outputFile string) error {
	var w io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		w = f
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return err
	}
	InitWithExporter(serviceName, serviceVersion, exporter)
	return nil
}

// InitWithExporter installs a custom SpanExporter, enabling OTLP, Jaeger
// or any other exporter the OpenTelemetry SDK supports.
func InitWithExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) {
	if exporter == nil {
		return
	}
	setupOnce.Do(func() {
		res := resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		)
		otel.SetTracerProvider(sdktrace.NewTracerProvider(
			sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
			sdktrace.WithResource(res),
		))
	})
}

// Span is one job-execution span. The nil *Span is a safe no-op, so
// callers need not guard against disabled tracing.
type Span struct {
	span trace.Span
}

// StartJobSpan opens a span for one execution of the identified job,
// parented into whatever span ctx carries. The returned context carries
// the new span; the weaver exposes it to the job body through
// Thread.Context, where nested StartJobSpan calls pick it up as parent.
func StartJobSpan(ctx context.Context, name, jobID string) (context.Context, *Span) {
	tracer := otel.Tracer("github.com/mirkoboehm/threadweaver")
	ctx, span := tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("job.id", jobID)))
	return ctx, &Span{span: span}
}

// SetJobStatus records the job's terminal status on the span.
func (s *Span) SetJobStatus(status string) {
	if s == nil || s.span == nil {
		return
	}
	s.span.SetAttributes(attribute.String("job.status", status))
}

// End finalises the span. A non-nil err is recorded and sets the error
// status; otherwise the span ends OK.
func (s *Span) End(err error) {
	if s == nil || s.span == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
