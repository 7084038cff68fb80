package tracing

import (
	"context"
	"net/http"

	"github.com/jichu20/sleuth-go/pkg/sys/env"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Option is tracing option.
type Option func(*options)

type options struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	serviceName    string
	sampleRatio    float64
	processors     []tracesdk.SpanProcessor
}

func newOptions(opts []Option) *options {
	o := &options{
		sampleRatio: env.SampleRatio(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// service is the name set with WithServiceName, or the process service
// name at the time of the call.
func (o *options) service() string {
	if o.serviceName != "" {
		return o.serviceName
	}
	return env.ServiceName()
}

// WithPropagators with tracer proagators.
func WithPropagators(propagators propagation.TextMapPropagator) Option {
	return func(opts *options) {
		opts.Propagators = propagators
	}
}

// WithTracerProvider with tracer privoder.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(opts *options) {
		opts.TracerProvider = provider
	}
}

// WithServiceName sets the local service recorded on spans.
func WithServiceName(name string) Option {
	return func(opts *options) {
		opts.serviceName = name
	}
}

// WithSampleRatio sets the ratio of new traces that are sampled.
func WithSampleRatio(ratio float64) Option {
	return func(opts *options) {
		opts.sampleRatio = ratio
	}
}

// WithSpanProcessor registers an extra span processor on the provider.
func WithSpanProcessor(sp tracesdk.SpanProcessor) Option {
	return func(opts *options) {
		opts.processors = append(opts.processors, sp)
	}
}

// NewProvider creates a tracer provider. Spans are never exported;
// only processors passed with WithSpanProcessor see them.
func NewProvider(opts ...Option) *tracesdk.TracerProvider {
	o := newOptions(opts)
	popts := []tracesdk.TracerProviderOption{
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(o.sampleRatio))),
		tracesdk.WithResource(resource.NewSchemaless(
			attribute.String("service.name", o.service()),
		)),
	}
	for _, sp := range o.processors {
		popts = append(popts, tracesdk.WithSpanProcessor(sp))
	}
	return tracesdk.NewTracerProvider(popts...)
}

// SetProvider installs a new tracer provider and the B3 + extra field
// propagator as the process globals.
func SetProvider(opts ...Option) *tracesdk.TracerProvider {
	tp := NewProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(NewPropagator())
	return tp
}

// SpanProvider exposes the span active for a request.
type SpanProvider interface {
	// CurrentSpan returns the active span; ok is false when ctx carries none.
	CurrentSpan(ctx context.Context) (span trace.Span, ok bool)
}

// SpanProviderFunc adapts a function to SpanProvider.
type SpanProviderFunc func(ctx context.Context) (trace.Span, bool)

func (f SpanProviderFunc) CurrentSpan(ctx context.Context) (trace.Span, bool) {
	return f(ctx)
}

// ContextSpanProvider reads the span stored on the context by the tracing
// middlewares.
var ContextSpanProvider SpanProvider = SpanProviderFunc(func(ctx context.Context) (trace.Span, bool) {
	span := trace.SpanFromContext(ctx)
	return span, span.SpanContext().IsValid()
})

// Tracer is otel span tracer
type Tracer struct {
	tracer trace.Tracer
	kind   trace.SpanKind
	opt    *options
}

// NewTracer create tracer instance
func NewTracer(kind trace.SpanKind, opts ...Option) *Tracer {
	o := newOptions(opts)
	tp := o.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	name := "sleuth/server"
	if kind == trace.SpanKindClient {
		name = "sleuth/client"
	}
	return &Tracer{tracer: tp.Tracer(name), kind: kind, opt: o}
}

func (t *Tracer) propagator() propagation.TextMapPropagator {
	if t.opt.Propagators != nil {
		return t.opt.Propagators
	}
	return otel.GetTextMapPropagator()
}

// Start starts a span. Server tracers extract the remote context from
// carrier first; client tracers inject the new span into carrier.
func (t *Tracer) Start(ctx context.Context, operation string, carrier propagation.TextMapCarrier) (context.Context, trace.Span) {
	if t.kind == trace.SpanKindServer && carrier != nil {
		ctx = t.propagator().Extract(ctx, carrier)
	}
	ctx, span := t.tracer.Start(ctx,
		operation,
		trace.WithSpanKind(t.kind),
	)
	span.SetAttributes(attribute.String("local.service", t.opt.service()))
	if t.kind == trace.SpanKindClient && carrier != nil {
		t.propagator().Inject(ctx, carrier)
	}
	return ctx, span
}

// End finish tracing span
func (t *Tracer) End(ctx context.Context, span trace.Span, code int, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("exception", err.Error()))
	} else if code >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(code))
	} else {
		span.SetStatus(codes.Ok, "OK")
	}
	span.SetAttributes(
		attribute.Int("resultStatus", code),
	)
	span.End()
}
