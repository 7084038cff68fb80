package tracing

import (
	"context"
	"encoding/binary"
	"strings"

	"github.com/jichu20/sleuth-go/pkg/meta"
	"github.com/openzipkin/zipkin-go/model"
	"github.com/openzipkin/zipkin-go/propagation/b3"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// NewPropagator returns the propagator shared by every service: B3 multi
// header span context plus the X-Trace-Id extra field.
func NewPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(B3{}, ExtraFields(meta.XTraceID))
}

// B3 propagates span context with zipkin B3 headers.
type B3 struct{}

var _ propagation.TextMapPropagator = B3{}

// Inject set cross-cutting concerns from the Context into the carrier.
func (B3) Inject(ctx context.Context, c propagation.TextMapCarrier) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	c.Set(b3.TraceID, sc.TraceID().String())
	c.Set(b3.SpanID, sc.SpanID().String())
	if sc.IsSampled() {
		c.Set(b3.Sampled, "1")
	} else {
		c.Set(b3.Sampled, "0")
	}
}

// Extract reads cross-cutting concerns from the carrier into a Context.
func (B3) Extract(ctx context.Context, c propagation.TextMapCarrier) context.Context {
	var (
		zsc *model.SpanContext
		err error
	)
	if single := c.Get(b3.Context); single != "" {
		zsc, err = b3.ParseSingleHeader(single)
	} else {
		zsc, err = b3.ParseHeaders(
			c.Get(b3.TraceID),
			c.Get(b3.SpanID),
			c.Get(b3.ParentSpanID),
			c.Get(b3.Sampled),
			c.Get(b3.Flags),
		)
	}
	if err != nil || zsc == nil || zsc.TraceID == (model.TraceID{}) {
		return ctx
	}

	var scc trace.SpanContextConfig
	binary.BigEndian.PutUint64(scc.TraceID[:8], zsc.TraceID.High)
	binary.BigEndian.PutUint64(scc.TraceID[8:], zsc.TraceID.Low)
	binary.BigEndian.PutUint64(scc.SpanID[:], uint64(zsc.ID))
	if zsc.Debug || (zsc.Sampled != nil && *zsc.Sampled) {
		scc.TraceFlags = trace.FlagsSampled
	}
	scc.Remote = true
	sc := trace.NewSpanContext(scc)
	if !sc.IsValid() {
		return ctx
	}
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

// Fields returns the keys who's values are set with Inject.
func (B3) Fields() []string {
	return []string{b3.TraceID, b3.SpanID, b3.Sampled}
}

type extraFields struct {
	fields []string
}

// ExtraFields propagates the named context fields as raw headers, the way
// the same header names arrive on the next hop.
func ExtraFields(fields ...string) propagation.TextMapPropagator {
	return extraFields{fields: fields}
}

func (p extraFields) Inject(ctx context.Context, c propagation.TextMapCarrier) {
	for _, field := range p.fields {
		if v := meta.Extra(ctx, field); v != "" {
			c.Set(field, v)
		}
	}
}

func (p extraFields) Extract(ctx context.Context, c propagation.TextMapCarrier) context.Context {
	for _, field := range p.fields {
		if v := strings.TrimSpace(c.Get(field)); v != "" {
			ctx = meta.WithExtra(ctx, field, v)
		}
	}
	return ctx
}

func (p extraFields) Fields() []string {
	return append([]string(nil), p.fields...)
}
