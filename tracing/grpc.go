package tracing

import (
	"context"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/jichu20/sleuth-go/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// MetadataCarrier adapts gRPC metadata to a propagation carrier.
type MetadataCarrier metadata.MD

var _ propagation.TextMapCarrier = MetadataCarrier{}

func (mc MetadataCarrier) Get(key string) string {
	vals := metadata.MD(mc).Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (mc MetadataCarrier) Set(key string, value string) {
	metadata.MD(mc).Set(key, value)
}

func (mc MetadataCarrier) Keys() []string {
	keys := make([]string, 0, len(mc))
	for k := range mc {
		keys = append(keys, k)
	}
	return keys
}

// UnaryServerInterceptor starts a server span for every unary call.
func UnaryServerInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	tracer := NewTracer(trace.SpanKindServer, opts...)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (reply interface{}, err error) {
		md, _ := metadata.FromIncomingContext(ctx)
		var span trace.Span
		ctx, span = tracer.Start(ctx, info.FullMethod, MetadataCarrier(md))
		span.SetAttributes(attribute.String("localComponent", "grpc"))
		span.SetAttributes(attribute.String("localInterface", info.FullMethod))
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remoteIP, remotePort := util.ParseAddr(p.Addr.String())
			span.SetAttributes(attribute.String("peer.ip", remoteIP))
			span.SetAttributes(attribute.Int64("peer.port", int64(remotePort)))
		}
		defer func() { tracer.End(ctx, span, errors.Code(err), err) }()

		reply, err = handler(ctx, req)
		return
	}
}

// UnaryClientInterceptor starts a client span for every unary call and
// injects it into the outgoing metadata.
func UnaryClientInterceptor(opts ...Option) grpc.UnaryClientInterceptor {
	tracer := NewTracer(trace.SpanKindClient, opts...)
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) (err error) {
		md, ok := metadata.FromOutgoingContext(ctx)
		if ok {
			md = md.Copy()
		} else {
			md = metadata.MD{}
		}
		var span trace.Span
		ctx, span = tracer.Start(ctx, method, MetadataCarrier(md))
		span.SetAttributes(attribute.String("remoteComponent", "grpc"))
		ctx = metadata.NewOutgoingContext(ctx, md)
		defer func() { tracer.End(ctx, span, errors.Code(err), err) }()

		return invoker(ctx, method, req, reply, cc, callOpts...)
	}
}
