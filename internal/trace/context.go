package trace

import "context"

type tracerKey struct{}

type parentKey struct{}

// FromContext returns the tracer attached by WithTracer, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(tracerKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithTracer attaches t to ctx. A nil t attaches Nop.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, tracerKey{}, t)
}

// ParentSpan is the id of the innermost span started with StartSpan on
// ctx, or 0 at the root.
func ParentSpan(ctx context.Context) uint64 {
	if ctx == nil {
		return 0
	}
	id, _ := ctx.Value(parentKey{}).(uint64)
	return id
}

// StartSpan begins a span on ctx's tracer under ctx's parent span. The
// returned context parents later spans to it. A span filtered out by the
// level leaves the parent unchanged, so lowering spans stay attached to the
// nearest emitted compile or driver span.
func StartSpan(ctx context.Context, scope Scope, name string) (*Span, context.Context) {
	parent := ParentSpan(ctx)
	span := Begin(FromContext(ctx), scope, name, parent)
	if id := span.ID(); id != 0 && ctx != nil {
		ctx = context.WithValue(ctx, parentKey{}, id)
	}
	return span, ctx
}
