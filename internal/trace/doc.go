// Package trace records what the lowering pipeline is doing.
//
// Spans and instant events are emitted to a Tracer that travels in a
// context.Context. The driver opens driver and pass spans, EmitModule opens a
// module span per run, the function emitter one span per emitted function,
// and node-level points are emitted only at the debug level.
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "lower", 0)
//	defer span.End("")
//
// Storage is either a stream (events written as they happen), a ring buffer
// (last N events kept for a dump after a failure) or both. Streams are
// rendered as text, NDJSON or the Chrome trace-event format.
package trace
