// Package tracez provides a Brave/Zipkin-style distributed tracing core.
//
// A Tracer manufactures, correlates, scopes, and finalizes spans - timed,
// named records of units of work - while propagating trace identity across
// process boundaries. It reconciles an incoming, possibly partial, external
// trace identity (an ExtractedContext) with a local sampling decision,
// maintains a goroutine-local notion of "current span", routes finished
// spans through a pluggable handler chain, and computes a stable local root
// identifier grouping every span descending from a given locally-started
// operation.
//
// Core Components:
//   - Tracer: orchestrates context creation, scoping, and reporting.
//   - TraceContext: the immutable identity of a span.
//   - Span / ScopedSpan: the public recording API, real and no-op.
//   - CurrentTraceContext: the goroutine-local stack of "current" contexts.
//   - FinishedSpanHandler: the ordered pipeline run once per finished span.
//
// Basic Usage:
//
//	tracer := tracez.NewTracer().Build()
//	defer tracer.Close()
//
//	span := tracer.NewTrace()
//	defer span.Finish()
//	span.Tag("user.id", "123")
//
//	scope := tracer.WithSpanInScope(span)
//	defer scope.Close()
//
//	child := tracer.NextSpan()
//	defer child.Finish()
//
// Thread Safety:
//
// Tracer is safe for concurrent use by many goroutines. TraceContext is
// immutable and freely shareable. CurrentTraceContext's stack is
// goroutine-local: a scope pushed on one goroutine is invisible on another.
//
// Spans themselves are NOT thread-safe - do not mutate the same Span from
// multiple goroutines simultaneously; callers are expected to serialize.
//
// Context Propagation:
//
// An upstream ExtractedContext is resolved into a span via NextSpanFrom; an
// existing TraceContext is continued via JoinSpan, NewChild, or ToSpan.
// Child contexts inherit their parent's
// trace id, sampling decision, and local root id.
//
// Resource Cleanup:
//
// Call Tracer.Close() to make every later factory call return a no-op span
// and to stop the id pools' refill goroutines.
package tracez
