package tracez

import (
	"time"

	"github.com/openzipkin/zipkin-go/model"
)

// SpanCustomizer exposes only the mutation operations on a span - no
// lifecycle control, no identity access. It is the capability handed to
// code that customizes whatever span happens to be current, without
// knowing whether it created that span or even whether it is recording.
type SpanCustomizer interface {
	SetName(name string) SpanCustomizer
	Tag(key, value string) SpanCustomizer
	Annotate(value string) SpanCustomizer
}

// NoopSpanCustomizer is the singleton returned by Tracer.CurrentSpanCustomizer
// when there is no current span, the current span is not recording, or the
// tracer is globally noop. All mutations are discarded.
var NoopSpanCustomizer SpanCustomizer = noopSpanCustomizer{}

type noopSpanCustomizer struct{}

func (n noopSpanCustomizer) SetName(string) SpanCustomizer   { return n }
func (n noopSpanCustomizer) Tag(string, string) SpanCustomizer { return n }
func (n noopSpanCustomizer) Annotate(string) SpanCustomizer   { return n }

// Span is the public recording API returned by every Tracer factory method.
// A Span always has an identity (Context never returns a zero value); it
// may or may not be recording. Mutation methods on a no-op span are
// accepted and discarded, never panic.
type Span interface {
	// Context returns this span's immutable identity. Preserved even on a
	// no-op span, so callers can always propagate it further.
	Context() TraceContext
	// IsNoop reports whether this span discards all mutations.
	IsNoop() bool

	// Start marks the span as started at the current clock time. StartAt
	// takes an explicit timestamp. Neither call is required - a span
	// defaults to starting at the moment its factory method ran - but
	// scenarios that need an explicit timeline (loopback pairs, replay)
	// call one of these before any other mutation.
	Start() Span
	StartAt(at time.Time) Span

	SetName(name string) Span
	Kind(kind model.Kind) Span
	Tag(key, value string) Span
	Annotate(value string) Span
	RemoteEndpoint(endpoint *model.Endpoint) Span
	// Error attaches a recorded failure; it does not itself finish the span.
	Error(err error) Span

	// Customizer narrows this span to the mutation-only capability.
	Customizer() SpanCustomizer

	// Finish freezes the span at the current clock time and runs the
	// finished-span handler chain. Safe to call more than once; every call
	// after the first is a no-op.
	Finish()
	// FinishAt is Finish with an explicit timestamp.
	FinishAt(at time.Time)
}

// noopSpan is returned whenever effectiveSampled(context) is false. It
// carries a real TraceContext (so round-tripping through Context() works)
// but every mutation and Finish is discarded.
type noopSpan struct {
	ctx TraceContext
}

func (n noopSpan) Context() TraceContext                      { return n.ctx }
func (n noopSpan) IsNoop() bool                                { return true }
func (n noopSpan) Start() Span                                  { return n }
func (n noopSpan) StartAt(time.Time) Span                       { return n }
func (n noopSpan) SetName(string) Span                         { return n }
func (n noopSpan) Kind(model.Kind) Span                         { return n }
func (n noopSpan) Tag(string, string) Span                     { return n }
func (n noopSpan) Annotate(string) Span                         { return n }
func (n noopSpan) RemoteEndpoint(*model.Endpoint) Span          { return n }
func (n noopSpan) Error(error) Span                             { return n }
func (n noopSpan) Customizer() SpanCustomizer                   { return NoopSpanCustomizer }
func (n noopSpan) Finish()                                      {}
func (n noopSpan) FinishAt(time.Time)                           {}

// realSpan is backed by a MutableSpan owned by the tracer's recorder.
// Finish hands the frozen accumulator back to the owning tracer, which runs
// the handler chain and reports it - the span itself never touches the
// reporter directly.
type realSpan struct {
	tracer *Tracer
	ctx    TraceContext
	mut    *MutableSpan
}

func (s *realSpan) Context() TraceContext { return s.ctx }
func (s *realSpan) IsNoop() bool          { return false }

func (s *realSpan) Start() Span {
	return s.StartAt(s.tracer.now())
}

func (s *realSpan) StartAt(at time.Time) Span {
	s.mut.setStart(at)
	return s
}

func (s *realSpan) SetName(name string) Span {
	s.mut.setName(name)
	return s
}

func (s *realSpan) Kind(kind model.Kind) Span {
	s.mut.setKind(kind)
	return s
}

func (s *realSpan) Tag(key, value string) Span {
	s.mut.tag(key, value)
	return s
}

func (s *realSpan) Annotate(value string) Span {
	s.mut.annotate(s.tracer.now(), value)
	return s
}

func (s *realSpan) RemoteEndpoint(endpoint *model.Endpoint) Span {
	s.mut.remoteEndpoint(endpoint)
	return s
}

func (s *realSpan) Error(err error) Span {
	s.mut.setError(err)
	return s
}

func (s *realSpan) Customizer() SpanCustomizer {
	return &spanCustomizerAdapter{span: s}
}

func (s *realSpan) Finish() {
	s.FinishAt(s.tracer.now())
}

func (s *realSpan) FinishAt(at time.Time) {
	if !s.mut.freeze(at) {
		return
	}
	s.tracer.finishSpan(s.ctx, s.mut)
}

// spanCustomizerAdapter narrows any Span down to SpanCustomizer. A separate
// type rather than Span implementing SpanCustomizer directly, since Go
// cannot give one method two different covariant return types the way a
// Java class can bridge Span.tag(..):Span and SpanCustomizer.tag(..):SpanCustomizer.
type spanCustomizerAdapter struct {
	span Span
}

func (a *spanCustomizerAdapter) SetName(name string) SpanCustomizer {
	a.span.SetName(name)
	return a
}

func (a *spanCustomizerAdapter) Tag(key, value string) SpanCustomizer {
	a.span.Tag(key, value)
	return a
}

func (a *spanCustomizerAdapter) Annotate(value string) SpanCustomizer {
	a.span.Annotate(value)
	return a
}

// ScopedSpan is the handle returned by StartScopedSpan/StartScopedSpanWithParent:
// a span that is already current for the duration of its lifetime. Finish
// both finalizes the span and closes its scope, on every exit path.
type ScopedSpan interface {
	Context() TraceContext
	IsNoop() bool
	Tag(key, value string) ScopedSpan
	Annotate(value string) ScopedSpan
	Error(err error) ScopedSpan
	Finish()
}

type scopedSpan struct {
	span  Span
	scope Scope
}

func (s *scopedSpan) Context() TraceContext { return s.span.Context() }
func (s *scopedSpan) IsNoop() bool          { return s.span.IsNoop() }

func (s *scopedSpan) Tag(key, value string) ScopedSpan {
	s.span.Tag(key, value)
	return s
}

func (s *scopedSpan) Annotate(value string) ScopedSpan {
	s.span.Annotate(value)
	return s
}

func (s *scopedSpan) Error(err error) ScopedSpan {
	s.span.Error(err)
	return s
}

// Finish finalizes the underlying span, then restores the previously
// current context. Both happen even if the underlying Finish runs via a
// deferred call after a panic unwinds past this point.
func (s *scopedSpan) Finish() {
	s.span.Finish()
	s.scope.Close()
}
