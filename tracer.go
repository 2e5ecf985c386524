package tracez

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/openzipkin/zipkin-go/model"
	zipkinreporter "github.com/openzipkin/zipkin-go/reporter"
	"github.com/zoobzio/clockz"
)

// TracerBuilder accumulates configuration before producing an immutable
// Tracer, in the style of cheap-copy config views and the Options structs
// elsewhere in the retrieved pack: every setter returns the receiver so
// calls chain, and Build validates and normalizes the result once.
type TracerBuilder struct {
	localServiceName  string
	localEndpoint     *model.Endpoint
	sampler           Sampler
	propagation       PropagationFactory
	current           CurrentTraceContext
	traceID128Bit     bool
	supportsJoin      bool
	clock             clockz.Clock
	reporter          zipkinreporter.Reporter
	handlers          []FinishedSpanHandler
	alwaysReportSpans bool
}

// NewTracer starts a TracerBuilder with the defaults spec'd for every
// configuration option: unknown service name, always-sample, join
// supported, the real clock.
func NewTracer() *TracerBuilder {
	return &TracerBuilder{
		localServiceName: "unknown",
		supportsJoin:     true,
	}
}

func (b *TracerBuilder) LocalServiceName(name string) *TracerBuilder {
	b.localServiceName = name
	return b
}

func (b *TracerBuilder) LocalEndpoint(endpoint *model.Endpoint) *TracerBuilder {
	b.localEndpoint = endpoint
	return b
}

func (b *TracerBuilder) Sampler(s Sampler) *TracerBuilder {
	b.sampler = s
	return b
}

func (b *TracerBuilder) Propagation(p PropagationFactory) *TracerBuilder {
	b.propagation = p
	return b
}

func (b *TracerBuilder) CurrentTraceContext(c CurrentTraceContext) *TracerBuilder {
	b.current = c
	return b
}

func (b *TracerBuilder) TraceID128Bit(v bool) *TracerBuilder {
	b.traceID128Bit = v
	return b
}

func (b *TracerBuilder) SupportsJoin(v bool) *TracerBuilder {
	b.supportsJoin = v
	return b
}

func (b *TracerBuilder) Clock(c clockz.Clock) *TracerBuilder {
	b.clock = c
	return b
}

func (b *TracerBuilder) Reporter(r zipkinreporter.Reporter) *TracerBuilder {
	b.reporter = r
	return b
}

// AddFinishedSpanHandler appends a handler ahead of the automatically
// installed logging/zipkin handler that always runs last.
func (b *TracerBuilder) AddFinishedSpanHandler(h FinishedSpanHandler) *TracerBuilder {
	b.handlers = append(b.handlers, h)
	return b
}

func (b *TracerBuilder) AlwaysReportSpans(v bool) *TracerBuilder {
	b.alwaysReportSpans = v
	return b
}

// Build validates and normalizes the configuration and returns an
// immutable Tracer. propagation.Requires128BitTraceID forces
// TraceID128Bit; propagation.SupportsJoin() == false forces SupportsJoin
// false, exactly as the builder's configuration notes require.
func (b *TracerBuilder) Build() *Tracer {
	sampler := b.sampler
	if sampler == nil {
		sampler = AlwaysSample
	}
	propagation := b.propagation
	if propagation == nil {
		propagation = DefaultPropagationFactory()
	}
	current := b.current
	if current == nil {
		current = NewGoroutineCurrentTraceContext()
	}
	clock := b.clock
	if clock == nil {
		clock = clockz.RealClock
	}

	traceID128Bit := b.traceID128Bit || propagation.Requires128BitTraceID()
	supportsJoin := b.supportsJoin && propagation.SupportsJoin()

	handlers := append([]FinishedSpanHandler(nil), b.handlers...)
	if b.reporter != nil {
		handlers = append(handlers, NewZipkinConverterHandler(b.localServiceName, b.reporter, b.alwaysReportSpans))
	} else {
		handlers = append(handlers, NewLoggingFinishedSpanHandler(b.localServiceName, nil))
	}

	poolSize := runtime.NumCPU() * 100
	noop := &atomic.Bool{}

	return &Tracer{
		localServiceName:  b.localServiceName,
		localEndpoint:     b.localEndpoint,
		sampler:           sampler,
		propagation:       propagation,
		current:           current,
		traceID128Bit:     traceID128Bit,
		supportsJoin:      supportsJoin,
		clock:             clock,
		reporter:          b.reporter,
		handlers:          handlers,
		alwaysReportSpans: b.alwaysReportSpans,
		noop:              noop,
		recorder:          newRecorder(),
		traceIDPool:       newIDPool(poolSize),
		spanIDPool:        newIDPool(poolSize),
	}
}

// Tracer orchestrates TraceContext creation, current-context scoping, and
// finished-span reporting. Immutable after construction except for the
// shared noop flag and the goroutine-local current-context stack; safe for
// concurrent use by many goroutines.
//
//nolint:govet // field order kept in builder/declaration order, not packed.
type Tracer struct {
	localServiceName  string
	localEndpoint     *model.Endpoint
	sampler           Sampler
	propagation       PropagationFactory
	current           CurrentTraceContext
	traceID128Bit     bool
	supportsJoin      bool
	clock             clockz.Clock
	reporter          zipkinreporter.Reporter
	handlers          []FinishedSpanHandler
	alwaysReportSpans bool
	noop              *atomic.Bool

	recorder    *recorder
	traceIDPool *idPool
	spanIDPool  *idPool
}

func (t *Tracer) now() time.Time { return t.clock.Now() }

func (t *Tracer) newSpanID() model.ID { return model.ID(t.spanIDPool.get()) }

func (t *Tracer) newTraceID() model.TraceID {
	low := t.traceIDPool.get()
	var high uint64
	if t.traceID128Bit {
		high = t.traceIDPool.get()
	}
	return model.TraceID{High: high, Low: low}
}

// resolveSampling fills in Sampled when it is still unknown and applies
// SampledLocal from any handler declaring AlwaysSampleLocal, independent of
// the remote decision.
func (t *Tracer) resolveSampling(ctx TraceContext) TraceContext {
	if ctx.Sampled == nil {
		var decision bool
		if ctx.Debug {
			decision = true
		} else {
			decision = t.sampler.IsSampled(ctx.TraceID.Low)
		}
		ctx.Sampled = &decision
	} else if ctx.Debug {
		yes := true
		ctx.Sampled = &yes
	}
	if t.anyHandlerAlwaysSamplesLocal() {
		ctx.SampledLocal = true
	}
	return ctx
}

// anyHandlerAlwaysSamplesLocal reports whether any installed handler forces
// local recording regardless of the remote sampling decision.
func (t *Tracer) anyHandlerAlwaysSamplesLocal() bool {
	for _, h := range t.handlers {
		if h.AlwaysSampleLocal() {
			return true
		}
	}
	return false
}

// toSpanOrNoop is the single choke point where every factory method turns
// a resolved TraceContext into a Span: the tracer-global noop flag and
// effective sampling decide real-vs-no-op, and a context already tracked
// by the recorder (re-wrapped via ToSpan/CurrentSpan) reattaches to its
// existing accumulator instead of minting a duplicate one. A context that
// never passed through resolveSampling (built directly via
// NewTraceContext, or deserialized off the wire) still records if any
// handler declares AlwaysSampleLocal - effectiveSampled alone only sees
// that flag when it was already folded into the context.
func (t *Tracer) toSpanOrNoop(ctx TraceContext) Span {
	if t.noop.Load() || !(ctx.EffectiveSampled() || t.anyHandlerAlwaysSamplesLocal()) {
		return noopSpan{ctx: ctx}
	}
	if mut, ok := t.recorder.get(ctx); ok {
		return &realSpan{tracer: t, ctx: ctx, mut: mut}
	}
	mut := t.recorder.start(ctx, t.now(), t.localEndpoint)
	return &realSpan{tracer: t, ctx: ctx, mut: mut}
}

// NewTrace builds a root TraceContext: fresh trace and span ids, no
// parent, localRootId set to the new span id (Property 1).
func (t *Tracer) NewTrace() Span {
	spanID := t.newSpanID()
	ctx := TraceContext{
		TraceID:     t.newTraceID(),
		SpanID:      spanID,
		LocalRootID: spanID,
	}
	ctx = t.resolveSampling(ctx)
	ctx = t.propagation.Decorate(ctx)
	return t.toSpanOrNoop(ctx)
}

// JoinSpan reuses parent's span id for the server side of an RPC pairing.
// Falls back to NewChild when the propagation factory does not support
// join (Property 4).
func (t *Tracer) JoinSpan(parent TraceContext) Span {
	if !t.supportsJoin {
		return t.NewChild(parent)
	}
	ctx := parent.clone()
	ctx.Shared = true
	ctx.LocalRootID = ctx.SpanID
	ctx = t.resolveSampling(ctx)
	ctx = t.propagation.Decorate(ctx)
	return t.toSpanOrNoop(ctx)
}

// NewChild mints a fresh span id as a child of parent, inheriting trace
// id, sampling, and debug, and the local root (Property 2).
func (t *Tracer) NewChild(parent TraceContext) Span {
	return t.newChildMerging(parent, nil)
}

func (t *Tracer) newChildMerging(parent TraceContext, extraFromExtracted []any) Span {
	child := parent.withParent(t.newSpanID())
	if extraFromExtracted != nil {
		child.Extra = mergeExtra(parent.Extra, extraFromExtracted)
	}
	child = t.resolveSampling(child)
	child = t.propagation.Decorate(child)
	return t.toSpanOrNoop(child)
}

// NextSpan continues the current context if one is in scope, otherwise
// starts a new trace.
func (t *Tracer) NextSpan() Span {
	if current := t.current.Get(); current != nil {
		return t.NewChild(*current)
	}
	return t.NewTrace()
}

// NextSpanFrom applies a four-row resolution table to an upstream
// ExtractedContext, consulting the current context where the table calls
// for it: empty flags with no current context starts a new trace; empty
// flags with a current context mints a child merging in any extracted
// extra fields; a trace-id-only context starts a fresh span under that
// trace id; a full context becomes a child of it.
func (t *Tracer) NextSpanFrom(extracted ExtractedContext) Span {
	switch extracted.Kind {
	case ExtractedTraceIDOnly:
		return t.newSpanFromTraceIDOnly(extracted)
	case ExtractedFull:
		return t.newChildFromFull(extracted)
	default: // ExtractedEmpty
		if current := t.current.Get(); current != nil {
			return t.newChildMerging(*current, extracted.Extra)
		}
		return t.newTraceFromFlags(extracted)
	}
}

func (t *Tracer) newTraceFromFlags(extracted ExtractedContext) Span {
	spanID := t.newSpanID()
	ctx := TraceContext{
		TraceID:     t.newTraceID(),
		SpanID:      spanID,
		LocalRootID: spanID,
		Sampled:     extracted.Sampled,
		Debug:       extracted.Debug,
		Extra:       extracted.Extra,
	}
	ctx = t.resolveSampling(ctx)
	ctx = t.propagation.Decorate(ctx)
	return t.toSpanOrNoop(ctx)
}

func (t *Tracer) newSpanFromTraceIDOnly(extracted ExtractedContext) Span {
	spanID := t.newSpanID()
	ctx := TraceContext{
		TraceID:     extracted.TraceID,
		SpanID:      spanID,
		LocalRootID: spanID,
		Sampled:     extracted.Sampled,
		Debug:       extracted.Debug,
		Extra:       extracted.Extra,
	}
	ctx = t.resolveSampling(ctx)
	ctx = t.propagation.Decorate(ctx)
	return t.toSpanOrNoop(ctx)
}

func (t *Tracer) newChildFromFull(extracted ExtractedContext) Span {
	parent := TraceContext{
		TraceID:  extracted.TraceID,
		SpanID:   extracted.SpanID,
		ParentID: extracted.ParentID,
		Sampled:  extracted.Sampled,
		Debug:    extracted.Debug,
		Shared:   extracted.Shared,
		Extra:    extracted.Extra,
	}
	return t.NewChild(parent)
}

// ToSpan wraps an existing context without minting new identity. The
// result records iff ctx.EffectiveSampled(), or any installed handler
// declares AlwaysSampleLocal regardless of what ctx itself carries;
// otherwise it is a no-op whose Context() still round-trips to ctx.
func (t *Tracer) ToSpan(ctx TraceContext) Span {
	return t.toSpanOrNoop(ctx)
}

// WithSpanInScope pushes span's context (or a cleared scope for a nil
// span) as current, returning a handle that restores the prior entry on
// Close.
func (t *Tracer) WithSpanInScope(span Span) Scope {
	if span == nil {
		return t.current.NewScope(nil)
	}
	ctx := span.Context()
	return t.current.NewScope(&ctx)
}

// StartScopedSpan is shorthand for NextSpan + Start + WithSpanInScope.
func (t *Tracer) StartScopedSpan(name string) ScopedSpan {
	return t.startScoped(name, nil)
}

// StartScopedSpanWithParent is shorthand for NewChild(*parent) + Start +
// WithSpanInScope, or NextSpan()+Start+WithSpanInScope when parent is nil.
func (t *Tracer) StartScopedSpanWithParent(name string, parent *TraceContext) ScopedSpan {
	return t.startScoped(name, parent)
}

func (t *Tracer) startScoped(name string, parent *TraceContext) ScopedSpan {
	var span Span
	if parent != nil {
		span = t.NewChild(*parent)
	} else {
		span = t.NextSpan()
	}
	span.SetName(name).Start()
	scope := t.WithSpanInScope(span)
	return &scopedSpan{span: span, scope: scope}
}

// CurrentSpan returns the Span for the top of the current-context stack,
// or nil when nothing is current.
func (t *Tracer) CurrentSpan() Span {
	current := t.current.Get()
	if current == nil {
		return nil
	}
	return t.ToSpan(*current)
}

// CurrentSpanCustomizer is NoopSpanCustomizer whenever there is no current
// span, the current span is not recording, or the tracer is globally noop.
func (t *Tracer) CurrentSpanCustomizer() SpanCustomizer {
	if t.noop.Load() {
		return NoopSpanCustomizer
	}
	span := t.CurrentSpan()
	if span == nil || span.IsNoop() {
		return NoopSpanCustomizer
	}
	return span.Customizer()
}

// WithSampler returns a view of this tracer sharing all state except the
// sampler (cheap copy).
func (t *Tracer) WithSampler(s Sampler) *Tracer {
	cp := *t
	cp.sampler = s
	return &cp
}

// finishSpan runs the finished-span handler chain in order; a veto (false
// return, or a recovered panic - HandlerFailure) marks the span vetoed so
// any later emitting handler suppresses its send, and stops the chain
// unless alwaysReportSpans is set, in which case every handler still runs
// but emission stays suppressed.
func (t *Tracer) finishSpan(ctx TraceContext, mut *MutableSpan) {
	defer t.recorder.remove(ctx)
	for _, h := range t.handlers {
		if !t.safeHandle(h, ctx, mut) {
			mut.markVetoed()
			if !t.alwaysReportSpans {
				return
			}
		}
	}
}

func (t *Tracer) safeHandle(h FinishedSpanHandler, ctx TraceContext, mut *MutableSpan) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return h.Handle(ctx, mut)
}

// Close marks the tracer noop: every subsequent factory call returns a
// no-op span, and the id pools stop refilling.
func (t *Tracer) Close() {
	t.noop.Store(true)
	t.traceIDPool.close()
	t.spanIDPool.close()
}

// String renders Tracer in one of three forms depending on whether it is
// globally noop, has a current span, or neither.
func (t *Tracer) String() string {
	var handlerStr string
	if len(t.handlers) > 0 {
		handlerStr = t.handlers[len(t.handlers)-1].String()
	}
	if t.noop.Load() {
		return fmt.Sprintf("Tracer{noop=true, finishedSpanHandler=%s}", handlerStr)
	}
	if current := t.current.Get(); current != nil {
		return fmt.Sprintf("Tracer{currentSpan=%016x/%016x, finishedSpanHandler=%s}",
			current.TraceID.Low, uint64(current.SpanID), handlerStr)
	}
	return fmt.Sprintf("Tracer{finishedSpanHandler=%s}", handlerStr)
}
