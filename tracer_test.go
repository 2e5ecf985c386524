package tracez

import (
	"fmt"
	"testing"
	"time"

	"github.com/openzipkin/zipkin-go/model"
)

func hasExtra(extra []any, want any) bool {
	for _, e := range extra {
		if e == want {
			return true
		}
	}
	return false
}

// TestNewTraceRootInvariant covers Property 1.
func TestNewTraceRootInvariant(t *testing.T) {
	tracer := NewTracer().Build()
	defer tracer.Close()

	span := tracer.NewTrace()
	ctx := span.Context()
	if ctx.ParentID != nil {
		t.Error("expected a root span to have no parent")
	}
	if ctx.LocalRootID != ctx.SpanID {
		t.Errorf("localRootId = %v, want spanId %v", ctx.LocalRootID, ctx.SpanID)
	}
}

// TestNewChildInvariant covers Property 2, at the Tracer level (context.go's
// withParent is covered at the unit level already).
func TestNewChildInvariant(t *testing.T) {
	tracer := NewTracer().Build()
	defer tracer.Close()

	parent := tracer.NewTrace()
	child := tracer.NewChild(parent.Context())

	p, c := parent.Context(), child.Context()
	if c.TraceID != p.TraceID {
		t.Errorf("child traceId = %v, want %v", c.TraceID, p.TraceID)
	}
	if c.ParentID == nil || *c.ParentID != p.SpanID {
		t.Errorf("child parentId = %v, want %v", c.ParentID, p.SpanID)
	}
	if c.Shared {
		t.Error("expected child.Shared == false")
	}
	if c.LocalRootID != p.LocalRootID {
		t.Errorf("child.LocalRootID = %v, want %v", c.LocalRootID, p.LocalRootID)
	}
}

// TestJoinSpanInvariant covers Property 3.
func TestJoinSpanInvariant(t *testing.T) {
	tracer := NewTracer().Build()
	defer tracer.Close()

	root := tracer.NewTrace()
	p := root.Context()

	joined := tracer.JoinSpan(p)
	j := joined.Context()

	if j.TraceID != p.TraceID || j.SpanID != p.SpanID {
		t.Errorf("joined identity = %v, want to reuse %v", j, p)
	}
	if !j.Shared {
		t.Error("expected joinSpan to set Shared = true")
	}
	if j.Sampled == nil {
		t.Error("expected joinSpan to resolve Sampled")
	}
	if j.LocalRootID != p.SpanID {
		t.Errorf("joined localRootId = %v, want %v", j.LocalRootID, p.SpanID)
	}
}

// TestJoinSpanFallsBackToChildWhenUnsupported covers Property 4 and
// Scenario S2.
func TestJoinSpanFallsBackToChildWhenUnsupported(t *testing.T) {
	tracer := NewTracer().SupportsJoin(false).Build()
	defer tracer.Close()

	p := tracer.NewTrace().Context()
	child := tracer.JoinSpan(p).Context()

	if child.Shared {
		t.Error("expected Shared == false when join is unsupported")
	}
	if child.ParentID == nil || *child.ParentID != p.SpanID {
		t.Errorf("expected child of p, got parentId %v", child.ParentID)
	}
}

// TestSamplingCoercion covers Property 5: join/newChild/nextSpan all resolve
// an unknown sampling decision to a concrete one.
func TestSamplingCoercion(t *testing.T) {
	tracer := NewTracer().Build()
	defer tracer.Close()

	unknown := TraceContext{TraceID: model.TraceID{Low: 7}, SpanID: model.ID(8), LocalRootID: model.ID(8)}

	if got := tracer.JoinSpan(unknown).Context(); got.Sampled == nil {
		t.Error("joinSpan left Sampled unknown")
	}
	if got := tracer.NewChild(unknown).Context(); got.Sampled == nil {
		t.Error("newChild left Sampled unknown")
	}
	scope := tracer.WithSpanInScope(tracer.ToSpan(unknown))
	if got := tracer.NextSpan().Context(); got.Sampled == nil {
		t.Error("nextSpan left Sampled unknown")
	}
	scope.Close()
}

// TestScopeLIFOThroughTracer covers Property 6 at the Tracer level.
func TestScopeLIFOThroughTracer(t *testing.T) {
	tracer := NewTracer().Build()
	defer tracer.Close()

	before := tracer.CurrentSpan()
	if before != nil {
		t.Fatal("expected no current span at start")
	}

	outer := tracer.NewTrace()
	outerScope := tracer.WithSpanInScope(outer)
	inner := tracer.NewChild(outer.Context())
	innerScope := tracer.WithSpanInScope(inner)

	innerScope.Close()
	if got := tracer.CurrentSpan(); got == nil || got.Context().SpanID != outer.Context().SpanID {
		t.Error("expected outer span current after closing inner scope")
	}
	outerScope.Close()
	if got := tracer.CurrentSpan(); got != nil {
		t.Error("expected no current span after closing outer scope")
	}
}

// TestClearScopeThroughTracer covers Property 7.
func TestClearScopeThroughTracer(t *testing.T) {
	tracer := NewTracer().Build()
	defer tracer.Close()

	outer := tracer.NewTrace()
	outerScope := tracer.WithSpanInScope(outer)
	defer outerScope.Close()

	clearScope := tracer.WithSpanInScope(nil)
	if tracer.CurrentSpan() != nil {
		t.Error("expected no current span inside a cleared scope")
	}
	if tracer.CurrentSpanCustomizer() != NoopSpanCustomizer {
		t.Error("expected the noop customizer inside a cleared scope")
	}
	clearScope.Close()
}

// TestNoopIdempotence covers Property 8 and Scenario S3.
func TestNoopIdempotence(t *testing.T) {
	tracer := NewTracer().Build()
	defer tracer.Close()

	never := tracer.WithSampler(NeverSample)
	span := never.NewTrace()
	if !span.IsNoop() {
		t.Fatal("expected a no-op span under NeverSample")
	}
	ctx := span.Context()
	span.SetName("x").Tag("k", "v")
	if got := span.Context(); got.TraceID != ctx.TraceID || got.SpanID != ctx.SpanID {
		t.Error("expected context identity to round trip through a no-op span")
	}

	scope := never.WithSpanInScope(span)
	if never.CurrentSpanCustomizer() != NoopSpanCustomizer {
		t.Error("expected the singleton noop customizer under a no-op current span")
	}
	scope.Close()
}

// TestExtraMergeUnderCurrentParent covers Property 10.
func TestExtraMergeUnderCurrentParent(t *testing.T) {
	tracer := NewTracer().Build()
	defer tracer.Close()

	parentCtx := TraceContext{TraceID: model.TraceID{Low: 1}, SpanID: model.ID(2), LocalRootID: model.ID(2), Extra: []any{"a"}}
	scope := tracer.WithSpanInScope(tracer.ToSpan(parentCtx))
	defer scope.Close()

	extracted := ExtractedContext{Kind: ExtractedEmpty, Extra: []any{"a", "b"}}
	child := tracer.NextSpanFrom(extracted).Context()

	if len(child.Extra) != 2 || child.Extra[0] != "a" || child.Extra[1] != "b" {
		t.Errorf("expected merged extra [a b], got %v", child.Extra)
	}
}

// TestLocalRootPartition covers Property 11 and Scenario S4.
func TestLocalRootPartition(t *testing.T) {
	tracer := NewTracer().Build()
	defer tracer.Close()

	server1 := tracer.NewTrace()
	scope1 := tracer.WithSpanInScope(server1)
	processor1 := tracer.NextSpan()
	client1 := tracer.NextSpan()
	scope1.Close()

	server2 := tracer.NewTrace()
	scope2 := tracer.WithSpanInScope(server2)
	processor2 := tracer.NextSpan()
	client2 := tracer.NextSpan()
	client3 := tracer.NextSpan()
	scope2.Close()

	root1 := server1.Context().LocalRootID
	for _, s := range []Span{server1, processor1, client1} {
		if s.Context().LocalRootID != root1 {
			t.Errorf("expected tree 1 span to share localRootId %v, got %v", root1, s.Context().LocalRootID)
		}
	}

	root2 := server2.Context().LocalRootID
	for _, s := range []Span{server2, processor2, client2, client3} {
		if s.Context().LocalRootID != root2 {
			t.Errorf("expected tree 2 span to share localRootId %v, got %v", root2, s.Context().LocalRootID)
		}
	}

	if root1 == root2 {
		t.Error("expected two independently rooted trees to have disjoint localRootIds")
	}
}

// TestLoopbackScenario covers Scenario S1: a client/server pair sharing a
// span id, reported as two distinct records distinguished by kind and shared.
func TestLoopbackScenario(t *testing.T) {
	reporter := &fakeReporter{}
	tracer := NewTracer().Reporter(reporter).AlwaysReportSpans(true).Build()
	defer tracer.Close()

	t1 := time.Unix(1, 0)
	t2 := time.Unix(2, 0)
	t3 := time.Unix(3, 0)
	t4 := time.Unix(4, 0)

	client := tracer.NewTrace()
	client.Kind(model.Client).StartAt(t1)

	server := tracer.JoinSpan(client.Context())
	server.Kind(model.Server).StartAt(t2)

	server.FinishAt(t3)
	client.FinishAt(t4)

	if len(reporter.sent) != 2 {
		t.Fatalf("expected 2 emitted records, got %d", len(reporter.sent))
	}
	first, second := reporter.sent[0], reporter.sent[1]

	if first.ID != second.ID {
		t.Errorf("expected both records to share span id, got %v and %v", first.ID, second.ID)
	}
	if first.Kind != model.Server || !first.Shared || first.Duration != time.Second {
		t.Errorf("unexpected server record: %+v", first)
	}
	if second.Kind != model.Client || second.Shared || second.Duration != 3*time.Second {
		t.Errorf("unexpected client record: %+v", second)
	}
}

// TestExtraFieldPropagation covers Scenario S5: an attached extra field
// survives join, child, nextSpan-merge, and scoped-child creation.
func TestExtraFieldPropagation(t *testing.T) {
	tracer := NewTracer().Build()
	defer tracer.Close()

	const field = "service=napkin"
	ctx := TraceContext{TraceID: model.TraceID{Low: 1}, SpanID: model.ID(5), LocalRootID: model.ID(5), Extra: []any{field}}

	if got := tracer.JoinSpan(ctx).Context(); !hasExtra(got.Extra, field) {
		t.Error("joinSpan dropped the extra field")
	}
	if got := tracer.NewChild(ctx).Context(); !hasExtra(got.Extra, field) {
		t.Error("newChild dropped the extra field")
	}

	scope := tracer.WithSpanInScope(tracer.ToSpan(ctx))
	if got := tracer.NextSpan().Context(); !hasExtra(got.Extra, field) {
		t.Error("nextSpan dropped the extra field")
	}
	scope.Close()

	scoped := tracer.StartScopedSpanWithParent("op", &ctx)
	if !hasExtra(scoped.Context().Extra, field) {
		t.Error("startScopedSpanWithParent dropped the extra field")
	}
	scoped.Finish()
}

// TestToStringWithScope covers Scenario S6.
func TestToStringWithScope(t *testing.T) {
	tracer := NewTracer().Build()
	defer tracer.Close()

	sampled := true
	ctx := TraceContext{TraceID: model.TraceID{Low: 1}, SpanID: model.ID(10), LocalRootID: model.ID(10), Sampled: &sampled}
	scope := tracer.WithSpanInScope(tracer.ToSpan(ctx))
	defer scope.Close()

	want := fmt.Sprintf("Tracer{currentSpan=%016x/%016x, finishedSpanHandler=LoggingReporter{name=unknown}}", uint64(1), uint64(10))
	if got := tracer.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestToStringNoop(t *testing.T) {
	tracer := NewTracer().Build()
	tracer.Close()

	want := "Tracer{noop=true, finishedSpanHandler=LoggingReporter{name=unknown}}"
	if got := tracer.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestToStringIdle(t *testing.T) {
	tracer := NewTracer().Build()
	defer tracer.Close()

	want := "Tracer{finishedSpanHandler=LoggingReporter{name=unknown}}"
	if got := tracer.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestCloseMakesFutureSpansNoop(t *testing.T) {
	tracer := NewTracer().Build()
	tracer.Close()

	if !tracer.NewTrace().IsNoop() {
		t.Error("expected spans created after Close to be no-op")
	}
}
