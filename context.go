package tracez

import (
	"fmt"

	"github.com/openzipkin/zipkin-go/model"
)

// TraceContext is the immutable identity of a span: trace/span/parent ids,
// the tri-state sampling decision, and the flags that travel with it across
// process boundaries. TraceContext has no equality method of its own, and
// because Extra is a slice it cannot be compared with ==. TraceContext is
// safe to share freely across goroutines because nothing about it is ever
// mutated after construction.
//
//nolint:govet // field order kept in spec declaration order, not packed.
type TraceContext struct {
	TraceID model.TraceID
	// ParentID is nil for a root span.
	ParentID *model.ID
	SpanID   model.ID

	// Sampled is nil when the decision has not yet been made ("unknown" in
	// spec terms), non-nil once resolved.
	Sampled *bool
	// SampledLocal records the span even when Sampled != true.
	SampledLocal bool
	// Debug forces Sampled=true and is itself propagated.
	Debug bool
	// Shared means this context was produced by JoinSpan: the span id was
	// supplied by an upstream peer rather than generated locally.
	Shared bool
	// LocalRootID is the id of the topmost span created in this process for
	// this causal chain. Zero iff this context never passed through a Tracer.
	LocalRootID model.ID

	// Extra is an ordered, append-only list of opaque fields attached by
	// propagation plugins. Equality for merge dedup is by reference, not by
	// any notion of field name.
	Extra []any
}

// NewTraceContext constructs a root-shaped TraceContext from explicit
// identifiers, surfacing the InvalidIdentifier failures (zero trace/span
// id, or parentID == spanID) that every Tracer factory method otherwise
// avoids by construction via its own id pools. Builder-time validation is
// the one place these errors reach caller code.
func NewTraceContext(traceID model.TraceID, spanID model.ID, parentID *model.ID) (TraceContext, error) {
	ctx := TraceContext{TraceID: traceID, SpanID: spanID, ParentID: parentID, LocalRootID: spanID}
	if err := validate(ctx); err != nil {
		return TraceContext{}, err
	}
	return ctx, nil
}

// EffectiveSampled resolves whether this context should produce a recording
// span: sampled, or sampled-local, or debug. AlwaysSampleLocal handlers are
// folded in by the Tracer before this is consulted.
func (c TraceContext) EffectiveSampled() bool {
	if c.Debug || c.SampledLocal {
		return true
	}
	return c.Sampled != nil && *c.Sampled
}

// clone returns a value copy with its own Extra backing array, so appending
// to the copy's Extra never mutates the original - extra is append-only
// within a single context.
func (c TraceContext) clone() TraceContext {
	c2 := c
	if len(c.Extra) > 0 {
		c2.Extra = append([]any(nil), c.Extra...)
	}
	return c2
}

// withParent returns a child context: fresh span id, parent set to the
// receiver's span id, trace id/sampling/debug inherited (NewChild).
func (c TraceContext) withParent(newSpanID model.ID) TraceContext {
	child := c.clone()
	parent := c.SpanID
	child.ParentID = &parent
	child.SpanID = newSpanID
	child.Shared = false
	if c.LocalRootID != 0 {
		child.LocalRootID = c.LocalRootID
	} else {
		child.LocalRootID = newSpanID
	}
	return child
}

// validate enforces the well-formedness of a TraceContext at construction
// time - the one place the tracer surfaces an error to the caller.
func validate(c TraceContext) error {
	if c.TraceID.Empty() {
		return ErrZeroTraceID
	}
	if c.SpanID == 0 {
		return ErrZeroSpanID
	}
	if c.ParentID != nil && *c.ParentID == c.SpanID {
		return ErrParentEqualsSpan
	}
	return nil
}

// mergeExtra concatenates base's extra fields then appends any entries from
// added that are not already present by reference identity, preserving left
// order and then any right-only entries.
func mergeExtra(base, added []any) []any {
	if len(added) == 0 {
		return base
	}
	merged := append([]any(nil), base...)
outer:
	for _, a := range added {
		for _, b := range base {
			if a == b {
				continue outer
			}
		}
		merged = append(merged, a)
	}
	return merged
}

// extractedKind distinguishes the populated variant of ExtractedContext.
type extractedKind int

const (
	// ExtractedEmpty carries no identifiers, only (possibly zero) sampling flags.
	ExtractedEmpty extractedKind = iota
	// ExtractedTraceIDOnly carries a trace id but no span id (e.g. a 1-field
	// carrier header that only communicates the trace, not a parent span).
	ExtractedTraceIDOnly
	// ExtractedFull carries a complete upstream TraceContext to join or child from.
	ExtractedFull
)

// ExtractedContext is what an upstream propagation codec hands the Tracer:
// exactly one populated variant (empty flags, trace-id-only, or a full
// context), plus any extra fields and sampling flags the codec attached.
// Modeled as a closed struct rather than an interface: the core only ever
// switches on Kind, never needs dynamic dispatch over the variants.
type ExtractedContext struct {
	Kind extractedKind

	// Populated when Kind == ExtractedTraceIDOnly or ExtractedFull.
	TraceID model.TraceID
	// Populated only when Kind == ExtractedFull.
	SpanID   model.ID
	ParentID *model.ID
	Shared   bool

	Sampled *bool
	Debug   bool

	Extra []any
}

// EmptyExtractedContext carries no identifiers and no sampling intent - the
// "nothing extracted" case of the tagged union.
var EmptyExtractedContext = ExtractedContext{Kind: ExtractedEmpty}

// String renders a TraceContext the way zipkin/brave-derived tooling does:
// lower-case hex trace/span ids, matching Tracer.String()'s currentSpan format.
func (c TraceContext) String() string {
	if c.ParentID != nil {
		return fmt.Sprintf("%s/%016x/parent=%016x", c.TraceID, uint64(c.SpanID), uint64(*c.ParentID))
	}
	return fmt.Sprintf("%s/%016x", c.TraceID, uint64(c.SpanID))
}
