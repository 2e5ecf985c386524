package tracez

// PropagationFactory is the core-facing capability a wire-format codec
// provides to the Tracer: whether it supports join semantics, whether it
// needs 128-bit trace ids, and an opportunity to attach or rewrite extra
// fields on every new or joined context. The generic key/carrier creation
// side of a real codec (HTTP header injection/extraction) lives entirely
// in the propagation package - the core never calls it.
type PropagationFactory interface {
	// SupportsJoin reports whether JoinSpan may reuse an upstream span id.
	// When false, JoinSpan behaves exactly like NewChild.
	SupportsJoin() bool
	// Requires128BitTraceID forces the builder to generate 128-bit trace ids.
	Requires128BitTraceID() bool
	// Decorate is called on every new or joined context, before it is
	// returned to the caller, and may attach or rewrite Extra.
	Decorate(ctx TraceContext) TraceContext
}

// defaultPropagationFactory is installed when TracerBuilder is given none:
// join is supported, 128-bit trace ids are not required, and contexts pass
// through unchanged.
type defaultPropagationFactory struct{}

func (defaultPropagationFactory) SupportsJoin() bool            { return true }
func (defaultPropagationFactory) Requires128BitTraceID() bool   { return false }
func (defaultPropagationFactory) Decorate(ctx TraceContext) TraceContext { return ctx }

// DefaultPropagationFactory returns the permissive factory TracerBuilder
// uses when PropagationFactory is left unset.
func DefaultPropagationFactory() PropagationFactory { return defaultPropagationFactory{} }
