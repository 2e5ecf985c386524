// Package propagation provides concrete PropagationFactory implementations
// built on real wire codecs. The core package never imports this one - it
// only ever consumes the PropagationFactory capability - so a tracez user
// who doesn't need HTTP propagation pulls in none of this.
package propagation

import (
	"net/http"

	"github.com/loomwork/tracez"
	"github.com/openzipkin/zipkin-go/model"
	"github.com/openzipkin/zipkin-go/propagation/b3"
)

// B3Factory is the tracez.PropagationFactory for Zipkin's B3 headers: 64-bit
// trace ids, join supported (the server side of an RPC is expected to reuse
// the client's span id exactly as B3 intends), and no extra-field rewriting.
type B3Factory struct{}

// NewB3Factory returns the B3 PropagationFactory.
func NewB3Factory() B3Factory { return B3Factory{} }

func (B3Factory) SupportsJoin() bool          { return true }
func (B3Factory) Requires128BitTraceID() bool { return false }
func (B3Factory) Decorate(ctx tracez.TraceContext) tracez.TraceContext { return ctx }

// Inject writes ctx onto an outbound HTTP request's B3 headers.
func Inject(r *http.Request, ctx tracez.TraceContext) error {
	sc := model.SpanContext{
		TraceID:  ctx.TraceID,
		ID:       ctx.SpanID,
		ParentID: ctx.ParentID,
		Debug:    ctx.Debug,
		Sampled:  ctx.Sampled,
	}
	return b3.InjectHTTP(r)(sc)
}

// Extract reads B3 headers from an inbound HTTP request into an
// ExtractedContext, the shape Tracer.NextSpanFrom resolves against the
// current context.
func Extract(r *http.Request) (tracez.ExtractedContext, error) {
	sc, err := b3.ExtractHTTP(r)()
	if err != nil {
		return tracez.EmptyExtractedContext, err
	}
	if sc == nil || sc.TraceID.Empty() {
		return tracez.EmptyExtractedContext, nil
	}
	if sc.ID == 0 {
		return tracez.ExtractedContext{
			Kind:    tracez.ExtractedTraceIDOnly,
			TraceID: sc.TraceID,
			Sampled: sc.Sampled,
			Debug:   sc.Debug,
		}, nil
	}
	return tracez.ExtractedContext{
		Kind:     tracez.ExtractedFull,
		TraceID:  sc.TraceID,
		SpanID:   sc.ID,
		ParentID: sc.ParentID,
		Sampled:  sc.Sampled,
		Debug:    sc.Debug,
	}, nil
}
