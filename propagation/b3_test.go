package propagation

import (
	"net/http"
	"testing"

	"github.com/loomwork/tracez"
)

func TestB3FactoryCapabilities(t *testing.T) {
	f := NewB3Factory()
	if !f.SupportsJoin() {
		t.Error("expected B3 to support join")
	}
	if f.Requires128BitTraceID() {
		t.Error("expected B3 not to require 128-bit trace ids")
	}
}

func TestB3InjectExtractRoundTrip(t *testing.T) {
	tr := tracez.NewTracer().Propagation(NewB3Factory()).Build()
	defer tr.Close()

	span := tr.NewTrace()
	ctx := span.Context()

	req, err := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := Inject(req, ctx); err != nil {
		t.Fatalf("inject failed: %v", err)
	}

	extracted, err := Extract(req)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if extracted.Kind != tracez.ExtractedFull {
		t.Fatalf("expected a full extracted context, got kind %v", extracted.Kind)
	}
	if extracted.TraceID != ctx.TraceID {
		t.Errorf("traceID = %v, want %v", extracted.TraceID, ctx.TraceID)
	}
	if extracted.SpanID != ctx.SpanID {
		t.Errorf("spanID = %v, want %v", extracted.SpanID, ctx.SpanID)
	}
}

func TestB3ExtractEmptyRequest(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	if err != nil {
		t.Fatal(err)
	}
	extracted, err := Extract(req)
	if err != nil {
		t.Fatalf("unexpected error on a request with no B3 headers: %v", err)
	}
	if extracted.Kind != tracez.ExtractedEmpty {
		t.Errorf("expected ExtractedEmpty, got kind %v", extracted.Kind)
	}
}
