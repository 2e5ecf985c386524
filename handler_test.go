package tracez

import (
	"testing"
	"time"

	"github.com/openzipkin/zipkin-go/model"
)

type fakeReporter struct {
	sent []model.SpanModel
}

func (r *fakeReporter) Send(s model.SpanModel) { r.sent = append(r.sent, s) }
func (r *fakeReporter) Close() error            { return nil }

type panickingReporter struct{}

func (panickingReporter) Send(model.SpanModel) { panic("reporter exploded") }
func (panickingReporter) Close() error          { return nil }

func finishedSpan(sampled *bool) (TraceContext, *MutableSpan) {
	ctx := TraceContext{TraceID: model.TraceID{Low: 1}, SpanID: model.ID(2), Sampled: sampled}
	span := newMutableSpan(time.Unix(0, 0), nil)
	span.setName("work")
	span.freeze(time.Unix(0, 0).Add(time.Millisecond))
	return ctx, span
}

func TestLoggingFinishedSpanHandlerNeverVetoes(t *testing.T) {
	h := NewLoggingFinishedSpanHandler("svc", nil)
	ctx, span := finishedSpan(nil)
	if ok := h.Handle(ctx, span); !ok {
		t.Error("logging handler must never veto")
	}
	if h.AlwaysSampleLocal() {
		t.Error("logging handler should not force local sampling")
	}
}

func TestZipkinConverterHandlerSendsWhenSampled(t *testing.T) {
	reporter := &fakeReporter{}
	h := NewZipkinConverterHandler("svc", reporter, false)

	yes := true
	ctx, span := finishedSpan(&yes)
	if ok := h.Handle(ctx, span); !ok {
		t.Error("handler should never veto")
	}
	if len(reporter.sent) != 1 {
		t.Fatalf("expected one emission, got %d", len(reporter.sent))
	}
	if reporter.sent[0].ID != ctx.SpanID {
		t.Errorf("wire span id = %v, want %v", reporter.sent[0].ID, ctx.SpanID)
	}
}

func TestZipkinConverterHandlerSkipsUnsampled(t *testing.T) {
	reporter := &fakeReporter{}
	h := NewZipkinConverterHandler("svc", reporter, false)

	no := false
	ctx, span := finishedSpan(&no)
	if ok := h.Handle(ctx, span); !ok {
		t.Error("handler should never veto, only skip emission")
	}
	if len(reporter.sent) != 0 {
		t.Error("expected no emission for an unsampled context")
	}
}

func TestZipkinConverterHandlerAlwaysReportSpansOverride(t *testing.T) {
	reporter := &fakeReporter{}
	h := NewZipkinConverterHandler("svc", reporter, true)

	no := false
	ctx, span := finishedSpan(&no)
	h.Handle(ctx, span)
	if len(reporter.sent) != 1 {
		t.Error("alwaysReportSpans should emit even when unsampled")
	}
}

// TestReporterFaultTolerance covers Property 9: a panicking reporter must not
// propagate past the handler.
func TestReporterFaultTolerance(t *testing.T) {
	h := NewZipkinConverterHandler("svc", panickingReporter{}, true)
	yes := true
	ctx, span := finishedSpan(&yes)

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("reporter panic leaked past the handler: %v", r)
		}
	}()
	if ok := h.Handle(ctx, span); !ok {
		t.Error("handler should still report success despite reporter failure")
	}
}

func TestToSpanModelCarriesFields(t *testing.T) {
	parentID := model.ID(9)
	ctx := TraceContext{TraceID: model.TraceID{Low: 1}, SpanID: model.ID(2), ParentID: &parentID, Shared: true}
	snap := MutableSpan{Name: "op", Kind: model.Server, Start: time.Unix(1, 0), Finish: time.Unix(1, 0).Add(2 * time.Millisecond)}

	wire := toSpanModel(ctx, snap)
	if wire.Name != "op" || wire.Kind != model.Server {
		t.Errorf("unexpected wire span: %+v", wire)
	}
	if wire.ParentID == nil || *wire.ParentID != parentID {
		t.Errorf("expected parent id carried through, got %v", wire.ParentID)
	}
	if !wire.Shared {
		t.Error("expected Shared to carry through")
	}
	if wire.Duration != 2*time.Millisecond {
		t.Errorf("duration = %v, want 2ms", wire.Duration)
	}
}
