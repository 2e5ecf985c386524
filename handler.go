package tracez

import (
	"fmt"

	"github.com/openzipkin/zipkin-go/model"
	zipkinreporter "github.com/openzipkin/zipkin-go/reporter"
	"github.com/sirupsen/logrus"
)

// FinishedSpanHandler sits on the ordered pipeline a span passes through at
// Finish. A handler may read or mutate the accumulator, veto reporting by
// returning false (which stops the chain), and declare AlwaysSampleLocal to
// force local recording regardless of the remote sampling decision.
type FinishedSpanHandler interface {
	Handle(ctx TraceContext, span *MutableSpan) bool
	AlwaysSampleLocal() bool
	String() string
}

// LoggingFinishedSpanHandler is installed by TracerBuilder when no Reporter
// is configured: it logs one structured line per finished span via logrus
// rather than shipping it anywhere. Never vetoes.
type LoggingFinishedSpanHandler struct {
	logger *logrus.Logger
	name   string
}

// NewLoggingFinishedSpanHandler returns a handler that logs every finished
// span at debug level under the given service name. A nil logger falls
// back to a fresh logrus.Logger rather than the shared global one, so
// multiple tracers in one process don't fight over global log state.
func NewLoggingFinishedSpanHandler(name string, logger *logrus.Logger) *LoggingFinishedSpanHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &LoggingFinishedSpanHandler{logger: logger, name: name}
}

func (h *LoggingFinishedSpanHandler) Handle(ctx TraceContext, span *MutableSpan) bool {
	snap := span.snapshot()
	fields := logrus.Fields{
		"trace_id": ctx.TraceID.String(),
		"span_id":  fmt.Sprintf("%016x", uint64(ctx.SpanID)),
		"name":     snap.Name,
		"kind":     snap.Kind,
		"duration": snap.Finish.Sub(snap.Start),
	}
	if snap.Err != nil {
		fields["error"] = snap.Err.Error()
	}
	h.logger.WithFields(fields).Debug("span finished")
	return true
}

func (h *LoggingFinishedSpanHandler) AlwaysSampleLocal() bool { return false }

func (h *LoggingFinishedSpanHandler) String() string {
	return fmt.Sprintf("LoggingReporter{name=%s}", h.name)
}

// ZipkinConverterHandler is installed by TracerBuilder when a Reporter is
// configured: it converts the frozen MutableSpan to zipkin-go's model.SpanModel
// and hands it to the reporter. A panicking or otherwise misbehaving
// reporter never propagates past this handler (ReporterFailure policy). It
// never vetoes the chain - when the context isn't remotely sampled, or an
// earlier handler already vetoed, it simply skips emission.
type ZipkinConverterHandler struct {
	reporter          zipkinreporter.Reporter
	name              string
	alwaysReportSpans bool
}

// NewZipkinConverterHandler wraps reporter, the zipkin-go sink every
// finished, sampled span is sent to once converted to the wire model.
func NewZipkinConverterHandler(name string, reporter zipkinreporter.Reporter, alwaysReportSpans bool) *ZipkinConverterHandler {
	return &ZipkinConverterHandler{reporter: reporter, name: name, alwaysReportSpans: alwaysReportSpans}
}

func (h *ZipkinConverterHandler) Handle(ctx TraceContext, span *MutableSpan) bool {
	if span.isVetoed() {
		return true
	}
	if !h.alwaysReportSpans && !(ctx.Sampled != nil && *ctx.Sampled) {
		return true
	}
	snap := span.snapshot()
	wire := toSpanModel(ctx, snap)
	h.send(wire)
	return true
}

func (h *ZipkinConverterHandler) send(wire model.SpanModel) {
	defer func() {
		// Reporter exceptions are caught and swallowed, never propagated to
		// the caller of Finish (ReporterFailure policy).
		recover() //nolint:errcheck
	}()
	h.reporter.Send(wire)
}

func (h *ZipkinConverterHandler) AlwaysSampleLocal() bool { return false }

func (h *ZipkinConverterHandler) String() string {
	return fmt.Sprintf("ZipkinReporter{name=%s}", h.name)
}

// toSpanModel converts a frozen MutableSpan snapshot into zipkin-go's wire
// model, satisfying the "bit-exact fields" requirement by reusing the real
// library's struct rather than a hand-maintained parallel one. A recorded
// Error surfaces as tags["error"], the Zipkin convention for marking a span
// as failed - there is no dedicated wire field for it.
func toSpanModel(ctx TraceContext, snap MutableSpan) model.SpanModel {
	tags := snap.Tags
	if snap.Err != nil {
		tags = make(map[string]string, len(snap.Tags)+1)
		for k, v := range snap.Tags {
			tags[k] = v
		}
		tags["error"] = snap.Err.Error()
	}
	return model.SpanModel{
		SpanContext: model.SpanContext{
			TraceID:  ctx.TraceID,
			ID:       ctx.SpanID,
			ParentID: ctx.ParentID,
			Debug:    ctx.Debug,
			Sampled:  ctx.Sampled,
		},
		Name:           snap.Name,
		Kind:           snap.Kind,
		Timestamp:      snap.Start,
		Duration:       snap.Finish.Sub(snap.Start),
		Shared:         ctx.Shared,
		LocalEndpoint:  snap.LocalEndpoint,
		RemoteEndpoint: snap.RemoteEndpoint,
		Annotations:    snap.Annotations,
		Tags:           tags,
	}
}
