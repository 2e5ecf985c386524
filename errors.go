package tracez

import "errors"

// Builder-time configuration errors. The tracer never returns errors from
// recording operations - these surface only from NewTraceContext.
var (
	// ErrZeroTraceID is returned when a TraceContext is built with a zero trace ID.
	ErrZeroTraceID = errors.New("tracez: trace id must be non-zero")
	// ErrZeroSpanID is returned when a TraceContext is built with a zero span ID.
	ErrZeroSpanID = errors.New("tracez: span id must be non-zero")
	// ErrParentEqualsSpan is returned when parentId == spanId.
	ErrParentEqualsSpan = errors.New("tracez: parent id must not equal span id")
)
