package tracez

import (
	"sync"
	"time"

	"github.com/openzipkin/zipkin-go/model"
)

// MutableSpan is the recorder's accumulator for one in-flight span: name,
// kind, timestamps, annotations, tags, endpoints, and error. It is created
// as soon as the Tracer mints a recording Span, not deferred to the first
// mutation, and frozen at Finish. Kind and the
// endpoint/annotation shapes are zipkin-go's own model types rather than
// reinvented ones, so converting a frozen MutableSpan to the wire model in
// handler.go is a direct struct literal.
//
//nolint:govet // field order kept readable, not packed.
type MutableSpan struct {
	mu sync.Mutex

	Name           string
	Kind           model.Kind
	Start          time.Time
	Finish         time.Time
	Annotations    []model.Annotation
	Tags           map[string]string
	LocalEndpoint  *model.Endpoint
	RemoteEndpoint *model.Endpoint
	Err            error

	frozen bool
	vetoed bool
}

func newMutableSpan(start time.Time, local *model.Endpoint) *MutableSpan {
	return &MutableSpan{Start: start, LocalEndpoint: local}
}

func (m *MutableSpan) setName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return
	}
	m.Name = name
}

// setStart overrides the span's start timestamp, which otherwise defaults
// to the moment the recorder created this accumulator.
func (m *MutableSpan) setStart(start time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return
	}
	m.Start = start
}

func (m *MutableSpan) setKind(kind model.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return
	}
	m.Kind = kind
}

func (m *MutableSpan) tag(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return
	}
	if m.Tags == nil {
		m.Tags = make(map[string]string)
	}
	m.Tags[key] = value
}

func (m *MutableSpan) annotate(ts time.Time, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return
	}
	m.Annotations = append(m.Annotations, model.Annotation{Timestamp: ts, Value: value})
}

func (m *MutableSpan) remoteEndpoint(ep *model.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return
	}
	m.RemoteEndpoint = ep
}

func (m *MutableSpan) setError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return
	}
	m.Err = err
}

// freeze assigns the finish timestamp (duration is max(1µs, finish-start))
// and marks the span immutable. Returns false if already finished (a
// double-finish is idempotent and ignored).
func (m *MutableSpan) freeze(finish time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return false
	}
	if !finish.After(m.Start.Add(time.Microsecond)) {
		finish = m.Start.Add(time.Microsecond)
	}
	m.Finish = finish
	m.frozen = true
	return true
}

// markVetoed records that an earlier handler in the chain vetoed this span,
// so a later emitting handler (reached only because alwaysReportSpans kept
// the chain running) knows to suppress its own emission.
func (m *MutableSpan) markVetoed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vetoed = true
}

func (m *MutableSpan) isVetoed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vetoed
}

// snapshot returns a value copy safe to read without the lock, used once
// the span is frozen and about to be handed to the handler chain.
func (m *MutableSpan) snapshot() MutableSpan {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m
	cp.Tags = make(map[string]string, len(m.Tags))
	for k, v := range m.Tags {
		cp.Tags[k] = v
	}
	cp.Annotations = append([]model.Annotation(nil), m.Annotations...)
	return cp
}

// contextKey is the Recorder's lookup key: trace id + span id + shared,
// which uniquely identifies a MutableSpan even across a join. shared is
// part of the key because the client and server sides of a joined span
// carry the identical trace/span id by design (that's the point of a
// join) - without it the two sides would collide on the same accumulator
// instead of being tracked as the two distinct records a loopback pair
// reports.
type contextKey struct {
	traceHigh, traceLow uint64
	spanID              uint64
	shared              bool
}

func keyFor(c TraceContext) contextKey {
	return contextKey{c.TraceID.High, c.TraceID.Low, uint64(c.SpanID), c.Shared}
}

// recorder owns every in-flight MutableSpan, keyed by its TraceContext, so
// a SpanCustomizer handle obtained anywhere for the same context mutates the
// same underlying record.
type recorder struct {
	mu    sync.Mutex
	spans map[contextKey]*MutableSpan
}

func newRecorder() *recorder {
	return &recorder{spans: make(map[contextKey]*MutableSpan)}
}

func (r *recorder) start(c TraceContext, at time.Time, local *model.Endpoint) *MutableSpan {
	m := newMutableSpan(at, local)
	r.mu.Lock()
	r.spans[keyFor(c)] = m
	r.mu.Unlock()
	return m
}

// get returns the accumulator already tracked for c, if any - used when a
// context is re-wrapped (ToSpan, CurrentSpan) rather than freshly minted,
// so the returned Span mutates the same record a concurrent holder sees.
func (r *recorder) get(c TraceContext) (*MutableSpan, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.spans[keyFor(c)]
	return m, ok
}

func (r *recorder) remove(c TraceContext) {
	r.mu.Lock()
	delete(r.spans, keyFor(c))
	r.mu.Unlock()
}
