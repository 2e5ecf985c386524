package tracez

import "math"

// Sampler decides whether a trace should be sampled from its trace id alone.
// Implementations must be stateless or internally thread-safe: the Tracer
// calls IsSampled concurrently from many goroutines.
type Sampler interface {
	IsSampled(traceID uint64) bool
}

// SamplerFunc adapts a plain function to a Sampler.
type SamplerFunc func(traceID uint64) bool

// IsSampled implements Sampler.
func (f SamplerFunc) IsSampled(traceID uint64) bool { return f(traceID) }

// constSampler returns the same decision for every trace id. Unlike a
// SamplerFunc it is comparable, so AlwaysSample and NeverSample can be
// recognized with ==.
type constSampler bool

// IsSampled implements Sampler.
func (c constSampler) IsSampled(uint64) bool { return bool(c) }

// AlwaysSample is the Tracer's default sampler: every trace is sampled.
var AlwaysSample Sampler = constSampler(true)

// NeverSample samples nothing; Tracer.WithSampler(NeverSample) is the
// standard way to force every factory method onto the no-op path (spec
// property 8, scenario S3).
var NeverSample Sampler = constSampler(false)

// boundarySampler deterministically samples a fixed percentage of traces by
// comparing the trace id against a precomputed boundary, the same
// constant-rate strategy zipkin/brave samplers use so that a decision for a
// given trace id is reproducible across processes without coordination.
type boundarySampler struct {
	boundary uint64
}

// NewBoundarySampler returns a Sampler that samples approximately rate
// (clamped to [0,1]) of traces, keyed on the low 63 bits of the trace id so
// the decision is stable for a given trace regardless of which process
// computes it.
func NewBoundarySampler(rate float64) Sampler {
	if rate <= 0 {
		return NeverSample
	}
	if rate >= 1 {
		return AlwaysSample
	}
	return &boundarySampler{boundary: uint64(rate * float64(math.MaxInt64))}
}

func (s *boundarySampler) IsSampled(traceID uint64) bool {
	// Mask off the sign bit so the comparison is against a uniformly
	// distributed unsigned range, matching the classic boundary-sampler trick.
	return (traceID & math.MaxInt64) < s.boundary
}
