package tracez

import (
	"sync"

	"github.com/petermattis/goid"
	"github.com/sirupsen/logrus"
)

// Scope represents "this context is current until Close". Close restores
// whatever was current before the scope was opened. Closing more than once
// is a no-op; closing scopes out of LIFO order is a programmer error that
// implementations should detect and log rather than corrupt the stack.
type Scope interface {
	Close()
}

// CurrentTraceContext is a per-logical-execution stack of TraceContext
// entries. The default realization is goroutine-local (below); alternative
// implementations may substitute task-local, continuation-capturing, or
// explicit-passing variants. The Tracer never assumes goroutine-locality -
// it only ever consumes this interface.
type CurrentTraceContext interface {
	// Get returns the top of the stack, or nil if nothing is current.
	Get() *TraceContext
	// NewScope pushes ctx (nil is a valid "clear" scope) and returns a
	// handle that restores the prior entry on Close.
	NewScope(ctx *TraceContext) Scope
}

// scopeMisuseHandler receives a notice when a scope closes out of order. By
// default the notice is logged at warn level on scopeMisuseLogger; tests
// substitute this to assert ScopeMisuse is detected without panicking.
var scopeMisuseHandler = func(msg string) { scopeMisuseLogger.Warn(msg) }

var scopeMisuseLogger = logrus.New()

// goroutineCurrentTraceContext is the default CurrentTraceContext: a stack
// keyed per-goroutine. Go has no thread-locals and the Tracer must not
// assume a context is threaded explicitly, so this is grounded on
// github.com/petermattis/goid the same way cockroachdb/cockroach's
// sasha-s/go-deadlock dependency uses it to track per-goroutine lock state -
// goid.Get() stands in for the thread id a JVM ThreadLocal would key on.
type goroutineCurrentTraceContext struct {
	mu     sync.Mutex
	stacks map[int64][]*TraceContext
}

// NewGoroutineCurrentTraceContext returns the default goroutine-local
// CurrentTraceContext implementation.
func NewGoroutineCurrentTraceContext() CurrentTraceContext {
	return &goroutineCurrentTraceContext{stacks: make(map[int64][]*TraceContext)}
}

func (g *goroutineCurrentTraceContext) Get() *TraceContext {
	id := goid.Get()
	g.mu.Lock()
	defer g.mu.Unlock()
	stack := g.stacks[id]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

func (g *goroutineCurrentTraceContext) NewScope(ctx *TraceContext) Scope {
	id := goid.Get()
	g.mu.Lock()
	g.stacks[id] = append(g.stacks[id], ctx)
	depth := len(g.stacks[id])
	g.mu.Unlock()

	return &goroutineScope{owner: g, goroutineID: id, depth: depth}
}

type goroutineScope struct {
	owner       *goroutineCurrentTraceContext
	goroutineID int64
	depth       int
	closed      bool
}

func (s *goroutineScope) Close() {
	if s.closed {
		return
	}
	s.closed = true

	o := s.owner
	o.mu.Lock()
	defer o.mu.Unlock()

	stack := o.stacks[s.goroutineID]
	if len(stack) != s.depth {
		// Out-of-order close: best-effort restore to just below our depth
		// rather than corrupting the stack.
		scopeMisuseHandler("tracez: scope closed out of order")
		if s.depth-1 < len(stack) {
			o.stacks[s.goroutineID] = stack[:s.depth-1]
		}
		if len(o.stacks[s.goroutineID]) == 0 {
			delete(o.stacks, s.goroutineID)
		}
		return
	}
	if s.depth == 1 {
		delete(o.stacks, s.goroutineID)
		return
	}
	o.stacks[s.goroutineID] = stack[:s.depth-1]
}

// staticCurrentTraceContext always reports the same fixed context and
// ignores scoping; useful in tests that don't want goroutine-local state.
type staticCurrentTraceContext struct {
	ctx *TraceContext
}

// NewStaticCurrentTraceContext returns a CurrentTraceContext that always
// reports ctx as current, regardless of scoping calls.
func NewStaticCurrentTraceContext(ctx *TraceContext) CurrentTraceContext {
	return &staticCurrentTraceContext{ctx: ctx}
}

func (s *staticCurrentTraceContext) Get() *TraceContext { return s.ctx }

func (s *staticCurrentTraceContext) NewScope(*TraceContext) Scope {
	return noopScopeHandle{}
}

type noopScopeHandle struct{}

func (noopScopeHandle) Close() {}
