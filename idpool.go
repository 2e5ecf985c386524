package tracez

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// idPool manages a pool of pre-generated random uint64s to amortize
// crypto/rand overhead via a background-refill goroutine, producing raw
// uint64s that plug directly into model.TraceID/model.ID.
type idPool struct {
	ids    chan uint64
	stopCh chan struct{}
	mu     sync.Mutex
	closed bool
}

// newIDPool creates a new ID pool with the given capacity and starts its
// background refill goroutine.
func newIDPool(capacity int) *idPool {
	p := &idPool{
		ids:    make(chan uint64, capacity),
		stopCh: make(chan struct{}),
	}
	go p.refill()
	return p
}

// get retrieves an id from the pool, or generates one directly if the pool
// is momentarily empty (burst-load fallback).
func (p *idPool) get() uint64 {
	select {
	case id := <-p.ids:
		return id
	default:
		return randomUint64()
	}
}

func (p *idPool) refill() {
	for {
		select {
		case <-p.stopCh:
			return
		default:
			select {
			case p.ids <- randomUint64():
			case <-p.stopCh:
				return
			}
		}
	}
}

// close shuts the pool's refill goroutine down. Safe to call more than once.
func (p *idPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}

// randomUint64 draws a cryptographic-quality non-zero uint64, retrying on
// the vanishingly rare zero draw so ids never collide with the zero sentinel.
func randomUint64() uint64 {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand failing is effectively unrecoverable on any real
			// platform; degrade to a process-unique-enough fallback rather
			// than returning the invariant-violating zero id.
			return fallbackID()
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v != 0 {
			return v
		}
	}
}

var fallbackCounter atomic.Uint64

func fallbackID() uint64 {
	return fallbackCounter.Add(1)
}
