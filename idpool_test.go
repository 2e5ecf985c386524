package tracez

import (
	"sync"
	"testing"
)

func TestIDPoolGetNeverZero(t *testing.T) {
	p := newIDPool(4)
	defer p.close()

	for i := 0; i < 1000; i++ {
		if id := p.get(); id == 0 {
			t.Fatal("id pool produced the zero id")
		}
	}
}

func TestIDPoolRefillsAfterDrain(t *testing.T) {
	p := newIDPool(2)
	defer p.close()

	seen := make(map[uint64]bool)
	for i := 0; i < 50; i++ {
		id := p.get()
		if id == 0 {
			t.Fatal("id pool produced the zero id")
		}
		if seen[id] {
			// a repeat is not itself an error (random draws can collide across
			// a long run), but every value must still be non-zero.
			continue
		}
		seen[id] = true
	}
	if len(seen) == 0 {
		t.Fatal("expected at least one distinct id")
	}
}

func TestIDPoolCloseIsIdempotent(t *testing.T) {
	p := newIDPool(1)
	p.close()
	p.close() // must not panic on double close
}

func TestIDPoolConcurrentGet(t *testing.T) {
	p := newIDPool(8)
	defer p.close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if p.get() == 0 {
					t.Error("concurrent get produced the zero id")
				}
			}
		}()
	}
	wg.Wait()
}
