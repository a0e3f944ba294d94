package rop_test

import (
	"sync"
	"testing"

	rop "github.com/secretnonempty/rop-compiler"
)

func TestHandleAllocator_Next(t *testing.T) {
	a := rop.NewHandleAllocator()
	for want := uint64(0); want < 3; want++ {
		if h := a.Next(); h != want {
			t.Fatalf("unexpected handle: %d", h)
		}
	}
}

func TestHandleAllocator_NewRegister(t *testing.T) {
	a := rop.NewHandleAllocator()
	r0, r1 := a.NewRegister("rbx"), a.NewRegister("rbx")
	if r0.Handle != 0 || r1.Handle != 1 {
		t.Fatalf("unexpected handles: %d, %d", r0.Handle, r1.Handle)
	}
}

// Handle assignment is deterministic per allocator, so two analysis
// sessions with their own allocators produce identical handle sequences.
func TestHandleAllocator_Deterministic(t *testing.T) {
	a, b := rop.NewHandleAllocator(), rop.NewHandleAllocator()
	for i := 0; i < 10; i++ {
		if ha, hb := a.Next(), b.Next(); ha != hb {
			t.Fatalf("unexpected handles: %d != %d", ha, hb)
		}
	}
}

func TestHandleAllocator_Concurrent(t *testing.T) {
	const goroutines, perGoroutine = 8, 1000

	a := rop.NewHandleAllocator()
	handles := make([][]uint64, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				handles[i] = append(handles[i], a.Next())
			}
		}()
	}
	wg.Wait()

	seen := make(map[uint64]struct{})
	for _, hh := range handles {
		for _, h := range hh {
			if _, ok := seen[h]; ok {
				t.Fatalf("duplicate handle: %d", h)
			}
			seen[h] = struct{}{}
		}
	}
	if len(seen) != goroutines*perGoroutine {
		t.Fatalf("unexpected handle count: %d", len(seen))
	}
}
