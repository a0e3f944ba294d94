package rop

import "sync/atomic"

// HandleAllocator issues unique register handles. An allocator is owned
// by one analysis session; constructing registers through a session
// allocator keeps handle assignment deterministic across runs. The
// counter is atomic so allocation is safe under concurrent use.
type HandleAllocator struct {
	n uint64
}

// NewHandleAllocator returns a new instance of HandleAllocator.
// Handles start at zero.
func NewHandleAllocator() *HandleAllocator {
	return &HandleAllocator{}
}

// Next returns the next unissued handle.
func (a *HandleAllocator) Next() uint64 {
	return atomic.AddUint64(&a.n, 1) - 1
}

// NewRegister returns a Register for name with a fresh handle.
func (a *HandleAllocator) NewRegister(name string) *Register {
	return NewRegisterWithHandle(name, a.Next())
}

// DefaultHandleAllocator issues handles for registers constructed with
// NewRegister(). It has process lifetime and is never reset.
var DefaultHandleAllocator = NewHandleAllocator()
