package rop

import (
	"errors"
	"fmt"
)

// Standard widths, in bits.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

// MemoryArrayName is the name of the single flat memory array used in
// solver formulas. Every formula in one solving session refers to this
// array so the solver's array theory captures aliasing exactly.
const MemoryArrayName = "Memory"

var (
	ErrSolverTimeout       = errors.New("Solver timeout")
	ErrSolverCanceled      = errors.New("Solver canceled")
	ErrSolverResourceLimit = errors.New("Solver resource limit")
	ErrSolverUnknown       = errors.New("Solver unknown error")
)

// Solver represents the boundary to an external constraint solver.
// Constraints must be boolean formulas (EQ roots). The returned values
// hold one concrete 64-bit model value per requested register, in order.
type Solver interface {
	Solve(constraints []Operand, registers []*Register) (satisfiable bool, values []uint64, err error)
}

// UnknownRegisterError is returned by concrete evaluation when a register
// is absent from the supplied state. It indicates an incomplete input set
// built by the caller, never a default value.
type UnknownRegisterError struct {
	Name string
}

// Error returns the error as a string.
func (e *UnknownRegisterError) Error() string {
	return fmt.Sprintf("unknown register: %s", e.Name)
}

// UnknownMemoryError is returned by concrete evaluation when an address
// is absent from the supplied memory state.
type UnknownMemoryError struct {
	Addr uint64
}

// Error returns the error as a string.
func (e *UnknownMemoryError) Error() string {
	return fmt.Sprintf("unknown memory address: %#x", e.Addr)
}

// UnsupportedOperationError is returned when an operation has no concrete
// value semantics (a STORE effect) or falls outside the supported set.
type UnsupportedOperationError struct {
	Op BinaryOp
}

// Error returns the error as a string.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation: %s", e.Op)
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
