package rop

import (
	"bytes"
	"fmt"

	"github.com/benbjohnson/immutable"
)

// State holds one concrete register/memory snapshot used for concrete
// evaluation. Both maps may be partial; evaluation reports an error when
// a referenced register or address is missing rather than defaulting.
//
// State is persistent: WithRegister and WithMemory return derived
// snapshots and never mutate the receiver, so one base sample can be
// forked cheaply across many candidate evaluations and goroutines.
type State struct {
	registers *immutable.SortedMap // register name -> uint64
	memory    *immutable.SortedMap // address -> uint64
}

// NewState returns a State holding copies of the given register and
// memory values. Either map may be nil.
func NewState(registers map[string]uint64, memory map[uint64]uint64) *State {
	s := &State{
		registers: immutable.NewSortedMap(&stringComparer{}),
		memory:    immutable.NewSortedMap(&uint64Comparer{}),
	}
	for name, value := range registers {
		s.registers = s.registers.Set(name, value)
	}
	for addr, value := range memory {
		s.memory = s.memory.Set(addr, value)
	}
	return s
}

// Register returns the value of the named register.
func (s *State) Register(name string) (uint64, bool) {
	value, ok := s.registers.Get(name)
	if !ok {
		return 0, false
	}
	return value.(uint64), true
}

// Memory returns the value stored at addr.
func (s *State) Memory(addr uint64) (uint64, bool) {
	value, ok := s.memory.Get(addr)
	if !ok {
		return 0, false
	}
	return value.(uint64), true
}

// WithRegister returns a derived snapshot with the named register set.
func (s *State) WithRegister(name string, value uint64) *State {
	return &State{
		registers: s.registers.Set(name, value),
		memory:    s.memory,
	}
}

// WithMemory returns a derived snapshot with the value at addr set.
func (s *State) WithMemory(addr, value uint64) *State {
	return &State{
		registers: s.registers,
		memory:    s.memory.Set(addr, value),
	}
}

// RegisterNames returns the names of all registers in the snapshot,
// in sorted order.
func (s *State) RegisterNames() []string {
	a := make([]string, 0, s.registers.Len())
	for itr := s.registers.Iterator(); !itr.Done(); {
		k, _ := itr.Next()
		a = append(a, k.(string))
	}
	return a
}

// Dump returns the contents of the snapshot as a string.
func (s *State) Dump() string {
	var buf bytes.Buffer
	for itr := s.registers.Iterator(); !itr.Done(); {
		k, v := itr.Next()
		fmt.Fprintf(&buf, "%s = %#x\n", k.(string), v.(uint64))
	}
	for itr := s.memory.Iterator(); !itr.Done(); {
		k, v := itr.Next()
		fmt.Fprintf(&buf, "[%#x] = %#x\n", k.(uint64), v.(uint64))
	}
	return buf.String()
}

// stringComparer compares two strings. Implements immutable.Comparer.
type stringComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater
// than b, and returns 0 if a is equal to b. Panic if a or b is not a
// string.
func (c *stringComparer) Compare(a, b interface{}) int {
	if i, j := a.(string), b.(string); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}

// uint64Comparer compares two 64-bit unsigned integers. Implements
// immutable.Comparer.
type uint64Comparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater
// than b, and returns 0 if a is equal to b. Panic if a or b is not a
// uint64.
func (c *uint64Comparer) Compare(a, b interface{}) int {
	if i, j := a.(uint64), b.(uint64); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}
