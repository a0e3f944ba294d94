package rop

import (
	"fmt"
	"sort"
)

// Operand represents a node of an instruction-effect expression tree.
// The variant set is closed: *Constant, *Register, *Memory, *BinaryExpr.
// Trees are immutable after construction and strictly parent-to-child,
// so subtrees may be shared freely across trees and goroutines.
type Operand interface {
	fmt.Stringer
	operand()
}

func (*Constant) operand()   {}
func (*Register) operand()   {}
func (*Memory) operand()     {}
func (*BinaryExpr) operand() {}

// Constant represents an immediate operand.
type Constant struct {
	Value uint64
}

// NewConstant returns a new instance of Constant.
func NewConstant(value uint64) *Constant {
	return &Constant{Value: value}
}

// String returns the string representation of the constant.
func (c *Constant) String() string {
	return fmt.Sprintf("%d", c.Value)
}

// Register represents a register operand. Each register carries a handle
// identifying one symbolic instance of its value: two instances with the
// same handle denote the same solver unknown, two instances with equal
// names but different handles are deliberately distinct unknowns. This is
// how the same architectural register at different points in a sequence
// is represented without conflating the values.
type Register struct {
	Name   string
	Size   uint // size in bytes, currently always whole-register
	Start  int  // sub-register bit offset; -1 sentinel, unimplemented
	Handle uint64
}

// NewRegister returns a Register with a fresh handle from the package
// default allocator.
func NewRegister(name string) *Register {
	return DefaultHandleAllocator.NewRegister(name)
}

// NewRegisterWithHandle returns a Register aliasing a previously issued
// handle. Used by the decoder when two occurrences denote the identical
// symbolic value.
func NewRegisterWithHandle(name string, handle uint64) *Register {
	return &Register{Name: name, Size: 8, Start: -1, Handle: handle}
}

// String returns the register name.
func (r *Register) String() string {
	return r.Name
}

// FormulaName returns the solver variable name for this register
// instance. It is derived from both name and handle so that formulas
// with the same handle refer to one variable and formulas with
// different handles never unify, even when names match.
func (r *Register) FormulaName() string {
	return fmt.Sprintf("%s#%d", r.Name, r.Handle)
}

// SameRegister returns true if other names the same architectural
// register. Handles are ignored; they distinguish points in time, not
// registers.
func (r *Register) SameRegister(other *Register) bool {
	return other != nil && r.Name == other.Name
}

// SameRegisterName returns true if name refers to the same architectural
// register as r.
func (r *Register) SameRegisterName(name string) bool {
	return r.Name == name
}

// IsIPOrSP returns true if op is the instruction-pointer or
// stack-pointer register. Callers use it to special-case operands that
// affect control flow.
func IsIPOrSP(op Operand) bool {
	r, ok := op.(*Register)
	return ok && (r.Name == "rip" || r.Name == "rsp")
}

// Memory represents a read of Size bytes at Addr. The address is itself
// an operand tree, exclusively owned by this node. Size defaults to 8;
// it is currently advisory only — formulas always model 8-byte cells.
type Memory struct {
	Addr Operand
	Size uint
}

// NewMemory returns a Memory read of the default 8-byte size.
func NewMemory(addr Operand) *Memory {
	return NewMemorySized(addr, 8)
}

// NewMemorySized returns a Memory read of size bytes at addr.
func NewMemorySized(addr Operand, size uint) *Memory {
	assert(addr != nil, "memory: nil address")
	return &Memory{Addr: addr, Size: size}
}

// String returns the string representation of the memory read.
func (m *Memory) String() string {
	return fmt.Sprintf("Mem[%s]", m.Addr)
}

// BinaryOp represents a binary expression operation.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	ADD
	SUB
	MUL
	AND
	OR
	XOR
	arithmetic_op_end

	EQ
	STORE
)

var binaryOps = [...]string{
	ADD:   "+",
	SUB:   "-",
	MUL:   "*",
	AND:   "&",
	OR:    "|",
	XOR:   "^",
	EQ:    "=",
	STORE: "store",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// IsArithmetic returns true if op produces a bit-vector value.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsConstraint returns true if op produces a boolean constraint.
func (op BinaryOp) IsConstraint() bool {
	return op == EQ
}

// IsStore returns true if op denotes a memory-write effect.
func (op BinaryOp) IsStore() bool {
	return op == STORE
}

// BinaryExpr represents an operation on two operands. A STORE expression
// holds the destination address on the LHS and the written value on the
// RHS; it denotes an effect, not a computable value.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Operand
	RHS Operand
}

// NewBinaryExpr returns a new instance of BinaryExpr.
//
// The constructor performs no folding or canonicalization: the aliasing
// heuristic and the upstream decoder both depend on the syntactic shape
// of the tree they built.
func NewBinaryExpr(op BinaryOp, lhs, rhs Operand) *BinaryExpr {
	assert(op.IsArithmetic() || op.IsConstraint() || op.IsStore(), "invalid binary op: %d", op)
	assert(lhs != nil && rhs != nil, "binary expr: nil operand")
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// NewAdd returns an expression representing the sum of lhs & rhs.
func NewAdd(lhs, rhs Operand) *BinaryExpr { return NewBinaryExpr(ADD, lhs, rhs) }

// NewSub returns an expression representing the difference of lhs & rhs.
func NewSub(lhs, rhs Operand) *BinaryExpr { return NewBinaryExpr(SUB, lhs, rhs) }

// NewMul returns an expression representing the product of lhs & rhs.
func NewMul(lhs, rhs Operand) *BinaryExpr { return NewBinaryExpr(MUL, lhs, rhs) }

// NewAnd returns an expression representing the bitwise AND of lhs & rhs.
func NewAnd(lhs, rhs Operand) *BinaryExpr { return NewBinaryExpr(AND, lhs, rhs) }

// NewOr returns an expression representing the bitwise OR of lhs & rhs.
func NewOr(lhs, rhs Operand) *BinaryExpr { return NewBinaryExpr(OR, lhs, rhs) }

// NewXor returns an expression representing the bitwise XOR of lhs & rhs.
func NewXor(lhs, rhs Operand) *BinaryExpr { return NewBinaryExpr(XOR, lhs, rhs) }

// NewEqual returns a constraint stating that lhs equals rhs.
func NewEqual(lhs, rhs Operand) *BinaryExpr { return NewBinaryExpr(EQ, lhs, rhs) }

// NewStore returns an effect expression writing value to addr.
func NewStore(addr, value Operand) *BinaryExpr { return NewBinaryExpr(STORE, addr, value) }

// String returns the string representation of the expression.
// Value and constraint operations render infix; STORE renders distinctly
// as it denotes a write rather than a value.
func (e *BinaryExpr) String() string {
	if e.Op == STORE {
		return fmt.Sprintf("(store %s %s)", e.LHS, e.RHS)
	}
	return fmt.Sprintf("(%s %s %s)", e.LHS, e.Op, e.RHS)
}

// OperandVisitor represents a visitor that can be passed to WalkOperand().
type OperandVisitor interface {
	// Executed for every visited node. Return a nil visitor to stop
	// descending below the node.
	Visit(op Operand) OperandVisitor
}

// WalkOperand walks the tree rooted at op in depth-first order.
func WalkOperand(v OperandVisitor, op Operand) {
	if v = v.Visit(op); v == nil {
		return
	}

	switch op := op.(type) {
	case *Constant, *Register:
		// leaf
	case *Memory:
		WalkOperand(v, op.Addr)
	case *BinaryExpr:
		WalkOperand(v, op.LHS)
		WalkOperand(v, op.RHS)
	default:
		panic("unreachable")
	}
}

// FindRegisters returns all register instances in the given trees,
// deduplicated by handle and sorted by handle. The result is the set of
// symbolic unknowns a solver model must assign.
func FindRegisters(ops ...Operand) []*Register {
	v := newRegisterVisitor()
	for _, op := range ops {
		WalkOperand(v, op)
	}

	a := make([]*Register, 0, len(v.m))
	for _, reg := range v.m {
		a = append(a, reg)
	}
	sort.Slice(a, func(i, j int) bool { return a[i].Handle < a[j].Handle })

	return a
}

type registerVisitor struct {
	m map[uint64]*Register
}

func newRegisterVisitor() *registerVisitor {
	return &registerVisitor{m: make(map[uint64]*Register)}
}

func (v *registerVisitor) Visit(op Operand) OperandVisitor {
	if op, ok := op.(*Register); ok {
		if _, ok := v.m[op.Handle]; !ok {
			v.m[op.Handle] = op
		}
	}
	return v
}

// UsesMemory returns true if any of the given trees reads or writes
// memory. Used to decide whether a formula set needs the memory array
// declared.
func UsesMemory(ops ...Operand) bool {
	v := &memoryVisitor{}
	for _, op := range ops {
		WalkOperand(v, op)
		if v.found {
			return true
		}
	}
	return false
}

type memoryVisitor struct {
	found bool
}

func (v *memoryVisitor) Visit(op Operand) OperandVisitor {
	if v.found {
		return nil
	}
	switch op := op.(type) {
	case *Memory:
		v.found = true
		return nil
	case *BinaryExpr:
		if op.Op == STORE {
			v.found = true
			return nil
		}
	}
	return v
}

// CompareOperand returns an integer comparing two operand trees
// structurally. The result will be 0 if a==b, -1 if a < b, and +1 if
// a > b. Registers compare by name then handle.
func CompareOperand(a, b Operand) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if ak, bk := operandKind(a), operandKind(b); ak < bk {
		return -1
	} else if ak > bk {
		return 1
	}

	switch a := a.(type) {
	case *Constant:
		return compareConstant(a, b.(*Constant))
	case *Register:
		return compareRegister(a, b.(*Register))
	case *Memory:
		return compareMemory(a, b.(*Memory))
	case *BinaryExpr:
		return compareBinaryExpr(a, b.(*BinaryExpr))
	default:
		panic("unreachable")
	}
}

func compareConstant(a, b *Constant) int {
	if a.Value < b.Value {
		return -1
	} else if a.Value > b.Value {
		return 1
	}
	return 0
}

func compareRegister(a, b *Register) int {
	if a.Name < b.Name {
		return -1
	} else if a.Name > b.Name {
		return 1
	}

	if a.Handle < b.Handle {
		return -1
	} else if a.Handle > b.Handle {
		return 1
	}
	return 0
}

func compareMemory(a, b *Memory) int {
	if a.Size < b.Size {
		return -1
	} else if a.Size > b.Size {
		return 1
	}
	return CompareOperand(a.Addr, b.Addr)
}

func compareBinaryExpr(a, b *BinaryExpr) int {
	if a.Op < b.Op {
		return -1
	} else if a.Op > b.Op {
		return 1
	}
	if cmp := CompareOperand(a.LHS, b.LHS); cmp != 0 {
		return cmp
	}
	return CompareOperand(a.RHS, b.RHS)
}

// operandKind returns a numeric value for the type of operand.
// Only used internally for equality checks and sorting.
func operandKind(op Operand) int {
	switch op.(type) {
	case *Constant:
		return 1
	case *Register:
		return 2
	case *Memory:
		return 3
	case *BinaryExpr:
		return 4
	default:
		panic("unreachable")
	}
}
