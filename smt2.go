package rop

import (
	"bytes"
	"fmt"
)

// EncodeSMT2 renders op as an SMT-LIB2 term. The translation is pure
// and total over the supported node kinds: constants become 64-bit
// bit-vector literals, registers become quoted symbols named by
// FormulaName, memory reads select from the single Memory array, and
// STORE produces the updated array term. EQ produces a boolean term
// usable directly as a solver assertion.
//
// The rendering matches what a Z3 session built through the z3 package
// asserts, so a formula can be inspected or replayed through any
// SMT-LIB2 front end.
func EncodeSMT2(op Operand) string {
	var buf bytes.Buffer
	appendSMT2(&buf, op)
	return buf.String()
}

func appendSMT2(buf *bytes.Buffer, op Operand) {
	switch op := op.(type) {
	case *Constant:
		fmt.Fprintf(buf, "(_ bv%d %d)", op.Value, Width64)

	case *Register:
		fmt.Fprintf(buf, "|%s|", op.FormulaName())

	case *Memory:
		fmt.Fprintf(buf, "(select %s ", MemoryArrayName)
		appendSMT2(buf, op.Addr)
		buf.WriteString(")")

	case *BinaryExpr:
		buf.WriteString("(")
		buf.WriteString(smt2Op(op.Op))
		buf.WriteString(" ")
		if op.Op == STORE {
			buf.WriteString(MemoryArrayName)
			buf.WriteString(" ")
		}
		appendSMT2(buf, op.LHS)
		buf.WriteString(" ")
		appendSMT2(buf, op.RHS)
		buf.WriteString(")")

	default:
		panic("unreachable")
	}
}

// smt2Op returns the SMT-LIB2 operator for op.
func smt2Op(op BinaryOp) string {
	switch op {
	case ADD:
		return "bvadd"
	case SUB:
		return "bvsub"
	case MUL:
		return "bvmul"
	case AND:
		return "bvand"
	case OR:
		return "bvor"
	case XOR:
		return "bvxor"
	case EQ:
		return "="
	case STORE:
		return "store"
	default:
		panic("unreachable")
	}
}

// SMT2Decls returns the declarations needed by the SMT-LIB2 renderings
// of the given trees: one declare-const per distinct register handle,
// ordered by handle, plus the Memory array when any tree touches
// memory. All formulas in one session share these declarations; reusing
// the same array name is what lets the solver's array theory capture
// aliasing between them.
func SMT2Decls(ops ...Operand) []string {
	var decls []string
	for _, reg := range FindRegisters(ops...) {
		decls = append(decls, fmt.Sprintf("(declare-const |%s| (_ BitVec %d))", reg.FormulaName(), reg.Size*8))
	}
	if UsesMemory(ops...) {
		decls = append(decls, fmt.Sprintf("(declare-const %s (Array (_ BitVec %d) (_ BitVec %d)))", MemoryArrayName, Width64, Width64))
	}
	return decls
}
