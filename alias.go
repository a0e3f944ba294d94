package rop

// SameMemory returns true only when the addresses of a and b are
// syntactically provably the same, without invoking the solver:
//
//  1. both addresses are constants with equal values;
//  2. both addresses are registers with equal names;
//  3. both addresses are binary expressions of the same operation whose
//     children are exactly one register and one constant, with equal
//     register names and equal constant values.
//
// Anything else — mismatched kinds, mismatched operations, a constant on
// only one side, deeper nesting — is "not provably same" and returns
// false. A false result is never a proof the addresses differ; callers
// needing a real non-aliasing guarantee must fall back to the solver,
// whose array theory reasons about memory exactly.
func SameMemory(a, b *Memory) bool {
	switch addr := a.Addr.(type) {
	case *Constant:
		other, ok := b.Addr.(*Constant)
		return ok && addr.Value == other.Value

	case *Register:
		other, ok := b.Addr.(*Register)
		return ok && addr.SameRegister(other)

	case *BinaryExpr:
		other, ok := b.Addr.(*BinaryExpr)
		if !ok || addr.Op != other.Op {
			return false
		}
		reg1, const1, ok := splitRegConst(addr)
		if !ok {
			return false
		}
		reg2, const2, ok := splitRegConst(other)
		if !ok {
			return false
		}
		return reg1.SameRegister(reg2) && const1.Value == const2.Value

	default:
		return false
	}
}

// splitRegConst decomposes a binary address expression into its register
// and constant children. It reports false unless the expression has
// exactly one register child and one constant child, in either order —
// the only address shape beyond bare leaves that the heuristic accepts.
func splitRegConst(e *BinaryExpr) (*Register, *Constant, bool) {
	var reg *Register
	var konst *Constant
	for _, op := range []Operand{e.LHS, e.RHS} {
		switch op := op.(type) {
		case *Register:
			if reg != nil {
				return nil, nil, false
			}
			reg = op
		case *Constant:
			if konst != nil {
				return nil, nil, false
			}
			konst = op
		default:
			return nil, nil, false
		}
	}
	if reg == nil || konst == nil {
		return nil, nil, false
	}
	return reg, konst, true
}
