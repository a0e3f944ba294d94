package rop

// Eval computes the concrete value of op against a register/memory
// snapshot. Arithmetic is native uint64 arithmetic: wraparound is
// modulo 2^64, which coincides with 64-bit bit-vector semantics, so a
// concrete result and a solver model over the same inputs agree.
//
// EQ evaluates to 1 when both sides are equal and 0 otherwise. STORE
// has no value — it denotes a write effect — and evaluating one returns
// an *UnsupportedOperationError.
//
// A register missing from the snapshot returns *UnknownRegisterError;
// an unmapped address returns *UnknownMemoryError. Errors surface
// immediately: a silently-wrong gadget effect is a security bug, so
// nothing is defaulted or swallowed.
func Eval(op Operand, st *State) (uint64, error) {
	switch op := op.(type) {
	case *Constant:
		return op.Value, nil

	case *Register:
		value, ok := st.Register(op.Name)
		if !ok {
			return 0, &UnknownRegisterError{Name: op.Name}
		}
		return value, nil

	case *Memory:
		addr, err := Eval(op.Addr, st)
		if err != nil {
			return 0, err
		}
		value, ok := st.Memory(addr)
		if !ok {
			return 0, &UnknownMemoryError{Addr: addr}
		}
		return value, nil

	case *BinaryExpr:
		return evalBinaryExpr(op, st)

	default:
		panic("unreachable")
	}
}

func evalBinaryExpr(e *BinaryExpr, st *State) (uint64, error) {
	if e.Op == STORE {
		return 0, &UnsupportedOperationError{Op: e.Op}
	}

	lhs, err := Eval(e.LHS, st)
	if err != nil {
		return 0, err
	}
	rhs, err := Eval(e.RHS, st)
	if err != nil {
		return 0, err
	}

	switch e.Op {
	case ADD:
		return lhs + rhs, nil
	case SUB:
		return lhs - rhs, nil
	case MUL:
		return lhs * rhs, nil
	case AND:
		return lhs & rhs, nil
	case OR:
		return lhs | rhs, nil
	case XOR:
		return lhs ^ rhs, nil
	case EQ:
		if lhs == rhs {
			return 1, nil
		}
		return 0, nil
	default:
		panic("unreachable")
	}
}
