package z3

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	rop "github.com/secretnonempty/rop-compiler"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
#include <stdio.h>
*/
import "C"

// Ensure solver implements interface.
var _ rop.Solver = (*Solver)(nil)

// Solver represents a solver that uses an embedded Z3 solver.
type Solver struct {
	ctx   *Context
	stats Stats
}

// NewSolver returns a new instance of Solver.
func NewSolver() *Solver {
	return &Solver{
		ctx: NewContext(),
	}
}

// Close deletes the underlying Z3 context.
func (s *Solver) Close() error {
	return s.ctx.Close()
}

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats {
	return s.stats
}

// Solve asserts the given constraint trees and checks satisfiability.
// Constraints must be boolean formulas (EQ roots). If satisfiable and
// registers is non-empty, one concrete 64-bit model value is returned
// per register, in order. All memory operands across the constraints
// refer to one flat array, so aliasing between them is decided exactly
// by the array theory.
func (s *Solver) Solve(constraints []rop.Operand, registers []*rop.Register) (satisfiable bool, values []uint64, err error) {
	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
	}()

	solver := C.Z3_mk_solver(s.ctx.raw)
	if err := s.ctx.err("Z3_mk_solver"); err != nil {
		return false, nil, err
	}
	C.Z3_solver_inc_ref(s.ctx.raw, solver)
	defer C.Z3_solver_dec_ref(s.ctx.raw, solver)

	// Assert constraints.
	for _, constraint := range constraints {
		z3Constraint, err := s.ctx.toAST(constraint)
		if err != nil {
			return false, nil, err
		}
		C.Z3_solver_assert(s.ctx.raw, solver, z3Constraint)
		if err := s.ctx.err("Z3_solver_assert"); err != nil {
			return false, nil, err
		}
	}

	// Check equations with the solver.
	// Exit immediately if unsatisfiable or the solver encountered an error.
	ret := C.Z3_solver_check(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return false, nil, err
	} else if ret == C.Z3_L_FALSE {
		return false, nil, nil
	} else if ret == C.Z3_L_UNDEF {
		reason := C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, solver))
		switch {
		case strings.Contains(reason, "timeout"):
			return false, nil, rop.ErrSolverTimeout
		case strings.Contains(reason, "canceled"):
			return false, nil, rop.ErrSolverCanceled
		case strings.Contains(reason, "(resource limits reached)"):
			return false, nil, rop.ErrSolverResourceLimit
		case strings.Contains(reason, "unknown"):
			return false, nil, rop.ErrSolverUnknown
		default:
			return false, nil, fmt.Errorf("z3: %s", reason)
		}
	} else if len(registers) == 0 {
		return true, nil, nil // no symbolics, ignore model
	}

	// Calculate a model for the given formula.
	model := C.Z3_solver_get_model(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_get_model"); err != nil {
		return true, nil, err
	}
	C.Z3_model_inc_ref(s.ctx.raw, model)
	defer C.Z3_model_dec_ref(s.ctx.raw, model)

	// Fetch values for symbolic registers.
	values, err = s.ctx.eval(model, registers)
	if err != nil {
		return true, nil, err
	}
	return true, values, nil
}

// Context represents a Z3 context object that is used for constructing expressions.
type Context struct {
	raw C.Z3_context
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{raw: raw}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return ctx.err("Z3_del_context")
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

// toAST returns a new instance of Z3_ast from an operand tree.
func (ctx *Context) toAST(op rop.Operand) (C.Z3_ast, error) {
	switch op := op.(type) {
	case *rop.Constant:
		return ctx.toConstantAST(op)
	case *rop.Register:
		return ctx.toRegisterAST(op)
	case *rop.Memory:
		return ctx.toMemoryAST(op)
	case *rop.BinaryExpr:
		return ctx.toBinaryAST(op)
	default:
		return nil, fmt.Errorf("z3.Context.toAST: invalid operand type: %T", op)
	}
}

func (ctx *Context) toConstantAST(op *rop.Constant) (C.Z3_ast, error) {
	return ctx.makeUint64(rop.Width64, op.Value)
}

// toRegisterAST returns a bit-vector constant named by the register's
// formula name. Same handle, same Z3 constant; different handles never
// unify even when the register names match.
func (ctx *Context) toRegisterAST(op *rop.Register) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(op.Size * 8)
	if err != nil {
		return nil, err
	}

	cname := C.CString(op.FormulaName())
	defer C.free(unsafe.Pointer(cname))
	nameSymbol := C.Z3_mk_string_symbol(ctx.raw, cname)

	return C.Z3_mk_const(ctx.raw, nameSymbol, t), ctx.err("Z3_mk_const")
}

func (ctx *Context) toMemoryAST(op *rop.Memory) (C.Z3_ast, error) {
	array, err := ctx.makeMemoryArray()
	if err != nil {
		return nil, err
	}
	addr, err := ctx.toAST(op.Addr)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_select(ctx.raw, array, addr), ctx.err("Z3_mk_select")
}

func (ctx *Context) toBinaryAST(op *rop.BinaryExpr) (C.Z3_ast, error) {
	if op.Op == rop.STORE {
		return ctx.toStoreAST(op)
	}

	lhs, err := ctx.toAST(op.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(op.RHS)
	if err != nil {
		return nil, err
	}

	switch op.Op {
	case rop.ADD:
		return C.Z3_mk_bvadd(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvadd")
	case rop.SUB:
		return C.Z3_mk_bvsub(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsub")
	case rop.MUL:
		return C.Z3_mk_bvmul(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvmul")
	case rop.AND:
		return C.Z3_mk_bvand(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvand")
	case rop.OR:
		return C.Z3_mk_bvor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvor")
	case rop.XOR:
		return C.Z3_mk_bvxor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvxor")
	case rop.EQ:
		return C.Z3_mk_eq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_eq")
	default:
		return nil, fmt.Errorf("z3.Context.toBinaryAST: unexpected operation: %s", op.Op)
	}
}

// toStoreAST returns the memory array updated with the written value.
// The LHS of a STORE is the destination address, the RHS the value.
func (ctx *Context) toStoreAST(op *rop.BinaryExpr) (C.Z3_ast, error) {
	array, err := ctx.makeMemoryArray()
	if err != nil {
		return nil, err
	}
	addr, err := ctx.toAST(op.LHS)
	if err != nil {
		return nil, err
	}
	value, err := ctx.toAST(op.RHS)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_store(ctx.raw, array, addr, value), ctx.err("Z3_mk_store")
}

// makeMemoryArray returns the single flat memory array: 64-bit addresses
// to 64-bit values. Every formula built in this context names the same
// array, so the array theory captures aliasing across formulas.
func (ctx *Context) makeMemoryArray() (C.Z3_ast, error) {
	domainSort := C.Z3_mk_bv_sort(ctx.raw, C.uint(rop.Width64))
	if err := ctx.err("Z3_mk_bv_sort[domain]"); err != nil {
		return nil, err
	}
	rangeSort := C.Z3_mk_bv_sort(ctx.raw, C.uint(rop.Width64))
	if err := ctx.err("Z3_mk_bv_sort[range]"); err != nil {
		return nil, err
	}
	arraySort := C.Z3_mk_array_sort(ctx.raw, domainSort, rangeSort)
	if err := ctx.err("Z3_mk_array_sort"); err != nil {
		return nil, err
	}

	cname := C.CString(rop.MemoryArrayName)
	defer C.free(unsafe.Pointer(cname))
	nameSymbol := C.Z3_mk_string_symbol(ctx.raw, cname)

	return C.Z3_mk_const(ctx.raw, nameSymbol, arraySort), ctx.err("Z3_mk_const")
}

func (ctx *Context) makeBVSort(width uint) (C.Z3_sort, error) {
	return C.Z3_mk_bv_sort(ctx.raw, C.uint(width)), ctx.err("Z3_mk_bv_sort")
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.ulonglong(value), t), ctx.err("Z3_mk_unsigned_int64")
}

// eval evaluates registers into their concrete model values.
func (ctx *Context) eval(model C.Z3_model, registers []*rop.Register) ([]uint64, error) {
	values := make([]uint64, 0, len(registers))
	for _, reg := range registers {
		value, err := ctx.evalRegister(model, reg)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// evalRegister evaluates a single register variable against the model.
func (ctx *Context) evalRegister(model C.Z3_model, reg *rop.Register) (uint64, error) {
	z3Reg, err := ctx.toRegisterAST(reg)
	if err != nil {
		return 0, err
	}

	// Evaluate the register variable against the Z3 model.
	var z3Expr C.Z3_ast
	C.Z3_model_eval(ctx.raw, model, z3Reg, C.bool(true), &z3Expr)
	if err := ctx.err("Z3_model_eval"); err != nil {
		return 0, err
	}

	// Extract the 64-bit value from the evaluation.
	var z3Value C.uint64_t
	C.Z3_get_numeral_uint64(ctx.raw, z3Expr, &z3Value)
	if err := ctx.err("Z3_get_numeral_uint64"); err != nil {
		return 0, err
	}
	return uint64(z3Value), nil
}

func (ctx *Context) astToString(ast C.Z3_ast) string {
	return C.GoString(C.Z3_ast_to_string(ctx.raw, ast))
}

func (ctx *Context) modelToString(model C.Z3_model) string {
	return C.GoString(C.Z3_model_to_string(ctx.raw, model))
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Possible error codes.
const (
	ErrorCodeOK = iota
	ErrorCodeSortError
	ErrorCodeIOB
	ErrorCodeInvalidArg
	ErrorCodeParserError
	ErrorCodeNoParser
	ErrorCodeInvalidPattern
	ErrorCodeMemoutFail
	ErrorCodeFileAccessError
	ErrorCodeInternalFatal
	ErrorCodeInvalidUsage
	ErrorCodeDecRefError
	ErrorCodeException
)

type Stats struct {
	SolveN    int
	SolveTime time.Duration
}
