package rop_test

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	rop "github.com/secretnonempty/rop-compiler"
)

func TestConstant_String(t *testing.T) {
	if s := rop.NewConstant(4660).String(); s != "4660" {
		t.Fatalf("unexpected string: %s", s)
	}
}

func TestRegister_String(t *testing.T) {
	if s := rop.NewRegisterWithHandle("rbx", 3).String(); s != "rbx" {
		t.Fatalf("unexpected string: %s", s)
	}
}

func TestRegister_FormulaName(t *testing.T) {
	if s := rop.NewRegisterWithHandle("rbx", 3).FormulaName(); s != "rbx#3" {
		t.Fatalf("unexpected formula name: %s", s)
	}
}

func TestRegister_Handles(t *testing.T) {
	t.Run("Fresh", func(t *testing.T) {
		// Two instances with no explicit handle never denote the same
		// solver variable, even though the names match.
		r0, r1 := rop.NewRegister("rbx"), rop.NewRegister("rbx")
		if r0.Handle == r1.Handle {
			t.Fatalf("expected distinct handles, got %d", r0.Handle)
		} else if r0.FormulaName() == r1.FormulaName() {
			t.Fatalf("expected distinct formula names, got %s", r0.FormulaName())
		}
	})
	t.Run("Explicit", func(t *testing.T) {
		r0 := rop.NewRegisterWithHandle("rbx", 7)
		r1 := rop.NewRegisterWithHandle("rbx", 7)
		if r0.FormulaName() != r1.FormulaName() {
			t.Fatalf("unexpected formula names: %s != %s", r0.FormulaName(), r1.FormulaName())
		}
	})
	t.Run("Fields", func(t *testing.T) {
		r := rop.NewRegister("rax")
		if r.Size != 8 {
			t.Fatalf("unexpected size: %d", r.Size)
		} else if r.Start != -1 {
			t.Fatalf("unexpected start: %d", r.Start)
		}
	})
}

func TestRegister_SameRegister(t *testing.T) {
	t.Run("SameNameDifferentHandle", func(t *testing.T) {
		if !rop.NewRegisterWithHandle("rbx", 0).SameRegister(rop.NewRegisterWithHandle("rbx", 1)) {
			t.Fatal("expected true")
		}
	})
	t.Run("DifferentName", func(t *testing.T) {
		if rop.NewRegisterWithHandle("rbx", 0).SameRegister(rop.NewRegisterWithHandle("rax", 0)) {
			t.Fatal("expected false")
		}
	})
	t.Run("Nil", func(t *testing.T) {
		if rop.NewRegisterWithHandle("rbx", 0).SameRegister(nil) {
			t.Fatal("expected false")
		}
	})
	t.Run("ByName", func(t *testing.T) {
		r := rop.NewRegisterWithHandle("rbx", 0)
		if !r.SameRegisterName("rbx") {
			t.Fatal("expected true")
		} else if r.SameRegisterName("rax") {
			t.Fatal("expected false")
		}
	})
}

func TestIsIPOrSP(t *testing.T) {
	t.Run("RIP", func(t *testing.T) {
		if !rop.IsIPOrSP(rop.NewRegisterWithHandle("rip", 0)) {
			t.Fatal("expected true")
		}
	})
	t.Run("RSP", func(t *testing.T) {
		if !rop.IsIPOrSP(rop.NewRegisterWithHandle("rsp", 0)) {
			t.Fatal("expected true")
		}
	})
	t.Run("Other", func(t *testing.T) {
		if rop.IsIPOrSP(rop.NewRegisterWithHandle("rax", 0)) {
			t.Fatal("expected false")
		}
	})
	t.Run("NonRegister", func(t *testing.T) {
		if rop.IsIPOrSP(rop.NewConstant(0)) {
			t.Fatal("expected false")
		}
	})
}

func TestMemory_String(t *testing.T) {
	m := rop.NewMemory(rop.NewAdd(rop.NewRegisterWithHandle("rbx", 0), rop.NewConstant(8)))
	if s := m.String(); s != "Mem[(rbx + 8)]" {
		t.Fatalf("unexpected string: %s", s)
	}
}

func TestMemory_Size(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		if sz := rop.NewMemory(rop.NewConstant(0)).Size; sz != 8 {
			t.Fatalf("unexpected size: %d", sz)
		}
	})
	t.Run("Declared", func(t *testing.T) {
		// The declared size is advisory; formulas still model 8-byte cells.
		if sz := rop.NewMemorySized(rop.NewConstant(0), 4).Size; sz != 4 {
			t.Fatalf("unexpected size: %d", sz)
		}
	})
}

func TestBinaryOp_String(t *testing.T) {
	t.Run("Known", func(t *testing.T) {
		if s := rop.ADD.String(); s != "+" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
	t.Run("Unknown", func(t *testing.T) {
		if s := rop.BinaryOp(100).String(); s != "BinaryOp<100>" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
}

func TestBinaryOp_Classify(t *testing.T) {
	t.Run("IsArithmetic", func(t *testing.T) {
		if !rop.ADD.IsArithmetic() || !rop.XOR.IsArithmetic() {
			t.Fatal("expected true")
		} else if rop.EQ.IsArithmetic() || rop.STORE.IsArithmetic() {
			t.Fatal("expected false")
		}
	})
	t.Run("IsConstraint", func(t *testing.T) {
		if !rop.EQ.IsConstraint() {
			t.Fatal("expected true")
		} else if rop.ADD.IsConstraint() {
			t.Fatal("expected false")
		}
	})
	t.Run("IsStore", func(t *testing.T) {
		if !rop.STORE.IsStore() {
			t.Fatal("expected true")
		} else if rop.EQ.IsStore() {
			t.Fatal("expected false")
		}
	})
}

func TestBinaryExpr_String(t *testing.T) {
	t.Run("Infix", func(t *testing.T) {
		expr := rop.NewEqual(
			rop.NewAdd(rop.NewRegisterWithHandle("rbx", 0), rop.NewConstant(8)),
			rop.NewConstant(10),
		)
		if s := expr.String(); s != "((rbx + 8) = 10)" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
	t.Run("Store", func(t *testing.T) {
		expr := rop.NewStore(rop.NewRegisterWithHandle("rsp", 0), rop.NewConstant(10))
		if s := expr.String(); s != "(store rsp 10)" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
}

func TestFindRegisters(t *testing.T) {
	t.Run("DedupeByHandle", func(t *testing.T) {
		r0 := rop.NewRegisterWithHandle("rbx", 0)
		r1 := rop.NewRegisterWithHandle("rbx", 1)
		tree := rop.NewEqual(rop.NewAdd(r0, rop.NewConstant(8)), r1)

		a := rop.FindRegisters(tree, rop.NewMemory(rop.NewRegisterWithHandle("rbx", 1)))
		if diff := cmp.Diff(a, []*rop.Register{r0, r1}); diff != "" {
			t.Fatalf("unexpected registers:\n%s\n%s", diff, spew.Sdump(a))
		}
	})
	t.Run("SortedByHandle", func(t *testing.T) {
		r4 := rop.NewRegisterWithHandle("rax", 4)
		r2 := rop.NewRegisterWithHandle("rcx", 2)
		a := rop.FindRegisters(rop.NewAdd(r4, r2))
		if diff := cmp.Diff(a, []*rop.Register{r2, r4}); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("None", func(t *testing.T) {
		if a := rop.FindRegisters(rop.NewAdd(rop.NewConstant(1), rop.NewConstant(2))); len(a) != 0 {
			t.Fatalf("unexpected registers: %s", spew.Sdump(a))
		}
	})
}

func TestUsesMemory(t *testing.T) {
	t.Run("Read", func(t *testing.T) {
		tree := rop.NewEqual(rop.NewMemory(rop.NewConstant(0x1234)), rop.NewConstant(99))
		if !rop.UsesMemory(tree) {
			t.Fatal("expected true")
		}
	})
	t.Run("Store", func(t *testing.T) {
		if !rop.UsesMemory(rop.NewStore(rop.NewConstant(0x1234), rop.NewConstant(99))) {
			t.Fatal("expected true")
		}
	})
	t.Run("RegistersOnly", func(t *testing.T) {
		if rop.UsesMemory(rop.NewAdd(rop.NewRegisterWithHandle("rbx", 0), rop.NewConstant(8))) {
			t.Fatal("expected false")
		}
	})
}

func TestCompareOperand(t *testing.T) {
	t.Run("Equal", func(t *testing.T) {
		a := rop.NewEqual(rop.NewAdd(rop.NewRegisterWithHandle("rbx", 0), rop.NewConstant(8)), rop.NewConstant(10))
		b := rop.NewEqual(rop.NewAdd(rop.NewRegisterWithHandle("rbx", 0), rop.NewConstant(8)), rop.NewConstant(10))
		if v := rop.CompareOperand(a, b); v != 0 {
			t.Fatalf("unexpected comparison: %d", v)
		}
	})
	t.Run("HandleOrder", func(t *testing.T) {
		a := rop.NewRegisterWithHandle("rbx", 0)
		b := rop.NewRegisterWithHandle("rbx", 1)
		if v := rop.CompareOperand(a, b); v != -1 {
			t.Fatalf("unexpected comparison: %d", v)
		}
	})
	t.Run("KindOrder", func(t *testing.T) {
		if v := rop.CompareOperand(rop.NewConstant(0), rop.NewRegisterWithHandle("rbx", 0)); v != -1 {
			t.Fatalf("unexpected comparison: %d", v)
		}
	})
	t.Run("Nil", func(t *testing.T) {
		if v := rop.CompareOperand(nil, nil); v != 0 {
			t.Fatalf("unexpected comparison: %d", v)
		}
	})
}
