package sympath_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sympath/sympath"
)

func TestNewPathConstraint(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		cond := sympath.NewBinaryExpr(sympath.ULT, sympath.NewVarExpr("x", 32), sympath.NewConstantExpr32(10))
		pc := sympath.NewPathConstraint(
			sympath.BranchConstraint{IsTaken: true, SrcAddr: 0x1000, DstAddr: 0x1010, Constraint: cond},
			sympath.BranchConstraint{IsTaken: false, SrcAddr: 0x1000, DstAddr: 0x1008, Constraint: sympath.NewNotExpr(cond)},
		)

		if addr := pc.SourceAddress(); addr != 0x1000 {
			t.Fatalf("unexpected source address: %#x", addr)
		} else if addr := pc.TakenAddress(); addr != 0x1010 {
			t.Fatalf("unexpected taken address: %#x", addr)
		} else if diff := cmp.Diff(cond, pc.TakenPredicate()); diff != "" {
			t.Fatal(diff)
		} else if pc.IsMultipleBranches() {
			t.Fatal("expected two-way branch")
		}
	})

	t.Run("BranchesReturnsCopy", func(t *testing.T) {
		pc := sympath.NewPathConstraint(
			sympath.BranchConstraint{IsTaken: true, SrcAddr: 0x1000, DstAddr: 0x1010, Constraint: sympath.NewBoolConstantExpr(true)},
		)

		branches := pc.Branches()
		branches[0].DstAddr = 0xDEAD
		if addr := pc.TakenAddress(); addr != 0x1010 {
			t.Fatalf("unexpected taken address: %#x", addr)
		}
	})

	t.Run("ErrNoBranches", func(t *testing.T) {
		mustPanic(t, "at least one branch", func() {
			sympath.NewPathConstraint()
		})
	})

	t.Run("ErrNilPredicate", func(t *testing.T) {
		mustPanic(t, "requires a predicate", func() {
			sympath.NewPathConstraint(
				sympath.BranchConstraint{IsTaken: true, SrcAddr: 0x1000, DstAddr: 0x1010},
			)
		})
	})

	t.Run("ErrSourceAddressMismatch", func(t *testing.T) {
		mustPanic(t, "source address mismatch", func() {
			sympath.NewPathConstraint(
				sympath.BranchConstraint{IsTaken: true, SrcAddr: 0x1000, DstAddr: 0x1010, Constraint: sympath.NewBoolConstantExpr(true)},
				sympath.BranchConstraint{IsTaken: false, SrcAddr: 0x2000, DstAddr: 0x1008, Constraint: sympath.NewBoolConstantExpr(false)},
			)
		})
	})

	t.Run("ErrNoTakenBranch", func(t *testing.T) {
		mustPanic(t, "exactly one taken branch", func() {
			sympath.NewPathConstraint(
				sympath.BranchConstraint{IsTaken: false, SrcAddr: 0x1000, DstAddr: 0x1010, Constraint: sympath.NewBoolConstantExpr(true)},
			)
		})
	})

	t.Run("ErrMultipleTakenBranches", func(t *testing.T) {
		mustPanic(t, "exactly one taken branch", func() {
			sympath.NewPathConstraint(
				sympath.BranchConstraint{IsTaken: true, SrcAddr: 0x1000, DstAddr: 0x1010, Constraint: sympath.NewBoolConstantExpr(true)},
				sympath.BranchConstraint{IsTaken: true, SrcAddr: 0x1000, DstAddr: 0x1008, Constraint: sympath.NewBoolConstantExpr(false)},
			)
		})
	})
}

func TestNewConditionalPathConstraint(t *testing.T) {
	cond := sympath.NewBinaryExpr(sympath.ULT, sympath.NewVarExpr("x", 32), sympath.NewConstantExpr32(10))

	t.Run("Taken", func(t *testing.T) {
		pc := sympath.NewConditionalPathConstraint(0x1000, 0x1010, 0x1008, cond, true)
		if addr := pc.TakenAddress(); addr != 0x1010 {
			t.Fatalf("unexpected taken address: %#x", addr)
		} else if diff := cmp.Diff(cond, pc.TakenPredicate()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("NotTaken", func(t *testing.T) {
		pc := sympath.NewConditionalPathConstraint(0x1000, 0x1010, 0x1008, cond, false)
		if addr := pc.TakenAddress(); addr != 0x1008 {
			t.Fatalf("unexpected taken address: %#x", addr)
		} else if diff := cmp.Diff(sympath.NewNotExpr(cond), pc.TakenPredicate()); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestPathConstraint_ThreadID(t *testing.T) {
	t.Run("Tracked", func(t *testing.T) {
		pc := sympath.NewPathConstraintForThread(3,
			sympath.BranchConstraint{IsTaken: true, SrcAddr: 0x1000, DstAddr: 0x1010, Constraint: sympath.NewBoolConstantExpr(true)},
		)
		if id, ok := pc.ThreadID(); !ok {
			t.Fatal("expected tracked thread id")
		} else if id != 3 {
			t.Fatalf("unexpected thread id: %d", id)
		}
	})

	t.Run("Untracked", func(t *testing.T) {
		pc := sympath.NewPathConstraint(
			sympath.BranchConstraint{IsTaken: true, SrcAddr: 0x1000, DstAddr: 0x1010, Constraint: sympath.NewBoolConstantExpr(true)},
		)
		if _, ok := pc.ThreadID(); ok {
			t.Fatal("expected untracked thread id")
		}
	})

	t.Run("Zero", func(t *testing.T) {
		pc := sympath.NewPathConstraintForThread(0,
			sympath.BranchConstraint{IsTaken: true, SrcAddr: 0x1000, DstAddr: 0x1010, Constraint: sympath.NewBoolConstantExpr(true)},
		)
		if id, ok := pc.ThreadID(); !ok || id != 0 {
			t.Fatalf("expected tracked thread id 0, got %d (%v)", id, ok)
		}
	})
}

func TestPathConstraint_Comment(t *testing.T) {
	pc := sympath.NewPathConstraint(
		sympath.BranchConstraint{IsTaken: true, SrcAddr: 0x1000, DstAddr: 0x1010, Constraint: sympath.NewBoolConstantExpr(true)},
	)

	if s := pc.Comment(); s != "" {
		t.Fatalf("unexpected initial comment: %q", s)
	}

	pc.SetComment("cmp eax, 10 ; 判定")
	if s := pc.Comment(); s != "cmp eax, 10 ; 判定" {
		t.Fatalf("unexpected comment: %q", s)
	}

	// Setting overwrites, including with the empty string.
	pc.SetComment("")
	if s := pc.Comment(); s != "" {
		t.Fatalf("unexpected comment: %q", s)
	}
}

func TestPathConstraint_IsMultipleBranches(t *testing.T) {
	x := sympath.NewVarExpr("x", 64)

	// A jump table enumerates one edge per target. Duplicate destinations
	// stay distinct because their predicates differ.
	pc := sympath.NewPathConstraint(
		sympath.BranchConstraint{IsTaken: false, SrcAddr: 0x2000, DstAddr: 0x2010, Constraint: sympath.NewBinaryExpr(sympath.EQ, x, sympath.NewConstantExpr64(0))},
		sympath.BranchConstraint{IsTaken: true, SrcAddr: 0x2000, DstAddr: 0x2020, Constraint: sympath.NewBinaryExpr(sympath.EQ, x, sympath.NewConstantExpr64(1))},
		sympath.BranchConstraint{IsTaken: false, SrcAddr: 0x2000, DstAddr: 0x2010, Constraint: sympath.NewBinaryExpr(sympath.EQ, x, sympath.NewConstantExpr64(2))},
	)

	if !pc.IsMultipleBranches() {
		t.Fatal("expected multi-way branch")
	} else if n := len(pc.Branches()); n != 3 {
		t.Fatalf("unexpected branch count: %d", n)
	}
}

// mustPanic runs fn and fails unless it panics with a message containing substr.
func mustPanic(tb testing.TB, substr string, fn func()) {
	tb.Helper()
	defer func() {
		r := recover()
		if r == nil {
			tb.Fatal("expected panic")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, substr) {
			tb.Fatalf("unexpected panic: %v", r)
		}
	}()
	fn()
}
