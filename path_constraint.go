package sympath

import (
	"fmt"
)

// BranchConstraint describes one enumerated outgoing edge of a branch
// instruction. SrcAddr is the address of the branching instruction and
// DstAddr is the target of this edge; for the fallthrough edge of a
// conditional jump DstAddr is the next instruction address. Constraint is
// the predicate under which this edge is followed.
type BranchConstraint struct {
	IsTaken    bool
	SrcAddr    uint64
	DstAddr    uint64
	Constraint Expr
}

// String returns the string representation of the branch constraint.
func (b BranchConstraint) String() string {
	return fmt.Sprintf("(branch taken=%v src=%#x dst=%#x %s)", b.IsTaken, b.SrcAddr, b.DstAddr, b.Constraint)
}

// PathConstraint records a single branch point of an execution trace: the
// full set of enumerated edges leaving one branch instruction, exactly one
// of which was concretely taken.
//
// A path constraint is immutable after construction except for its comment.
// A conditional jump produces two branch constraints; a jump-table dispatch
// produces one per enumerated target. Duplicate destination addresses are
// kept as distinct records since their predicates differ.
type PathConstraint struct {
	branches    []BranchConstraint
	threadID    int32
	hasThreadID bool
	comment     string
}

// NewPathConstraint returns a new instance of PathConstraint with no thread
// tracking. Panic if branches is empty, if it does not contain exactly one
// taken branch, or if the branches disagree on their source address.
func NewPathConstraint(branches ...BranchConstraint) *PathConstraint {
	pc := &PathConstraint{branches: make([]BranchConstraint, len(branches))}
	copy(pc.branches, branches)
	pc.validate()
	return pc
}

// NewPathConstraintForThread returns a new instance of PathConstraint tagged
// with the id of the target thread that executed the branch.
func NewPathConstraintForThread(threadID int32, branches ...BranchConstraint) *PathConstraint {
	pc := NewPathConstraint(branches...)
	pc.threadID = threadID
	pc.hasThreadID = true
	return pc
}

// NewConditionalPathConstraint returns the two-edge path constraint for a
// conditional jump at src. cond is the predicate under which the jump is
// taken; taken reports whether the concrete execution took it. The taken
// edge keeps cond and the fallthrough edge is guarded by its negation.
func NewConditionalPathConstraint(src, takenDst, fallthroughDst uint64, cond Expr, taken bool) *PathConstraint {
	return NewPathConstraint(
		BranchConstraint{IsTaken: taken, SrcAddr: src, DstAddr: takenDst, Constraint: cond},
		BranchConstraint{IsTaken: !taken, SrcAddr: src, DstAddr: fallthroughDst, Constraint: NewNotExpr(cond)},
	)
}

// validate enforces the construction contract. A violation is a bug in the
// producing semantics engine, not a recoverable runtime condition.
func (pc *PathConstraint) validate() {
	assert(len(pc.branches) > 0, "path constraint requires at least one branch")

	src := pc.branches[0].SrcAddr
	var taken int
	for i, b := range pc.branches {
		assert(b.Constraint != nil, "branch constraint requires a predicate: i=%d", i)
		assert(b.SrcAddr == src, "branch source address mismatch: %#x != %#x", b.SrcAddr, src)
		if b.IsTaken {
			taken++
		}
	}
	assert(taken == 1, "path constraint requires exactly one taken branch: n=%d", taken)
}

// Branches returns a copy of all branch constraints in edge-enumeration order.
func (pc *PathConstraint) Branches() []BranchConstraint {
	a := make([]BranchConstraint, len(pc.branches))
	copy(a, pc.branches)
	return a
}

// Comment returns the comment of the path constraint.
func (pc *PathConstraint) Comment() string {
	return pc.comment
}

// SetComment sets the comment of the path constraint, overwriting any
// previous value. This is the only mutation allowed after construction.
func (pc *PathConstraint) SetComment(comment string) {
	pc.comment = comment
}

// SourceAddress returns the address of the branch instruction.
func (pc *PathConstraint) SourceAddress() uint64 {
	return pc.branches[0].SrcAddr
}

// TakenAddress returns the destination address of the taken branch.
func (pc *PathConstraint) TakenAddress() uint64 {
	return pc.taken().DstAddr
}

// TakenPredicate returns the predicate of the taken branch.
func (pc *PathConstraint) TakenPredicate() Expr {
	return pc.taken().Constraint
}

// ThreadID returns the id of the thread that produced this constraint.
// Returns false if the trace did not track thread ids.
func (pc *PathConstraint) ThreadID() (int32, bool) {
	return pc.threadID, pc.hasThreadID
}

// IsMultipleBranches returns true if the branch point has more than the
// binary fan-out of a conditional jump, e.g. a jump-table dispatch. Callers
// enumerating untaken edges must then consider every edge, not just "the
// other side."
func (pc *PathConstraint) IsMultipleBranches() bool {
	return len(pc.branches) > 2
}

// String returns the string representation of the path constraint.
func (pc *PathConstraint) String() string {
	return fmt.Sprintf("(pc src=%#x taken=%#x branches=%d)", pc.SourceAddress(), pc.TakenAddress(), len(pc.branches))
}

// taken returns the unique taken branch. The construction contract makes
// this unreachable for anything but a taken branch being present.
func (pc *PathConstraint) taken() *BranchConstraint {
	for i := range pc.branches {
		if pc.branches[i].IsTaken {
			return &pc.branches[i]
		}
	}
	panic("sympath: path constraint has no taken branch")
}
