package sympath

import (
	"errors"
	"sync"

	"github.com/benbjohnson/immutable"
)

var ErrTrailIndexOutOfRange = errors.New("sympath: trail index out of range")

// Trail records the ordered sequence of path constraints produced across one
// execution. Entries are appended in creation order, which is execution
// order; nothing ever removes an entry from the middle.
//
// Append is safe for concurrent use so that multiple analysis threads may
// share one trail. Ordering between interleaved appends from different
// target threads is inherent to the target program; consumers disambiguate
// with the per-constraint thread id, not trail order. Readers always operate
// on an immutable snapshot, so a consumer's view cannot be invalidated by
// later appends.
type Trail struct {
	mu      sync.Mutex
	entries *immutable.List
}

// NewTrail returns a new instance of Trail.
func NewTrail() *Trail {
	return &Trail{entries: immutable.NewList()}
}

// Append adds pc to the end of the trail.
func (t *Trail) Append(pc *PathConstraint) {
	assert(pc != nil, "cannot append nil path constraint")

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = t.entries.Append(pc)
}

// Len returns the number of path constraints in the trail.
func (t *Trail) Len() int {
	return t.snapshot().Len()
}

// All returns every path constraint in execution order.
func (t *Trail) All() []*PathConstraint {
	entries := t.snapshot()

	a := make([]*PathConstraint, 0, entries.Len())
	for itr := entries.Iterator(); !itr.Done(); {
		_, value := itr.Next()
		a = append(a, value.(*PathConstraint))
	}
	return a
}

// ForThread returns the path constraints produced by the given target
// thread, in execution order. Constraints without thread tracking are
// never returned.
func (t *Trail) ForThread(threadID int32) []*PathConstraint {
	var a []*PathConstraint
	for _, pc := range t.All() {
		if id, ok := pc.ThreadID(); ok && id == threadID {
			a = append(a, pc)
		}
	}
	return a
}

// PathPredicate returns the conjunction of every taken-branch predicate in
// execution order. An empty trail yields the constant true predicate so the
// result can always be conjoined further.
func (t *Trail) PathPredicate() Expr {
	entries := t.snapshot()
	return conjoin(entries, entries.Len())
}

// PrefixPredicate returns the conjunction of the first n entries' taken
// predicates. Returns ErrTrailIndexOutOfRange if n exceeds the entry count.
func (t *Trail) PrefixPredicate(n int) (Expr, error) {
	entries := t.snapshot()
	if n < 0 || n > entries.Len() {
		return nil, ErrTrailIndexOutOfRange
	}
	return conjoin(entries, n), nil
}

// AlternatePredicates returns, for each untaken edge of entry i, the
// predicate "follow the first i entries, then take this edge": the prefix
// conjunction AND the edge's own constraint. Solving one of these yields an
// input that diverges from the recorded path at entry i.
func (t *Trail) AlternatePredicates(i int) ([]Expr, error) {
	entries := t.snapshot()
	if i < 0 || i >= entries.Len() {
		return nil, ErrTrailIndexOutOfRange
	}

	prefix := conjoin(entries, i)
	pc := entries.Get(i).(*PathConstraint)

	var a []Expr
	for _, b := range pc.Branches() {
		if b.IsTaken {
			continue
		}
		a = append(a, NewBinaryExpr(AND, prefix, b.Constraint))
	}
	return a, nil
}

// Truncate discards every entry after the first n. This is the only undo the
// trail supports; it is a boundary decision of the instrumentation layer,
// typically when rewinding a target to a checkpoint.
func (t *Trail) Truncate(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n < 0 || n > t.entries.Len() {
		return ErrTrailIndexOutOfRange
	}
	t.entries = t.entries.Slice(0, n)
	return nil
}

// snapshot returns the current entry list. The list is immutable so the
// caller may use it without holding the lock.
func (t *Trail) snapshot() *immutable.List {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries
}

// conjoin returns the conjunction of the first n entries' taken predicates.
// Returns the constant true predicate if n is zero.
func conjoin(entries *immutable.List, n int) Expr {
	predicate := Expr(NewBoolConstantExpr(true))
	for i := 0; i < n; i++ {
		pc := entries.Get(i).(*PathConstraint)
		predicate = NewBinaryExpr(AND, predicate, pc.TakenPredicate())
	}
	return predicate
}
