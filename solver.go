package sympath

// Solver determines satisfiability of a set of constraints.
type Solver interface {
	// Returns the satisfiability of the set of constraints. If the formula
	// is satisfiable, a valid value is returned for each variable passed in.
	Solve(constraints []Expr, vars []*VarExpr) (satisfiable bool, values []uint64, err error)
}

// Divergence describes an input that follows a recorded path up to one
// branch point and then takes an edge the recorded execution did not take.
type Divergence struct {
	Entry  int              // index of the path constraint in the trail
	Branch BranchConstraint // the untaken edge being forced

	// Satisfying assignment, one value per variable.
	Vars   []*VarExpr
	Values []uint64
}

// Explorer computes diverging inputs for a recorded trail by negating the
// recorded control flow one branch point at a time.
type Explorer struct {
	solver Solver
}

// NewExplorer returns a new instance of Explorer using the given solver.
func NewExplorer(solver Solver) *Explorer {
	return &Explorer{solver: solver}
}

// Explore returns a divergence for every untaken edge in the trail whose
// alternate predicate is satisfiable. Results are ordered by entry index,
// then by edge-enumeration order within a branch point.
func (e *Explorer) Explore(trail *Trail) ([]*Divergence, error) {
	var a []*Divergence
	for i, n := 0, trail.Len(); i < n; i++ {
		divergences, err := e.ExploreAt(trail, i)
		if err != nil {
			return nil, err
		}
		a = append(a, divergences...)
	}
	return a, nil
}

// ExploreAt returns a divergence for each satisfiable untaken edge of the
// i-th path constraint in the trail.
func (e *Explorer) ExploreAt(trail *Trail, i int) ([]*Divergence, error) {
	entries := trail.All()
	if i < 0 || i >= len(entries) {
		return nil, ErrTrailIndexOutOfRange
	}
	pc := entries[i]

	prefix, err := trail.PrefixPredicate(i)
	if err != nil {
		return nil, err
	}

	var a []*Divergence
	for _, branch := range pc.Branches() {
		if branch.IsTaken {
			continue
		}

		// Conjoin the prefix with the raw predicate of the alternate edge.
		// Split AND conjunctions so the solver sees independent constraints.
		var constraints []Expr
		constraints = AddConstraint(constraints, prefix)
		constraints = AddConstraint(constraints, branch.Constraint)
		vars := FindVars(constraints...)

		satisfiable, values, err := e.solver.Solve(constraints, vars)
		if err != nil {
			return nil, err
		} else if !satisfiable {
			continue
		}

		a = append(a, &Divergence{
			Entry:  i,
			Branch: branch,
			Vars:   vars,
			Values: values,
		})
	}
	return a, nil
}
