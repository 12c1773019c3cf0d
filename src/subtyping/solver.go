package subtyping

import (
	"fmt"

	"github.com/tanema/steep/src/types"
)

// Unsatisfiable is the solver failure value: the recorded bounds of an unknown
// admit no solution. It is returned, never thrown, and callers convert it into
// a diagnostic for the offending expression.
type Unsatisfiable struct {
	Var   string
	Lower types.Type
	Upper types.Type
}

func (err *Unsatisfiable) Error() string {
	return fmt.Sprintf("unsatisfiable constraint %v <: %v <: %v", err.Lower, err.Var, err.Upper)
}

// Solve consumes a constraint store and produces a substitution that satisfies
// every recorded bound, or an *Unsatisfiable when none exists. The error may
// also be an *InvariantViolation when the store was corrupted, which is a
// programmer bug rather than a type error.
//
// Unknowns are classified by the shape of their bounds: determined unknowns
// bind directly to their single nontrivial bound, free unknowns default to Any,
// and double ended unknowns are verified and bound by the variance of the
// context.
func Solve(st *Constraints, checker *Checker, ctx Context) (types.Substitution, error) {
	subst := types.Substitution{}
	doubles := []string{}
	unbound := []string{}

	for _, v := range st.Unknowns() {
		lower, upper := st.Lower(v), st.Upper(v)
		lowerTrivial := types.Equal(lower, types.Bot)
		upperTrivial := types.Equal(upper, types.Top)
		switch {
		case lowerTrivial && upperTrivial:
			unbound = append(unbound, v)
		case lowerTrivial:
			subst[v] = upper
		case upperTrivial:
			subst[v] = lower
		default:
			doubles = append(doubles, v)
		}
	}

	if len(doubles) > 0 {
		relations := make([]Relation, len(doubles))
		nestedVars := []string{}
		seen := map[string]struct{}{}
		for i, v := range doubles {
			relations[i] = Relation{Sub: subst.Apply(st.Lower(v)), Sup: subst.Apply(st.Upper(v))}
			for _, rel := range []types.Type{relations[i].Sub, relations[i].Sup} {
				for _, name := range types.FreeVars(rel) {
					_, bound := subst[name]
					_, counted := seen[name]
					if st.IsUnknown(name) && !bound && !counted {
						seen[name] = struct{}{}
						nestedVars = append(nestedVars, name)
					}
				}
			}
		}

		// elimination keeps bounds free of unknowns, so a nested store that fails
		// to shrink signals a recursive bound the solver cannot make progress on
		if len(nestedVars) >= len(st.Unknowns()) {
			v := doubles[0]
			return nil, &Unsatisfiable{Var: v, Lower: st.Lower(v), Upper: st.Upper(v)}
		}

		nested := NewConstraints(nestedVars...)
		for i, v := range doubles {
			result, err := checker.Check(relations[i], ctx, nested)
			if err != nil {
				return nil, err
			}
			if !result.Success() {
				return nil, &Unsatisfiable{Var: v, Lower: st.Lower(v), Upper: st.Upper(v)}
			}
		}

		nestedSubst, err := Solve(nested, checker, ctx)
		if err != nil {
			return nil, err
		}
		subst.Merge(nestedSubst)

		for _, v := range doubles {
			lower := nestedSubst.Apply(st.Lower(v))
			upper := nestedSubst.Apply(st.Upper(v))
			switch ctx.Variance {
			case types.Contravariant:
				subst[v] = upper
			case types.Covariant:
				subst[v] = lower
			default:
				// invariant: the smaller tree wins, ties prefer the lower bound
				if types.Level(upper) < types.Level(lower) {
					subst[v] = upper
				} else {
					subst[v] = lower
				}
			}
		}
	}

	for _, v := range unbound {
		subst[v] = types.Any
	}
	return subst, nil
}
