// Package subtyping decides subtyping relations between steep types, records
// bounds on unknown type variables into constraint stores, and solves the
// accumulated constraints into substitutions.
package subtyping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tanema/steep/src/types"
)

type (
	// Constraints is a per inference site store of lower and upper bounds for the
	// unknown type variables the solver is allowed to bind. Stores are created
	// per method call resolution, mutated during checking, consumed by Solve, and
	// discarded.
	Constraints struct {
		unknowns map[string]struct{}
		rigid    map[string]struct{}
		lower    map[string][]types.Type
		upper    map[string][]types.Type
	}

	// InvariantViolation reports a broken store invariant. It is a programmer
	// bug, not a type error: callers terminate the current check and surface an
	// internal error instead of a diagnostic.
	InvariantViolation struct {
		Var    string
		Bound  types.Type
		Reason string
	}

	// mark remembers the bound list lengths of a store so that speculative
	// checking can roll back everything recorded after the mark.
	mark struct {
		lower map[string]int
		upper map[string]int
	}
)

func (err *InvariantViolation) Error() string {
	if err.Bound != nil {
		return fmt.Sprintf("constraint store invariant violated for %v with bound %v: %v", err.Var, err.Bound, err.Reason)
	}
	return fmt.Sprintf("constraint store invariant violated for %v: %v", err.Var, err.Reason)
}

// NewConstraints returns an empty store allowed to bind the given unknowns.
func NewConstraints(unknowns ...string) *Constraints {
	store := &Constraints{
		unknowns: map[string]struct{}{},
		rigid:    map[string]struct{}{},
		lower:    map[string][]types.Type{},
		upper:    map[string][]types.Type{},
	}
	for _, name := range unknowns {
		store.unknowns[name] = struct{}{}
	}
	return store
}

// AddVar registers variables that are free in the problem but must not be
// bound. A name cannot be both rigid and unknown.
func (c *Constraints) AddVar(names ...string) error {
	for _, name := range names {
		if _, unknown := c.unknowns[name]; unknown {
			return &InvariantViolation{Var: name, Reason: "registered as both unknown and rigid"}
		}
		c.rigid[name] = struct{}{}
	}
	return nil
}

// Add registers sub as a lower bound and sup as an upper bound of v. Either may
// be nil to skip that side. Bounds are canonicalized before storage: other
// unknowns are eliminated to Top or Bot depending on the polarity of the
// occurrence, rigid variables become Any, and Logic types are coerced to Bool.
// Trivial bounds (Bot lower, Top upper) are silently dropped.
func (c *Constraints) Add(v string, sub, sup types.Type) error {
	if !c.IsUnknown(v) {
		return &InvariantViolation{Var: v, Reason: "bound added for a variable that is not an unknown"}
	}
	if sub != nil {
		bound := c.eliminate(v, coerceLogic(sub), types.Negative)
		if !types.Equal(bound, types.Bot) {
			c.lower[v] = append(c.lower[v], bound)
			if err := c.verify(v, bound); err != nil {
				return err
			}
		}
	}
	if sup != nil {
		bound := c.eliminate(v, coerceLogic(sup), types.Positive)
		if !types.Equal(bound, types.Top) {
			c.upper[v] = append(c.upper[v], bound)
			if err := c.verify(v, bound); err != nil {
				return err
			}
		}
	}
	return nil
}

// eliminate rewrites a bound so that it stays monotone in v: occurrences of any
// unknown become Top at positive polarity and Bot at negative polarity, rigid
// variables become Any. The polarity argument is the top level sign of the
// bound, Positive for upper bounds and Negative for lower bounds.
func (c *Constraints) eliminate(v string, bound types.Type, pol types.Polarity) types.Type {
	return types.ReplaceVars(bound, pol, func(name string, pol types.Polarity) types.Type {
		if _, rigid := c.rigid[name]; rigid {
			return types.Any
		}
		if _, unknown := c.unknowns[name]; unknown {
			if pol == types.Positive {
				return types.Top
			}
			return types.Bot
		}
		return &types.Var{Name: name}
	})
}

// verify checks that a stored bound has no free unknowns left.
func (c *Constraints) verify(v string, bound types.Type) error {
	for _, name := range types.FreeVars(bound) {
		if _, unknown := c.unknowns[name]; unknown {
			return &InvariantViolation{Var: v, Bound: bound, Reason: "free unknown remains after elimination"}
		}
	}
	return nil
}

// coerceLogic maps Logic types to the Bool nominal at the store boundary.
func coerceLogic(t types.Type) types.Type {
	if _, isLogic := t.(*types.Logic); isLogic {
		return types.BoolType
	}
	return t
}

// Lower is the union of all recorded lower bounds of v, Bot when none exist.
func (c *Constraints) Lower(v string) types.Type {
	return types.NewUnion(c.lower[v]...)
}

// Upper is the intersection of all recorded upper bounds of v, Top when none
// exist.
func (c *Constraints) Upper(v string) types.Type {
	return types.NewIntersection(c.upper[v]...)
}

// IsUnknown reports whether the store is allowed to bind name.
func (c *Constraints) IsUnknown(name string) bool {
	_, unknown := c.unknowns[name]
	return unknown
}

// Unknowns returns the sorted unknown names for deterministic iteration.
func (c *Constraints) Unknowns() []string {
	names := make([]string, 0, len(c.unknowns))
	for name := range c.unknowns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Each visits every unknown with its combined bounds, in sorted order.
func (c *Constraints) Each(fn func(v string, lower, upper types.Type)) {
	for _, name := range c.Unknowns() {
		fn(name, c.Lower(name), c.Upper(name))
	}
}

// Empty reports whether no bounds have been recorded at all.
func (c *Constraints) Empty() bool {
	for _, bounds := range c.lower {
		if len(bounds) > 0 {
			return false
		}
	}
	for _, bounds := range c.upper {
		if len(bounds) > 0 {
			return false
		}
	}
	return true
}

func (c *Constraints) String() string {
	parts := []string{}
	c.Each(func(v string, lower, upper types.Type) {
		parts = append(parts, fmt.Sprintf("%v <: %v <: %v", lower, v, upper))
	})
	return fmt.Sprintf("{%v}", strings.Join(parts, ", "))
}

// snapshot records the current bound list lengths so a speculative branch can
// be rolled back. A nil store snapshots to the zero mark.
func (c *Constraints) snapshot() mark {
	if c == nil {
		return mark{}
	}
	m := mark{lower: map[string]int{}, upper: map[string]int{}}
	for name, bounds := range c.lower {
		m.lower[name] = len(bounds)
	}
	for name, bounds := range c.upper {
		m.upper[name] = len(bounds)
	}
	return m
}

// restore truncates every bound list back to the snapshot. Bounds are append
// only, so truncation undoes everything recorded after the mark.
func (c *Constraints) restore(m mark) {
	if c == nil {
		return
	}
	for name, bounds := range c.lower {
		c.lower[name] = bounds[:m.lower[name]]
	}
	for name, bounds := range c.upper {
		c.upper[name] = bounds[:m.upper[name]]
	}
}
