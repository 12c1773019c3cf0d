package subtyping

import (
	"sort"

	"github.com/tanema/steep/src/types"
)

type (
	// Context carries the types that self, instance, and class resolve to during
	// a subtyping query, along with the variance of the position being checked.
	Context struct {
		Self     types.Type
		Instance types.Type
		Class    types.Type
		Variance types.Variance
	}

	// Checker decides subtyping relations against a registry of definitions,
	// optionally recording bounds for unknown variables into a constraint store.
	// A checker is not safe for concurrent use, each worker owns its own.
	Checker struct {
		env   *types.Registry
		guard map[string]struct{}
	}
)

// New returns a checker deciding relations against the given registry.
func New(env *types.Registry) *Checker {
	return &Checker{env: env, guard: map[string]struct{}{}}
}

// Env exposes the registry the checker resolves names in.
func (c *Checker) Env() *types.Registry { return c.env }

// Check decides whether rel.Sub is a subtype of rel.Sup. When a constraint
// store is given, relations against its unknowns are recorded as bounds instead
// of being decided. The error return is reserved for store invariant
// violations, type errors are reported through the result.
func (c *Checker) Check(rel Relation, ctx Context, st *Constraints) (*Result, error) {
	res := &Result{}
	failure, err := c.check(rel, ctx, st, res)
	if err != nil {
		return nil, err
	}
	res.Failure = failure
	return res, nil
}

func (c *Checker) check(rel Relation, ctx Context, st *Constraints, res *Result) (*Failure, error) {
	rel = Relation{Sub: c.normalize(ctx, rel.Sub), Sup: c.normalize(ctx, rel.Sup)}
	res.Trace = append(res.Trace, rel)

	// revisiting a pair already being checked short circuits to success so that
	// recursive nominals terminate
	key := rel.String()
	if _, checking := c.guard[key]; checking {
		return nil, nil
	}
	c.guard[key] = struct{}{}
	defer delete(c.guard, key)

	// failed branches must leave the store untouched
	snap := st.snapshot()
	failure, err := c.decide(rel, ctx, st, res)
	if err != nil {
		return nil, err
	}
	if failure != nil {
		st.restore(snap)
	}
	return failure, nil
}

func (c *Checker) decide(rel Relation, ctx Context, st *Constraints, res *Result) (*Failure, error) {
	sub, sup := rel.Sub, rel.Sup

	if types.Equal(sub, types.Bot) || types.Equal(sup, types.Top) {
		return nil, nil
	}
	if types.Equal(sub, types.Any) || types.Equal(sup, types.Any) {
		return nil, nil
	}
	if types.Equal(sub, sup) {
		return nil, nil
	}

	if st != nil {
		if v, isVar := sup.(*types.Var); isVar && st.IsUnknown(v.Name) {
			return nil, st.Add(v.Name, sub, nil)
		}
		if v, isVar := sub.(*types.Var); isVar && st.IsUnknown(v.Name) {
			return nil, st.Add(v.Name, nil, sup)
		}
	}

	// distribution: the conjunctive rules come before the disjunctive ones so
	// that unions on the sub side split before the sup side is explored
	if union, isUnion := sub.(*types.Union); isUnion {
		for _, elem := range union.Elems {
			failure, err := c.check(Relation{Sub: elem, Sup: sup}, ctx, st, res)
			if failure != nil || err != nil {
				return failure, err
			}
		}
		return nil, nil
	}
	if isect, isIsect := sup.(*types.Intersection); isIsect {
		for _, elem := range isect.Elems {
			failure, err := c.check(Relation{Sub: sub, Sup: elem}, ctx, st, res)
			if failure != nil || err != nil {
				return failure, err
			}
		}
		return nil, nil
	}
	if union, isUnion := sup.(*types.Union); isUnion {
		for _, elem := range union.Elems {
			failure, err := c.check(Relation{Sub: sub, Sup: elem}, ctx, st, res)
			if err != nil {
				return nil, err
			}
			if failure == nil {
				return nil, nil
			}
		}
		return &Failure{Reason: TypeMismatch, Rel: rel}, nil
	}
	if isect, isIsect := sub.(*types.Intersection); isIsect {
		for _, elem := range isect.Elems {
			failure, err := c.check(Relation{Sub: elem, Sup: sup}, ctx, st, res)
			if err != nil {
				return nil, err
			}
			if failure == nil {
				return nil, nil
			}
		}
		return &Failure{Reason: TypeMismatch, Rel: rel}, nil
	}

	switch supT := sup.(type) {
	case *types.Nominal:
		subT, isNominal := sub.(*types.Nominal)
		if !isNominal {
			return &Failure{Reason: TypeMismatch, Rel: rel}, nil
		}
		if supT.Kind == types.Interface {
			return c.checkInterface(rel, subT, supT, ctx, st, res)
		}
		if subT.Kind == supT.Kind && subT.Name == supT.Name {
			return c.checkArgs(rel, subT, supT, ctx, st, res)
		}
		super, hasSuper := c.env.Super(subT)
		if !hasSuper {
			return &Failure{Reason: TypeMismatch, Rel: rel}, nil
		}
		return c.check(Relation{Sub: super, Sup: sup}, ctx, st, res)
	case *types.Tuple:
		subT, isTuple := sub.(*types.Tuple)
		if !isTuple {
			return &Failure{Reason: TypeMismatch, Rel: rel}, nil
		}
		if len(subT.Elems) != len(supT.Elems) {
			return &Failure{Reason: ParameterMismatch, Rel: rel}, nil
		}
		for i, elem := range subT.Elems {
			failure, err := c.check(Relation{Sub: elem, Sup: supT.Elems[i]}, ctx, st, res)
			if failure != nil || err != nil {
				return failure, err
			}
		}
		return nil, nil
	case *types.Record:
		subT, isRecord := sub.(*types.Record)
		if !isRecord {
			return &Failure{Reason: TypeMismatch, Rel: rel}, nil
		}
		for key, supField := range supT.Fields {
			subField, found := subT.Fields[key]
			if !found {
				return &Failure{Reason: MissingKey, Rel: rel, Member: key}, nil
			}
			failure, err := c.check(Relation{Sub: subField, Sup: supField}, ctx, st, res)
			if failure != nil || err != nil {
				return failure, err
			}
		}
		return nil, nil
	case *types.Proc:
		subT, isProc := sub.(*types.Proc)
		if !isProc {
			return &Failure{Reason: TypeMismatch, Rel: rel}, nil
		}
		return c.checkProc(rel, subT, supT, ctx, st, res)
	default:
		return &Failure{Reason: TypeMismatch, Rel: rel}, nil
	}
}

// checkArgs checks type arguments of two same named nominals under the declared
// variance of each parameter position.
func (c *Checker) checkArgs(rel Relation, sub, sup *types.Nominal, ctx Context, st *Constraints, res *Result) (*Failure, error) {
	if len(sub.Args) != len(sup.Args) {
		return &Failure{Reason: TypeMismatch, Rel: rel}, nil
	}
	variance := c.env.Variance(sub.Name)
	for i, subArg := range sub.Args {
		supArg := sup.Args[i]
		argVariance := types.Invariant
		if i < len(variance) {
			argVariance = variance[i]
		}
		switch argVariance {
		case types.Covariant:
			failure, err := c.check(Relation{Sub: subArg, Sup: supArg}, ctx, st, res)
			if failure != nil || err != nil {
				return failure, err
			}
		case types.Contravariant:
			failure, err := c.check(Relation{Sub: supArg, Sup: subArg}, ctx, st, res)
			if failure != nil || err != nil {
				return failure, err
			}
		default:
			failure, err := c.check(Relation{Sub: subArg, Sup: supArg}, ctx, st, res)
			if failure != nil || err != nil {
				return failure, err
			}
			failure, err = c.check(Relation{Sub: supArg, Sup: subArg}, ctx, st, res)
			if failure != nil || err != nil {
				return failure, err
			}
		}
	}
	return nil, nil
}

// checkInterface checks that every method the interface declares exists on the
// subtype with a compatible signature.
func (c *Checker) checkInterface(rel Relation, sub, iface *types.Nominal, ctx Context, st *Constraints, res *Result) (*Failure, error) {
	def, ok := c.env.Class(iface.Name)
	if !ok || def.Kind != types.Interface {
		return &Failure{Reason: TypeMismatch, Rel: rel}, nil
	}
	subst := types.Substitution{}
	for i, param := range def.TypeParams {
		if i < len(iface.Args) {
			subst[param] = iface.Args[i]
		} else {
			subst[param] = types.Any
		}
	}
	for _, name := range sortedMethodNames(def.Methods) {
		want := subst.Apply(def.Methods[name].Type)
		method, found := c.env.Method(sub, name)
		if !found {
			return &Failure{Reason: MissingMethod, Rel: rel, Member: name}, nil
		}
		failure, err := c.check(Relation{Sub: method.Type, Sup: want}, ctx, st, res)
		if failure != nil || err != nil {
			return failure, err
		}
	}
	return nil, nil
}

// checkProc checks procedure compatibility: parameters contravariant, keyword
// parameters matched by name, return covariant.
func (c *Checker) checkProc(rel Relation, sub, sup *types.Proc, ctx Context, st *Constraints, res *Result) (*Failure, error) {
	if len(sub.Params) != len(sup.Params) {
		return &Failure{Reason: ParameterMismatch, Rel: rel}, nil
	}
	for i, subParam := range sub.Params {
		failure, err := c.check(Relation{Sub: sup.Params[i], Sup: subParam}, ctx, st, res)
		if failure != nil || err != nil {
			return failure, err
		}
	}
	for key, supKeyword := range sup.Keywords {
		subKeyword, found := sub.Keywords[key]
		if !found {
			return &Failure{Reason: MissingKey, Rel: rel, Member: key}, nil
		}
		failure, err := c.check(Relation{Sub: supKeyword, Sup: subKeyword}, ctx, st, res)
		if failure != nil || err != nil {
			return failure, err
		}
	}
	return c.check(Relation{Sub: sub.Return, Sup: sup.Return}, ctx, st, res)
}

// normalize resolves the self, instance, and class placeholders from the
// context, expands aliases, and coerces Logic types to Bool. Queries mirror the
// store boundary coercion so that results agree with recorded bounds.
func (c *Checker) normalize(ctx Context, t types.Type) types.Type {
	switch tt := t.(type) {
	case *types.Var:
		switch tt.Name {
		case "self":
			if ctx.Self != nil {
				return c.normalize(ctx, ctx.Self)
			}
		case "instance":
			if ctx.Instance != nil {
				return c.normalize(ctx, ctx.Instance)
			}
		case "class":
			if ctx.Class != nil {
				return c.normalize(ctx, ctx.Class)
			}
		}
		return tt
	case *types.Logic:
		return types.BoolType
	case *types.Nominal:
		// alias names cannot collide with class names, so expansion is keyed on
		// the registry rather than the node kind the parser guessed
		if target, ok := c.env.Expand(tt); ok {
			return c.normalize(ctx, target)
		}
		return tt
	default:
		return t
	}
}

func sortedMethodNames(methods map[string]*types.Method) []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
