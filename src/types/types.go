// Package types defines the algebraic representation of steep types along with
// substitution, free variable extraction, and variance analysis. Type nodes are
// immutable trees that are freely shared, recursion between named types happens
// through registry lookup and never through pointer cycles.
package types

import (
	"fmt"
	"sort"
	"strings"
)

type (
	// Type is the general interface for all type nodes.
	Type interface {
		fmt.Stringer
		typeNode()
	}

	// Location is an optional source position carried by type nodes so that
	// diagnostics can point back at the signature that produced them.
	Location struct {
		Path   string
		Line   int
		Column int
	}

	// Var is a type variable referred to by name. Whether it is an unknown the
	// solver may bind or a rigid variable is decided by the constraint store, not
	// by the node itself.
	Var struct {
		Name string
		Loc  *Location
	}

	topType struct{}
	botType struct{}
	anyType struct{}

	// NominalKind distinguishes the flavours of named types.
	NominalKind int

	// Nominal is a named type applied to zero or more type arguments. Its
	// definition lives in a Registry.
	Nominal struct {
		Kind NominalKind
		Name string
		Args []Type
		Loc  *Location
	}

	// Union is a type matching any one of its elements.
	Union struct {
		Elems []Type
		Loc   *Location
	}

	// Intersection is a type matching all of its elements at once.
	Intersection struct {
		Elems []Type
		Loc   *Location
	}

	// Tuple is a position sensitive sequence of element types.
	Tuple struct {
		Elems []Type
		Loc   *Location
	}

	// Record is a key sensitive mapping of field names to types.
	Record struct {
		Fields map[string]Type
		Loc    *Location
	}

	// Proc is a procedure type with positional params, keyword params matched by
	// name, and a single return type.
	Proc struct {
		Params   []Type
		Keywords map[string]Type
		Return   Type
		Loc      *Location
	}

	// LogicKind distinguishes the truthiness flavours of Logic types.
	LogicKind int

	// Logic is an expression position type carrying truthiness information. It is
	// coerced to the Bool nominal before it can enter a constraint store.
	Logic struct {
		Kind LogicKind
		Loc  *Location
	}
)

const (
	// Instance is the type of instances of a class.
	Instance NominalKind = iota
	// Class is the singleton type of the class object itself.
	Class
	// Alias is a name that expands to another type.
	Alias
	// Interface is a structural method set matched by any conforming class.
	Interface
)

const (
	// Truthy marks an expression known to evaluate truthy.
	Truthy LogicKind = iota
	// Falsy marks an expression known to evaluate falsy.
	Falsy
	// Envelope marks an expression whose truthiness narrows a surrounding type.
	Envelope
)

var (
	// Top is the type every type is a subtype of.
	Top Type = &topType{}
	// Bot is the type that is a subtype of every type.
	Bot Type = &botType{}
	// Any is the dynamic type compatible in both directions.
	Any Type = &anyType{}
)

func (t *Var) typeNode()          {}
func (t *topType) typeNode()      {}
func (t *botType) typeNode()      {}
func (t *anyType) typeNode()      {}
func (t *Nominal) typeNode()      {}
func (t *Union) typeNode()        {}
func (t *Intersection) typeNode() {}
func (t *Tuple) typeNode()        {}
func (t *Record) typeNode()       {}
func (t *Proc) typeNode()         {}
func (t *Logic) typeNode()        {}

func (t *Var) String() string     { return t.Name }
func (t *topType) String() string { return "top" }
func (t *botType) String() string { return "bot" }
func (t *anyType) String() string { return "any" }

func (t *Nominal) String() string {
	name := t.Name
	if len(t.Args) > 0 {
		name = fmt.Sprintf("%v[%v]", t.Name, fmtTypes(t.Args, ", "))
	}
	switch t.Kind {
	case Class:
		return fmt.Sprintf("singleton(%v)", name)
	case Interface:
		return fmt.Sprintf("_%v", name)
	default:
		return name
	}
}

func (t *Union) String() string        { return fmt.Sprintf("(%v)", fmtTypes(t.Elems, " | ")) }
func (t *Intersection) String() string { return fmt.Sprintf("(%v)", fmtTypes(t.Elems, " & ")) }
func (t *Tuple) String() string        { return fmt.Sprintf("[%v]", fmtTypes(t.Elems, ", ")) }

func (t *Record) String() string {
	keys := make([]string, 0, len(t.Fields))
	for key := range t.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = fmt.Sprintf("%v: %v", key, t.Fields[key])
	}
	return fmt.Sprintf("{%v}", strings.Join(parts, ", "))
}

func (t *Proc) String() string {
	parts := make([]string, 0, len(t.Params)+len(t.Keywords))
	for _, param := range t.Params {
		parts = append(parts, param.String())
	}
	keys := make([]string, 0, len(t.Keywords))
	for key := range t.Keywords {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%v: %v", key, t.Keywords[key]))
	}
	return fmt.Sprintf("(%v) -> %v", strings.Join(parts, ", "), t.Return)
}

func (t *Logic) String() string {
	switch t.Kind {
	case Falsy:
		return "logic(falsy)"
	case Envelope:
		return "logic(envelope)"
	default:
		return "logic(truthy)"
	}
}

// NewUnion flattens nested unions, removes duplicate elements, and applies the
// unit rules: an empty union is Bot and a single element union is the element
// itself.
func NewUnion(elems ...Type) Type {
	flat := flatten(elems, func(t Type) ([]Type, bool) {
		union, ok := t.(*Union)
		if !ok {
			return nil, false
		}
		return union.Elems, true
	})
	switch len(flat) {
	case 0:
		return Bot
	case 1:
		return flat[0]
	}
	return &Union{Elems: flat}
}

// NewIntersection flattens nested intersections, removes duplicate elements, and
// applies the unit rules: an empty intersection is Top and a single element
// intersection is the element itself.
func NewIntersection(elems ...Type) Type {
	flat := flatten(elems, func(t Type) ([]Type, bool) {
		isect, ok := t.(*Intersection)
		if !ok {
			return nil, false
		}
		return isect.Elems, true
	})
	switch len(flat) {
	case 0:
		return Top
	case 1:
		return flat[0]
	}
	return &Intersection{Elems: flat}
}

func flatten(elems []Type, unwrap func(Type) ([]Type, bool)) []Type {
	result := []Type{}
	for _, elem := range elems {
		inner, ok := unwrap(elem)
		if !ok {
			inner = []Type{elem}
		} else {
			inner = flatten(inner, unwrap)
		}
		for _, t := range inner {
			if !containsType(result, t) {
				result = append(result, t)
			}
		}
	}
	return result
}

func containsType(set []Type, t Type) bool {
	for _, member := range set {
		if Equal(member, t) {
			return true
		}
	}
	return false
}

// Equal compares two types structurally. Tuples are position sensitive, records
// key sensitive, and unions and intersections compare as sets.
func Equal(a, b Type) bool {
	if a == b {
		return true
	}
	switch ta := a.(type) {
	case *topType:
		_, ok := b.(*topType)
		return ok
	case *botType:
		_, ok := b.(*botType)
		return ok
	case *anyType:
		_, ok := b.(*anyType)
		return ok
	case *Var:
		other, ok := b.(*Var)
		return ok && ta.Name == other.Name
	case *Nominal:
		other, ok := b.(*Nominal)
		if !ok || ta.Kind != other.Kind || ta.Name != other.Name || len(ta.Args) != len(other.Args) {
			return false
		}
		for i, arg := range ta.Args {
			if !Equal(arg, other.Args[i]) {
				return false
			}
		}
		return true
	case *Union:
		other, ok := b.(*Union)
		return ok && sameElems(ta.Elems, other.Elems)
	case *Intersection:
		other, ok := b.(*Intersection)
		return ok && sameElems(ta.Elems, other.Elems)
	case *Tuple:
		other, ok := b.(*Tuple)
		if !ok || len(ta.Elems) != len(other.Elems) {
			return false
		}
		for i, elem := range ta.Elems {
			if !Equal(elem, other.Elems[i]) {
				return false
			}
		}
		return true
	case *Record:
		other, ok := b.(*Record)
		if !ok || len(ta.Fields) != len(other.Fields) {
			return false
		}
		for key, field := range ta.Fields {
			otherField, found := other.Fields[key]
			if !found || !Equal(field, otherField) {
				return false
			}
		}
		return true
	case *Proc:
		other, ok := b.(*Proc)
		if !ok || len(ta.Params) != len(other.Params) || len(ta.Keywords) != len(other.Keywords) {
			return false
		}
		for i, param := range ta.Params {
			if !Equal(param, other.Params[i]) {
				return false
			}
		}
		for key, keyword := range ta.Keywords {
			otherKeyword, found := other.Keywords[key]
			if !found || !Equal(keyword, otherKeyword) {
				return false
			}
		}
		return Equal(ta.Return, other.Return)
	case *Logic:
		other, ok := b.(*Logic)
		return ok && ta.Kind == other.Kind
	default:
		return false
	}
}

// sameElems compares two element sets without regard to order. Each element of a
// must match a distinct element of b and vice versa.
func sameElems(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, elem := range a {
		for i, other := range b {
			if !used[i] && Equal(elem, other) {
				used[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// FreeVars returns the sorted names of all variables free in t.
func FreeVars(t Type) []string {
	set := map[string]struct{}{}
	free(t, set)
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func free(t Type, set map[string]struct{}) {
	switch tt := t.(type) {
	case *Var:
		set[tt.Name] = struct{}{}
	case *Nominal:
		for _, arg := range tt.Args {
			free(arg, set)
		}
	case *Union:
		for _, elem := range tt.Elems {
			free(elem, set)
		}
	case *Intersection:
		for _, elem := range tt.Elems {
			free(elem, set)
		}
	case *Tuple:
		for _, elem := range tt.Elems {
			free(elem, set)
		}
	case *Record:
		for _, field := range tt.Fields {
			free(field, set)
		}
	case *Proc:
		for _, param := range tt.Params {
			free(param, set)
		}
		for _, keyword := range tt.Keywords {
			free(keyword, set)
		}
		free(tt.Return, set)
	}
}

// Level is the node count of a type tree. The solver uses it to break ties
// between bounds under invariant contexts.
func Level(t Type) int {
	switch tt := t.(type) {
	case *Nominal:
		return 1 + levelOf(tt.Args)
	case *Union:
		return 1 + levelOf(tt.Elems)
	case *Intersection:
		return 1 + levelOf(tt.Elems)
	case *Tuple:
		return 1 + levelOf(tt.Elems)
	case *Record:
		level := 1
		for _, field := range tt.Fields {
			level += Level(field)
		}
		return level
	case *Proc:
		level := 1 + levelOf(tt.Params) + Level(tt.Return)
		for _, keyword := range tt.Keywords {
			level += Level(keyword)
		}
		return level
	default:
		return 1
	}
}

func levelOf(elems []Type) int {
	level := 0
	for _, elem := range elems {
		level += Level(elem)
	}
	return level
}

func fmtTypes(elems []Type, sep string) string {
	parts := make([]string, len(elems))
	for i, elem := range elems {
		parts[i] = elem.String()
	}
	return strings.Join(parts, sep)
}
