package types

import (
	"fmt"
	"sort"
	"strings"
)

// Substitution maps type variable names to the types they are bound to.
// Substitutions produced by the solver are closed: their values contain no
// variable in the substitution's own domain, which makes application idempotent.
type Substitution map[string]Type

// Apply replaces every bound variable occurrence in t and returns the new tree.
// Variables outside the substitution and leaf nodes are returned as is;
// composite nodes are rebuilt. An empty substitution returns t itself.
func (s Substitution) Apply(t Type) Type {
	if len(s) == 0 {
		return t
	}
	return s.apply(t)
}

func (s Substitution) apply(t Type) Type {
	switch tt := t.(type) {
	case *Var:
		if bound, ok := s[tt.Name]; ok {
			return bound
		}
		return tt
	case *Nominal:
		return &Nominal{Kind: tt.Kind, Name: tt.Name, Args: s.applyAll(tt.Args), Loc: tt.Loc}
	case *Union:
		return NewUnion(s.applyAll(tt.Elems)...)
	case *Intersection:
		return NewIntersection(s.applyAll(tt.Elems)...)
	case *Tuple:
		return &Tuple{Elems: s.applyAll(tt.Elems), Loc: tt.Loc}
	case *Record:
		fields := make(map[string]Type, len(tt.Fields))
		for key, field := range tt.Fields {
			fields[key] = s.apply(field)
		}
		return &Record{Fields: fields, Loc: tt.Loc}
	case *Proc:
		var keywords map[string]Type
		if tt.Keywords != nil {
			keywords = make(map[string]Type, len(tt.Keywords))
			for key, keyword := range tt.Keywords {
				keywords[key] = s.apply(keyword)
			}
		}
		return &Proc{Params: s.applyAll(tt.Params), Keywords: keywords, Return: s.apply(tt.Return), Loc: tt.Loc}
	default:
		return t
	}
}

func (s Substitution) applyAll(elems []Type) []Type {
	result := make([]Type, len(elems))
	for i, elem := range elems {
		result[i] = s.apply(elem)
	}
	return result
}

// Merge copies all bindings of other into s.
func (s Substitution) Merge(other Substitution) {
	for name, t := range other {
		s[name] = t
	}
}

// Domain returns the sorted names bound by the substitution.
func (s Substitution) Domain() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Substitution) String() string {
	parts := make([]string, 0, len(s))
	for _, name := range s.Domain() {
		parts = append(parts, fmt.Sprintf("%v => %v", name, s[name]))
	}
	return fmt.Sprintf("{%v}", strings.Join(parts, ", "))
}

// Polarity is the sign of a variable occurrence within a type: positive
// occurrences grow the type when the variable grows, negative occurrences
// shrink it. Procedure parameters flip the polarity of everything beneath them.
type Polarity int

const (
	// Positive marks covariant occurrences.
	Positive Polarity = iota
	// Negative marks contravariant occurrences.
	Negative
)

// Flip returns the opposite polarity.
func (p Polarity) Flip() Polarity {
	if p == Positive {
		return Negative
	}
	return Positive
}

// ReplaceVars rewrites every variable occurrence in t with the result of fn,
// tracking the polarity of the occurrence. The constraint store uses this to
// eliminate unknowns from bounds while keeping the bound monotone.
func ReplaceVars(t Type, pol Polarity, fn func(name string, pol Polarity) Type) Type {
	switch tt := t.(type) {
	case *Var:
		return fn(tt.Name, pol)
	case *Nominal:
		return &Nominal{Kind: tt.Kind, Name: tt.Name, Args: replaceAll(tt.Args, pol, fn), Loc: tt.Loc}
	case *Union:
		return NewUnion(replaceAll(tt.Elems, pol, fn)...)
	case *Intersection:
		return NewIntersection(replaceAll(tt.Elems, pol, fn)...)
	case *Tuple:
		return &Tuple{Elems: replaceAll(tt.Elems, pol, fn), Loc: tt.Loc}
	case *Record:
		fields := make(map[string]Type, len(tt.Fields))
		for key, field := range tt.Fields {
			fields[key] = ReplaceVars(field, pol, fn)
		}
		return &Record{Fields: fields, Loc: tt.Loc}
	case *Proc:
		params := make([]Type, len(tt.Params))
		for i, param := range tt.Params {
			params[i] = ReplaceVars(param, pol.Flip(), fn)
		}
		var keywords map[string]Type
		if tt.Keywords != nil {
			keywords = make(map[string]Type, len(tt.Keywords))
			for key, keyword := range tt.Keywords {
				keywords[key] = ReplaceVars(keyword, pol.Flip(), fn)
			}
		}
		return &Proc{Params: params, Keywords: keywords, Return: ReplaceVars(tt.Return, pol, fn), Loc: tt.Loc}
	default:
		return t
	}
}

func replaceAll(elems []Type, pol Polarity, fn func(string, Polarity) Type) []Type {
	result := make([]Type, len(elems))
	for i, elem := range elems {
		result[i] = ReplaceVars(elem, pol, fn)
	}
	return result
}
