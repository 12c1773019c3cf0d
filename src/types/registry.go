package types

import (
	"fmt"
	"sort"
)

type (
	// Method is a named method signature on a class or interface. TypeParams are
	// the method level generics, rigid everywhere except inside a call resolution
	// for the method itself.
	Method struct {
		Name       string
		TypeParams []string
		Type       *Proc
		Loc        *Location
	}

	// ClassDef describes a class or interface signature: its type parameters with
	// their declared variance, its superclass, and its methods.
	ClassDef struct {
		Kind       NominalKind
		Name       string
		TypeParams []string
		Variance   []Variance
		Super      *Nominal
		Includes   []*Nominal
		Methods    map[string]*Method
		Loc        *Location
	}

	// AliasDef is a name that expands to another type.
	AliasDef struct {
		Name   string
		Target Type
		Loc    *Location
	}

	// Registry is the per process set of type definitions. It is built once,
	// from the builtins and the loaded signature environment, and treated as
	// immutable afterwards.
	Registry struct {
		classes map[string]*ClassDef
		aliases map[string]*AliasDef
	}
)

// Builtin nominal types available without any signature files loaded.
var (
	ObjectType  = &Nominal{Kind: Instance, Name: "Object"}
	NumericType = &Nominal{Kind: Instance, Name: "Numeric"}
	IntType     = &Nominal{Kind: Instance, Name: "Int"}
	FloatType   = &Nominal{Kind: Instance, Name: "Float"}
	StringType  = &Nominal{Kind: Instance, Name: "String"}
	SymbolType  = &Nominal{Kind: Instance, Name: "Symbol"}
	BoolType    = &Nominal{Kind: Instance, Name: "Bool"}
	NilType     = &Nominal{Kind: Instance, Name: "Nil"}
)

// NewRegistry returns a registry populated with the builtin class hierarchy.
func NewRegistry() *Registry {
	registry := &Registry{
		classes: map[string]*ClassDef{},
		aliases: map[string]*AliasDef{},
	}
	object := &ClassDef{Kind: Instance, Name: "Object", Methods: map[string]*Method{}}
	for _, def := range []*ClassDef{
		object,
		{Kind: Instance, Name: "Numeric", Super: ObjectType},
		{Kind: Instance, Name: "Int", Super: NumericType},
		{Kind: Instance, Name: "Float", Super: NumericType},
		{Kind: Instance, Name: "String", Super: ObjectType},
		{Kind: Instance, Name: "Symbol", Super: ObjectType},
		{Kind: Instance, Name: "Bool", Super: ObjectType},
		{Kind: Instance, Name: "Nil", Super: ObjectType},
		{
			Kind:       Instance,
			Name:       "Array",
			TypeParams: []string{"Element"},
			Variance:   []Variance{Covariant},
			Super:      ObjectType,
		},
		{
			Kind:       Instance,
			Name:       "Hash",
			TypeParams: []string{"Key", "Value"},
			Variance:   []Variance{Invariant, Covariant},
			Super:      ObjectType,
		},
	} {
		if def.Methods == nil {
			def.Methods = map[string]*Method{}
		}
		registry.classes[def.Name] = def
	}
	return registry
}

// Define registers a class or interface definition. Redefining a name is an
// error so that signature files cannot silently shadow each other.
func (r *Registry) Define(def *ClassDef) error {
	if _, taken := r.classes[def.Name]; taken {
		return fmt.Errorf("type %v is already defined", def.Name)
	}
	if _, taken := r.aliases[def.Name]; taken {
		return fmt.Errorf("type %v is already defined as an alias", def.Name)
	}
	if def.Methods == nil {
		def.Methods = map[string]*Method{}
	}
	r.classes[def.Name] = def
	return nil
}

// DefineAlias registers a type alias.
func (r *Registry) DefineAlias(def *AliasDef) error {
	if _, taken := r.classes[def.Name]; taken {
		return fmt.Errorf("type %v is already defined", def.Name)
	}
	if _, taken := r.aliases[def.Name]; taken {
		return fmt.Errorf("type %v is already defined as an alias", def.Name)
	}
	r.aliases[def.Name] = def
	return nil
}

// Class looks up a class or interface definition by name.
func (r *Registry) Class(name string) (*ClassDef, bool) {
	def, ok := r.classes[name]
	return def, ok
}

// Alias looks up an alias definition by name.
func (r *Registry) Alias(name string) (*AliasDef, bool) {
	def, ok := r.aliases[name]
	return def, ok
}

// Names returns the sorted names of every class, interface, and alias defined.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.classes)+len(r.aliases))
	for name := range r.classes {
		names = append(names, name)
	}
	for name := range r.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Variance returns the declared variance of each type parameter of name.
// Undeclared parameters are invariant.
func (r *Registry) Variance(name string) []Variance {
	def, ok := r.classes[name]
	if !ok {
		return nil
	}
	if len(def.Variance) == len(def.TypeParams) {
		return def.Variance
	}
	variance := make([]Variance, len(def.TypeParams))
	copy(variance, def.Variance)
	return variance
}

// Expand resolves an alias nominal to its target type. The bool reports whether
// the nominal named an alias at all.
func (r *Registry) Expand(n *Nominal) (Type, bool) {
	def, ok := r.aliases[n.Name]
	if !ok {
		return nil, false
	}
	return def.Target, true
}

// Super returns the instantiated superclass of the nominal, substituting the
// subclass type arguments into the super reference. Class kinds stay class
// kinds so that singleton chains walk in parallel with instance chains.
func (r *Registry) Super(n *Nominal) (*Nominal, bool) {
	def, ok := r.classes[n.Name]
	if !ok || def.Super == nil {
		return nil, false
	}
	subst := paramSubst(def.TypeParams, n.Args)
	args := make([]Type, len(def.Super.Args))
	for i, arg := range def.Super.Args {
		args[i] = subst.Apply(arg)
	}
	return &Nominal{Kind: n.Kind, Name: def.Super.Name, Args: args}, true
}

// Method resolves a method on the nominal, walking the super chain when the
// class itself does not declare it. The returned proc has the class type
// parameters already substituted with the nominal's arguments.
func (r *Registry) Method(n *Nominal, name string) (*Method, bool) {
	current := n
	for {
		def, ok := r.classes[current.Name]
		if !ok {
			return nil, false
		}
		if method, found := def.Methods[name]; found {
			subst := paramSubst(def.TypeParams, current.Args)
			return &Method{
				Name:       method.Name,
				TypeParams: method.TypeParams,
				Type:       subst.Apply(method.Type).(*Proc),
				Loc:        method.Loc,
			}, true
		}
		super, hasSuper := r.Super(current)
		if !hasSuper {
			return nil, false
		}
		current = super
	}
}

func paramSubst(params []string, args []Type) Substitution {
	subst := Substitution{}
	for i, param := range params {
		if i < len(args) {
			subst[param] = args[i]
		} else {
			subst[param] = Any
		}
	}
	return subst
}
