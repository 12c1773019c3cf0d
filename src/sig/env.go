package sig

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/tanema/steep/src/lsp"
	"github.com/tanema/steep/src/serrors"
	"github.com/tanema/steep/src/subtyping"
	"github.com/tanema/steep/src/types"
)

// Diagnostic codes reported by signature validation.
const (
	CodeSyntax      = "sig:syntax"
	CodeUnknownType = "sig:unknown-type"
	CodeArity       = "sig:arity"
	CodeRedefined   = "sig:redefined"
	CodeUnboundVar  = "sig:unbound-variable"
	CodeBadInclude  = "sig:bad-include"
	CodeBadOverride = "sig:incompatible-override"
	CodeUnreadable  = "sig:unreadable"
)

// Env is the signature environment a worker loads at startup: every parsed
// file plus the registry built from them. Each worker process owns its own
// environment.
type Env struct {
	files    map[string]*File
	registry *types.Registry
}

// NewEnv returns an environment with only the builtin registry loaded.
func NewEnv() *Env {
	return &Env{files: map[string]*File{}, registry: types.NewRegistry()}
}

// Registry exposes the registry built from the loaded files.
func (e *Env) Registry() *types.Registry { return e.registry }

// Load parses all given signature files, rebuilds the registry, and validates
// everything, returning diagnostics grouped by path. Unreadable or unparsable
// files produce diagnostics rather than errors so that one bad file never
// stops a batch.
func (e *Env) Load(paths ...string) map[string][]lsp.Diagnostic {
	diags := map[string][]lsp.Diagnostic{}
	for _, path := range paths {
		diags[path] = e.loadFile(path)
	}
	for path, fileDiags := range e.build() {
		diags[path] = append(diags[path], fileDiags...)
	}
	return diags
}

// CheckFile reloads a single file and revalidates the environment, returning
// the diagnostics for just that file. This is the per path checking service
// the code workers run.
func (e *Env) CheckFile(path string) []lsp.Diagnostic {
	diags := e.loadFile(path)
	built := e.build()
	diags = append(diags, built[path]...)
	if diags == nil {
		diags = []lsp.Diagnostic{}
	}
	return diags
}

func (e *Env) loadFile(path string) []lsp.Diagnostic {
	file, err := ParseFile(path)
	if err != nil {
		delete(e.files, path)
		return []lsp.Diagnostic{errDiagnostic(err)}
	}
	e.files[path] = file
	return nil
}

// build reconstructs the registry from every loaded file and returns
// registration diagnostics per path.
func (e *Env) build() map[string][]lsp.Diagnostic {
	diags := map[string][]lsp.Diagnostic{}
	e.registry = types.NewRegistry()

	for _, path := range e.paths() {
		for _, decl := range e.files[path].Decls {
			var err error
			switch d := decl.(type) {
			case *ClassDecl:
				err = e.registry.Define(classDef(path, d))
				if err != nil {
					diags[path] = append(diags[path], declDiagnostic(d.LineInfo, CodeRedefined, err.Error()))
				}
			case *AliasDecl:
				err = e.registry.DefineAlias(&types.AliasDef{
					Name:   d.Name,
					Target: d.Target,
					Loc:    &types.Location{Path: path, Line: d.Line, Column: d.Column},
				})
				if err != nil {
					diags[path] = append(diags[path], declDiagnostic(d.LineInfo, CodeRedefined, err.Error()))
				}
			}
		}
	}

	for _, path := range e.paths() {
		for _, diag := range e.validate(e.files[path]) {
			diags[path] = append(diags[path], diag)
		}
	}
	return diags
}

func classDef(path string, d *ClassDecl) *types.ClassDef {
	def := &types.ClassDef{
		Kind:    d.Kind,
		Name:    d.Name,
		Super:   d.Super,
		Methods: map[string]*types.Method{},
		Loc:     &types.Location{Path: path, Line: d.Line, Column: d.Column},
	}
	if def.Super == nil && d.Kind == types.Instance && d.Name != "Object" {
		def.Super = types.ObjectType
	}
	for _, param := range d.TypeParams {
		def.TypeParams = append(def.TypeParams, param.Name)
		def.Variance = append(def.Variance, param.Variance)
	}
	def.Includes = append(def.Includes, d.Includes...)
	for _, method := range d.Methods {
		def.Methods[method.Name] = &types.Method{
			Name:       method.Name,
			TypeParams: method.TypeParams,
			Type:       method.Type,
			Loc:        &types.Location{Path: path, Line: method.Line, Column: method.Column},
		}
	}
	return def
}

// validate checks a file's declarations against the full registry: every named
// type must resolve with the right arity, every variable must be bound by a
// type parameter, includes must name interfaces, and method overrides must be
// compatible with the superclass.
func (e *Env) validate(file *File) []lsp.Diagnostic {
	diags := []lsp.Diagnostic{}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ClassDecl:
			scope := map[string]struct{}{"self": {}}
			for _, param := range d.TypeParams {
				scope[param.Name] = struct{}{}
			}
			if d.Super != nil {
				diags = append(diags, e.checkType(d.LineInfo, d.Super, scope)...)
			}
			for _, include := range d.Includes {
				def, ok := e.registry.Class(include.Name)
				if !ok || def.Kind != types.Interface {
					diags = append(diags, declDiagnostic(d.LineInfo, CodeBadInclude, fmt.Sprintf("include of %v which is not an interface", include.Name)))
					continue
				}
				diags = append(diags, e.checkType(d.LineInfo, include, scope)...)
			}
			for _, method := range d.Methods {
				methodScope := map[string]struct{}{}
				for name := range scope {
					methodScope[name] = struct{}{}
				}
				for _, param := range method.TypeParams {
					methodScope[param] = struct{}{}
				}
				diags = append(diags, e.checkType(method.LineInfo, method.Type, methodScope)...)
				diags = append(diags, e.checkOverride(d, method)...)
			}
		case *AliasDecl:
			diags = append(diags, e.checkType(d.LineInfo, d.Target, map[string]struct{}{})...)
		}
	}
	return diags
}

// checkType walks a type expression resolving every nominal reference and
// variable occurrence.
func (e *Env) checkType(linfo LineInfo, t types.Type, scope map[string]struct{}) []lsp.Diagnostic {
	diags := []lsp.Diagnostic{}
	switch tt := t.(type) {
	case *types.Var:
		if _, bound := scope[tt.Name]; !bound {
			diags = append(diags, declDiagnostic(locInfo(tt.Loc, linfo), CodeUnboundVar, fmt.Sprintf("unbound type variable %v", tt.Name)))
		}
	case *types.Nominal:
		if def, ok := e.registry.Class(tt.Name); ok {
			if len(tt.Args) != len(def.TypeParams) {
				diags = append(diags, declDiagnostic(locInfo(tt.Loc, linfo), CodeArity, fmt.Sprintf("%v expects %v type arguments but got %v", tt.Name, len(def.TypeParams), len(tt.Args))))
			}
		} else if _, ok := e.registry.Alias(tt.Name); !ok {
			diags = append(diags, declDiagnostic(locInfo(tt.Loc, linfo), CodeUnknownType, fmt.Sprintf("unknown type name %v", tt.Name)))
		}
		for _, arg := range tt.Args {
			diags = append(diags, e.checkType(linfo, arg, scope)...)
		}
	case *types.Union:
		for _, elem := range tt.Elems {
			diags = append(diags, e.checkType(linfo, elem, scope)...)
		}
	case *types.Intersection:
		for _, elem := range tt.Elems {
			diags = append(diags, e.checkType(linfo, elem, scope)...)
		}
	case *types.Tuple:
		for _, elem := range tt.Elems {
			diags = append(diags, e.checkType(linfo, elem, scope)...)
		}
	case *types.Record:
		for _, field := range tt.Fields {
			diags = append(diags, e.checkType(linfo, field, scope)...)
		}
	case *types.Proc:
		for _, param := range tt.Params {
			diags = append(diags, e.checkType(linfo, param, scope)...)
		}
		for _, keyword := range tt.Keywords {
			diags = append(diags, e.checkType(linfo, keyword, scope)...)
		}
		diags = append(diags, e.checkType(linfo, tt.Return, scope)...)
	}
	return diags
}

// checkOverride verifies that a method redeclared in a subclass is a subtype of
// the superclass method. Superclass method generics become unknowns solved by
// the constraint solver, the subclass generics stay rigid.
func (e *Env) checkOverride(class *ClassDecl, method *MethodDecl) []lsp.Diagnostic {
	if class.Super == nil {
		return nil
	}
	inherited, found := e.registry.Method(class.Super, method.Name)
	if !found {
		return nil
	}

	checker := subtyping.New(e.registry)
	ctx := subtyping.Context{
		Instance: &types.Nominal{Kind: types.Instance, Name: class.Name},
		Class:    &types.Nominal{Kind: types.Class, Name: class.Name},
		Variance: types.Covariant,
	}
	ctx.Self = ctx.Instance

	// freshen the inherited generics so they never collide with the subclass's
	// own method generics, which stay rigid
	fresh := types.Substitution{}
	unknowns := make([]string, len(inherited.TypeParams))
	for i, param := range inherited.TypeParams {
		unknowns[i] = fmt.Sprintf("%v@%v", param, class.Super.Name)
		fresh[param] = &types.Var{Name: unknowns[i]}
	}
	inheritedType := fresh.Apply(inherited.Type)

	st := subtyping.NewConstraints(unknowns...)
	if err := st.AddVar(method.TypeParams...); err != nil {
		return []lsp.Diagnostic{declDiagnostic(method.LineInfo, CodeBadOverride, err.Error())}
	}

	result, err := checker.Check(subtyping.Relation{Sub: method.Type, Sup: inheritedType}, ctx, st)
	if err != nil {
		return []lsp.Diagnostic{declDiagnostic(method.LineInfo, CodeBadOverride, err.Error())}
	}
	if !result.Success() {
		msg := fmt.Sprintf("method %v is incompatible with %v.%v: %v", method.Name, class.Super.Name, method.Name, result.Message())
		return []lsp.Diagnostic{declDiagnostic(method.LineInfo, CodeBadOverride, msg)}
	}
	if _, err := subtyping.Solve(st, checker, ctx); err != nil {
		msg := fmt.Sprintf("method %v is incompatible with %v.%v: %v", method.Name, class.Super.Name, method.Name, err)
		return []lsp.Diagnostic{declDiagnostic(method.LineInfo, CodeBadOverride, msg)}
	}
	return nil
}

// Hover returns the signature of the declaration on the given line.
func (e *Env) Hover(path string, pos lsp.Position) *lsp.Hover {
	file, loaded := e.files[path]
	if !loaded {
		return nil
	}
	line := pos.Line + 1
	for _, decl := range file.Decls {
		class, isClass := decl.(*ClassDecl)
		if !isClass {
			if alias, isAlias := decl.(*AliasDecl); isAlias && alias.Line == line {
				return hoverContent(fmt.Sprintf("alias %v = %v", alias.Name, alias.Target), alias.LineInfo)
			}
			continue
		}
		if class.Line == line {
			return hoverContent(classHeader(class), class.LineInfo)
		}
		for _, method := range class.Methods {
			if method.Line == line {
				return hoverContent(fmt.Sprintf("def %v: %v", method.Name, method.Type), method.LineInfo)
			}
		}
	}
	return nil
}

// Complete returns the methods available on the class enclosing the position,
// including inherited ones.
func (e *Env) Complete(path string, pos lsp.Position) []lsp.CompletionItem {
	file, loaded := e.files[path]
	if !loaded {
		return []lsp.CompletionItem{}
	}
	line := pos.Line + 1
	for _, decl := range file.Decls {
		class, isClass := decl.(*ClassDecl)
		if !isClass || line < class.Line || (class.EndLine > 0 && line > class.EndLine) {
			continue
		}
		items := []lsp.CompletionItem{}
		seen := map[string]struct{}{}
		current := &types.Nominal{Kind: class.Kind, Name: class.Name}
		for current != nil {
			def, ok := e.registry.Class(current.Name)
			if !ok {
				break
			}
			for _, name := range sortedNames(def.Methods) {
				if _, taken := seen[name]; taken {
					continue
				}
				seen[name] = struct{}{}
				items = append(items, lsp.CompletionItem{
					Label:  name,
					Kind:   6, // method
					Detail: def.Methods[name].Type.String(),
				})
			}
			super, hasSuper := e.registry.Super(current)
			if !hasSuper {
				break
			}
			current = super
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
		return items
	}
	return []lsp.CompletionItem{}
}

func sortedNames(methods map[string]*types.Method) []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definition resolves the type name under the cursor to its declaration sites.
func (e *Env) Definition(path string, pos lsp.Position) []lsp.Location {
	file, loaded := e.files[path]
	if !loaded {
		return []lsp.Location{}
	}
	line, col := pos.Line+1, pos.Character+1
	for _, ref := range file.Refs {
		if ref.Line != line || col < ref.Column || col > ref.Column+len(ref.Name) {
			continue
		}
		return e.declSites(ref.Name)
	}
	return []lsp.Location{}
}

// Implementation resolves an interface name to the classes that include it.
func (e *Env) Implementation(path string, pos lsp.Position) []lsp.Location {
	file, loaded := e.files[path]
	if !loaded {
		return []lsp.Location{}
	}
	line, col := pos.Line+1, pos.Character+1
	for _, ref := range file.Refs {
		if ref.Line != line || col < ref.Column || col > ref.Column+len(ref.Name) {
			continue
		}
		locations := []lsp.Location{}
		for _, implPath := range e.paths() {
			for _, decl := range e.files[implPath].Decls {
				class, isClass := decl.(*ClassDecl)
				if !isClass {
					continue
				}
				for _, include := range class.Includes {
					if include.Name == ref.Name {
						locations = append(locations, declLocation(implPath, class.LineInfo, class.Name))
					}
				}
			}
		}
		return locations
	}
	return []lsp.Location{}
}

// Symbols returns every declaration whose name contains the query.
func (e *Env) Symbols(query string) []lsp.SymbolInformation {
	symbols := []lsp.SymbolInformation{}
	for _, path := range e.paths() {
		for _, decl := range e.files[path].Decls {
			switch d := decl.(type) {
			case *ClassDecl:
				kind := 5 // class
				if d.Kind == types.Interface {
					kind = 11 // interface
				}
				if strings.Contains(strings.ToLower(d.Name), strings.ToLower(query)) {
					symbols = append(symbols, lsp.SymbolInformation{
						Name:     d.Name,
						Kind:     kind,
						Location: declLocation(path, d.LineInfo, d.Name),
					})
				}
				for _, method := range d.Methods {
					if strings.Contains(strings.ToLower(method.Name), strings.ToLower(query)) {
						symbols = append(symbols, lsp.SymbolInformation{
							Name:     fmt.Sprintf("%v#%v", d.Name, method.Name),
							Kind:     6, // method
							Location: declLocation(path, method.LineInfo, method.Name),
						})
					}
				}
			case *AliasDecl:
				if strings.Contains(strings.ToLower(d.Name), strings.ToLower(query)) {
					symbols = append(symbols, lsp.SymbolInformation{
						Name:     d.Name,
						Kind:     5,
						Location: declLocation(path, d.LineInfo, d.Name),
					})
				}
			}
		}
	}
	return symbols
}

func (e *Env) declSites(name string) []lsp.Location {
	locations := []lsp.Location{}
	for _, path := range e.paths() {
		for _, decl := range e.files[path].Decls {
			switch d := decl.(type) {
			case *ClassDecl:
				if d.Name == name {
					locations = append(locations, declLocation(path, d.LineInfo, d.Name))
				}
			case *AliasDecl:
				if d.Name == name {
					locations = append(locations, declLocation(path, d.LineInfo, d.Name))
				}
			}
		}
	}
	return locations
}

func (e *Env) paths() []string {
	paths := make([]string, 0, len(e.files))
	for path := range e.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func classHeader(class *ClassDecl) string {
	header := "class"
	if class.Kind == types.Interface {
		header = "interface"
	}
	header = fmt.Sprintf("%v %v", header, class.Name)
	if len(class.TypeParams) > 0 {
		params := make([]string, len(class.TypeParams))
		for i, param := range class.TypeParams {
			params[i] = param.Name
			if param.Variance != types.Invariant {
				params[i] = fmt.Sprintf("%v %v", param.Variance, param.Name)
			}
		}
		header = fmt.Sprintf("%v[%v]", header, strings.Join(params, ", "))
	}
	if class.Super != nil {
		header = fmt.Sprintf("%v < %v", header, class.Super)
	}
	return header
}

func hoverContent(value string, linfo LineInfo) *lsp.Hover {
	rng := declRange(linfo, 0)
	return &lsp.Hover{
		Contents: lsp.MarkupContent{Kind: "markdown", Value: fmt.Sprintf("```\n%v\n```", value)},
		Range:    &rng,
	}
}

func declLocation(path string, linfo LineInfo, name string) lsp.Location {
	return lsp.Location{URI: "file://" + path, Range: declRange(linfo, len(name))}
}

func declRange(linfo LineInfo, length int) lsp.Range {
	start := lsp.Position{Line: linfo.Line - 1, Character: max(linfo.Column-1, 0)}
	return lsp.Range{Start: start, End: lsp.Position{Line: start.Line, Character: start.Character + length}}
}

func declDiagnostic(linfo LineInfo, code, msg string) lsp.Diagnostic {
	return lsp.Diagnostic{
		Range:    declRange(linfo, 0),
		Severity: lsp.SeverityError,
		Code:     code,
		Message:  msg,
	}
}

func locInfo(loc *types.Location, fallback LineInfo) LineInfo {
	if loc == nil {
		return fallback
	}
	return LineInfo{Line: loc.Line, Column: loc.Column}
}

func errDiagnostic(err error) lsp.Diagnostic {
	var serr *serrors.Error
	if errors.As(err, &serr) {
		return declDiagnostic(LineInfo{Line: serr.Line, Column: serr.Column}, CodeSyntax, serr.Err.Error())
	}
	return lsp.Diagnostic{
		Severity: lsp.SeverityError,
		Code:     CodeUnreadable,
		Message:  errors.Wrap(err, "cannot load signature").Error(),
	}
}
