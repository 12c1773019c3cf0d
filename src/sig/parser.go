package sig

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/tanema/steep/src/serrors"
	"github.com/tanema/steep/src/types"
)

type (
	// File is a parsed signature file.
	File struct {
		Path  string
		Decls []Decl
		Refs  []Ref
	}
	// Decl is a top level declaration in a signature file.
	Decl interface{ decl() }
	// Ref records a use of a named type so that definition lookups can find the
	// name under a cursor.
	Ref struct {
		LineInfo
		Name string
	}
	// TypeParam is a declared generic parameter with its variance.
	TypeParam struct {
		Name     string
		Variance types.Variance
	}
	// MethodDecl is a single method signature inside a class or interface.
	MethodDecl struct {
		LineInfo
		Name       string
		TypeParams []string
		Type       *types.Proc
	}
	// ClassDecl is a class or interface declaration with its members.
	ClassDecl struct {
		LineInfo
		EndLine    int
		Kind       types.NominalKind
		Name       string
		TypeParams []TypeParam
		Super      *types.Nominal
		Includes   []*types.Nominal
		Methods    []*MethodDecl
	}
	// AliasDecl declares a name expanding to another type.
	AliasDecl struct {
		LineInfo
		Name   string
		Target types.Type
	}
	// Parser parses one signature file at a time.
	Parser struct {
		lex  *lexer
		path string
		file *File
	}
)

func (d *ClassDecl) decl() {}
func (d *AliasDecl) decl() {}

// ParseFile opens and parses a signature file.
func ParseFile(path string) (*File, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	return Parse(path, src)
}

// Parse parses signature source into a file of declarations.
func Parse(path string, src io.Reader) (*File, error) {
	p := &Parser{
		lex:  newLexer(path, src),
		path: path,
		file: &File{Path: path},
	}
	for {
		tk, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tk.Kind == tokenEOS {
			return p.file, nil
		}
		decl, err := p.decl()
		if err != nil {
			return nil, err
		}
		p.file.Decls = append(p.file.Decls, decl)
	}
}

// ParseType parses a single type expression, used by the console and tests.
func ParseType(src string) (types.Type, error) {
	p := &Parser{
		lex:  newLexer("<console>", strings.NewReader(src)),
		path: "<console>",
		file: &File{Path: "<console>"},
	}
	t, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	tk, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tk.Kind != tokenEOS {
		return nil, p.parseErr(tk, fmt.Errorf("unexpected trailing %v", tk.Kind))
	}
	return t, nil
}

func (p *Parser) parseErr(tk *token, err error) error {
	return &serrors.Error{
		Path:   p.path,
		Kind:   serrors.SignatureErr,
		Line:   tk.Line,
		Column: tk.Column,
		Err:    err,
	}
}

func (p *Parser) consumeToken(tt tokenType) (*token, error) {
	tk, err := p.lex.Next()
	if err != nil {
		return nil, err
	}
	if tk.Kind != tt {
		return nil, p.parseErr(tk, fmt.Errorf("expected %v but found %v", tt, tk.Kind))
	}
	return tk, nil
}

func (p *Parser) next(tt tokenType) error {
	_, err := p.consumeToken(tt)
	return err
}

func (p *Parser) decl() (Decl, error) {
	tk, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	switch tk.Kind {
	case tokenClass:
		return p.classDecl(types.Instance)
	case tokenInterface:
		return p.classDecl(types.Interface)
	case tokenAlias:
		return p.aliasDecl()
	default:
		return nil, p.parseErr(tk, fmt.Errorf("expected class, interface, or alias but found %v", tk.Kind))
	}
}

func (p *Parser) classDecl(kind types.NominalKind) (*ClassDecl, error) {
	opening, err := p.lex.Next()
	if err != nil {
		return nil, err
	}
	name, err := p.consumeToken(tokenIdent)
	if err != nil {
		return nil, err
	}
	decl := &ClassDecl{LineInfo: opening.LineInfo, Kind: kind, Name: name.Ident}

	tk, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tk.Kind == tokenOpenBracket {
		if decl.TypeParams, err = p.typeParams(); err != nil {
			return nil, err
		}
	}

	if tk, err = p.lex.Peek(); err != nil {
		return nil, err
	}
	if tk.Kind == tokenLess && kind == types.Instance {
		if err := p.next(tokenLess); err != nil {
			return nil, err
		}
		super, err := p.nominal()
		if err != nil {
			return nil, err
		}
		decl.Super = super
	}

	for {
		tk, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		switch tk.Kind {
		case tokenEnd:
			decl.EndLine = tk.Line
			return decl, nil
		case tokenDef:
			method, err := p.methodDecl(tk.LineInfo)
			if err != nil {
				return nil, err
			}
			decl.Methods = append(decl.Methods, method)
		case tokenInclude:
			iface, err := p.nominal()
			if err != nil {
				return nil, err
			}
			iface.Kind = types.Interface
			decl.Includes = append(decl.Includes, iface)
		default:
			return nil, p.parseErr(tk, fmt.Errorf("expected def, include, or end but found %v", tk.Kind))
		}
	}
}

func (p *Parser) aliasDecl() (*AliasDecl, error) {
	opening, err := p.lex.Next()
	if err != nil {
		return nil, err
	}
	name, err := p.consumeToken(tokenIdent)
	if err != nil {
		return nil, err
	}
	if err := p.next(tokenAssign); err != nil {
		return nil, err
	}
	target, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	return &AliasDecl{LineInfo: opening.LineInfo, Name: name.Ident, Target: target}, nil
}

func (p *Parser) typeParams() ([]TypeParam, error) {
	if err := p.next(tokenOpenBracket); err != nil {
		return nil, err
	}
	params := []TypeParam{}
	for {
		tk, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		param := TypeParam{Variance: types.Invariant}
		switch tk.Kind {
		case tokenOut:
			param.Variance = types.Covariant
			if tk, err = p.consumeToken(tokenIdent); err != nil {
				return nil, err
			}
		case tokenIn:
			param.Variance = types.Contravariant
			if tk, err = p.consumeToken(tokenIdent); err != nil {
				return nil, err
			}
		case tokenIdent:
		default:
			return nil, p.parseErr(tk, fmt.Errorf("expected type parameter but found %v", tk.Kind))
		}
		param.Name = tk.Ident
		params = append(params, param)

		tk, err = p.lex.Next()
		if err != nil {
			return nil, err
		}
		if tk.Kind == tokenCloseBracket {
			return params, nil
		}
		if tk.Kind != tokenComma {
			return nil, p.parseErr(tk, fmt.Errorf("expected , or ] but found %v", tk.Kind))
		}
	}
}

func (p *Parser) methodDecl(linfo LineInfo) (*MethodDecl, error) {
	name, err := p.consumeToken(tokenIdent)
	if err != nil {
		return nil, err
	}
	if err := p.next(tokenColon); err != nil {
		return nil, err
	}
	method := &MethodDecl{LineInfo: linfo, Name: name.Ident}

	tk, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tk.Kind == tokenOpenBracket {
		params, err := p.typeParams()
		if err != nil {
			return nil, err
		}
		for _, param := range params {
			if param.Variance != types.Invariant {
				return nil, p.parseErr(tk, fmt.Errorf("method type parameter %v cannot declare variance", param.Name))
			}
			method.TypeParams = append(method.TypeParams, param.Name)
		}
	}

	proc, err := p.procType()
	if err != nil {
		return nil, err
	}
	method.Type = proc
	return method, nil
}

func (p *Parser) typeExpr() (types.Type, error) {
	elems := []types.Type{}
	for {
		t, err := p.intersection()
		if err != nil {
			return nil, err
		}
		elems = append(elems, t)
		tk, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tk.Kind != tokenPipe {
			return types.NewUnion(elems...), nil
		}
		if _, err := p.lex.Next(); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) intersection() (types.Type, error) {
	elems := []types.Type{}
	for {
		t, err := p.postfix()
		if err != nil {
			return nil, err
		}
		elems = append(elems, t)
		tk, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tk.Kind != tokenAmp {
			return types.NewIntersection(elems...), nil
		}
		if _, err := p.lex.Next(); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) postfix() (types.Type, error) {
	t, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		tk, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tk.Kind != tokenQuestion {
			return t, nil
		}
		if _, err := p.lex.Next(); err != nil {
			return nil, err
		}
		t = types.NewUnion(t, types.NilType)
	}
}

func (p *Parser) primary() (types.Type, error) {
	tk, err := p.lex.Next()
	if err != nil {
		return nil, err
	}
	switch tk.Kind {
	case tokenTop:
		return types.Top, nil
	case tokenBot:
		return types.Bot, nil
	case tokenAny:
		return types.Any, nil
	case tokenSelf:
		return &types.Var{Name: "self", Loc: p.loc(tk.LineInfo)}, nil
	case tokenSingleton:
		if err := p.next(tokenOpenParen); err != nil {
			return nil, err
		}
		name, err := p.consumeToken(tokenIdent)
		if err != nil {
			return nil, err
		}
		if err := p.next(tokenCloseParen); err != nil {
			return nil, err
		}
		p.file.Refs = append(p.file.Refs, Ref{LineInfo: name.LineInfo, Name: name.Ident})
		return &types.Nominal{Kind: types.Class, Name: name.Ident, Loc: p.loc(name.LineInfo)}, nil
	case tokenIdent:
		return p.named(tk)
	case tokenOpenBracket:
		return p.tuple(tk)
	case tokenOpenCurly:
		return p.record(tk)
	case tokenOpenParen:
		p.lex.back(tk)
		return p.procType()
	default:
		return nil, p.parseErr(tk, fmt.Errorf("expected a type but found %v", tk.Kind))
	}
}

// named parses a type variable, an interface reference, or a nominal with
// optional type arguments. Lowercase names are variables, names with a leading
// underscore are interfaces, the rest are classes or aliases.
func (p *Parser) named(tk *token) (types.Type, error) {
	name := tk.Ident
	if first := []rune(name)[0]; first != '_' && unicode.IsLower(first) {
		return &types.Var{Name: name, Loc: p.loc(tk.LineInfo)}, nil
	}

	kind := types.Instance
	if strings.HasPrefix(name, "_") {
		kind = types.Interface
		name = strings.TrimPrefix(name, "_")
	}

	nominal := &types.Nominal{Kind: kind, Name: name, Loc: p.loc(tk.LineInfo)}
	p.file.Refs = append(p.file.Refs, Ref{LineInfo: tk.LineInfo, Name: name})

	peeked, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if peeked.Kind != tokenOpenBracket {
		return nominal, nil
	}
	if _, err := p.lex.Next(); err != nil {
		return nil, err
	}
	for {
		arg, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		nominal.Args = append(nominal.Args, arg)
		tk, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		if tk.Kind == tokenCloseBracket {
			return nominal, nil
		}
		if tk.Kind != tokenComma {
			return nil, p.parseErr(tk, fmt.Errorf("expected , or ] but found %v", tk.Kind))
		}
	}
}

// nominal parses a type expression that must be a plain nominal reference, used
// for superclasses and includes.
func (p *Parser) nominal() (*types.Nominal, error) {
	tk, err := p.consumeToken(tokenIdent)
	if err != nil {
		return nil, err
	}
	t, err := p.named(tk)
	if err != nil {
		return nil, err
	}
	nominal, isNominal := t.(*types.Nominal)
	if !isNominal {
		return nil, p.parseErr(tk, fmt.Errorf("expected a class name but found %v", t))
	}
	return nominal, nil
}

func (p *Parser) tuple(opening *token) (types.Type, error) {
	tuple := &types.Tuple{Loc: p.loc(opening.LineInfo)}
	tk, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tk.Kind == tokenCloseBracket {
		_, err := p.lex.Next()
		return tuple, err
	}
	for {
		elem, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		tuple.Elems = append(tuple.Elems, elem)
		tk, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		if tk.Kind == tokenCloseBracket {
			return tuple, nil
		}
		if tk.Kind != tokenComma {
			return nil, p.parseErr(tk, fmt.Errorf("expected , or ] but found %v", tk.Kind))
		}
	}
}

func (p *Parser) record(opening *token) (types.Type, error) {
	record := &types.Record{Fields: map[string]types.Type{}, Loc: p.loc(opening.LineInfo)}
	tk, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tk.Kind == tokenCloseCurly {
		_, err := p.lex.Next()
		return record, err
	}
	for {
		key, err := p.consumeToken(tokenIdent)
		if err != nil {
			return nil, err
		}
		if err := p.next(tokenColon); err != nil {
			return nil, err
		}
		field, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		record.Fields[key.Ident] = field
		tk, err := p.lex.Next()
		if err != nil {
			return nil, err
		}
		if tk.Kind == tokenCloseCurly {
			return record, nil
		}
		if tk.Kind != tokenComma {
			return nil, p.parseErr(tk, fmt.Errorf("expected , or } but found %v", tk.Kind))
		}
	}
}

func (p *Parser) procType() (*types.Proc, error) {
	opening, err := p.consumeToken(tokenOpenParen)
	if err != nil {
		return nil, err
	}
	proc := &types.Proc{Loc: p.loc(opening.LineInfo)}
	tk, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tk.Kind == tokenCloseParen {
		if _, err := p.lex.Next(); err != nil {
			return nil, err
		}
	} else {
		for {
			if err := p.param(proc); err != nil {
				return nil, err
			}
			tk, err := p.lex.Next()
			if err != nil {
				return nil, err
			}
			if tk.Kind == tokenCloseParen {
				break
			}
			if tk.Kind != tokenComma {
				return nil, p.parseErr(tk, fmt.Errorf("expected , or ) but found %v", tk.Kind))
			}
		}
	}
	if err := p.next(tokenArrow); err != nil {
		return nil, err
	}
	ret, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	proc.Return = ret
	return proc, nil
}

// param parses one parameter, which is a keyword param when an identifier is
// directly followed by a colon and a positional type otherwise.
func (p *Parser) param(proc *types.Proc) error {
	tk, err := p.lex.Next()
	if err != nil {
		return err
	}
	if tk.Kind == tokenIdent {
		peeked, err := p.lex.Peek()
		if err != nil {
			return err
		}
		if peeked.Kind == tokenColon {
			if _, err := p.lex.Next(); err != nil {
				return err
			}
			keyword, err := p.typeExpr()
			if err != nil {
				return err
			}
			if proc.Keywords == nil {
				proc.Keywords = map[string]types.Type{}
			}
			proc.Keywords[tk.Ident] = keyword
			return nil
		}
	}
	p.lex.back(tk)
	param, err := p.typeExpr()
	if err != nil {
		return err
	}
	proc.Params = append(proc.Params, param)
	return nil
}

func (p *Parser) loc(linfo LineInfo) *types.Location {
	return &types.Location{Path: p.path, Line: linfo.Line, Column: linfo.Column}
}
