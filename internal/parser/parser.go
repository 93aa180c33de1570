// Package parser builds the syntax tree of a contract from source text.
package parser

import (
	"fmt"
	"math/big"
	"strings"

	"martianoff/simc/internal/ast"
	"martianoff/simc/internal/lexer"
	"martianoff/simc/simerr"
)

// We follow a few naming conventions.
//
// For terminals:
//   peekX     inspects the current token without consuming it
//   consumeX  requires a token, returns it and advances
//
// For nonterminals:
//   parseX    returns an AST node and advances past it
//
// Grammar violations panic with a *simerr.ParseError which Parse recovers.

// Parser parses contract sources. It holds no state between calls and may be
// shared between goroutines.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse lexes src completely and parses the resulting tokens. A lexical error
// anywhere in src is reported in preference to any grammar error.
func (p *Parser) Parse(src string) (*ast.Module, error) {
	toks, err := lexer.All(src)
	if err != nil {
		return nil, err
	}
	return ParseTokens(toks)
}

// Parse is shorthand for NewParser().Parse(src).
func Parse(src string) (*ast.Module, error) {
	return NewParser().Parse(src)
}

type parser struct {
	toks []lexer.Token
	pos  int
}

// ParseTokens parses an already lexed token stream that ends with EOF.
func ParseTokens(toks []lexer.Token) (mod *ast.Module, err error) {
	if len(toks) == 0 || toks[len(toks)-1].Kind != lexer.EOF {
		toks = append(toks, lexer.Token{Kind: lexer.EOF})
	}
	defer func() {
		if val := recover(); val != nil {
			if e, ok := val.(*simerr.ParseError); ok {
				mod, err = nil, e
				return
			}
			panic(val)
		}
	}()
	p := &parser{toks: toks}
	mod = parseModule(p)
	return mod, nil
}

func (p *parser) tok() lexer.Token {
	return p.toks[p.pos]
}

func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if t.Kind != lexer.EOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...interface{}) {
	t := p.tok()
	panic(simerr.NewParseErrorMsg(t.Pos.Line, t.Pos.Column, fmt.Sprintf(format, args...)))
}

func (p *parser) expected(what string) {
	t := p.tok()
	panic(simerr.NewParseError(t.Pos.Line, t.Pos.Column, what, t.Describe()))
}

// terminals

func peekTok(p *parser, text string) bool {
	t := p.tok()
	return (t.Kind == lexer.Punctuation || t.Kind == lexer.Operator) && t.Text == text
}

func peekKeyword(p *parser, kw string) bool {
	return p.tok().Is(lexer.Keyword, kw)
}

func consumeTok(p *parser, text string) lexer.Token {
	if !peekTok(p, text) {
		p.expected(fmt.Sprintf("%q", text))
	}
	return p.advance()
}

func consumeKeyword(p *parser, kw string) lexer.Token {
	if !peekKeyword(p, kw) {
		p.expected(fmt.Sprintf("%q", kw))
	}
	return p.advance()
}

func consumeIdentifier(p *parser) lexer.Token {
	if p.tok().Kind != lexer.Identifier {
		p.expected("identifier")
	}
	return p.advance()
}

// nonterminals

func parseModule(p *parser) *ast.Module {
	mod := &ast.Module{Pos: p.tok().Pos}
	if peekKeyword(p, "mod") {
		mod.Params = parseParamBlock(p)
	}
	for p.tok().Kind != lexer.EOF {
		if !peekKeyword(p, "fn") {
			p.expected(`"fn"`)
		}
		fn := parseFn(p)
		if prev := mod.Func(fn.Name); prev != nil {
			panic(simerr.NewParseErrorMsg(fn.Pos.Line, fn.Pos.Column,
				fmt.Sprintf("function %s already declared at %s", fn.Name, prev.Pos)))
		}
		mod.Funcs = append(mod.Funcs, fn)
	}

	main := mod.Func("main")
	if main == nil {
		eof := p.tok()
		e := simerr.NewParseErrorMsg(eof.Pos.Line, eof.Pos.Column, "missing main function")
		e.Expected = "fn main()"
		e.Found = eof.Describe()
		panic(e)
	}
	if len(main.Params) != 0 {
		panic(simerr.NewParseErrorMsg(main.Pos.Line, main.Pos.Column, "main must not take parameters"))
	}
	return mod
}

// mod param { const X: T = v; witness W: T; }
func parseParamBlock(p *parser) *ast.ParamBlock {
	start := consumeKeyword(p, "mod")
	consumeKeyword(p, "param")
	consumeTok(p, "{")
	block := &ast.ParamBlock{Pos: start.Pos}
	for !peekTok(p, "}") {
		switch {
		case peekKeyword(p, "const"):
			block.Consts = append(block.Consts, parseConstDecl(p))
		case peekKeyword(p, "witness"):
			block.Witnesses = append(block.Witnesses, parseWitnessDecl(p))
		default:
			p.expected(`"const", "witness" or "}"`)
		}
	}
	consumeTok(p, "}")
	return block
}

func parseConstDecl(p *parser) *ast.ConstDecl {
	start := consumeKeyword(p, "const")
	name := consumeIdentifier(p)
	consumeTok(p, ":")
	typ := parseType(p)
	consumeTok(p, "=")
	value := parseExpr(p)
	consumeTok(p, ";")
	return &ast.ConstDecl{Pos: start.Pos, Name: name.Text, Type: typ, Value: value}
}

func parseWitnessDecl(p *parser) *ast.WitnessDecl {
	start := consumeKeyword(p, "witness")
	name := consumeIdentifier(p)
	consumeTok(p, ":")
	typ := parseType(p)
	consumeTok(p, ";")
	return &ast.WitnessDecl{Pos: start.Pos, Name: name.Text, Type: typ}
}

// fn name(a: T, b: U) -> R { ... }
func parseFn(p *parser) *ast.FnDecl {
	start := consumeKeyword(p, "fn")
	name := consumeIdentifier(p)
	fn := &ast.FnDecl{Pos: start.Pos, Name: name.Text}

	consumeTok(p, "(")
	for !peekTok(p, ")") {
		pname := consumeIdentifier(p)
		consumeTok(p, ":")
		fn.Params = append(fn.Params, &ast.Param{Pos: pname.Pos, Name: pname.Text, Type: parseType(p)})
		if !peekTok(p, ",") {
			break
		}
		consumeTok(p, ",")
	}
	consumeTok(p, ")")

	if peekTok(p, "->") {
		consumeTok(p, "->")
		fn.Result = parseType(p)
	}
	if !peekTok(p, "{") {
		p.expected(`"{"`)
	}
	fn.Body = parseBlock(p)
	return fn
}

func parseType(p *parser) ast.TypeExpr {
	t := p.tok()
	switch {
	case peekTok(p, "("):
		consumeTok(p, "(")
		if peekTok(p, ")") {
			consumeTok(p, ")")
			return &ast.UnitType{Pos: t.Pos}
		}
		first := parseType(p)
		if peekTok(p, ")") {
			consumeTok(p, ")")
			return first
		}
		elems := []ast.TypeExpr{first}
		for peekTok(p, ",") {
			consumeTok(p, ",")
			if peekTok(p, ")") {
				break
			}
			elems = append(elems, parseType(p))
		}
		consumeTok(p, ")")
		if len(elems) == 1 {
			return first
		}
		return &ast.TupleType{Pos: t.Pos, Elems: elems}

	case t.Kind == lexer.Identifier:
		p.advance()
		if (t.Text == "Either" || t.Text == "Option") && peekTok(p, "<") {
			consumeTok(p, "<")
			args := []ast.TypeExpr{parseType(p)}
			for peekTok(p, ",") {
				consumeTok(p, ",")
				args = append(args, parseType(p))
			}
			consumeTok(p, ">")
			want := 2
			if t.Text == "Option" {
				want = 1
			}
			if len(args) != want {
				panic(simerr.NewParseErrorMsg(t.Pos.Line, t.Pos.Column,
					fmt.Sprintf("%s takes %d type argument(s), got %d", t.Text, want, len(args))))
			}
			return &ast.GenericType{Pos: t.Pos, Name: t.Text, Args: args}
		}
		return &ast.NamedType{Pos: t.Pos, Name: t.Text}
	}
	p.expected("type")
	return nil
}

func parseBlock(p *parser) *ast.Block {
	start := consumeTok(p, "{")
	block := &ast.Block{Pos: start.Pos}
	for peekKeyword(p, "let") {
		block.Lets = append(block.Lets, parseLet(p))
	}
	if !peekTok(p, "}") {
		block.Result = parseExpr(p)
	}
	if !peekTok(p, "}") {
		if peekKeyword(p, "let") {
			p.errorf("let must precede the result expression of a block")
		}
		p.expected(`"}"`)
	}
	consumeTok(p, "}")
	return block
}

// let (a, b): (u8, u8) = expr;
func parseLet(p *parser) *ast.LetStmt {
	start := consumeKeyword(p, "let")
	stmt := &ast.LetStmt{Pos: start.Pos, Pattern: parsePattern(p)}
	if peekTok(p, ":") {
		consumeTok(p, ":")
		stmt.Type = parseType(p)
	}
	consumeTok(p, "=")
	stmt.Value = parseExpr(p)
	consumeTok(p, ";")
	return stmt
}

func parsePattern(p *parser) ast.Pattern {
	t := p.tok()
	if t.Kind == lexer.Identifier {
		p.advance()
		if t.Text == "_" {
			return &ast.WildcardPattern{Pos: t.Pos}
		}
		return &ast.IdentPattern{Pos: t.Pos, Name: t.Text}
	}
	if peekTok(p, "(") {
		consumeTok(p, "(")
		elems := []ast.Pattern{parsePattern(p)}
		for peekTok(p, ",") {
			consumeTok(p, ",")
			if peekTok(p, ")") {
				break
			}
			elems = append(elems, parsePattern(p))
		}
		consumeTok(p, ")")
		if len(elems) == 1 {
			return elems[0]
		}
		return &ast.TuplePattern{Pos: t.Pos, Elems: elems}
	}
	p.expected("pattern")
	return nil
}

func parseExpr(p *parser) ast.Expr {
	t := p.tok()
	switch t.Kind {
	case lexer.Literal:
		p.advance()
		return &ast.Literal{Pos: t.Pos, Kind: ast.IntLit, Text: t.Text, Int: parseInt(t)}

	case lexer.WitnessRef:
		p.advance()
		return &ast.WitnessRef{Pos: t.Pos, Name: t.Text}

	case lexer.Identifier:
		if t.Text == "_" {
			p.expected("expression")
		}
		p.advance()
		if peekTok(p, "(") {
			return &ast.Call{Pos: t.Pos, Name: t.Text, Args: parseArgs(p)}
		}
		return &ast.Variable{Pos: t.Pos, Name: t.Text}

	case lexer.Keyword:
		switch t.Text {
		case "true", "false":
			p.advance()
			return &ast.Literal{Pos: t.Pos, Kind: ast.BoolLit, Text: t.Text, Bool: t.Text == "true"}
		case "param":
			p.advance()
			consumeTok(p, "::")
			name := consumeIdentifier(p)
			return &ast.ParamRef{Pos: t.Pos, Name: name.Text}
		case "jet":
			p.advance()
			consumeTok(p, "::")
			name := consumeIdentifier(p)
			if !peekTok(p, "(") {
				p.expected(`"("`)
			}
			return &ast.JetCall{Pos: t.Pos, Name: name.Text, Args: parseArgs(p)}
		case "Left", "Right", "Some":
			p.advance()
			consumeTok(p, "(")
			value := parseExpr(p)
			consumeTok(p, ")")
			side := ast.RightSide
			if t.Text == "Left" {
				side = ast.LeftSide
			}
			return &ast.Inject{Pos: t.Pos, Side: side, Value: value, Option: t.Text == "Some"}
		case "None":
			p.advance()
			return &ast.Inject{
				Pos:    t.Pos,
				Side:   ast.LeftSide,
				Value:  &ast.Literal{Pos: t.Pos, Kind: ast.UnitLit, Text: "()"},
				Option: true,
			}
		case "match":
			return parseMatch(p)
		case "if":
			return parseIf(p)
		}

	case lexer.Punctuation:
		switch t.Text {
		case "(":
			return parseParenExpr(p)
		case "{":
			return parseBlock(p)
		}
	}
	p.expected("expression")
	return nil
}

// (), (e), (e: T) or (a, b, ...)
func parseParenExpr(p *parser) ast.Expr {
	start := consumeTok(p, "(")
	if peekTok(p, ")") {
		consumeTok(p, ")")
		return &ast.Literal{Pos: start.Pos, Kind: ast.UnitLit, Text: "()"}
	}
	first := parseExpr(p)
	switch {
	case peekTok(p, ":"):
		consumeTok(p, ":")
		typ := parseType(p)
		consumeTok(p, ")")
		return &ast.Annotated{Pos: start.Pos, Expr: first, Type: typ}
	case peekTok(p, ","):
		elems := []ast.Expr{first}
		for peekTok(p, ",") {
			consumeTok(p, ",")
			if peekTok(p, ")") {
				break
			}
			elems = append(elems, parseExpr(p))
		}
		consumeTok(p, ")")
		if len(elems) == 1 {
			return first
		}
		return &ast.Tuple{Pos: start.Pos, Elems: elems}
	}
	consumeTok(p, ")")
	return first
}

func parseArgs(p *parser) []ast.Expr {
	var args []ast.Expr
	consumeTok(p, "(")
	for !peekTok(p, ")") {
		args = append(args, parseExpr(p))
		if !peekTok(p, ",") {
			break
		}
		consumeTok(p, ",")
	}
	consumeTok(p, ")")
	return args
}

var armShapes = map[string]struct {
	shape ast.MatchShape
	side  ast.Side
	binds bool
}{
	"Left":  {ast.EitherShape, ast.LeftSide, true},
	"Right": {ast.EitherShape, ast.RightSide, true},
	"false": {ast.BoolShape, ast.LeftSide, false},
	"true":  {ast.BoolShape, ast.RightSide, false},
	"None":  {ast.OptionShape, ast.LeftSide, false},
	"Some":  {ast.OptionShape, ast.RightSide, true},
}

// match e { Left(x) => a, Right(y) => b }
func parseMatch(p *parser) ast.Expr {
	start := consumeKeyword(p, "match")
	m := &ast.Match{Pos: start.Pos, Scrutinee: parseExpr(p)}
	consumeTok(p, "{")

	var arms []*ast.MatchArm
	for !peekTok(p, "}") {
		arms = append(arms, parseArm(p))
		if !peekTok(p, ",") {
			break
		}
		consumeTok(p, ",")
	}
	consumeTok(p, "}")

	if len(arms) != 2 {
		panic(simerr.NewParseErrorMsg(start.Pos.Line, start.Pos.Column,
			fmt.Sprintf("match must have exactly two arms, found %d", len(arms))))
	}
	first, second := armShapes[arms[0].Ctor], armShapes[arms[1].Ctor]
	if first.shape != second.shape || first.side == second.side {
		panic(simerr.NewParseErrorMsg(arms[1].Pos.Line, arms[1].Pos.Column,
			fmt.Sprintf("match arm %s does not complement %s", arms[1].Ctor, arms[0].Ctor)))
	}
	m.Shape = first.shape
	if first.side == ast.LeftSide {
		m.Left, m.Right = arms[0], arms[1]
	} else {
		m.Left, m.Right = arms[1], arms[0]
	}
	return m
}

func parseArm(p *parser) *ast.MatchArm {
	t := p.tok()
	info, ok := armShapes[t.Text]
	if t.Kind != lexer.Keyword || !ok {
		p.expected("match pattern")
	}
	p.advance()
	arm := &ast.MatchArm{Pos: t.Pos, Ctor: t.Text}
	if info.binds {
		consumeTok(p, "(")
		arm.Binding = parsePattern(p)
		consumeTok(p, ")")
	}
	consumeTok(p, "=>")
	arm.Body = parseExpr(p)
	return arm
}

// if c { a } else { b } is match c { false => b, true => a }
func parseIf(p *parser) ast.Expr {
	start := consumeKeyword(p, "if")
	cond := parseExpr(p)
	if !peekTok(p, "{") {
		p.expected(`"{"`)
	}
	then := parseBlock(p)
	elseTok := consumeKeyword(p, "else")
	var otherwise ast.Expr
	if peekKeyword(p, "if") {
		otherwise = parseIf(p)
	} else {
		if !peekTok(p, "{") {
			p.expected(`"{" or "if"`)
		}
		otherwise = parseBlock(p)
	}
	return &ast.Match{
		Pos:       start.Pos,
		Scrutinee: cond,
		Shape:     ast.BoolShape,
		Left:      &ast.MatchArm{Pos: elseTok.Pos, Ctor: "false", Body: otherwise},
		Right:     &ast.MatchArm{Pos: start.Pos, Ctor: "true", Body: then},
	}
}

func parseInt(t lexer.Token) *big.Int {
	text := strings.ReplaceAll(t.Text, "_", "")
	base := 10
	switch {
	case strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X"):
		text, base = text[2:], 16
	case strings.HasPrefix(text, "0b") || strings.HasPrefix(text, "0B"):
		text, base = text[2:], 2
	}
	v, ok := new(big.Int).SetString(text, base)
	if !ok {
		panic(simerr.NewParseErrorMsg(t.Pos.Line, t.Pos.Column, fmt.Sprintf("malformed number %s", t.Text)))
	}
	return v
}
