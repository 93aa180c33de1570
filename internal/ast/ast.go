// Package ast declares the syntax tree produced by the parser.
//
// Expressions fall into the categories literal, variable, witness reference,
// combinator application (tuples, injections, matches, calls, blocks) and
// type annotation. Nodes are immutable after parsing and are used as map keys
// by later stages, so every node is handled by pointer.
package ast

import (
	"math/big"

	"martianoff/simc/simerr"
)

// Node is implemented by every syntax tree node.
type Node interface {
	Position() simerr.Pos
}

// Module is the root of a parsed source file.
type Module struct {
	Pos    simerr.Pos
	Params *ParamBlock // nil when the source has no param block
	Funcs  []*FnDecl
}

func (m *Module) Position() simerr.Pos { return m.Pos }

// Func returns the function declaration with the given name, or nil.
func (m *Module) Func(name string) *FnDecl {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// ParamBlock holds compile-time constants and witness type declarations.
type ParamBlock struct {
	Pos       simerr.Pos
	Consts    []*ConstDecl
	Witnesses []*WitnessDecl
}

func (p *ParamBlock) Position() simerr.Pos { return p.Pos }

// ConstDecl is `const NAME: T = expr;`.
type ConstDecl struct {
	Pos   simerr.Pos
	Name  string
	Type  TypeExpr
	Value Expr
}

func (d *ConstDecl) Position() simerr.Pos { return d.Pos }

// WitnessDecl is `witness NAME: T;`.
type WitnessDecl struct {
	Pos  simerr.Pos
	Name string
	Type TypeExpr
}

func (d *WitnessDecl) Position() simerr.Pos { return d.Pos }

// FnDecl is a function declaration. Result is nil when the return type is
// left to inference.
type FnDecl struct {
	Pos    simerr.Pos
	Name   string
	Params []*Param
	Result TypeExpr
	Body   *Block
}

func (d *FnDecl) Position() simerr.Pos { return d.Pos }

// Param is a typed function parameter.
type Param struct {
	Pos  simerr.Pos
	Name string
	Type TypeExpr
}

func (p *Param) Position() simerr.Pos { return p.Pos }

// TypeExpr is a type as written in source.
type TypeExpr interface {
	Node
	typeExpr()
}

// UnitType is `()`.
type UnitType struct {
	Pos simerr.Pos
}

// TupleType is `(A, B, ...)` with at least two elements.
type TupleType struct {
	Pos   simerr.Pos
	Elems []TypeExpr
}

// NamedType is a bare type name such as `u32` or `bool`.
type NamedType struct {
	Pos  simerr.Pos
	Name string
}

// GenericType is `Either<A, B>` or `Option<A>`.
type GenericType struct {
	Pos  simerr.Pos
	Name string
	Args []TypeExpr
}

func (t *UnitType) Position() simerr.Pos    { return t.Pos }
func (t *TupleType) Position() simerr.Pos   { return t.Pos }
func (t *NamedType) Position() simerr.Pos   { return t.Pos }
func (t *GenericType) Position() simerr.Pos { return t.Pos }

func (*UnitType) typeExpr()    {}
func (*TupleType) typeExpr()   {}
func (*NamedType) typeExpr()   {}
func (*GenericType) typeExpr() {}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// LiteralKind classifies literals.
type LiteralKind int

const (
	IntLit LiteralKind = iota
	BoolLit
	UnitLit
)

// Literal is an integer, boolean or unit literal.
type Literal struct {
	Pos  simerr.Pos
	Kind LiteralKind
	Text string
	Int  *big.Int // IntLit
	Bool bool     // BoolLit
}

// Variable references a function parameter or a let binding.
type Variable struct {
	Pos  simerr.Pos
	Name string
}

// ParamRef is `param::NAME`.
type ParamRef struct {
	Pos  simerr.Pos
	Name string
}

// WitnessRef is `witness::NAME`.
type WitnessRef struct {
	Pos  simerr.Pos
	Name string
}

// Call applies a user function.
type Call struct {
	Pos  simerr.Pos
	Name string
	Args []Expr
}

// JetCall applies a primitive from the jet registry, `jet::NAME(args)`.
type JetCall struct {
	Pos  simerr.Pos
	Name string
	Args []Expr
}

// Tuple is `(a, b, ...)` with at least two elements.
type Tuple struct {
	Pos   simerr.Pos
	Elems []Expr
}

// Side selects a branch of a sum type.
type Side int

const (
	LeftSide Side = iota
	RightSide
)

func (s Side) String() string {
	if s == LeftSide {
		return "Left"
	}
	return "Right"
}

// Inject builds a sum value: Left(e), Right(e), Some(e) or None.
type Inject struct {
	Pos   simerr.Pos
	Side  Side
	Value Expr
	// Option is set for Some and None so the checker fixes the left side to ().
	Option bool
}

// Match eliminates a sum. Left always holds the arm for the left side and
// Right the arm for the right side, regardless of source order.
type Match struct {
	Pos       simerr.Pos
	Scrutinee Expr
	Left      *MatchArm
	Right     *MatchArm
	// Shape records which constructor family the arms used.
	Shape MatchShape
}

// MatchShape is the constructor family used by the arms of a match.
type MatchShape int

const (
	EitherShape MatchShape = iota
	BoolShape
	OptionShape
)

// MatchArm is one branch of a match. Binding is nil for arms that bind
// nothing (None, true, false).
type MatchArm struct {
	Pos     simerr.Pos
	Ctor    string
	Binding Pattern
	Body    Expr
}

// Block is a sequence of let statements followed by an optional result
// expression. A block without a result evaluates to ().
type Block struct {
	Pos    simerr.Pos
	Lets   []*LetStmt
	Result Expr
}

// Annotated is `(expr: T)`.
type Annotated struct {
	Pos  simerr.Pos
	Expr Expr
	Type TypeExpr
}

func (e *Literal) Position() simerr.Pos    { return e.Pos }
func (e *Variable) Position() simerr.Pos   { return e.Pos }
func (e *ParamRef) Position() simerr.Pos   { return e.Pos }
func (e *WitnessRef) Position() simerr.Pos { return e.Pos }
func (e *Call) Position() simerr.Pos       { return e.Pos }
func (e *JetCall) Position() simerr.Pos    { return e.Pos }
func (e *Tuple) Position() simerr.Pos      { return e.Pos }
func (e *Inject) Position() simerr.Pos     { return e.Pos }
func (e *Match) Position() simerr.Pos      { return e.Pos }
func (e *Block) Position() simerr.Pos      { return e.Pos }
func (e *Annotated) Position() simerr.Pos  { return e.Pos }

func (*Literal) expr()    {}
func (*Variable) expr()   {}
func (*ParamRef) expr()   {}
func (*WitnessRef) expr() {}
func (*Call) expr()       {}
func (*JetCall) expr()    {}
func (*Tuple) expr()      {}
func (*Inject) expr()     {}
func (*Match) expr()      {}
func (*Block) expr()      {}
func (*Annotated) expr()  {}

// LetStmt is `let pattern[: T] = expr;`.
type LetStmt struct {
	Pos     simerr.Pos
	Pattern Pattern
	Type    TypeExpr
	Value   Expr
}

func (s *LetStmt) Position() simerr.Pos { return s.Pos }

// Pattern destructures a value in let statements and match arms.
type Pattern interface {
	Node
	pattern()
}

// IdentPattern binds the whole value to Name.
type IdentPattern struct {
	Pos  simerr.Pos
	Name string
}

// WildcardPattern is `_`.
type WildcardPattern struct {
	Pos simerr.Pos
}

// TuplePattern destructures a right-nested product.
type TuplePattern struct {
	Pos   simerr.Pos
	Elems []Pattern
}

func (p *IdentPattern) Position() simerr.Pos    { return p.Pos }
func (p *WildcardPattern) Position() simerr.Pos { return p.Pos }
func (p *TuplePattern) Position() simerr.Pos    { return p.Pos }

func (*IdentPattern) pattern()    {}
func (*WildcardPattern) pattern() {}
func (*TuplePattern) pattern()    {}

// Walk calls fn for e and every expression nested in it, parents first. It
// stops descending into a node when fn returns false.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Call:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *JetCall:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *Tuple:
		for _, el := range n.Elems {
			Walk(el, fn)
		}
	case *Inject:
		Walk(n.Value, fn)
	case *Match:
		Walk(n.Scrutinee, fn)
		Walk(n.Left.Body, fn)
		Walk(n.Right.Body, fn)
	case *Block:
		for _, l := range n.Lets {
			Walk(l.Value, fn)
		}
		Walk(n.Result, fn)
	case *Annotated:
		Walk(n.Expr, fn)
	}
}
