// Package infer type checks a parsed module. Types are inferred with
// unification over type variables; integer literals get numeric variables
// that may only resolve to words.
package infer

import (
	"fmt"

	"martianoff/simc/internal/ast"
	"martianoff/simc/internal/compiler/registry"
	"martianoff/simc/internal/types"
	"martianoff/simc/simerr"
)

// DefaultWord is the type given to integers nothing else constrains.
const DefaultWord = "u64"

// Signature is the resolved type of a function.
type Signature struct {
	Params []types.Type
	Result types.Type
}

// Const is a folded param constant.
type Const struct {
	Type  types.Type
	Value types.Value
}

// TypedModule is a module whose every expression has a resolved type.
type TypedModule struct {
	Module    *ast.Module
	Types     map[ast.Expr]types.Type
	Funcs     map[string]*Signature
	Witnesses map[string]types.Type
	Consts    map[string]*Const
}

// TypeOf returns the resolved type of e.
func (m *TypedModule) TypeOf(e ast.Expr) types.Type {
	return m.Types[e]
}

type funcSig struct {
	decl   *ast.FnDecl
	params []Type
	result Type
}

type witnessSlot struct {
	typ      Type
	declared bool
	pos      simerr.Pos
}

type scope struct {
	vars   map[string]Type
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]Type), parent: parent}
}

func (s *scope) lookup(name string) (Type, bool) {
	for ; s != nil; s = s.parent {
		if t, ok := s.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// Checker holds the state for checking one module. It is not reusable.
type Checker struct {
	inf  *Inferer
	jets *registry.JetRegistry
	sub  Substitution

	exprs    map[ast.Expr]Type
	order    []ast.Expr
	literals []*ast.Literal

	funcs        map[string]*funcSig
	witnesses    map[string]*witnessSlot
	witnessOrder []string
	consts       map[string]*Const
}

// NewChecker creates a checker that resolves jet calls against jets.
func NewChecker(jets *registry.JetRegistry) *Checker {
	return &Checker{
		inf:       NewInferer(),
		jets:      jets,
		sub:       make(Substitution),
		exprs:     make(map[ast.Expr]Type),
		funcs:     make(map[string]*funcSig),
		witnesses: make(map[string]*witnessSlot),
		consts:    make(map[string]*Const),
	}
}

// Check type checks mod against the default jet registry.
func Check(mod *ast.Module) (*TypedModule, error) {
	return NewChecker(registry.Default()).Check(mod)
}

// Check type checks mod. On success every expression, witness and function
// of the module has a resolved type.
func (c *Checker) Check(mod *ast.Module) (*TypedModule, error) {
	main := mod.Func("main")
	if main == nil {
		return nil, simerr.NewParseErrorMsg(0, 0, "missing main function")
	}

	if mod.Params != nil {
		if err := c.checkParams(mod.Params); err != nil {
			return nil, err
		}
	}
	for _, fn := range mod.Funcs {
		if err := c.declareFunc(fn); err != nil {
			return nil, err
		}
	}
	for _, fn := range mod.Funcs {
		if err := c.checkFunc(fn); err != nil {
			return nil, err
		}
	}

	c.applyDefaults(main)
	return c.resolve(mod)
}

func (c *Checker) checkParams(block *ast.ParamBlock) error {
	for _, d := range block.Consts {
		if _, ok := c.consts[d.Name]; ok {
			return simerr.NewWitnessTypeError(d.Pos, simerr.KindDuplicate, d.Name,
				fmt.Sprintf("constant %s declared twice", d.Name))
		}
		typ, err := ResolveTypeExpr(d.Type)
		if err != nil {
			return err
		}
		if bad := firstNonConstant(d.Value); bad != nil {
			e := simerr.NewTypeError(bad.Position(), simerr.KindNotConstant,
				fmt.Sprintf("constant %s must be a constant expression", d.Name))
			e.Name = d.Name
			return e
		}
		t, err := c.infer(nil, d.Value)
		if err != nil {
			return err
		}
		if err := c.unifyAt(d.Value, FromResolved(typ), t); err != nil {
			return err
		}
		value, err := c.eval(d.Value, typ)
		if err != nil {
			return err
		}
		c.consts[d.Name] = &Const{Type: typ, Value: value}
	}

	for _, d := range block.Witnesses {
		if slot, ok := c.witnesses[d.Name]; ok && slot.declared {
			return simerr.NewWitnessTypeError(d.Pos, simerr.KindDuplicate, d.Name,
				fmt.Sprintf("witness %s declared twice", d.Name))
		}
		typ, err := ResolveTypeExpr(d.Type)
		if err != nil {
			return err
		}
		c.witnesses[d.Name] = &witnessSlot{typ: FromResolved(typ), declared: true, pos: d.Pos}
		c.witnessOrder = append(c.witnessOrder, d.Name)
	}
	return nil
}

// firstNonConstant returns the first subexpression of e that may not appear
// in a constant, or nil.
func firstNonConstant(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.Literal, *ast.ParamRef:
		return nil
	case *ast.Tuple:
		for _, el := range n.Elems {
			if bad := firstNonConstant(el); bad != nil {
				return bad
			}
		}
		return nil
	case *ast.Inject:
		return firstNonConstant(n.Value)
	case *ast.Annotated:
		return firstNonConstant(n.Expr)
	}
	return e
}

func (c *Checker) declareFunc(fn *ast.FnDecl) error {
	sig := &funcSig{decl: fn}
	seen := make(map[string]bool)
	for _, p := range fn.Params {
		if seen[p.Name] {
			return simerr.NewWitnessTypeError(p.Pos, simerr.KindDuplicate, p.Name,
				fmt.Sprintf("parameter %s of %s declared twice", p.Name, fn.Name))
		}
		seen[p.Name] = true
		typ, err := ResolveTypeExpr(p.Type)
		if err != nil {
			return err
		}
		sig.params = append(sig.params, FromResolved(typ))
	}
	if fn.Result != nil {
		typ, err := ResolveTypeExpr(fn.Result)
		if err != nil {
			return err
		}
		sig.result = FromResolved(typ)
	} else {
		sig.result = c.inf.NewTypeVar()
	}
	c.funcs[fn.Name] = sig
	return nil
}

func (c *Checker) checkFunc(fn *ast.FnDecl) error {
	sig := c.funcs[fn.Name]
	sc := newScope(nil)
	for i, p := range fn.Params {
		sc.vars[p.Name] = sig.params[i]
	}
	t, err := c.infer(sc, fn.Body)
	if err != nil {
		return err
	}
	var at ast.Expr = fn.Body
	if fn.Body.Result != nil {
		at = fn.Body.Result
	}
	return c.unifyAt(at, sig.result, t)
}

func (c *Checker) record(e ast.Expr, t Type) Type {
	if _, ok := c.exprs[e]; !ok {
		c.order = append(c.order, e)
	}
	c.exprs[e] = t
	return t
}

func (c *Checker) infer(sc *scope, e ast.Expr) (Type, error) {
	switch n := e.(type) {
	case *ast.Literal:
		switch n.Kind {
		case ast.IntLit:
			c.literals = append(c.literals, n)
			return c.record(e, c.inf.NewNumericVar()), nil
		case ast.BoolLit:
			return c.record(e, boolType()), nil
		}
		return c.record(e, unitConst), nil

	case *ast.Variable:
		t, ok := sc.lookup(n.Name)
		if !ok {
			return nil, c.undefined(n.Pos, n.Name, "variable")
		}
		return c.record(e, t), nil

	case *ast.ParamRef:
		k, ok := c.consts[n.Name]
		if !ok {
			return nil, c.undefined(n.Pos, n.Name, "parameter")
		}
		return c.record(e, FromResolved(k.Type)), nil

	case *ast.WitnessRef:
		slot, ok := c.witnesses[n.Name]
		if !ok {
			slot = &witnessSlot{typ: c.inf.NewTypeVar(), pos: n.Pos}
			c.witnesses[n.Name] = slot
			c.witnessOrder = append(c.witnessOrder, n.Name)
		}
		return c.record(e, slot.typ), nil

	case *ast.Call:
		sig, ok := c.funcs[n.Name]
		if !ok {
			return nil, c.undefined(n.Pos, n.Name, "function")
		}
		if err := c.checkArgs(sc, n.Pos, n.Name, n.Args, sig.params); err != nil {
			return nil, err
		}
		return c.record(e, sig.result), nil

	case *ast.JetCall:
		jet, ok := c.jets.Lookup(n.Name)
		if !ok {
			return nil, c.undefined(n.Pos, n.Name, "jet")
		}
		params := make([]Type, len(jet.Params))
		for i, p := range jet.Params {
			params[i] = FromResolved(p)
		}
		if err := c.checkArgs(sc, n.Pos, "jet::"+n.Name, n.Args, params); err != nil {
			return nil, err
		}
		return c.record(e, FromResolved(jet.Target)), nil

	case *ast.Tuple:
		elems := make([]Type, len(n.Elems))
		for i, el := range n.Elems {
			t, err := c.infer(sc, el)
			if err != nil {
				return nil, err
			}
			elems[i] = t
		}
		return c.record(e, tuple(elems)), nil

	case *ast.Inject:
		t, err := c.infer(sc, n.Value)
		if err != nil {
			return nil, err
		}
		if n.Side == ast.LeftSide {
			return c.record(e, sum(t, c.inf.NewTypeVar())), nil
		}
		if n.Option {
			return c.record(e, sum(unitConst, t)), nil
		}
		return c.record(e, sum(c.inf.NewTypeVar(), t)), nil

	case *ast.Match:
		return c.inferMatch(sc, n)

	case *ast.Block:
		inner := newScope(sc)
		for _, let := range n.Lets {
			t, err := c.infer(inner, let.Value)
			if err != nil {
				return nil, err
			}
			if let.Type != nil {
				ann, err := ResolveTypeExpr(let.Type)
				if err != nil {
					return nil, err
				}
				if err := c.unifyAt(let.Value, FromResolved(ann), t); err != nil {
					return nil, err
				}
			}
			if err := c.bindPattern(inner, let.Pattern, t); err != nil {
				return nil, err
			}
		}
		if n.Result == nil {
			return c.record(e, unitConst), nil
		}
		t, err := c.infer(inner, n.Result)
		if err != nil {
			return nil, err
		}
		return c.record(e, t), nil

	case *ast.Annotated:
		t, err := c.infer(sc, n.Expr)
		if err != nil {
			return nil, err
		}
		ann, err := ResolveTypeExpr(n.Type)
		if err != nil {
			return nil, err
		}
		want := FromResolved(ann)
		if err := c.unifyAt(n.Expr, want, t); err != nil {
			return nil, err
		}
		return c.record(e, want), nil
	}
	return nil, simerr.NewTypeError(e.Position(), simerr.KindCannotInfer, fmt.Sprintf("unknown expression %T", e))
}

func (c *Checker) checkArgs(sc *scope, pos simerr.Pos, name string, args []ast.Expr, params []Type) error {
	if len(args) != len(params) {
		e := simerr.NewTypeError(pos, simerr.KindArity,
			fmt.Sprintf("%s expects %d argument(s), found %d", name, len(params), len(args)))
		e.Name = name
		return e
	}
	for i, arg := range args {
		t, err := c.infer(sc, arg)
		if err != nil {
			return err
		}
		if err := c.unifyAt(arg, params[i], t); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) inferMatch(sc *scope, m *ast.Match) (Type, error) {
	ts, err := c.infer(sc, m.Scrutinee)
	if err != nil {
		return nil, err
	}
	var l, r Type
	switch m.Shape {
	case ast.BoolShape:
		l, r = unitConst, unitConst
	case ast.OptionShape:
		l, r = unitConst, c.inf.NewTypeVar()
	default:
		l, r = c.inf.NewTypeVar(), c.inf.NewTypeVar()
	}
	if err := c.unifyAt(m.Scrutinee, sum(l, r), ts); err != nil {
		return nil, err
	}

	tl, err := c.inferArm(sc, m.Left, l)
	if err != nil {
		return nil, err
	}
	tr, err := c.inferArm(sc, m.Right, r)
	if err != nil {
		return nil, err
	}
	if err := c.unifyAt(m.Right.Body, tl, tr); err != nil {
		return nil, err
	}
	return c.record(m, tl), nil
}

func (c *Checker) inferArm(sc *scope, arm *ast.MatchArm, bound Type) (Type, error) {
	inner := newScope(sc)
	if arm.Binding != nil {
		if err := c.bindPattern(inner, arm.Binding, bound); err != nil {
			return nil, err
		}
	}
	return c.infer(inner, arm.Body)
}

func (c *Checker) bindPattern(sc *scope, p ast.Pattern, t Type) error {
	switch n := p.(type) {
	case *ast.IdentPattern:
		sc.vars[n.Name] = t
	case *ast.TuplePattern:
		vars := make([]Type, len(n.Elems))
		for i := range vars {
			vars[i] = c.inf.NewTypeVar()
		}
		if err := c.unifyPos(n.Pos, tuple(vars), t); err != nil {
			return err
		}
		for i, el := range n.Elems {
			if err := c.bindPattern(sc, el, vars[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Checker) undefined(pos simerr.Pos, name, what string) error {
	e := simerr.NewTypeError(pos, simerr.KindUndefined, fmt.Sprintf("undefined %s %s", what, name))
	e.Name = name
	return e
}

// unifyAt unifies the type found for e with the type its context wants.
func (c *Checker) unifyAt(e ast.Expr, want, got Type) error {
	err := c.unifyPos(e.Position(), want, got)
	if err == nil {
		return nil
	}
	if conflict := c.witnessConflict(e, want); conflict != nil {
		return conflict
	}
	return err
}

// witnessConflict pushes want down through the tuples, injections and block
// results of e and reports the first undeclared witness whose type cannot
// take the part of want at its position.
func (c *Checker) witnessConflict(e ast.Expr, want Type) error {
	want = want.Apply(c.sub)
	switch n := e.(type) {
	case *ast.WitnessRef:
		slot, ok := c.witnesses[n.Name]
		if !ok || slot.declared {
			return nil
		}
		got := slot.typ.Apply(c.sub)
		if _, err := c.inf.unify(want, got); err != nil {
			return simerr.NewWitnessTypeError(n.Pos, simerr.KindConflictingWitness, n.Name,
				fmt.Sprintf("witness %s used as both %s and %s", n.Name, got, want))
		}
	case *ast.Tuple:
		for i, el := range n.Elems {
			if i == len(n.Elems)-1 {
				return c.witnessConflict(el, want)
			}
			app, ok := want.(*TypeApp)
			if !ok || app.Name != ProductName {
				return nil
			}
			if err := c.witnessConflict(el, app.Args[0]); err != nil {
				return err
			}
			want = app.Args[1]
		}
	case *ast.Inject:
		app, ok := want.(*TypeApp)
		if !ok || app.Name != SumName {
			return nil
		}
		if n.Side == ast.LeftSide {
			return c.witnessConflict(n.Value, app.Args[0])
		}
		return c.witnessConflict(n.Value, app.Args[1])
	case *ast.Block:
		if n.Result != nil {
			return c.witnessConflict(n.Result, want)
		}
	}
	return nil
}

func (c *Checker) unifyPos(pos simerr.Pos, want, got Type) error {
	want, got = want.Apply(c.sub), got.Apply(c.sub)
	s, err := c.inf.unify(want, got)
	if err != nil {
		return simerr.NewMismatchError(pos, want.String(), got.String())
	}
	c.sub = s.Compose(c.sub)
	return nil
}

// applyDefaults fixes the types nothing constrains: free variables in an
// undeclared main result, then every remaining integer literal.
func (c *Checker) applyDefaults(main *ast.FnDecl) {
	word := &TypeConst{Name: DefaultWord}
	if main.Result == nil {
		for v := range c.funcs[main.Name].result.Apply(c.sub).FreeTypeVars() {
			c.sub = Substitution{v: word}.Compose(c.sub)
		}
	}
	for _, v := range c.inf.numerics {
		if tv, ok := v.Apply(c.sub).(*TypeVariable); ok {
			c.sub = Substitution{tv: word}.Compose(c.sub)
		}
	}
}

func (c *Checker) resolve(mod *ast.Module) (*TypedModule, error) {
	tm := &TypedModule{
		Module:    mod,
		Types:     make(map[ast.Expr]types.Type, len(c.exprs)),
		Funcs:     make(map[string]*Signature, len(c.funcs)),
		Witnesses: make(map[string]types.Type, len(c.witnesses)),
		Consts:    c.consts,
	}

	for _, name := range c.witnessOrder {
		slot := c.witnesses[name]
		typ, ok := Resolve(slot.typ.Apply(c.sub))
		if !ok {
			return nil, simerr.NewWitnessTypeError(slot.pos, simerr.KindUnresolvedWitness, name,
				fmt.Sprintf("cannot infer type of witness %s", name))
		}
		tm.Witnesses[name] = typ
	}

	for _, e := range c.order {
		t := c.exprs[e].Apply(c.sub)
		typ, ok := Resolve(t)
		if !ok {
			return nil, simerr.NewTypeError(e.Position(), simerr.KindCannotInfer,
				fmt.Sprintf("cannot infer type of expression, found %s", t))
		}
		tm.Types[e] = typ
	}

	for _, lit := range c.literals {
		bits, _ := types.WordBits(tm.Types[lit])
		if _, err := types.NewWord(bits, lit.Int); err != nil {
			return nil, overflow(lit, tm.Types[lit])
		}
	}

	for _, fn := range mod.Funcs {
		sig := c.funcs[fn.Name]
		res := &Signature{}
		for _, p := range sig.params {
			typ, _ := Resolve(p)
			res.Params = append(res.Params, typ)
		}
		typ, ok := Resolve(sig.result.Apply(c.sub))
		if !ok {
			return nil, simerr.NewTypeError(fn.Pos, simerr.KindCannotInfer,
				fmt.Sprintf("cannot infer result type of %s", fn.Name))
		}
		res.Result = typ
		tm.Funcs[fn.Name] = res
	}
	return tm, nil
}

func overflow(lit *ast.Literal, t types.Type) error {
	e := simerr.NewTypeError(lit.Pos, simerr.KindOverflow,
		fmt.Sprintf("integer literal %s does not fit in %s", lit.Text, t))
	e.Expected = t.String()
	e.Found = lit.Text
	return e
}

// eval folds a constant expression of type t.
func (c *Checker) eval(e ast.Expr, t types.Type) (types.Value, error) {
	switch n := e.(type) {
	case *ast.Literal:
		switch n.Kind {
		case ast.IntLit:
			bits, _ := types.WordBits(t)
			w, err := types.NewWord(bits, n.Int)
			if err != nil {
				return nil, overflow(n, t)
			}
			return w, nil
		case ast.BoolLit:
			return types.BoolValue(n.Bool), nil
		}
		return types.UnitValue{}, nil

	case *ast.ParamRef:
		return c.consts[n.Name].Value, nil

	case *ast.Annotated:
		return c.eval(n.Expr, t)

	case *ast.Inject:
		s := t.(*types.Sum)
		if n.Side == ast.LeftSide {
			v, err := c.eval(n.Value, s.Left)
			if err != nil {
				return nil, err
			}
			return &types.LeftValue{Inner: v}, nil
		}
		v, err := c.eval(n.Value, s.Right)
		if err != nil {
			return nil, err
		}
		return &types.RightValue{Inner: v}, nil

	case *ast.Tuple:
		elemTypes, _ := types.Elems(t, len(n.Elems))
		values := make([]types.Value, len(n.Elems))
		for i, el := range n.Elems {
			v, err := c.eval(el, elemTypes[i])
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return types.TupleValue(values...), nil
	}
	return nil, simerr.NewTypeError(e.Position(), simerr.KindNotConstant, "not a constant expression")
}

// ResolveTypeExpr converts a type written in source.
func ResolveTypeExpr(te ast.TypeExpr) (types.Type, error) {
	switch n := te.(type) {
	case *ast.UnitType:
		return types.Unit{}, nil
	case *ast.NamedType:
		t, ok := types.Lookup(n.Name)
		if !ok {
			e := simerr.NewTypeError(n.Pos, simerr.KindUndefined, fmt.Sprintf("unknown type %s", n.Name))
			e.Name = n.Name
			return nil, e
		}
		return t, nil
	case *ast.TupleType:
		elems := make([]types.Type, len(n.Elems))
		for i, el := range n.Elems {
			t, err := ResolveTypeExpr(el)
			if err != nil {
				return nil, err
			}
			elems[i] = t
		}
		return types.Tuple(elems...), nil
	case *ast.GenericType:
		args := make([]types.Type, len(n.Args))
		for i, a := range n.Args {
			t, err := ResolveTypeExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = t
		}
		if n.Name == "Option" {
			return types.Option(args[0]), nil
		}
		return &types.Sum{Left: args[0], Right: args[1]}, nil
	}
	return nil, simerr.NewTypeError(te.Position(), simerr.KindUndefined, "unknown type")
}
