// Package lower translates a type checked module into a combinator tree.
//
// Every expression becomes a combinator from the current context to the
// expression's type. The context of main is (); a function's context is its
// parameters as (p1, (p2, (..., ()))). Let statements and match arms extend
// the context with pair(value, iden), and variables are take/drop paths into
// it. Function bodies are lowered once and shared by all call sites.
package lower

import (
	"fmt"

	"martianoff/simc/internal/ast"
	"martianoff/simc/internal/combinator"
	"martianoff/simc/internal/compiler/infer"
	"martianoff/simc/internal/compiler/registry"
	"martianoff/simc/internal/types"
	"martianoff/simc/simerr"
)

type side bool

const (
	left  side = false
	right side = true
)

type binding struct {
	name string
	path []side
}

// frame is one slot of the context.
type frame struct {
	bindings []binding
}

type env struct {
	ctx    types.Type
	frames []*frame // frames[0] is the slot pushed last
}

func (e *env) push(f *frame, t types.Type) *env {
	frames := make([]*frame, 0, len(e.frames)+1)
	frames = append(frames, f)
	frames = append(frames, e.frames...)
	return &env{ctx: &types.Product{Left: t, Right: e.ctx}, frames: frames}
}

func (e *env) lookup(name string) (int, []side, bool) {
	for depth, f := range e.frames {
		for i := len(f.bindings) - 1; i >= 0; i-- {
			if f.bindings[i].name == name {
				return depth, f.bindings[i].path, true
			}
		}
	}
	return 0, nil, false
}

type lowerer struct {
	tm     *infer.TypedModule
	jets   *registry.JetRegistry
	bodies map[string]*combinator.Node
}

// Lower lowers tm against the default jet registry.
func Lower(tm *infer.TypedModule) (*combinator.Node, error) {
	return LowerWith(tm, registry.Default())
}

// LowerWith lowers tm and validates the resulting tree. Recursive functions
// are rejected, whether or not main reaches them.
func LowerWith(tm *infer.TypedModule, jets *registry.JetRegistry) (root *combinator.Node, err error) {
	graph := BuildCallGraph(tm.Module)
	order, err := graph.TopologicalSort("main")
	if err != nil {
		if cycle, ok := err.(*CycleError); ok {
			return nil, simerr.NewLoweringError(cycle.Call.Pos, "call "+cycle.Call.Name, cycle.Error())
		}
		return nil, err
	}

	defer func() {
		if val := recover(); val != nil {
			if e, ok := val.(*simerr.LoweringError); ok {
				root, err = nil, e
				return
			}
			panic(val)
		}
	}()

	l := &lowerer{tm: tm, jets: jets, bodies: make(map[string]*combinator.Node)}
	for _, name := range order {
		l.lowerFunc(tm.Module.Func(name))
	}
	root = l.bodies["main"]

	if verr := combinator.Validate(root, jets); verr != nil {
		return nil, simerr.NewLoweringError(simerr.Pos{}, "program", verr.Error())
	}
	return root, nil
}

func (l *lowerer) fail(n ast.Node, what, reason string) {
	panic(simerr.NewLoweringError(n.Position(), what, reason))
}

func (l *lowerer) lowerFunc(fn *ast.FnDecl) {
	sig := l.tm.Funcs[fn.Name]
	ctx := types.Tuple(append(append([]types.Type(nil), sig.Params...), types.Unit{})...)
	en := &env{ctx: ctx}
	for _, p := range fn.Params {
		en.frames = append(en.frames, &frame{bindings: []binding{{name: p.Name}}})
	}
	l.bodies[fn.Name] = l.lower(fn.Body, en)
}

func (l *lowerer) typeOf(e ast.Expr) types.Type {
	t := l.tm.TypeOf(e)
	if t == nil {
		l.fail(e, fmt.Sprintf("%T", e), "expression has no type")
	}
	return t
}

func (l *lowerer) lower(e ast.Expr, en *env) *combinator.Node {
	t := l.typeOf(e)
	switch n := e.(type) {
	case *ast.Literal:
		switch n.Kind {
		case ast.IntLit:
			bits, _ := types.WordBits(t)
			w, err := types.NewWord(bits, n.Int)
			if err != nil {
				l.fail(n, "literal "+n.Text, err.Error())
			}
			return combinator.NewConst(w, en.ctx, t)
		case ast.BoolLit:
			if n.Bool {
				return combinator.NewInjR(types.Unit{}, combinator.NewUnit(en.ctx))
			}
			return combinator.NewInjL(combinator.NewUnit(en.ctx), types.Unit{})
		}
		return combinator.NewUnit(en.ctx)

	case *ast.ParamRef:
		k, ok := l.tm.Consts[n.Name]
		if !ok {
			l.fail(n, "param::"+n.Name, "undefined constant")
		}
		return combinator.NewConst(k.Value, en.ctx, t)

	case *ast.WitnessRef:
		return combinator.NewWitness(n.Name, en.ctx, t)

	case *ast.Variable:
		depth, path, ok := en.lookup(n.Name)
		if !ok {
			l.fail(n, n.Name, "variable not in scope")
		}
		return project(en.ctx, depth, path)

	case *ast.Tuple:
		return l.tuple(n.Elems, en)

	case *ast.Inject:
		s := t.(*types.Sum)
		v := l.lower(n.Value, en)
		if n.Side == ast.LeftSide {
			return combinator.NewInjL(v, s.Right)
		}
		return combinator.NewInjR(s.Left, v)

	case *ast.Match:
		return l.lowerMatch(n, en)

	case *ast.Block:
		return l.lowerBlock(n, 0, en)

	case *ast.Annotated:
		return l.lower(n.Expr, en)

	case *ast.Call:
		body, ok := l.bodies[n.Name]
		if !ok {
			l.fail(n, "call "+n.Name, "function body not available")
		}
		args := append(append([]ast.Expr(nil), n.Args...), nil)
		return combinator.NewComp(l.tuple(args, en), body)

	case *ast.JetCall:
		info, ok := l.jets.Lookup(n.Name)
		if !ok {
			l.fail(n, "jet::"+n.Name, "unknown jet")
		}
		return combinator.NewComp(l.tuple(n.Args, en), combinator.NewJet(info))
	}
	l.fail(e, fmt.Sprintf("%T", e), "no combinator equivalent")
	return nil
}

// tuple lowers elems as a right-nested pair. A nil element stands for ().
func (l *lowerer) tuple(elems []ast.Expr, en *env) *combinator.Node {
	switch len(elems) {
	case 0:
		return combinator.NewUnit(en.ctx)
	case 1:
		if elems[0] == nil {
			return combinator.NewUnit(en.ctx)
		}
		return l.lower(elems[0], en)
	}
	var head *combinator.Node
	if elems[0] == nil {
		head = combinator.NewUnit(en.ctx)
	} else {
		head = l.lower(elems[0], en)
	}
	return combinator.NewPair(head, l.tuple(elems[1:], en))
}

func (l *lowerer) lowerBlock(b *ast.Block, i int, en *env) *combinator.Node {
	if i == len(b.Lets) {
		if b.Result == nil {
			return combinator.NewUnit(en.ctx)
		}
		return l.lower(b.Result, en)
	}
	let := b.Lets[i]
	value := l.lower(let.Value, en)
	inner := en.push(patternFrame(let.Pattern), l.typeOf(let.Value))
	rest := l.lowerBlock(b, i+1, inner)
	return combinator.NewComp(combinator.NewPair(value, combinator.NewIden(en.ctx)), rest)
}

// lowerMatch is comp(pair(scrutinee, iden), case(left, right)).
func (l *lowerer) lowerMatch(m *ast.Match, en *env) *combinator.Node {
	s, ok := l.typeOf(m.Scrutinee).(*types.Sum)
	if !ok {
		l.fail(m, "match", "scrutinee is not a sum")
	}
	scrutinee := l.lower(m.Scrutinee, en)
	lhs := l.lower(m.Left.Body, en.push(patternFrame(m.Left.Binding), s.Left))
	rhs := l.lower(m.Right.Body, en.push(patternFrame(m.Right.Binding), s.Right))
	return combinator.NewComp(
		combinator.NewPair(scrutinee, combinator.NewIden(en.ctx)),
		combinator.NewCase(lhs, rhs),
	)
}

func patternFrame(p ast.Pattern) *frame {
	f := &frame{}
	if p != nil {
		f.bindings = patternBindings(p, nil)
	}
	return f
}

func patternBindings(p ast.Pattern, prefix []side) []binding {
	switch n := p.(type) {
	case *ast.IdentPattern:
		return []binding{{name: n.Name, path: append([]side(nil), prefix...)}}
	case *ast.TuplePattern:
		var res []binding
		path := append([]side(nil), prefix...)
		for i, el := range n.Elems {
			if i == len(n.Elems)-1 {
				res = append(res, patternBindings(el, path)...)
				break
			}
			res = append(res, patternBindings(el, append(path, left))...)
			path = append(path, right)
		}
		return res
	}
	return nil
}

// project selects slot depth of ctx and then follows path inside it.
func project(ctx types.Type, depth int, path []side) *combinator.Node {
	steps := make([]side, 0, depth+1+len(path))
	for i := 0; i < depth; i++ {
		steps = append(steps, right)
	}
	steps = append(steps, left)
	steps = append(steps, path...)

	prods := make([]*types.Product, len(steps))
	t := ctx
	for i, s := range steps {
		p := t.(*types.Product)
		prods[i] = p
		if s == left {
			t = p.Left
		} else {
			t = p.Right
		}
	}

	node := combinator.NewIden(t)
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i] == left {
			node = combinator.NewTake(node, prods[i].Right)
		} else {
			node = combinator.NewDrop(prods[i].Left, node)
		}
	}
	return node
}
