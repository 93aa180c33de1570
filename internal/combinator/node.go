// Package combinator defines the core combinator tree that programs lower to.
//
// A tree is built once and never mutated. Subtrees may be shared, so a tree is
// in general a DAG; every traversal in this package visits each distinct node
// once.
package combinator

import (
	"fmt"

	"martianoff/simc/internal/compiler/registry"
	"martianoff/simc/internal/types"
)

// Kind is the combinator a node applies.
type Kind uint8

const (
	Iden Kind = iota
	Unit
	Comp
	Case
	Pair
	InjL
	InjR
	Take
	Drop
	Witness
	Const
	Jet
)

var kindNames = [...]string{
	Iden:    "iden",
	Unit:    "unit",
	Comp:    "comp",
	Case:    "case",
	Pair:    "pair",
	InjL:    "injl",
	InjR:    "injr",
	Take:    "take",
	Drop:    "drop",
	Witness: "witness",
	Const:   "const",
	Jet:     "jet",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Arity is the number of children a node of kind k has.
func (k Kind) Arity() int {
	switch k {
	case Comp, Case, Pair:
		return 2
	case InjL, InjR, Take, Drop:
		return 1
	}
	return 0
}

// Node is a combinator with its source and target types.
type Node struct {
	Kind   Kind
	Source types.Type
	Target types.Type
	Left   *Node
	Right  *Node
	Name   string      // Witness slot or jet name
	Value  types.Value // Const payload
}

// Children returns the node's children in fixed order.
func (n *Node) Children() []*Node {
	switch n.Kind.Arity() {
	case 2:
		return []*Node{n.Left, n.Right}
	case 1:
		return []*Node{n.Left}
	}
	return nil
}

func (n *Node) String() string {
	switch n.Kind {
	case Witness, Jet:
		return fmt.Sprintf("%s %s", n.Kind, n.Name)
	case Const:
		return fmt.Sprintf("%s %s", n.Kind, n.Value)
	}
	return n.Kind.String()
}

// NewIden is iden : A -> A.
func NewIden(a types.Type) *Node {
	return &Node{Kind: Iden, Source: a, Target: a}
}

// NewUnit is unit : A -> ().
func NewUnit(a types.Type) *Node {
	return &Node{Kind: Unit, Source: a, Target: types.Unit{}}
}

// NewComp is comp s t : A -> C for s : A -> B and t : B -> C.
func NewComp(s, t *Node) *Node {
	return &Node{Kind: Comp, Source: s.Source, Target: t.Target, Left: s, Right: t}
}

// NewCase is case s t : (A + B) x C -> D for s : A x C -> D and t : B x C -> D.
func NewCase(s, t *Node) *Node {
	ls := s.Source.(*types.Product)
	rs := t.Source.(*types.Product)
	src := &types.Product{Left: &types.Sum{Left: ls.Left, Right: rs.Left}, Right: ls.Right}
	return &Node{Kind: Case, Source: src, Target: s.Target, Left: s, Right: t}
}

// NewPair is pair s t : A -> B x C for s : A -> B and t : A -> C.
func NewPair(s, t *Node) *Node {
	return &Node{Kind: Pair, Source: s.Source, Target: &types.Product{Left: s.Target, Right: t.Target}, Left: s, Right: t}
}

// NewInjL is injl t : A -> B + C for t : A -> B.
func NewInjL(t *Node, c types.Type) *Node {
	return &Node{Kind: InjL, Source: t.Source, Target: &types.Sum{Left: t.Target, Right: c}, Left: t}
}

// NewInjR is injr t : A -> B + C for t : A -> C.
func NewInjR(b types.Type, t *Node) *Node {
	return &Node{Kind: InjR, Source: t.Source, Target: &types.Sum{Left: b, Right: t.Target}, Left: t}
}

// NewTake is take t : A x B -> C for t : A -> C.
func NewTake(t *Node, b types.Type) *Node {
	return &Node{Kind: Take, Source: &types.Product{Left: t.Source, Right: b}, Target: t.Target, Left: t}
}

// NewDrop is drop t : A x B -> C for t : B -> C.
func NewDrop(a types.Type, t *Node) *Node {
	return &Node{Kind: Drop, Source: &types.Product{Left: a, Right: t.Source}, Target: t.Target, Left: t}
}

// NewWitness is a placeholder for the witness slot name : A -> B.
func NewWitness(name string, a, b types.Type) *Node {
	return &Node{Kind: Witness, Source: a, Target: b, Name: name}
}

// NewConst is a node producing v : A -> B, ignoring its input.
func NewConst(v types.Value, a, b types.Type) *Node {
	return &Node{Kind: Const, Source: a, Target: b, Value: v}
}

// NewJet applies a registered jet.
func NewJet(info *registry.JetInfo) *Node {
	return &Node{Kind: Jet, Source: info.Source(), Target: info.Target, Name: info.Name}
}

// PostOrder calls fn for every distinct node reachable from root, children
// before parents, left before right.
func PostOrder(root *Node, fn func(*Node)) {
	seen := make(map[*Node]bool)
	var visit func(n *Node)
	visit = func(n *Node) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		for _, c := range n.Children() {
			visit(c)
		}
		fn(n)
	}
	visit(root)
}

// Size counts the distinct nodes reachable from root.
func Size(root *Node) int {
	n := 0
	PostOrder(root, func(*Node) { n++ })
	return n
}

// Witnesses returns the type of every witness slot reachable from root.
func Witnesses(root *Node) map[string]types.Type {
	res := make(map[string]types.Type)
	PostOrder(root, func(n *Node) {
		if n.Kind == Witness {
			res[n.Name] = n.Target
		}
	})
	return res
}
