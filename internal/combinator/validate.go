package combinator

import (
	"fmt"

	"martianoff/simc/internal/compiler/registry"
	"martianoff/simc/internal/types"
)

// ValidationError reports a node that breaks its kind's typing rule.
type ValidationError struct {
	Node   *Node
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s : %s -> %s: %s", e.Node, types.Format(e.Node.Source), types.Format(e.Node.Target), e.Reason)
}

// Validate checks every node reachable from root against the typing rules of
// its kind. Jet nodes are checked against jets; witness slots must agree on
// their type wherever they occur.
func Validate(root *Node, jets *registry.JetRegistry) error {
	if root == nil {
		return fmt.Errorf("empty program")
	}
	var err error
	slots := make(map[string]types.Type)
	PostOrder(root, func(n *Node) {
		if err != nil {
			return
		}
		if reason := check(n, jets); reason != "" {
			err = &ValidationError{Node: n, Reason: reason}
			return
		}
		if n.Kind == Witness {
			if prev, ok := slots[n.Name]; ok && !types.Equal(prev, n.Target) {
				err = &ValidationError{Node: n, Reason: fmt.Sprintf("slot also used as %s", types.Format(prev))}
				return
			}
			slots[n.Name] = n.Target
		}
	})
	return err
}

func check(n *Node, jets *registry.JetRegistry) string {
	if n.Source == nil || n.Target == nil {
		return "missing type"
	}
	for _, c := range n.Children() {
		if c == nil {
			return "missing child"
		}
	}
	eq := types.Equal
	switch n.Kind {
	case Iden:
		if !eq(n.Source, n.Target) {
			return "source and target differ"
		}
	case Unit:
		if _, ok := n.Target.(types.Unit); !ok {
			return "target is not ()"
		}
	case Comp:
		if !eq(n.Source, n.Left.Source) || !eq(n.Target, n.Right.Target) || !eq(n.Left.Target, n.Right.Source) {
			return "children do not compose"
		}
	case Case:
		src, ok := n.Source.(*types.Product)
		if !ok {
			return "source is not a product"
		}
		s, ok := src.Left.(*types.Sum)
		if !ok {
			return "source does not start with a sum"
		}
		if !eq(n.Left.Source, &types.Product{Left: s.Left, Right: src.Right}) ||
			!eq(n.Right.Source, &types.Product{Left: s.Right, Right: src.Right}) {
			return "branch sources do not match the scrutinee"
		}
		if !eq(n.Left.Target, n.Target) || !eq(n.Right.Target, n.Target) {
			return "branch targets differ"
		}
	case Pair:
		if !eq(n.Left.Source, n.Source) || !eq(n.Right.Source, n.Source) ||
			!eq(n.Target, &types.Product{Left: n.Left.Target, Right: n.Right.Target}) {
			return "children do not pair"
		}
	case InjL, InjR:
		s, ok := n.Target.(*types.Sum)
		if !ok {
			return "target is not a sum"
		}
		side := s.Left
		if n.Kind == InjR {
			side = s.Right
		}
		if !eq(n.Left.Source, n.Source) || !eq(n.Left.Target, side) {
			return "child does not fit the injection"
		}
	case Take, Drop:
		p, ok := n.Source.(*types.Product)
		if !ok {
			return "source is not a product"
		}
		side := p.Left
		if n.Kind == Drop {
			side = p.Right
		}
		if !eq(n.Left.Source, side) || !eq(n.Left.Target, n.Target) {
			return "child does not fit the projection"
		}
	case Witness:
		if n.Name == "" {
			return "witness without a name"
		}
	case Const:
		if n.Value == nil {
			return "const without a value"
		}
		if err := types.Check(n.Value, n.Target); err != nil {
			return err.Error()
		}
	case Jet:
		info, ok := jets.Lookup(n.Name)
		if !ok {
			return "unknown jet"
		}
		if !eq(n.Source, info.Source()) || !eq(n.Target, info.Target) {
			return fmt.Sprintf("jet signature is %s", info)
		}
	default:
		return "unknown kind"
	}
	return ""
}
