package witness

import (
	"errors"
	"fmt"
	"sort"

	"martianoff/simc/internal/combinator"
	"martianoff/simc/internal/compiler/registry"
	"martianoff/simc/internal/types"
	"martianoff/simc/simerr"
)

// Map assigns a value to each witness slot by name.
type Map map[string]types.Value

// Bound is a closed program together with the values bound into it.
type Bound struct {
	Root   *combinator.Node
	Slots  map[string]types.Type
	Values Map
}

// Data returns the canonical JSON form of the bound values.
func (b *Bound) Data() map[string]any {
	res := make(map[string]any, len(b.Values))
	for name, v := range b.Values {
		res[name] = ToJSON(v, b.Slots[name])
	}
	return res
}

// Binder binds witness values into programs.
type Binder struct {
	jets *registry.JetRegistry
}

// NewBinder creates a Binder that validates results against jets.
func NewBinder(jets *registry.JetRegistry) *Binder {
	return &Binder{jets: jets}
}

// BindJSON converts a parsed witness object against the slots of root and
// binds it.
func (b *Binder) BindJSON(root *combinator.Node, raw map[string]any) (*Bound, error) {
	slots := combinator.Witnesses(root)
	if err := checkNames(slots, keys(raw)); err != nil {
		return nil, err
	}
	values := make(Map, len(raw))
	for _, name := range sortedNames(slots) {
		v, err := FromJSON(raw[name], slots[name])
		if err != nil {
			return nil, mismatchError(name, slots[name], err)
		}
		values[name] = v
	}
	return b.bind(root, slots, values)
}

// Bind substitutes values for the witness slots of root. Every slot needs a
// value and every value needs a slot. The result is revalidated and must
// contain no witness slots.
func (b *Binder) Bind(root *combinator.Node, values Map) (*Bound, error) {
	slots := combinator.Witnesses(root)
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	if err := checkNames(slots, names); err != nil {
		return nil, err
	}
	for _, name := range sortedNames(slots) {
		if err := types.Check(values[name], slots[name]); err != nil {
			return nil, simerr.NewBindMismatchError(name, types.Format(slots[name]), types.Describe(values[name]))
		}
	}
	return b.bind(root, slots, values)
}

func (b *Binder) bind(root *combinator.Node, slots map[string]types.Type, values Map) (*Bound, error) {
	bound := substitute(root, values)
	if err := combinator.Validate(bound, b.jets); err != nil {
		return nil, simerr.NewBindError(simerr.KindInvalidProgram, "", fmt.Sprintf("bound program is invalid: %v", err))
	}
	if open := combinator.Witnesses(bound); len(open) > 0 {
		name := sortedNames(open)[0]
		return nil, simerr.NewBindError(simerr.KindInvalidProgram, name, fmt.Sprintf("witness %s is still unbound", name))
	}
	return &Bound{Root: bound, Slots: slots, Values: values}, nil
}

// checkNames reports the first missing slot, then the first unused value, in
// name order.
func checkNames(slots map[string]types.Type, provided []string) error {
	have := make(map[string]bool, len(provided))
	for _, name := range provided {
		have[name] = true
	}
	for _, name := range sortedNames(slots) {
		if !have[name] {
			return simerr.NewBindError(simerr.KindMissingWitness, name, fmt.Sprintf("missing witness %s", name))
		}
	}
	sort.Strings(provided)
	for _, name := range provided {
		if _, ok := slots[name]; !ok {
			return simerr.NewBindError(simerr.KindUnusedWitness, name, fmt.Sprintf("witness %s is not used by the program", name))
		}
	}
	return nil
}

func mismatchError(name string, t types.Type, err error) error {
	var m *MismatchError
	if errors.As(err, &m) {
		e := simerr.NewBindMismatchError(name, types.Format(m.Expected), m.Found)
		if m.Reason != "" {
			e.Msg += ": " + m.Reason
		}
		return e
	}
	return simerr.NewBindMismatchError(name, types.Format(t), err.Error())
}

// substitute rewrites witness nodes into const nodes. Untouched subtrees are
// shared with the input.
func substitute(root *combinator.Node, values Map) *combinator.Node {
	memo := make(map[*combinator.Node]*combinator.Node)
	var visit func(n *combinator.Node) *combinator.Node
	visit = func(n *combinator.Node) *combinator.Node {
		if r, ok := memo[n]; ok {
			return r
		}
		res := n
		switch {
		case n.Kind == combinator.Witness:
			res = combinator.NewConst(values[n.Name], n.Source, n.Target)
		case n.Kind.Arity() > 0:
			l := visit(n.Left)
			var r *combinator.Node
			if n.Right != nil {
				r = visit(n.Right)
			}
			if l != n.Left || r != n.Right {
				c := *n
				c.Left, c.Right = l, r
				res = &c
			}
		}
		memo[n] = res
		return res
	}
	return visit(root)
}

func keys(m map[string]any) []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	return res
}

func sortedNames(m map[string]types.Type) []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}
