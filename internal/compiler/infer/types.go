package infer

import (
	"fmt"
	"strings"

	"martianoff/simc/internal/types"
)

// Type is a type during inference: a variable, a constant or an application
// of a sum or product constructor.
type Type interface {
	fmt.Stringer
	Apply(s Substitution) Type
	FreeTypeVars() map[*TypeVariable]bool
}

// TypeVariable is an unknown type. Numeric variables stand for integer
// literals and can only be bound to words.
type TypeVariable struct {
	ID      int
	Numeric bool
}

func (t *TypeVariable) String() string {
	if t.Numeric {
		return "{integer}"
	}
	return fmt.Sprintf("t%d", t.ID)
}

func (t *TypeVariable) Apply(s Substitution) Type {
	if next, ok := s[t]; ok {
		return next.Apply(s)
	}
	return t
}

func (t *TypeVariable) FreeTypeVars() map[*TypeVariable]bool {
	return map[*TypeVariable]bool{t: true}
}

// TypeConst is () or a word.
type TypeConst struct {
	Name string
}

func (t *TypeConst) String() string {
	return t.Name
}

func (t *TypeConst) Apply(s Substitution) Type {
	return t
}

func (t *TypeConst) FreeTypeVars() map[*TypeVariable]bool {
	return map[*TypeVariable]bool{}
}

// Constructor names for TypeApp.
const (
	SumName     = "+"
	ProductName = "*"
)

// TypeApp is a sum or product of two types.
type TypeApp struct {
	Name string
	Args []Type
}

// String uses the same sugar as types.Format: bool, Option and flat tuples.
func (t *TypeApp) String() string {
	if t.Name == SumName {
		switch {
		case isUnitConst(t.Args[0]) && isUnitConst(t.Args[1]):
			return "bool"
		case isUnitConst(t.Args[0]):
			return fmt.Sprintf("Option<%s>", t.Args[1])
		}
		return fmt.Sprintf("Either<%s, %s>", t.Args[0], t.Args[1])
	}
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(t.Args[0].String())
	for r := t.Args[1]; ; {
		sb.WriteString(", ")
		p, ok := r.(*TypeApp)
		if !ok || p.Name != ProductName {
			sb.WriteString(r.String())
			break
		}
		sb.WriteString(p.Args[0].String())
		r = p.Args[1]
	}
	sb.WriteString(")")
	return sb.String()
}

func (t *TypeApp) Apply(s Substitution) Type {
	newArgs := make([]Type, len(t.Args))
	for i, arg := range t.Args {
		newArgs[i] = arg.Apply(s)
	}
	return &TypeApp{Name: t.Name, Args: newArgs}
}

func (t *TypeApp) FreeTypeVars() map[*TypeVariable]bool {
	res := make(map[*TypeVariable]bool)
	for _, arg := range t.Args {
		for k, v := range arg.FreeTypeVars() {
			res[k] = v
		}
	}
	return res
}

// Substitution is a mapping from type variables to types.
type Substitution map[*TypeVariable]Type

func (s Substitution) Compose(other Substitution) Substitution {
	res := make(Substitution)
	for k, v := range other {
		res[k] = v.Apply(s)
	}
	for k, v := range s {
		res[k] = v
	}
	return res
}

var unitConst = &TypeConst{Name: "()"}

func isUnitConst(t Type) bool {
	c, ok := t.(*TypeConst)
	return ok && c.Name == unitConst.Name
}

func sum(l, r Type) Type {
	return &TypeApp{Name: SumName, Args: []Type{l, r}}
}

func product(l, r Type) Type {
	return &TypeApp{Name: ProductName, Args: []Type{l, r}}
}

func boolType() Type {
	return sum(unitConst, unitConst)
}

// tuple right-nests elems; it mirrors types.Tuple.
func tuple(elems []Type) Type {
	switch len(elems) {
	case 0:
		return unitConst
	case 1:
		return elems[0]
	}
	return product(elems[0], tuple(elems[1:]))
}

// FromResolved lifts a resolved type into inference.
func FromResolved(t types.Type) Type {
	switch x := t.(type) {
	case types.Unit:
		return unitConst
	case *types.Sum:
		return sum(FromResolved(x.Left), FromResolved(x.Right))
	case *types.Product:
		return product(FromResolved(x.Left), FromResolved(x.Right))
	case *types.Named:
		return &TypeConst{Name: x.Name}
	}
	panic(fmt.Sprintf("infer: unknown type %T", t))
}

// Resolve lowers a fully applied inference type. It fails if any variable is
// still free.
func Resolve(t Type) (types.Type, bool) {
	switch x := t.(type) {
	case *TypeConst:
		if x.Name == unitConst.Name {
			return types.Unit{}, true
		}
		w, ok := types.Lookup(x.Name)
		return w, ok
	case *TypeApp:
		l, ok := Resolve(x.Args[0])
		if !ok {
			return nil, false
		}
		r, ok := Resolve(x.Args[1])
		if !ok {
			return nil, false
		}
		if x.Name == SumName {
			return &types.Sum{Left: l, Right: r}, true
		}
		return &types.Product{Left: l, Right: r}, true
	}
	return nil, false
}
