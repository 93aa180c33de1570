package infer

import (
	"fmt"
	"strings"
)

// Inferer hands out fresh type variables and unifies types.
type Inferer struct {
	nextID   int
	numerics []*TypeVariable
}

func NewInferer() *Inferer {
	return &Inferer{nextID: 0}
}

func (inf *Inferer) NewTypeVar() *TypeVariable {
	inf.nextID++
	return &TypeVariable{ID: inf.nextID}
}

// NewNumericVar returns a variable for an integer literal.
func (inf *Inferer) NewNumericVar() *TypeVariable {
	v := inf.NewTypeVar()
	v.Numeric = true
	inf.numerics = append(inf.numerics, v)
	return v
}

func (inf *Inferer) unify(t1, t2 Type) (Substitution, error) {
	a1, ok1 := t1.(*TypeVariable)
	a2, ok2 := t2.(*TypeVariable)
	switch {
	case ok1 && ok2:
		// keep the numeric constraint on the surviving variable
		if a1.Numeric && !a2.Numeric {
			return inf.bind(a2, a1)
		}
		return inf.bind(a1, a2)
	case ok1:
		return inf.bind(a1, t2)
	case ok2:
		return inf.bind(a2, t1)
	}

	if a, ok := t1.(*TypeApp); ok {
		if b, ok := t2.(*TypeApp); ok {
			if a.Name != b.Name || len(a.Args) != len(b.Args) {
				return nil, fmt.Errorf("cannot unify %s and %s", a, b)
			}
			s := make(Substitution)
			for i := 0; i < len(a.Args); i++ {
				s2, err := inf.unify(a.Args[i].Apply(s), b.Args[i].Apply(s))
				if err != nil {
					return nil, err
				}
				s = s2.Compose(s)
			}
			return s, nil
		}
	}

	if a, ok := t1.(*TypeConst); ok {
		if b, ok := t2.(*TypeConst); ok {
			if a.Name == b.Name {
				return make(Substitution), nil
			}
		}
	}

	return nil, fmt.Errorf("cannot unify %s and %s", t1, t2)
}

func (inf *Inferer) bind(v *TypeVariable, t Type) (Substitution, error) {
	if v == t {
		return make(Substitution), nil
	}
	if v.Numeric && !isWordConst(t) {
		if _, ok := t.(*TypeVariable); !ok {
			return nil, fmt.Errorf("integer literal cannot have type %s", t)
		}
	}
	if t.FreeTypeVars()[v] {
		return nil, fmt.Errorf("occurs check failed: %s in %s", v, t)
	}
	return Substitution{v: t}, nil
}

func isWordConst(t Type) bool {
	c, ok := t.(*TypeConst)
	return ok && strings.HasPrefix(c.Name, "u")
}
