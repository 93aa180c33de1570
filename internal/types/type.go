// Package types defines the resolved types and values of the combinator
// language. Types are structural: two types are equal when they have the same
// shape, and no type has identity.
package types

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Type is one of Unit, Sum, Product or Named.
type Type interface {
	fmt.Stringer
	isType()
}

// Unit is the type with a single value, written ().
type Unit struct{}

// Sum is the tagged union Left(L) | Right(R).
type Sum struct {
	Left, Right Type
}

// Product is the pair (L, R).
type Product struct {
	Left, Right Type
}

// Named is a fixed-width unsigned word such as u8.
type Named struct {
	Name string
	Bits int
}

func (Unit) isType()     {}
func (*Sum) isType()     {}
func (*Product) isType() {}
func (*Named) isType()   {}

func (Unit) String() string { return "()" }

func (t *Sum) String() string {
	if IsBool(t) {
		return "bool"
	}
	return fmt.Sprintf("Either<%s, %s>", t.Left, t.Right)
}

func (t *Product) String() string {
	return fmt.Sprintf("(%s, %s)", t.Left, t.Right)
}

func (t *Named) String() string { return t.Name }

// WordSizes lists the supported word widths.
var WordSizes = []int{1, 2, 4, 8, 16, 32, 64, 128, 256}

var words = func() map[string]*Named {
	m := make(map[string]*Named, len(WordSizes))
	for _, bits := range WordSizes {
		name := "u" + strconv.Itoa(bits)
		m[name] = &Named{Name: name, Bits: bits}
	}
	return m
}()

// Word returns the word type of the given width, or nil if the width is not
// supported.
func Word(bits int) *Named {
	return words["u"+strconv.Itoa(bits)]
}

// Lookup resolves a builtin type name: a word or bool.
func Lookup(name string) (Type, bool) {
	if name == "bool" {
		return Bool(), true
	}
	w, ok := words[name]
	if !ok {
		return nil, false
	}
	return w, true
}

// Bool is Sum((), ()).
func Bool() Type {
	return &Sum{Left: Unit{}, Right: Unit{}}
}

// Option is Sum((), t).
func Option(t Type) Type {
	return &Sum{Left: Unit{}, Right: t}
}

// Tuple builds a right-nested product. It returns Unit for no elements and the
// element itself for one.
func Tuple(elems ...Type) Type {
	switch len(elems) {
	case 0:
		return Unit{}
	case 1:
		return elems[0]
	}
	return &Product{Left: elems[0], Right: Tuple(elems[1:]...)}
}

// IsBool reports whether t is Sum((), ()).
func IsBool(t Type) bool {
	s, ok := t.(*Sum)
	if !ok {
		return false
	}
	_, l := s.Left.(Unit)
	_, r := s.Right.(Unit)
	return l && r
}

// WordBits returns the width of t if it is a word.
func WordBits(t Type) (int, bool) {
	n, ok := t.(*Named)
	if !ok {
		return 0, false
	}
	return n.Bits, true
}

// Equal reports structural equality.
func Equal(a, b Type) bool {
	switch x := a.(type) {
	case Unit:
		_, ok := b.(Unit)
		return ok
	case *Sum:
		y, ok := b.(*Sum)
		return ok && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *Product:
		y, ok := b.(*Product)
		return ok && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *Named:
		y, ok := b.(*Named)
		return ok && x.Name == y.Name
	}
	return false
}

// Type tags used by AppendTag.
const (
	tagUnit    byte = 0x00
	tagSum     byte = 0x01
	tagProduct byte = 0x02
	tagNamed   byte = 0x03
)

// AppendTag appends a canonical, prefix-free encoding of t to b. Equal types
// always produce the same bytes.
func AppendTag(b []byte, t Type) []byte {
	switch x := t.(type) {
	case Unit:
		return append(b, tagUnit)
	case *Sum:
		b = append(b, tagSum)
		b = AppendTag(b, x.Left)
		return AppendTag(b, x.Right)
	case *Product:
		b = append(b, tagProduct)
		b = AppendTag(b, x.Left)
		return AppendTag(b, x.Right)
	case *Named:
		b = append(b, tagNamed)
		b = binary.AppendUvarint(b, uint64(len(x.Name)))
		return append(b, x.Name...)
	}
	panic(fmt.Sprintf("types: unknown type %T", t))
}

// ReadTag decodes a type written by AppendTag and returns the remaining bytes.
func ReadTag(b []byte) (Type, []byte, error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("truncated type")
	}
	switch b[0] {
	case tagUnit:
		return Unit{}, b[1:], nil
	case tagSum, tagProduct:
		l, rest, err := ReadTag(b[1:])
		if err != nil {
			return nil, nil, err
		}
		r, rest, err := ReadTag(rest)
		if err != nil {
			return nil, nil, err
		}
		if b[0] == tagSum {
			return &Sum{Left: l, Right: r}, rest, nil
		}
		return &Product{Left: l, Right: r}, rest, nil
	case tagNamed:
		n, k := binary.Uvarint(b[1:])
		if k <= 0 || uint64(len(b)-1-k) < n {
			return nil, nil, fmt.Errorf("truncated type name")
		}
		name := string(b[1+k : 1+k+int(n)])
		w, ok := words[name]
		if !ok {
			return nil, nil, fmt.Errorf("unknown type %q", name)
		}
		return w, b[1+k+int(n):], nil
	}
	return nil, nil, fmt.Errorf("unknown type tag 0x%02x", b[0])
}

// Elems flattens a right-nested product into n elements. The last element
// absorbs any deeper nesting.
func Elems(t Type, n int) ([]Type, bool) {
	res := make([]Type, 0, n)
	for i := 0; i < n-1; i++ {
		p, ok := t.(*Product)
		if !ok {
			return nil, false
		}
		res = append(res, p.Left)
		t = p.Right
	}
	return append(res, t), true
}

// Format renders t in source syntax, using Option and tuple sugar.
func Format(t Type) string {
	var sb strings.Builder
	format(&sb, t)
	return sb.String()
}

func format(sb *strings.Builder, t Type) {
	switch x := t.(type) {
	case *Sum:
		switch {
		case IsBool(x):
			sb.WriteString("bool")
		default:
			if _, ok := x.Left.(Unit); ok {
				sb.WriteString("Option<")
				format(sb, x.Right)
				sb.WriteString(">")
				return
			}
			sb.WriteString("Either<")
			format(sb, x.Left)
			sb.WriteString(", ")
			format(sb, x.Right)
			sb.WriteString(">")
		}
	case *Product:
		sb.WriteString("(")
		format(sb, x.Left)
		for r := x.Right; ; {
			sb.WriteString(", ")
			p, ok := r.(*Product)
			if !ok {
				format(sb, r)
				break
			}
			format(sb, p.Left)
			r = p.Right
		}
		sb.WriteString(")")
	default:
		sb.WriteString(t.String())
	}
}
