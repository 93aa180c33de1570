package types

import (
	"fmt"
	"math/big"
)

// Value is a typed literal: one of UnitValue, LeftValue, RightValue,
// PairValue or WordValue.
type Value interface {
	fmt.Stringer
	isValue()
}

// UnitValue is ().
type UnitValue struct{}

// LeftValue is Left(Inner).
type LeftValue struct {
	Inner Value
}

// RightValue is Right(Inner).
type RightValue struct {
	Inner Value
}

// PairValue is (First, Second).
type PairValue struct {
	First, Second Value
}

// WordValue is an unsigned integer of a fixed width.
type WordValue struct {
	Bits int
	Int  *big.Int
}

func (UnitValue) isValue()   {}
func (*LeftValue) isValue()  {}
func (*RightValue) isValue() {}
func (*PairValue) isValue()  {}
func (*WordValue) isValue()  {}

func (UnitValue) String() string     { return "()" }
func (v *LeftValue) String() string  { return fmt.Sprintf("Left(%s)", v.Inner) }
func (v *RightValue) String() string { return fmt.Sprintf("Right(%s)", v.Inner) }
func (v *PairValue) String() string  { return fmt.Sprintf("(%s, %s)", v.First, v.Second) }
func (v *WordValue) String() string  { return v.Int.String() }

// False is Left(()).
func False() Value { return &LeftValue{Inner: UnitValue{}} }

// True is Right(()).
func True() Value { return &RightValue{Inner: UnitValue{}} }

// BoolValue returns True or False.
func BoolValue(b bool) Value {
	if b {
		return True()
	}
	return False()
}

// TupleValue right-nests values the way Tuple nests types.
func TupleValue(elems ...Value) Value {
	switch len(elems) {
	case 0:
		return UnitValue{}
	case 1:
		return elems[0]
	}
	return &PairValue{First: elems[0], Second: TupleValue(elems[1:]...)}
}

// NewWord returns a word value, or an error if x does not fit in bits.
func NewWord(bits int, x *big.Int) (*WordValue, error) {
	if x.Sign() < 0 || x.BitLen() > bits {
		return nil, fmt.Errorf("%s does not fit in u%d", x, bits)
	}
	return &WordValue{Bits: bits, Int: new(big.Int).Set(x)}, nil
}

// MustWord is NewWord for constants known to fit.
func MustWord(bits int, x uint64) *WordValue {
	w, err := NewWord(bits, new(big.Int).SetUint64(x))
	if err != nil {
		panic(err)
	}
	return w
}

// Check verifies that v inhabits t.
func Check(v Value, t Type) error {
	if isNil(v) {
		return fmt.Errorf("expected %s, found nothing", t)
	}
	switch x := t.(type) {
	case Unit:
		if _, ok := v.(UnitValue); ok {
			return nil
		}
	case *Sum:
		switch y := v.(type) {
		case *LeftValue:
			return Check(y.Inner, x.Left)
		case *RightValue:
			return Check(y.Inner, x.Right)
		}
	case *Product:
		if y, ok := v.(*PairValue); ok {
			if err := Check(y.First, x.Left); err != nil {
				return err
			}
			return Check(y.Second, x.Right)
		}
	case *Named:
		if y, ok := v.(*WordValue); ok {
			if y.Bits != x.Bits {
				return fmt.Errorf("expected %s, found u%d value %s", t, y.Bits, y.Int)
			}
			if y.Int.Sign() < 0 || y.Int.BitLen() > x.Bits {
				return fmt.Errorf("%s does not fit in %s", y.Int, t)
			}
			return nil
		}
	}
	return fmt.Errorf("expected %s, found %s", t, v)
}

// Describe renders v for error messages; a missing value reads "nothing".
func Describe(v Value) string {
	if isNil(v) {
		return "nothing"
	}
	return v.String()
}

func isNil(v Value) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *LeftValue:
		return x == nil
	case *RightValue:
		return x == nil
	case *PairValue:
		return x == nil
	case *WordValue:
		return x == nil || x.Int == nil
	}
	return false
}

// EqualValues reports structural equality of values.
func EqualValues(a, b Value) bool {
	switch x := a.(type) {
	case UnitValue:
		_, ok := b.(UnitValue)
		return ok
	case *LeftValue:
		y, ok := b.(*LeftValue)
		return ok && EqualValues(x.Inner, y.Inner)
	case *RightValue:
		y, ok := b.(*RightValue)
		return ok && EqualValues(x.Inner, y.Inner)
	case *PairValue:
		y, ok := b.(*PairValue)
		return ok && EqualValues(x.First, y.First) && EqualValues(x.Second, y.Second)
	case *WordValue:
		y, ok := b.(*WordValue)
		return ok && x.Bits == y.Bits && x.Int.Cmp(y.Int) == 0
	}
	return false
}

// AppendValue appends the encoding of v, which must inhabit t. Units take no
// space, sums a tag byte and words their big-endian bytes.
func AppendValue(b []byte, v Value, t Type) []byte {
	switch x := t.(type) {
	case Unit:
		return b
	case *Sum:
		switch y := v.(type) {
		case *LeftValue:
			return AppendValue(append(b, 0), y.Inner, x.Left)
		case *RightValue:
			return AppendValue(append(b, 1), y.Inner, x.Right)
		}
	case *Product:
		p := v.(*PairValue)
		b = AppendValue(b, p.First, x.Left)
		return AppendValue(b, p.Second, x.Right)
	case *Named:
		w := v.(*WordValue)
		buf := make([]byte, wordBytes(x.Bits))
		return append(b, w.Int.FillBytes(buf)...)
	}
	panic(fmt.Sprintf("types: cannot encode %s as %s", v, t))
}

// ReadValue decodes a value of type t written by AppendValue.
func ReadValue(b []byte, t Type) (Value, []byte, error) {
	switch x := t.(type) {
	case Unit:
		return UnitValue{}, b, nil
	case *Sum:
		if len(b) == 0 {
			return nil, nil, fmt.Errorf("truncated value of type %s", t)
		}
		switch b[0] {
		case 0:
			inner, rest, err := ReadValue(b[1:], x.Left)
			if err != nil {
				return nil, nil, err
			}
			return &LeftValue{Inner: inner}, rest, nil
		case 1:
			inner, rest, err := ReadValue(b[1:], x.Right)
			if err != nil {
				return nil, nil, err
			}
			return &RightValue{Inner: inner}, rest, nil
		}
		return nil, nil, fmt.Errorf("bad sum tag %d", b[0])
	case *Product:
		first, rest, err := ReadValue(b, x.Left)
		if err != nil {
			return nil, nil, err
		}
		second, rest, err := ReadValue(rest, x.Right)
		if err != nil {
			return nil, nil, err
		}
		return &PairValue{First: first, Second: second}, rest, nil
	case *Named:
		n := wordBytes(x.Bits)
		if len(b) < n {
			return nil, nil, fmt.Errorf("truncated value of type %s", t)
		}
		w, err := NewWord(x.Bits, new(big.Int).SetBytes(b[:n]))
		if err != nil {
			return nil, nil, err
		}
		return w, b[n:], nil
	}
	return nil, nil, fmt.Errorf("unknown type %s", t)
}

func wordBytes(bits int) int {
	return (bits + 7) / 8
}
