// Package witness converts witness values between JSON and typed values and
// binds them into combinator trees.
//
// JSON mapping: () is null; words are integers, or "0x..." strings above 64
// bits (decimal and hex strings are accepted for any width); bool is
// true/false; other sums are {"Left": v} or {"Right": v}, with null accepted
// for the None side of an Option; products are arrays flattened along their
// right nesting, so (a, (b, c)) is [a, b, c].
package witness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"martianoff/simc/internal/types"
)

// ParseJSON reads a witness object. Numbers are kept as json.Number and
// duplicate keys are rejected at every level.
func ParseJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("witness data must be an object, found %s", describe(v))
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("unexpected end of JSON input")
		}
		return nil, err
	}
	switch d := tok.(type) {
	case json.Delim:
		switch d {
		case '{':
			obj := make(map[string]any)
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key must be a string")
				}
				if _, dup := obj[key]; dup {
					return nil, fmt.Errorf("duplicate key %q", key)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj[key] = v
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := make([]any, 0)
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected %q", rune(d))
	}
	return tok, nil
}

// describe names the JSON kind of v for error messages.
func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return fmt.Sprintf("%t", x)
	case json.Number:
		return "number " + x.String()
	case float64:
		return fmt.Sprintf("number %v", x)
	case string:
		return fmt.Sprintf("string %q", x)
	case []any:
		return fmt.Sprintf("array of %d", len(x))
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// MismatchError reports a JSON value that does not fit its slot type.
type MismatchError struct {
	Expected types.Type
	Found    string
	Reason   string
}

func (e *MismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("expected %s, found %s: %s", types.Format(e.Expected), e.Found, e.Reason)
	}
	return fmt.Sprintf("expected %s, found %s", types.Format(e.Expected), e.Found)
}

// FromJSON converts a decoded JSON value into a value of type t.
func FromJSON(v any, t types.Type) (types.Value, error) {
	mismatch := func(reason string) error {
		return &MismatchError{Expected: t, Found: describe(v), Reason: reason}
	}

	switch x := t.(type) {
	case types.Unit:
		if v == nil {
			return types.UnitValue{}, nil
		}
		return nil, mismatch("")

	case *types.Named:
		n, err := parseInteger(v)
		if err != nil {
			return nil, mismatch(err.Error())
		}
		w, err := types.NewWord(x.Bits, n)
		if err != nil {
			return nil, mismatch(err.Error())
		}
		return w, nil

	case *types.Sum:
		if b, ok := v.(bool); ok && types.IsBool(x) {
			return types.BoolValue(b), nil
		}
		if v == nil {
			if _, ok := x.Left.(types.Unit); ok {
				return &types.LeftValue{Inner: types.UnitValue{}}, nil
			}
		}
		obj, ok := v.(map[string]any)
		if !ok || len(obj) != 1 {
			return nil, mismatch(`want {"Left": v} or {"Right": v}`)
		}
		if inner, ok := obj["Left"]; ok {
			iv, err := FromJSON(inner, x.Left)
			if err != nil {
				return nil, err
			}
			return &types.LeftValue{Inner: iv}, nil
		}
		if inner, ok := obj["Right"]; ok {
			iv, err := FromJSON(inner, x.Right)
			if err != nil {
				return nil, err
			}
			return &types.RightValue{Inner: iv}, nil
		}
		return nil, mismatch(`want {"Left": v} or {"Right": v}`)

	case *types.Product:
		arr, ok := v.([]any)
		if !ok || len(arr) < 2 {
			return nil, mismatch("want an array of at least 2 elements")
		}
		elemTypes, ok := types.Elems(t, len(arr))
		if !ok {
			return nil, mismatch("too many elements")
		}
		values := make([]types.Value, len(arr))
		for i, el := range arr {
			ev, err := FromJSON(el, elemTypes[i])
			if err != nil {
				return nil, err
			}
			values[i] = ev
		}
		return types.TupleValue(values...), nil
	}
	return nil, mismatch("unsupported type")
}

func parseInteger(v any) (*big.Int, error) {
	var text string
	switch x := v.(type) {
	case json.Number:
		text = x.String()
	case float64:
		text = fmt.Sprintf("%v", x)
	case string:
		text = x
	default:
		return nil, errors.New("want an integer")
	}

	base := 10
	digits := text
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		base, digits = 16, text[2:]
	}
	if digits == "" || strings.HasPrefix(digits, "+") || strings.HasPrefix(digits, "-") {
		return nil, fmt.Errorf("%q is not an unsigned integer", text)
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("%q is not an unsigned integer", text)
	}
	return n, nil
}

// ToJSON converts v of type t into its canonical JSON form. The result
// marshals with encoding/json.
func ToJSON(v types.Value, t types.Type) any {
	switch x := t.(type) {
	case types.Unit:
		return nil
	case *types.Named:
		w := v.(*types.WordValue)
		if x.Bits > 64 {
			return "0x" + w.Int.Text(16)
		}
		return json.Number(w.Int.String())
	case *types.Sum:
		if types.IsBool(x) {
			_, isRight := v.(*types.RightValue)
			return isRight
		}
		switch y := v.(type) {
		case *types.LeftValue:
			return map[string]any{"Left": ToJSON(y.Inner, x.Left)}
		case *types.RightValue:
			return map[string]any{"Right": ToJSON(y.Inner, x.Right)}
		}
	case *types.Product:
		var arr []any
		for {
			p := v.(*types.PairValue)
			arr = append(arr, ToJSON(p.First, x.Left))
			next, ok := x.Right.(*types.Product)
			if !ok {
				return append(arr, ToJSON(p.Second, x.Right))
			}
			x, v = next, p.Second
		}
	}
	panic(fmt.Sprintf("witness: cannot convert %s to %s", v, t))
}
